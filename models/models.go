package models

import "time"

type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostPublished PostStatus = "published"
)

func (s PostStatus) IsValid() bool {
	return s == PostDraft || s == PostPublished
}

type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
	CommentRejected CommentStatus = "rejected"
)

func (s CommentStatus) IsValid() bool {
	switch s {
	case CommentPending, CommentApproved, CommentRejected:
		return true
	}
	return false
}

// Author is the public profile of an account. Exactly one per user.
type Author struct {
	ID          int64
	UserID      int64
	DisplayName string
	Slug        string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// PostsCount is the number of published posts, filled by list queries.
	PostsCount int64
}

type SocialLink struct {
	ID       int64
	AuthorID int64
	Platform string
	URL      string
	Icon     string
}

type Category struct {
	ID          int64
	Name        string
	Slug        string
	Description string
	Color       string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	PostsCount int64
}

type Tag struct {
	ID        int64
	Name      string
	Slug      string
	CreatedAt time.Time

	PostsCount int64
}

type Post struct {
	ID            int64
	Title         string
	Slug          string
	Excerpt       string
	Content       string
	FeaturedImage string
	AuthorID      int64
	CategoryID    *int64
	TagIDs        []int64
	Status        PostStatus
	PublishedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	MetaTitle       string
	MetaDescription string
	Keywords        []string
	OGImage         string
}

func (p *Post) IsPublished() bool {
	return p.Status == PostPublished
}

type Comment struct {
	ID          int64
	PostID      int64
	AuthorName  string
	AuthorEmail string
	Content     string
	Status      CommentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
