package main

import (
	"strconv"
	"time"

	"github.com/siahsang/blogplatform/internal/auth"
	"github.com/siahsang/blogplatform/internal/core"
	"github.com/siahsang/blogplatform/internal/utils/functional"
	"github.com/siahsang/blogplatform/models"
)

type UserResponse struct {
	ID            int64      `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Avatar        string     `json:"avatar"`
	Bio           string     `json:"bio"`
	ArticlesCount int64      `json:"articles_count"`
	IsStaff       bool       `json:"is_staff"`
	DateJoined    time.Time  `json:"date_joined"`
	LastLogin     *time.Time `json:"last_login"`
}

func userResponse(user *auth.User) UserResponse {
	return UserResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Avatar:        user.Avatar,
		Bio:           user.Bio,
		ArticlesCount: user.ArticleCount,
		IsStaff:       user.IsStaff,
		DateJoined:    user.DateJoined,
		LastLogin:     user.LastLogin,
	}
}

// PublicUserResponse omits the email and login details of other users.
type PublicUserResponse struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Avatar        string    `json:"avatar"`
	Bio           string    `json:"bio"`
	ArticlesCount int64     `json:"articles_count"`
	DateJoined    time.Time `json:"date_joined"`
}

func publicUserResponse(user *auth.User) PublicUserResponse {
	return PublicUserResponse{
		ID:            user.ID,
		Username:      user.Username,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Avatar:        user.Avatar,
		Bio:           user.Bio,
		ArticlesCount: user.ArticleCount,
		DateJoined:    user.DateJoined,
	}
}

type SocialLinkResponse struct {
	ID       int64  `json:"id"`
	Platform string `json:"platform"`
	URL      string `json:"url"`
	Icon     string `json:"icon"`
}

func socialLinkResponse(link *models.SocialLink) SocialLinkResponse {
	return SocialLinkResponse{ID: link.ID, Platform: link.Platform, URL: link.URL, Icon: link.Icon}
}

type AuthorResponse struct {
	ID            int64                `json:"id"`
	DisplayName   string               `json:"display_name"`
	Slug          string               `json:"slug"`
	Name          string               `json:"name"`
	Email         string               `json:"email"`
	Avatar        string               `json:"avatar"`
	Bio           string               `json:"bio"`
	ArticlesCount int64                `json:"articles_count"`
	SocialLinks   []SocialLinkResponse `json:"social_links,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     *time.Time           `json:"updated_at,omitempty"`
}

func authorResponse(view *core.AuthorView) AuthorResponse {
	a := view.Author
	resp := AuthorResponse{
		ID:            a.ID,
		DisplayName:   a.DisplayName,
		Slug:          a.Slug,
		ArticlesCount: a.PostsCount,
		CreatedAt:     a.CreatedAt,
	}
	if u := view.User; u != nil {
		resp.Name = u.DisplayName()
		resp.Email = u.Email
		resp.Avatar = u.Avatar
		resp.Bio = u.Bio
	}
	return resp
}

func authorDetailResponse(view *core.AuthorView) AuthorResponse {
	resp := authorResponse(view)
	resp.SocialLinks = functional.Map(view.SocialLinks, socialLinkResponse)
	resp.UpdatedAt = &view.Author.UpdatedAt
	return resp
}

type CategoryResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	PostsCount  int64     `json:"posts_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func categoryResponse(c *models.Category) CategoryResponse {
	return CategoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		Color:       c.Color,
		PostsCount:  c.PostsCount,
		CreatedAt:   c.CreatedAt,
	}
}

type TagResponse struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	PostsCount int64     `json:"posts_count"`
	CreatedAt  time.Time `json:"created_at"`
}

func tagResponse(t *models.Tag) TagResponse {
	return TagResponse{ID: t.ID, Name: t.Name, Slug: t.Slug, PostsCount: t.PostsCount, CreatedAt: t.CreatedAt}
}

type SEOResponse struct {
	MetaTitle       string   `json:"metaTitle"`
	MetaDescription string   `json:"metaDescription"`
	Keywords        []string `json:"keywords"`
	OGImage         string   `json:"ogImage"`
}

type PostResponse struct {
	ID            int64             `json:"id"`
	Title         string            `json:"title"`
	Slug          string            `json:"slug"`
	Excerpt       string            `json:"excerpt"`
	Content       *string           `json:"content,omitempty"`
	Author        *AuthorResponse   `json:"author"`
	Category      *CategoryResponse `json:"category"`
	Tags          []TagResponse     `json:"tags"`
	FeaturedImage string            `json:"featured_image"`
	Status        string            `json:"status"`
	PublishedAt   *time.Time        `json:"published_at"`
	CreatedAt     *time.Time        `json:"created_at,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at"`
	SEO           SEOResponse       `json:"seo"`
	CommentsCount int64             `json:"comments_count"`
	ReadingTime   int               `json:"reading_time"`
}

func postResponse(view *core.PostView) PostResponse {
	p := view.Post
	keywords := p.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	resp := PostResponse{
		ID:            p.ID,
		Title:         p.Title,
		Slug:          p.Slug,
		Excerpt:       p.Excerpt,
		Tags:          functional.Map(view.Tags, tagResponse),
		FeaturedImage: p.FeaturedImage,
		Status:        string(p.Status),
		PublishedAt:   p.PublishedAt,
		UpdatedAt:     p.UpdatedAt,
		SEO: SEOResponse{
			MetaTitle:       p.MetaTitle,
			MetaDescription: p.MetaDescription,
			Keywords:        keywords,
			OGImage:         p.OGImage,
		},
		CommentsCount: view.CommentsCount,
		ReadingTime:   view.ReadingTime,
	}
	if view.Author != nil {
		author := authorResponse(view.Author)
		resp.Author = &author
	}
	if view.Category != nil {
		category := categoryResponse(view.Category)
		resp.Category = &category
	}
	return resp
}

func postDetailResponse(view *core.PostView) PostResponse {
	resp := postResponse(view)
	resp.Content = &view.Post.Content
	resp.CreatedAt = &view.Post.CreatedAt
	if view.Author != nil {
		author := authorDetailResponse(view.Author)
		resp.Author = &author
	}
	return resp
}

type CommentResponse struct {
	ID        int64     `json:"id"`
	PostID    string    `json:"post_id"`
	Author    string    `json:"author"`
	Email     string    `json:"email"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func commentResponse(c *models.Comment) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		PostID:    strconv.FormatInt(c.PostID, 10),
		Author:    c.AuthorName,
		Email:     c.AuthorEmail,
		Content:   c.Content,
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt,
	}
}
