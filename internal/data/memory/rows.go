package memory

import (
	"github.com/siahsang/blogplatform/internal/filter"
	"github.com/siahsang/blogplatform/models"
)

func (st *state) publishedCount(match func(p models.Post) bool) int64 {
	var n int64
	for _, p := range st.posts {
		if p.Status == models.PostPublished && match(p) {
			n++
		}
	}
	return n
}

type postRow struct {
	post *models.Post
	st   *state
}

func (r postRow) Values(f filter.Field) []any {
	p := r.post
	switch f {
	case filter.PostID:
		return []any{p.ID}
	case filter.PostSlug:
		return []any{p.Slug}
	case filter.PostTitle:
		return []any{p.Title}
	case filter.PostContent:
		return []any{p.Content}
	case filter.PostExcerpt:
		return []any{p.Excerpt}
	case filter.PostStatus:
		return []any{string(p.Status)}
	case filter.PostFeaturedImage:
		return []any{p.FeaturedImage}
	case filter.PostAuthorID:
		return []any{p.AuthorID}
	case filter.PostOwnerID, filter.PostAuthorSlug, filter.PostAuthorName:
		a, ok := r.st.authors[p.AuthorID]
		if !ok {
			return nil
		}
		switch f {
		case filter.PostOwnerID:
			return []any{a.UserID}
		case filter.PostAuthorSlug:
			return []any{a.Slug}
		}
		return []any{a.DisplayName}
	case filter.PostCategoryID, filter.PostCategorySlug, filter.PostCategoryName:
		if p.CategoryID == nil {
			return nil
		}
		c, ok := r.st.categories[*p.CategoryID]
		if !ok {
			return nil
		}
		switch f {
		case filter.PostCategoryID:
			return []any{c.ID}
		case filter.PostCategorySlug:
			return []any{c.Slug}
		}
		return []any{c.Name}
	case filter.PostTagSlug, filter.PostTagName:
		var out []any
		for _, id := range p.TagIDs {
			t, ok := r.st.tags[id]
			if !ok {
				continue
			}
			if f == filter.PostTagSlug {
				out = append(out, t.Slug)
			} else {
				out = append(out, t.Name)
			}
		}
		return out
	case filter.PostPublishedAt:
		if p.PublishedAt == nil {
			return nil
		}
		return []any{*p.PublishedAt}
	case filter.PostCreatedAt:
		return []any{p.CreatedAt}
	case filter.PostUpdatedAt:
		return []any{p.UpdatedAt}
	}
	return nil
}

type categoryRow struct {
	category *models.Category
}

func (r categoryRow) Values(f filter.Field) []any {
	c := r.category
	switch f {
	case filter.CategoryID:
		return []any{c.ID}
	case filter.CategoryName:
		return []any{c.Name}
	case filter.CategorySlug:
		return []any{c.Slug}
	case filter.CategoryDescription:
		return []any{c.Description}
	case filter.CategoryPostsCount:
		return []any{c.PostsCount}
	case filter.CategoryCreatedAt:
		return []any{c.CreatedAt}
	}
	return nil
}

type tagRow struct {
	tag *models.Tag
}

func (r tagRow) Values(f filter.Field) []any {
	t := r.tag
	switch f {
	case filter.TagID:
		return []any{t.ID}
	case filter.TagName:
		return []any{t.Name}
	case filter.TagSlug:
		return []any{t.Slug}
	case filter.TagPostsCount:
		return []any{t.PostsCount}
	case filter.TagCreatedAt:
		return []any{t.CreatedAt}
	}
	return nil
}

type authorRow struct {
	author *models.Author
	st     *state
}

func (r authorRow) Values(f filter.Field) []any {
	a := r.author
	switch f {
	case filter.AuthorID:
		return []any{a.ID}
	case filter.AuthorDisplayName:
		return []any{a.DisplayName}
	case filter.AuthorSlug:
		return []any{a.Slug}
	case filter.AuthorPostsCount:
		return []any{a.PostsCount}
	case filter.AuthorCreatedAt:
		return []any{a.CreatedAt}
	case filter.AuthorUsername, filter.AuthorEmail:
		u, ok := r.st.users[a.UserID]
		if !ok {
			return nil
		}
		if f == filter.AuthorUsername {
			return []any{u.Username}
		}
		return []any{u.Email}
	}
	return nil
}

type commentRow struct {
	comment *models.Comment
}

func (r commentRow) Values(f filter.Field) []any {
	c := r.comment
	switch f {
	case filter.CommentID:
		return []any{c.ID}
	case filter.CommentPostID:
		return []any{c.PostID}
	case filter.CommentStatus:
		return []any{string(c.Status)}
	case filter.CommentCreatedAt:
		return []any{c.CreatedAt}
	}
	return nil
}
