package core

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/blogplatform/internal/auth"
	"github.com/siahsang/blogplatform/internal/filter"
	"github.com/siahsang/blogplatform/internal/utils/collectionutils"
	"github.com/siahsang/blogplatform/internal/utils/databaseutils"
	"github.com/siahsang/blogplatform/internal/utils/stringutils"
	"github.com/siahsang/blogplatform/internal/validator"
	"github.com/siahsang/blogplatform/models"
)

const (
	metaTitleLength       = 60
	metaDescriptionLength = 160
	readingSpeed          = 200
)

// PostInput is shared by create and partial update; nil fields are absent.
// Category and Tags reference slugs; an empty Category clears it.
type PostInput struct {
	Title           *string
	Slug            *string
	Excerpt         *string
	Content         *string
	FeaturedImage   *string
	Category        *string
	Tags            *[]string
	Status          *string
	MetaTitle       *string
	MetaDescription *string
	Keywords        *[]string
	OGImage         *string
}

type PostView struct {
	Post          *models.Post
	Author        *AuthorView
	Category      *models.Category
	Tags          []*models.Tag
	CommentsCount int64
	ReadingTime   int
}

// PostVisibility restricts what viewer may read. Staff see everything.
func PostVisibility(viewer *auth.User) filter.Cond {
	if isStaff(viewer) {
		return nil
	}
	return filter.Eq(filter.PostStatus, models.PostPublished)
}

func ReadingTime(content string) int {
	return max(1, utf8.RuneCountInString(content)/readingSpeed)
}

func (c *Core) applyPostInput(ctx context.Context, post *models.Post, in PostInput, v *validator.Validator) error {
	if in.Title != nil {
		post.Title = strings.TrimSpace(*in.Title)
	}
	if in.Excerpt != nil {
		post.Excerpt = *in.Excerpt
	}
	if in.Content != nil {
		post.Content = *in.Content
	}
	if in.FeaturedImage != nil {
		post.FeaturedImage = strings.TrimSpace(*in.FeaturedImage)
	}
	if in.Status != nil {
		post.Status = models.PostStatus(*in.Status)
	}
	if in.MetaTitle != nil {
		post.MetaTitle = *in.MetaTitle
	}
	if in.MetaDescription != nil {
		post.MetaDescription = *in.MetaDescription
	}
	if in.Keywords != nil {
		post.Keywords = stringutils.SplitList(*in.Keywords...)
	}
	if in.OGImage != nil {
		post.OGImage = strings.TrimSpace(*in.OGImage)
	}

	if in.Category != nil {
		post.CategoryID = nil
		if s := strings.TrimSpace(*in.Category); s != "" {
			category, err := c.models.Categories.GetBySlug(ctx, s)
			if err == nil {
				post.CategoryID = &category.ID
			} else if found, err := notFoundAsFalse(err); err != nil {
				return err
			} else if !found {
				v.AddError("category", fmt.Sprintf("Object with slug=%s does not exist.", s))
			}
		}
	}

	if in.Tags != nil {
		slugs := collectionutils.Distinct(stringutils.SplitList(*in.Tags...))
		tags, err := c.models.Tags.GetBySlugs(ctx, slugs)
		if err != nil {
			return err
		}
		found := collectionutils.Associate(tags, func(t *models.Tag) (string, int64) { return t.Slug, t.ID })
		post.TagIDs = make([]int64, 0, len(slugs))
		for _, s := range slugs {
			id, ok := found[s]
			if !ok {
				v.AddError("tags", fmt.Sprintf("Object with slug=%s does not exist.", s))
				continue
			}
			post.TagIDs = append(post.TagIDs, id)
		}
		slices.Sort(post.TagIDs)
	}

	v.CheckNotBlank(post.Title, "title", "This field may not be blank.")
	v.CheckMaxLength(post.Title, 200, "title", "Ensure this field has no more than 200 characters.")
	v.CheckMaxLength(post.Excerpt, 300, "excerpt", "Ensure this field has no more than 300 characters.")
	v.CheckNotBlank(post.Content, "content", "This field may not be blank.")
	v.Check(post.Status.IsValid(), "status", fmt.Sprintf("%q is not a valid choice.", post.Status))
	v.CheckURL(post.FeaturedImage, "featured_image", "Enter a valid URL.")
	v.CheckURL(post.OGImage, "og_image", "Enter a valid URL.")
	v.CheckMaxLength(post.MetaTitle, metaTitleLength, "meta_title", "Ensure this field has no more than 60 characters.")
	v.CheckMaxLength(post.MetaDescription, metaDescriptionLength, "meta_description", "Ensure this field has no more than 160 characters.")
	return nil
}

// finalizePost stamps the first publication and fills blank SEO fields.
// PublishedAt is never cleared, not even when the post goes back to draft.
func (c *Core) finalizePost(post *models.Post) {
	if post.IsPublished() && post.PublishedAt == nil {
		now := c.now()
		post.PublishedAt = &now
	}
	if strings.TrimSpace(post.MetaTitle) == "" {
		post.MetaTitle = stringutils.Truncate(post.Title, metaTitleLength)
	}
	if strings.TrimSpace(post.MetaDescription) == "" {
		post.MetaDescription = stringutils.Truncate(post.Excerpt, metaDescriptionLength)
	}
}

// Post slugs that name list actions under /api/posts/.
var reservedPostSlugs = map[string]bool{"featured": true, "recent": true}

func IsReservedPostSlug(slug string) bool {
	return reservedPostSlugs[slug]
}

func (c *Core) postSlugExists(ctx context.Context, slug string) (bool, error) {
	if reservedPostSlugs[slug] {
		return true, nil
	}
	_, err := c.models.Posts.Get(ctx, filter.Eq(filter.PostSlug, slug))
	return notFoundAsFalse(err)
}

func (c *Core) CreatePost(ctx context.Context, viewer *auth.User, in PostInput) (*PostView, error) {
	if viewer == nil {
		return nil, xerrors.New(ErrForbidden)
	}

	post := &models.Post{Status: models.PostDraft}
	v := validator.New()
	if err := c.applyPostInput(ctx, post, in, v); err != nil {
		return nil, err
	}
	explicit := checkExplicitSlug(v, in.Slug)
	v.Check(!reservedPostSlugs[explicit], "slug", "This slug is reserved.")
	if err := validationError(v); err != nil {
		return nil, err
	}

	author, err := c.ensureAuthor(ctx, viewer)
	if err != nil {
		return nil, storeError(err)
	}
	post.AuthorID = author.ID
	c.finalizePost(post)

	err = c.insertWithSlug(ctx, slugTarget{
		explicit: explicit,
		name:     post.Title,
		exists:   c.postSlugExists,
		insert: func(txCtx context.Context, slug string) error {
			post.Slug = slug
			if err := c.models.Posts.Insert(txCtx, post); err != nil {
				return err
			}
			return c.models.Users.AdjustArticleCount(txCtx, viewer.ID, 1)
		},
	})
	if err != nil {
		return nil, storeError(err)
	}

	c.log.Info("post created", "slug", post.Slug, "status", post.Status, "user_id", viewer.ID)
	return c.postView(ctx, post)
}

// postForMutation finds a post the viewer may change. Posts the viewer cannot
// even see are reported as missing; visible posts of other authors are
// forbidden.
func (c *Core) postForMutation(ctx context.Context, viewer *auth.User, slug string) (*models.Post, *models.Author, error) {
	if viewer == nil {
		return nil, nil, xerrors.New(ErrForbidden)
	}

	cond := filter.Eq(filter.PostSlug, slug)
	if !isStaff(viewer) {
		cond = filter.And(cond, filter.Or(
			filter.Eq(filter.PostStatus, models.PostPublished),
			filter.Eq(filter.PostOwnerID, viewer.ID),
		))
	}
	post, err := c.models.Posts.Get(ctx, cond)
	if err != nil {
		return nil, nil, storeError(err)
	}
	author, err := c.models.Authors.GetByID(ctx, post.AuthorID)
	if err != nil {
		return nil, nil, storeError(err)
	}
	if !isStaff(viewer) && author.UserID != viewer.ID {
		return nil, nil, xerrors.New(ErrForbidden)
	}
	return post, author, nil
}

// UpdatePost applies a partial update. The slug never changes.
func (c *Core) UpdatePost(ctx context.Context, viewer *auth.User, slug string, in PostInput) (*PostView, error) {
	post, err := databaseutils.DoTransactionally(ctx, c.models.Tx, func(txCtx context.Context) (*models.Post, error) {
		post, _, err := c.postForMutation(txCtx, viewer, slug)
		if err != nil {
			return nil, err
		}

		v := validator.New()
		if err := c.applyPostInput(txCtx, post, in, v); err != nil {
			return nil, err
		}
		if err := validationError(v); err != nil {
			return nil, err
		}
		c.finalizePost(post)
		return post, storeError(c.models.Posts.Update(txCtx, post))
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("post updated", "slug", post.Slug, "status", post.Status, "user_id", viewer.ID)
	return c.postView(ctx, post)
}

func (c *Core) DeletePost(ctx context.Context, viewer *auth.User, slug string) error {
	return c.inTx(ctx, func(txCtx context.Context) error {
		post, author, err := c.postForMutation(txCtx, viewer, slug)
		if err != nil {
			return err
		}
		if err := c.models.Posts.Delete(txCtx, post.ID); err != nil {
			return storeError(err)
		}
		if err := c.models.Users.AdjustArticleCount(txCtx, author.UserID, -1); err != nil {
			return storeError(err)
		}
		c.log.Info("post deleted", "slug", slug, "user_id", viewer.ID)
		return nil
	})
}

func (c *Core) GetPost(ctx context.Context, viewer *auth.User, slug string) (*PostView, error) {
	post, err := c.models.Posts.Get(ctx, filter.And(PostVisibility(viewer), filter.Eq(filter.PostSlug, slug)))
	if err != nil {
		return nil, storeError(err)
	}
	views, err := c.postViews(ctx, []*models.Post{post}, true)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// ListPosts applies the viewer's visibility before where.
func (c *Core) ListPosts(ctx context.Context, viewer *auth.User, where filter.Cond, orders []filter.Order, page filter.Page) (*Page[*PostView], error) {
	return c.listPosts(ctx, filter.And(PostVisibility(viewer), where), orders, page)
}

const (
	featuredPostsLimit = 5
	recentPostsLimit   = 10
)

// FeaturedPosts returns the newest visible posts that carry a featured image.
func (c *Core) FeaturedPosts(ctx context.Context, viewer *auth.User) ([]*PostView, error) {
	where := filter.Not(filter.Blank(filter.PostFeaturedImage))
	return c.latestPosts(ctx, viewer, where, featuredPostsLimit)
}

// RecentPosts returns the newest visible posts.
func (c *Core) RecentPosts(ctx context.Context, viewer *auth.User) ([]*PostView, error) {
	return c.latestPosts(ctx, viewer, nil, recentPostsLimit)
}

func (c *Core) latestPosts(ctx context.Context, viewer *auth.User, where filter.Cond, limit int) ([]*PostView, error) {
	result, err := c.ListPosts(ctx, viewer, where, filter.PostOrdering.Default, filter.NewPage(1, limit))
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

// Search only ever returns published posts, whoever asks.
func (c *Core) Search(ctx context.Context, where filter.Cond, page filter.Page) (*Page[*PostView], error) {
	cond := filter.And(filter.Eq(filter.PostStatus, models.PostPublished), where)
	return c.listPosts(ctx, cond, filter.SearchOrdering.Default, page)
}

func (c *Core) listPosts(ctx context.Context, where filter.Cond, orders []filter.Order, page filter.Page) (*Page[*PostView], error) {
	posts, total, err := c.models.Posts.List(ctx, where, orders, page)
	if err != nil {
		return nil, err
	}
	views, err := c.postViews(ctx, posts, false)
	if err != nil {
		return nil, err
	}
	return &Page[*PostView]{Items: views, Total: total}, nil
}

func (c *Core) postView(ctx context.Context, post *models.Post) (*PostView, error) {
	views, err := c.postViews(ctx, []*models.Post{post}, true)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// postViews loads the relations of a page of posts with one query per
// relation.
func (c *Core) postViews(ctx context.Context, posts []*models.Post, detail bool) ([]*PostView, error) {
	if len(posts) == 0 {
		return []*PostView{}, nil
	}

	var authorIDs, categoryIDs, tagIDs, postIDs []int64
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
		authorIDs = append(authorIDs, p.AuthorID)
		if p.CategoryID != nil {
			categoryIDs = append(categoryIDs, *p.CategoryID)
		}
		tagIDs = append(tagIDs, p.TagIDs...)
	}

	authors, err := c.models.Authors.GetByIDs(ctx, collectionutils.Distinct(authorIDs))
	if err != nil {
		return nil, err
	}
	authorViews, err := c.authorViews(ctx, authors, detail)
	if err != nil {
		return nil, err
	}
	authorsByID := collectionutils.Associate(authorViews, func(a *AuthorView) (int64, *AuthorView) { return a.Author.ID, a })

	categories, err := c.models.Categories.GetByIDs(ctx, collectionutils.Distinct(categoryIDs))
	if err != nil {
		return nil, err
	}
	categoriesByID := collectionutils.Associate(categories, func(cat *models.Category) (int64, *models.Category) { return cat.ID, cat })

	tags, err := c.models.Tags.GetByIDs(ctx, collectionutils.Distinct(tagIDs))
	if err != nil {
		return nil, err
	}
	tagsByID := collectionutils.Associate(tags, func(t *models.Tag) (int64, *models.Tag) { return t.ID, t })

	comments, err := c.models.Comments.CountApproved(ctx, postIDs)
	if err != nil {
		return nil, err
	}

	views := make([]*PostView, len(posts))
	for i, p := range posts {
		view := &PostView{
			Post:          p,
			Author:        authorsByID[p.AuthorID],
			Tags:          []*models.Tag{},
			CommentsCount: comments[p.ID],
			ReadingTime:   ReadingTime(p.Content),
		}
		if p.CategoryID != nil {
			view.Category = categoriesByID[*p.CategoryID]
		}
		for _, id := range p.TagIDs {
			if t, ok := tagsByID[id]; ok {
				view.Tags = append(view.Tags, t)
			}
		}
		views[i] = view
	}
	return views, nil
}
