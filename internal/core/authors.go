package core

import (
	"context"
	"errors"
	"strings"

	"github.com/siahsang/blogplatform/internal/auth"
	"github.com/siahsang/blogplatform/internal/data"
	"github.com/siahsang/blogplatform/internal/filter"
	"github.com/siahsang/blogplatform/internal/utils/collectionutils"
	"github.com/siahsang/blogplatform/internal/validator"
	"github.com/siahsang/blogplatform/models"
)

// AuthorView is an author profile with the account fields it exposes.
type AuthorView struct {
	Author      *models.Author
	User        *auth.User
	SocialLinks []*models.SocialLink
}

func (c *Core) authorSlugExists(ctx context.Context, slug string) (bool, error) {
	_, err := c.models.Authors.GetBySlug(ctx, slug)
	return notFoundAsFalse(err)
}

// ensureAuthor returns the user's author profile, creating it on first use.
func (c *Core) ensureAuthor(ctx context.Context, user *auth.User) (*models.Author, error) {
	author, err := c.models.Authors.GetByUserID(ctx, user.ID)
	if err == nil {
		return author, nil
	}
	if !errors.Is(err, data.ErrRecordNotFound) {
		return nil, err
	}

	author = &models.Author{UserID: user.ID, DisplayName: user.DisplayName()}
	err = c.insertWithSlug(ctx, slugTarget{
		name:   user.Username,
		exists: c.authorSlugExists,
		insert: func(txCtx context.Context, slug string) error {
			author.Slug = slug
			return c.models.Authors.Insert(txCtx, author)
		},
	})
	var uv *data.UniqueViolation
	if errors.As(err, &uv) && uv.Field == "user" {
		// Another request created the profile after our lookup.
		return c.models.Authors.GetByUserID(ctx, user.ID)
	}
	if err != nil {
		return nil, err
	}
	c.log.Info("author profile created", "user_id", user.ID, "slug", author.Slug)
	return author, nil
}

func (c *Core) authorViews(ctx context.Context, authors []*models.Author, withLinks bool) ([]*AuthorView, error) {
	userIDs := make([]int64, len(authors))
	authorIDs := make([]int64, len(authors))
	for i, a := range authors {
		userIDs[i] = a.UserID
		authorIDs[i] = a.ID
	}

	users, err := c.models.Users.GetByIDs(ctx, collectionutils.Distinct(userIDs))
	if err != nil {
		return nil, err
	}
	usersByID := collectionutils.Associate(users, func(u *auth.User) (int64, *auth.User) { return u.ID, u })

	var linksByAuthor map[int64][]*models.SocialLink
	if withLinks {
		links, err := c.models.SocialLinks.ListByAuthors(ctx, authorIDs)
		if err != nil {
			return nil, err
		}
		linksByAuthor = collectionutils.GroupBy(links, func(l *models.SocialLink) int64 { return l.AuthorID })
	}

	views := make([]*AuthorView, len(authors))
	for i, a := range authors {
		views[i] = &AuthorView{
			Author:      a,
			User:        usersByID[a.UserID],
			SocialLinks: linksByAuthor[a.ID],
		}
	}
	return views, nil
}

func (c *Core) ListAuthors(ctx context.Context, where filter.Cond, orders []filter.Order, page filter.Page) (*Page[*AuthorView], error) {
	authors, total, err := c.models.Authors.List(ctx, where, orders, page)
	if err != nil {
		return nil, err
	}
	views, err := c.authorViews(ctx, authors, false)
	if err != nil {
		return nil, err
	}
	return &Page[*AuthorView]{Items: views, Total: total}, nil
}

func (c *Core) GetAuthor(ctx context.Context, slug string) (*AuthorView, error) {
	author, err := c.models.Authors.GetBySlug(ctx, slug)
	if err != nil {
		return nil, storeError(err)
	}
	views, err := c.authorViews(ctx, []*models.Author{author}, true)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// Profile returns the caller's account with its author profile. Author is nil
// for accounts that have none yet.
func (c *Core) Profile(ctx context.Context, user *auth.User) (*AuthorView, error) {
	author, err := c.models.Authors.GetByUserID(ctx, user.ID)
	if errors.Is(err, data.ErrRecordNotFound) {
		return &AuthorView{User: user}, nil
	}
	if err != nil {
		return nil, err
	}
	views, err := c.authorViews(ctx, []*models.Author{author}, true)
	if err != nil {
		return nil, err
	}
	views[0].User = user
	return views[0], nil
}

type SocialLinkInput struct {
	Platform string
	URL      string
	Icon     string
}

// SaveSocialLink adds the link or replaces the one for the same platform.
func (c *Core) SaveSocialLink(ctx context.Context, user *auth.User, in SocialLinkInput) (*models.SocialLink, error) {
	in.Platform = strings.TrimSpace(in.Platform)
	in.URL = strings.TrimSpace(in.URL)

	v := validator.New()
	v.CheckNotBlank(in.Platform, "platform", "This field may not be blank.")
	v.CheckMaxLength(in.Platform, 50, "platform", "Ensure this field has no more than 50 characters.")
	v.CheckNotBlank(in.URL, "url", "This field may not be blank.")
	v.CheckURL(in.URL, "url", "Enter a valid URL.")
	v.CheckMaxLength(in.Icon, 100, "icon", "Ensure this field has no more than 100 characters.")
	if err := validationError(v); err != nil {
		return nil, err
	}

	author, err := c.ensureAuthor(ctx, user)
	if err != nil {
		return nil, storeError(err)
	}
	link := &models.SocialLink{AuthorID: author.ID, Platform: in.Platform, URL: in.URL, Icon: in.Icon}
	if err := c.models.SocialLinks.Upsert(ctx, link); err != nil {
		return nil, storeError(err)
	}
	return link, nil
}

func (c *Core) DeleteSocialLink(ctx context.Context, user *auth.User, platform string) error {
	author, err := c.models.Authors.GetByUserID(ctx, user.ID)
	if err != nil {
		return storeError(err)
	}
	return storeError(c.models.SocialLinks.Delete(ctx, author.ID, platform))
}
