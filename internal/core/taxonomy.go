package core

import (
	"context"
	"strings"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/blogplatform/internal/auth"
	"github.com/siahsang/blogplatform/internal/filter"
	"github.com/siahsang/blogplatform/internal/validator"
	"github.com/siahsang/blogplatform/models"
)

const DefaultCategoryColor = "#6366f1"

type CategoryInput struct {
	Name        *string
	Slug        *string
	Description *string
	Color       *string
}

func validateCategory(v *validator.Validator, category *models.Category) {
	v.CheckNotBlank(category.Name, "name", "This field may not be blank.")
	v.CheckMaxLength(category.Name, 100, "name", "Ensure this field has no more than 100 characters.")
	v.CheckMaxLength(category.Description, 1000, "description", "Ensure this field has no more than 1000 characters.")
	v.Check(v.IsMatch(category.Color, validator.ColorRX), "color", "Enter a hex color such as #6366f1.")
}

func checkExplicitSlug(v *validator.Validator, slug *string) string {
	if slug == nil {
		return ""
	}
	s := strings.TrimSpace(*slug)
	if s != "" {
		v.Check(IsSlug(s), "slug", "Enter a valid slug consisting of lowercase letters, numbers, underscores or hyphens.")
	}
	return s
}

func (c *Core) CreateCategory(ctx context.Context, viewer *auth.User, in CategoryInput) (*models.Category, error) {
	if !isStaff(viewer) {
		return nil, xerrors.New(ErrForbidden)
	}

	category := &models.Category{Color: DefaultCategoryColor}
	applyCategoryInput(category, in)

	v := validator.New()
	validateCategory(v, category)
	explicit := checkExplicitSlug(v, in.Slug)
	if err := validationError(v); err != nil {
		return nil, err
	}

	err := c.insertWithSlug(ctx, slugTarget{
		explicit: explicit,
		name:     category.Name,
		exists: func(ctx context.Context, slug string) (bool, error) {
			_, err := c.models.Categories.GetBySlug(ctx, slug)
			return notFoundAsFalse(err)
		},
		insert: func(txCtx context.Context, slug string) error {
			category.Slug = slug
			return c.models.Categories.Insert(txCtx, category)
		},
	})
	if err != nil {
		return nil, storeError(err)
	}

	c.log.Info("category created", "slug", category.Slug, "by", viewer.ID)
	return category, nil
}

func applyCategoryInput(category *models.Category, in CategoryInput) {
	if in.Name != nil {
		category.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		category.Description = *in.Description
	}
	if in.Color != nil && *in.Color != "" {
		category.Color = *in.Color
	}
}

// UpdateCategory edits name, description and color. The slug is permanent.
func (c *Core) UpdateCategory(ctx context.Context, viewer *auth.User, slug string, in CategoryInput) (*models.Category, error) {
	if !isStaff(viewer) {
		return nil, xerrors.New(ErrForbidden)
	}
	category, err := c.models.Categories.GetBySlug(ctx, slug)
	if err != nil {
		return nil, storeError(err)
	}
	applyCategoryInput(category, in)

	v := validator.New()
	validateCategory(v, category)
	if err := validationError(v); err != nil {
		return nil, err
	}
	if err := c.models.Categories.Update(ctx, category); err != nil {
		return nil, storeError(err)
	}
	return category, nil
}

func (c *Core) GetCategory(ctx context.Context, slug string) (*models.Category, error) {
	category, err := c.models.Categories.GetBySlug(ctx, slug)
	if err != nil {
		return nil, storeError(err)
	}
	return category, nil
}

func (c *Core) ListCategories(ctx context.Context, where filter.Cond, orders []filter.Order, page filter.Page) (*Page[*models.Category], error) {
	categories, total, err := c.models.Categories.List(ctx, where, orders, page)
	if err != nil {
		return nil, err
	}
	return &Page[*models.Category]{Items: categories, Total: total}, nil
}

// DeleteCategory leaves the category's posts uncategorised.
func (c *Core) DeleteCategory(ctx context.Context, viewer *auth.User, slug string) error {
	if !isStaff(viewer) {
		return xerrors.New(ErrForbidden)
	}
	category, err := c.models.Categories.GetBySlug(ctx, slug)
	if err != nil {
		return storeError(err)
	}
	if err := c.models.Categories.Delete(ctx, category.ID); err != nil {
		return storeError(err)
	}
	c.log.Info("category deleted", "slug", slug, "by", viewer.ID)
	return nil
}

type TagInput struct {
	Name string
	Slug *string
}

func (c *Core) CreateTag(ctx context.Context, viewer *auth.User, in TagInput) (*models.Tag, error) {
	if !isStaff(viewer) {
		return nil, xerrors.New(ErrForbidden)
	}

	tag := &models.Tag{Name: strings.TrimSpace(in.Name)}

	v := validator.New()
	v.CheckNotBlank(tag.Name, "name", "This field may not be blank.")
	v.CheckMaxLength(tag.Name, 50, "name", "Ensure this field has no more than 50 characters.")
	explicit := checkExplicitSlug(v, in.Slug)
	if err := validationError(v); err != nil {
		return nil, err
	}

	err := c.insertWithSlug(ctx, slugTarget{
		explicit: explicit,
		name:     tag.Name,
		exists: func(ctx context.Context, slug string) (bool, error) {
			_, err := c.models.Tags.GetBySlug(ctx, slug)
			return notFoundAsFalse(err)
		},
		insert: func(txCtx context.Context, slug string) error {
			tag.Slug = slug
			return c.models.Tags.Insert(txCtx, tag)
		},
	})
	if err != nil {
		return nil, storeError(err)
	}
	return tag, nil
}

func (c *Core) GetTag(ctx context.Context, slug string) (*models.Tag, error) {
	tag, err := c.models.Tags.GetBySlug(ctx, slug)
	if err != nil {
		return nil, storeError(err)
	}
	return tag, nil
}

func (c *Core) ListTags(ctx context.Context, where filter.Cond, orders []filter.Order, page filter.Page) (*Page[*models.Tag], error) {
	tags, total, err := c.models.Tags.List(ctx, where, orders, page)
	if err != nil {
		return nil, err
	}
	return &Page[*models.Tag]{Items: tags, Total: total}, nil
}

func (c *Core) DeleteTag(ctx context.Context, viewer *auth.User, slug string) error {
	if !isStaff(viewer) {
		return xerrors.New(ErrForbidden)
	}
	tag, err := c.models.Tags.GetBySlug(ctx, slug)
	if err != nil {
		return storeError(err)
	}
	return storeError(c.models.Tags.Delete(ctx, tag.ID))
}
