package database

import (
	"context"
	"database/sql"
	"slices"

	"github.com/lib/pq"
	"github.com/siahsang/blogplatform/internal/filter"
	"github.com/siahsang/blogplatform/internal/utils/databaseutils"
	"github.com/siahsang/blogplatform/models"
)

const (
	categoryPostsCount = `(SELECT COUNT(*) FROM posts p WHERE p.category_id = c.id AND p.status = 'published')`
	tagPostsCount      = `(SELECT COUNT(*) FROM post_tags pt JOIN posts p ON p.id = pt.post_id WHERE pt.tag_id = t.id AND p.status = 'published')`
)

var categoryColumns = filter.Columns{
	filter.CategoryID:          {Expr: "c.id"},
	filter.CategoryName:        {Expr: "c.name"},
	filter.CategorySlug:        {Expr: "c.slug"},
	filter.CategoryDescription: {Expr: "c.description"},
	filter.CategoryPostsCount:  {Expr: categoryPostsCount},
	filter.CategoryCreatedAt:   {Expr: "c.created_at"},
}

var tagColumns = filter.Columns{
	filter.TagID:         {Expr: "t.id"},
	filter.TagName:       {Expr: "t.name"},
	filter.TagSlug:       {Expr: "t.slug"},
	filter.TagPostsCount: {Expr: tagPostsCount},
	filter.TagCreatedAt:  {Expr: "t.created_at"},
}

const selectCategories = `
	SELECT c.id, c.name, c.slug, c.description, c.color, c.created_at, c.updated_at, ` + categoryPostsCount + `
	FROM categories c
`

const selectTags = `
	SELECT t.id, t.name, t.slug, t.created_at, ` + tagPostsCount + `
	FROM tags t
`

func scanCategory(rows *sql.Rows) (*models.Category, error) {
	c := &models.Category{}
	err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Color, &c.CreatedAt, &c.UpdatedAt, &c.PostsCount)
	return c, err
}

func scanTag(rows *sql.Rows) (*models.Tag, error) {
	t := &models.Tag{}
	err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.PostsCount)
	return t, err
}

type categoryRepo struct{ d *DB }

func (r *categoryRepo) Insert(ctx context.Context, category *models.Category) error {
	query := `
		INSERT INTO categories (name, slug, description, color)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	_, err := databaseutils.ExecuteSingleQuery(r.d.sqlTemplate, ctx, query, func(rows *sql.Rows) (*models.Category, error) {
		return category, rows.Scan(&category.ID, &category.CreatedAt, &category.UpdatedAt)
	}, category.Name, category.Slug, category.Description, category.Color)
	return mapError(err)
}

func (r *categoryRepo) getOne(ctx context.Context, condition string, arg any) (*models.Category, error) {
	category, err := databaseutils.ExecuteSingleQuery(r.d.sqlTemplate, ctx, selectCategories+" WHERE "+condition, scanCategory, arg)
	if err != nil {
		return nil, mapError(err)
	}
	return category, nil
}

func (r *categoryRepo) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	return r.getOne(ctx, "c.id = $1", id)
}

func (r *categoryRepo) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	return r.getOne(ctx, "c.slug = $1", slug)
}

func (r *categoryRepo) GetByIDs(ctx context.Context, ids []int64) ([]*models.Category, error) {
	if len(ids) == 0 {
		return []*models.Category{}, nil
	}
	categories, err := databaseutils.ExecuteQuery(r.d.sqlTemplate, ctx, selectCategories+" WHERE c.id = ANY($1) ORDER BY c.id", scanCategory, pq.Array(ids))
	if err != nil {
		return nil, mapError(err)
	}
	return categories, nil
}

func (r *categoryRepo) Update(ctx context.Context, category *models.Category) error {
	query := `
		UPDATE categories SET name = $1, slug = $2, description = $3, color = $4, updated_at = now()
		WHERE id = $5
		RETURNING updated_at
	`
	_, err := databaseutils.ExecuteSingleQuery(r.d.sqlTemplate, ctx, query, func(rows *sql.Rows) (*models.Category, error) {
		return category, rows.Scan(&category.UpdatedAt)
	}, category.Name, category.Slug, category.Description, category.Color, category.ID)
	return mapError(err)
}

func (r *categoryRepo) Delete(ctx context.Context, id int64) error {
	return expectOne(databaseutils.Execute(r.d.sqlTemplate, ctx, `DELETE FROM categories WHERE id = $1`, id))
}

func (r *categoryRepo) List(ctx context.Context, cond filter.Cond, orders []filter.Order, page filter.Page) ([]*models.Category, int64, error) {
	args := filter.NewArgs()
	whereSQL, err := where(cond, categoryColumns, args)
	if err != nil {
		return nil, 0, err
	}
	orderSQL, err := filter.OrderBy(categoryColumns, orders, "c.id")
	if err != nil {
		return nil, 0, err
	}

	total, err := count(r.d, ctx, `SELECT COUNT(*) FROM categories c WHERE `+whereSQL, slices.Clone(args.Values()))
	if err != nil {
		return nil, 0, mapError(err)
	}

	query := selectCategories + " WHERE " + whereSQL + " " + orderSQL + limitOffset(page, args)
	categories, err := databaseutils.ExecuteQuery(r.d.sqlTemplate, ctx, query, scanCategory, args.Values()...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	return categories, total, nil
}

type tagRepo struct{ d *DB }

func (r *tagRepo) Insert(ctx context.Context, tag *models.Tag) error {
	query := `
		INSERT INTO tags (name, slug)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	_, err := databaseutils.ExecuteSingleQuery(r.d.sqlTemplate, ctx, query, func(rows *sql.Rows) (*models.Tag, error) {
		return tag, rows.Scan(&tag.ID, &tag.CreatedAt)
	}, tag.Name, tag.Slug)
	return mapError(err)
}

func (r *tagRepo) GetBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	tag, err := databaseutils.ExecuteSingleQuery(r.d.sqlTemplate, ctx, selectTags+" WHERE t.slug = $1", scanTag, slug)
	if err != nil {
		return nil, mapError(err)
	}
	return tag, nil
}

func (r *tagRepo) GetBySlugs(ctx context.Context, slugs []string) ([]*models.Tag, error) {
	if len(slugs) == 0 {
		return []*models.Tag{}, nil
	}
	tags, err := databaseutils.ExecuteQuery(r.d.sqlTemplate, ctx, selectTags+" WHERE t.slug = ANY($1) ORDER BY t.id", scanTag, pq.Array(slugs))
	if err != nil {
		return nil, mapError(err)
	}
	return tags, nil
}

func (r *tagRepo) GetByIDs(ctx context.Context, ids []int64) ([]*models.Tag, error) {
	if len(ids) == 0 {
		return []*models.Tag{}, nil
	}
	tags, err := databaseutils.ExecuteQuery(r.d.sqlTemplate, ctx, selectTags+" WHERE t.id = ANY($1) ORDER BY t.id", scanTag, pq.Array(ids))
	if err != nil {
		return nil, mapError(err)
	}
	return tags, nil
}

func (r *tagRepo) Delete(ctx context.Context, id int64) error {
	return expectOne(databaseutils.Execute(r.d.sqlTemplate, ctx, `DELETE FROM tags WHERE id = $1`, id))
}

func (r *tagRepo) List(ctx context.Context, cond filter.Cond, orders []filter.Order, page filter.Page) ([]*models.Tag, int64, error) {
	args := filter.NewArgs()
	whereSQL, err := where(cond, tagColumns, args)
	if err != nil {
		return nil, 0, err
	}
	orderSQL, err := filter.OrderBy(tagColumns, orders, "t.id")
	if err != nil {
		return nil, 0, err
	}

	total, err := count(r.d, ctx, `SELECT COUNT(*) FROM tags t WHERE `+whereSQL, slices.Clone(args.Values()))
	if err != nil {
		return nil, 0, mapError(err)
	}

	query := selectTags + " WHERE " + whereSQL + " " + orderSQL + limitOffset(page, args)
	tags, err := databaseutils.ExecuteQuery(r.d.sqlTemplate, ctx, query, scanTag, args.Values()...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	return tags, total, nil
}
