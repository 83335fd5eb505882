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

const authorPostsCount = `(SELECT COUNT(*) FROM posts p WHERE p.author_id = a.id AND p.status = 'published')`

var authorColumns = filter.Columns{
	filter.AuthorID:          {Expr: "a.id"},
	filter.AuthorDisplayName: {Expr: "a.display_name"},
	filter.AuthorSlug:        {Expr: "a.slug"},
	filter.AuthorUsername:    {Expr: "u.username"},
	filter.AuthorEmail:       {Expr: "u.email"},
	filter.AuthorPostsCount:  {Expr: authorPostsCount},
	filter.AuthorCreatedAt:   {Expr: "a.created_at"},
}

const selectAuthors = `
	SELECT a.id, a.user_id, a.display_name, a.slug, a.created_at, a.updated_at, ` + authorPostsCount + `
	FROM authors a
	JOIN users u ON u.id = a.user_id
`

func scanAuthor(rows *sql.Rows) (*models.Author, error) {
	a := &models.Author{}
	err := rows.Scan(&a.ID, &a.UserID, &a.DisplayName, &a.Slug, &a.CreatedAt, &a.UpdatedAt, &a.PostsCount)
	return a, err
}

type authorRepo struct{ d *DB }

func (r *authorRepo) Insert(ctx context.Context, author *models.Author) error {
	query := `
		INSERT INTO authors (user_id, display_name, slug)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	_, err := databaseutils.ExecuteSingleQuery(r.d.sqlTemplate, ctx, query, func(rows *sql.Rows) (*models.Author, error) {
		return author, rows.Scan(&author.ID, &author.CreatedAt, &author.UpdatedAt)
	}, author.UserID, author.DisplayName, author.Slug)
	return mapError(err)
}

func (r *authorRepo) getOne(ctx context.Context, condition string, arg any) (*models.Author, error) {
	author, err := databaseutils.ExecuteSingleQuery(r.d.sqlTemplate, ctx, selectAuthors+" WHERE "+condition, scanAuthor, arg)
	if err != nil {
		return nil, mapError(err)
	}
	return author, nil
}

func (r *authorRepo) GetByID(ctx context.Context, id int64) (*models.Author, error) {
	return r.getOne(ctx, "a.id = $1", id)
}

func (r *authorRepo) GetBySlug(ctx context.Context, slug string) (*models.Author, error) {
	return r.getOne(ctx, "a.slug = $1", slug)
}

func (r *authorRepo) GetByUserID(ctx context.Context, userID int64) (*models.Author, error) {
	return r.getOne(ctx, "a.user_id = $1", userID)
}

func (r *authorRepo) GetByIDs(ctx context.Context, ids []int64) ([]*models.Author, error) {
	if len(ids) == 0 {
		return []*models.Author{}, nil
	}
	authors, err := databaseutils.ExecuteQuery(r.d.sqlTemplate, ctx, selectAuthors+" WHERE a.id = ANY($1) ORDER BY a.id", scanAuthor, pq.Array(ids))
	if err != nil {
		return nil, mapError(err)
	}
	return authors, nil
}

func (r *authorRepo) Update(ctx context.Context, author *models.Author) error {
	query := `
		UPDATE authors SET display_name = $1, slug = $2, updated_at = now()
		WHERE id = $3
		RETURNING updated_at
	`
	_, err := databaseutils.ExecuteSingleQuery(r.d.sqlTemplate, ctx, query, func(rows *sql.Rows) (*models.Author, error) {
		return author, rows.Scan(&author.UpdatedAt)
	}, author.DisplayName, author.Slug, author.ID)
	return mapError(err)
}

func (r *authorRepo) List(ctx context.Context, cond filter.Cond, orders []filter.Order, page filter.Page) ([]*models.Author, int64, error) {
	args := filter.NewArgs()
	whereSQL, err := where(cond, authorColumns, args)
	if err != nil {
		return nil, 0, err
	}
	orderSQL, err := filter.OrderBy(authorColumns, orders, "a.id")
	if err != nil {
		return nil, 0, err
	}

	total, err := count(r.d, ctx, `SELECT COUNT(*) FROM authors a JOIN users u ON u.id = a.user_id WHERE `+whereSQL, slices.Clone(args.Values()))
	if err != nil {
		return nil, 0, mapError(err)
	}

	query := selectAuthors + " WHERE " + whereSQL + " " + orderSQL + limitOffset(page, args)
	authors, err := databaseutils.ExecuteQuery(r.d.sqlTemplate, ctx, query, scanAuthor, args.Values()...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	return authors, total, nil
}

type linkRepo struct{ d *DB }

func (r *linkRepo) Upsert(ctx context.Context, link *models.SocialLink) error {
	query := `
		INSERT INTO social_links (author_id, platform, url, icon)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (author_id, platform) DO UPDATE SET url = EXCLUDED.url, icon = EXCLUDED.icon
		RETURNING id
	`
	_, err := databaseutils.ExecuteSingleQuery(r.d.sqlTemplate, ctx, query, func(rows *sql.Rows) (*models.SocialLink, error) {
		return link, rows.Scan(&link.ID)
	}, link.AuthorID, link.Platform, link.URL, link.Icon)
	return mapError(err)
}

func (r *linkRepo) Delete(ctx context.Context, authorID int64, platform string) error {
	query := `DELETE FROM social_links WHERE author_id = $1 AND platform = $2`
	return expectOne(databaseutils.Execute(r.d.sqlTemplate, ctx, query, authorID, platform))
}

func (r *linkRepo) ListByAuthors(ctx context.Context, authorIDs []int64) ([]*models.SocialLink, error) {
	if len(authorIDs) == 0 {
		return []*models.SocialLink{}, nil
	}
	query := `SELECT id, author_id, platform, url, icon FROM social_links WHERE author_id = ANY($1) ORDER BY id`
	links, err := databaseutils.ExecuteQuery(r.d.sqlTemplate, ctx, query, func(rows *sql.Rows) (*models.SocialLink, error) {
		l := &models.SocialLink{}
		return l, rows.Scan(&l.ID, &l.AuthorID, &l.Platform, &l.URL, &l.Icon)
	}, pq.Array(authorIDs))
	if err != nil {
		return nil, mapError(err)
	}
	return links, nil
}
