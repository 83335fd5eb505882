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

const postTagExists = `SELECT 1 FROM post_tags pt JOIN tags t ON t.id = pt.tag_id WHERE pt.post_id = p.id AND %s`

var postColumns = filter.Columns{
	filter.PostID:            {Expr: "p.id"},
	filter.PostSlug:          {Expr: "p.slug"},
	filter.PostTitle:         {Expr: "p.title"},
	filter.PostContent:       {Expr: "p.content"},
	filter.PostExcerpt:       {Expr: "p.excerpt"},
	filter.PostStatus:        {Expr: "p.status"},
	filter.PostFeaturedImage: {Expr: "p.featured_image"},
	filter.PostAuthorID:      {Expr: "p.author_id"},
	filter.PostOwnerID:       {Expr: "a.user_id"},
	filter.PostAuthorSlug:    {Expr: "a.slug"},
	filter.PostAuthorName:    {Expr: "a.display_name"},
	filter.PostCategoryID:    {Expr: "c.id"},
	filter.PostCategorySlug:  {Expr: "c.slug"},
	filter.PostCategoryName:  {Expr: "c.name"},
	filter.PostTagSlug:       {Expr: "t.slug", Exists: postTagExists},
	filter.PostTagName:       {Expr: "t.name", Exists: postTagExists},
	filter.PostPublishedAt:   {Expr: "p.published_at"},
	filter.PostCreatedAt:     {Expr: "p.created_at"},
	filter.PostUpdatedAt:     {Expr: "p.updated_at"},
}

const postFrom = `
	FROM posts p
	JOIN authors a ON a.id = p.author_id
	LEFT JOIN categories c ON c.id = p.category_id
`

const selectPosts = `
	SELECT p.id, p.title, p.slug, p.excerpt, p.content, p.featured_image, p.author_id, p.category_id,
		p.status, p.published_at, p.created_at, p.updated_at,
		p.meta_title, p.meta_description, p.keywords, p.og_image,
		COALESCE((SELECT array_agg(pt.tag_id ORDER BY pt.tag_id) FROM post_tags pt WHERE pt.post_id = p.id), '{}')
` + postFrom

func scanPost(rows *sql.Rows) (*models.Post, error) {
	p := &models.Post{}
	var (
		categoryID  sql.NullInt64
		publishedAt sql.NullTime
		keywords    pq.StringArray
		tagIDs      pq.Int64Array
	)
	if err := rows.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Excerpt, &p.Content, &p.FeaturedImage, &p.AuthorID, &categoryID,
		&p.Status, &publishedAt, &p.CreatedAt, &p.UpdatedAt,
		&p.MetaTitle, &p.MetaDescription, &keywords, &p.OGImage,
		&tagIDs,
	); err != nil {
		return nil, err
	}
	if categoryID.Valid {
		p.CategoryID = &categoryID.Int64
	}
	if publishedAt.Valid {
		p.PublishedAt = &publishedAt.Time
	}
	p.Keywords = []string(keywords)
	p.TagIDs = []int64(tagIDs)
	return p, nil
}

type postRepo struct{ d *DB }

func (r *postRepo) Insert(ctx context.Context, post *models.Post) error {
	return r.d.session.DoTransactionally(ctx, func(txCtx context.Context) error {
		query := `
			INSERT INTO posts (title, slug, excerpt, content, featured_image, author_id, category_id, status,
				published_at, meta_title, meta_description, keywords, og_image)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id, created_at, updated_at
		`
		args := []any{post.Title, post.Slug, post.Excerpt, post.Content, post.FeaturedImage, post.AuthorID, post.CategoryID,
			post.Status, post.PublishedAt, post.MetaTitle, post.MetaDescription, pq.Array(keywordsOrEmpty(post.Keywords)), post.OGImage}

		_, err := databaseutils.ExecuteSingleQuery(r.d.sqlTemplate, txCtx, query, func(rows *sql.Rows) (*models.Post, error) {
			return post, rows.Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
		}, args...)
		if err != nil {
			return mapError(err)
		}
		return r.replaceTags(txCtx, post)
	})
}

func (r *postRepo) Update(ctx context.Context, post *models.Post) error {
	return r.d.session.DoTransactionally(ctx, func(txCtx context.Context) error {
		query := `
			UPDATE posts
			SET title = $1, slug = $2, excerpt = $3, content = $4, featured_image = $5, category_id = $6,
				status = $7, published_at = $8, meta_title = $9, meta_description = $10, keywords = $11,
				og_image = $12, updated_at = now()
			WHERE id = $13
			RETURNING updated_at
		`
		args := []any{post.Title, post.Slug, post.Excerpt, post.Content, post.FeaturedImage, post.CategoryID,
			post.Status, post.PublishedAt, post.MetaTitle, post.MetaDescription, pq.Array(keywordsOrEmpty(post.Keywords)),
			post.OGImage, post.ID}

		_, err := databaseutils.ExecuteSingleQuery(r.d.sqlTemplate, txCtx, query, func(rows *sql.Rows) (*models.Post, error) {
			return post, rows.Scan(&post.UpdatedAt)
		}, args...)
		if err != nil {
			return mapError(err)
		}
		return r.replaceTags(txCtx, post)
	})
}

func (r *postRepo) replaceTags(ctx context.Context, post *models.Post) error {
	if _, err := databaseutils.Execute(r.d.sqlTemplate, ctx, `DELETE FROM post_tags WHERE post_id = $1`, post.ID); err != nil {
		return mapError(err)
	}
	if len(post.TagIDs) == 0 {
		return nil
	}
	query := `INSERT INTO post_tags (post_id, tag_id) SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`
	if _, err := databaseutils.Execute(r.d.sqlTemplate, ctx, query, post.ID, pq.Array(post.TagIDs)); err != nil {
		return mapError(err)
	}
	return nil
}

func (r *postRepo) Delete(ctx context.Context, id int64) error {
	return expectOne(databaseutils.Execute(r.d.sqlTemplate, ctx, `DELETE FROM posts WHERE id = $1`, id))
}

func (r *postRepo) Get(ctx context.Context, cond filter.Cond) (*models.Post, error) {
	args := filter.NewArgs()
	whereSQL, err := where(cond, postColumns, args)
	if err != nil {
		return nil, err
	}
	post, err := databaseutils.ExecuteSingleQuery(r.d.sqlTemplate, ctx, selectPosts+" WHERE "+whereSQL+" LIMIT 1", scanPost, args.Values()...)
	if err != nil {
		return nil, mapError(err)
	}
	return post, nil
}

func (r *postRepo) List(ctx context.Context, cond filter.Cond, orders []filter.Order, page filter.Page) ([]*models.Post, int64, error) {
	args := filter.NewArgs()
	whereSQL, err := where(cond, postColumns, args)
	if err != nil {
		return nil, 0, err
	}
	orderSQL, err := filter.OrderBy(postColumns, orders, "p.id")
	if err != nil {
		return nil, 0, err
	}

	total, err := count(r.d, ctx, "SELECT COUNT(*) "+postFrom+" WHERE "+whereSQL, slices.Clone(args.Values()))
	if err != nil {
		return nil, 0, mapError(err)
	}

	query := selectPosts + " WHERE " + whereSQL + " " + orderSQL + limitOffset(page, args)
	posts, err := databaseutils.ExecuteQuery(r.d.sqlTemplate, ctx, query, scanPost, args.Values()...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	return posts, total, nil
}

func keywordsOrEmpty(keywords []string) []string {
	if keywords == nil {
		return []string{}
	}
	return keywords
}
