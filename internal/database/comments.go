package database

import (
	"context"
	"database/sql"
	"slices"
	"time"

	"github.com/lib/pq"
	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/blogplatform/internal/data"
	"github.com/siahsang/blogplatform/internal/filter"
	"github.com/siahsang/blogplatform/internal/utils/databaseutils"
	"github.com/siahsang/blogplatform/models"
)

var commentColumns = filter.Columns{
	filter.CommentID:        {Expr: "cm.id"},
	filter.CommentPostID:    {Expr: "cm.post_id"},
	filter.CommentStatus:    {Expr: "cm.status"},
	filter.CommentCreatedAt: {Expr: "cm.created_at"},
}

const selectComments = `
	SELECT cm.id, cm.post_id, cm.author_name, cm.author_email, cm.content, cm.status, cm.created_at, cm.updated_at
	FROM comments cm
`

func scanComment(rows *sql.Rows) (*models.Comment, error) {
	c := &models.Comment{}
	err := rows.Scan(&c.ID, &c.PostID, &c.AuthorName, &c.AuthorEmail, &c.Content, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

type commentRepo struct{ d *DB }

func (r *commentRepo) Insert(ctx context.Context, comment *models.Comment) error {
	query := `
		INSERT INTO comments (post_id, author_name, author_email, content, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	_, err := databaseutils.ExecuteSingleQuery(r.d.sqlTemplate, ctx, query, func(rows *sql.Rows) (*models.Comment, error) {
		return comment, rows.Scan(&comment.ID, &comment.CreatedAt, &comment.UpdatedAt)
	}, comment.PostID, comment.AuthorName, comment.AuthorEmail, comment.Content, comment.Status)
	return mapError(err)
}

func (r *commentRepo) Get(ctx context.Context, cond filter.Cond) (*models.Comment, error) {
	args := filter.NewArgs()
	whereSQL, err := where(cond, commentColumns, args)
	if err != nil {
		return nil, err
	}
	comment, err := databaseutils.ExecuteSingleQuery(r.d.sqlTemplate, ctx, selectComments+" WHERE "+whereSQL+" LIMIT 1", scanComment, args.Values()...)
	if err != nil {
		return nil, mapError(err)
	}
	return comment, nil
}

func (r *commentRepo) List(ctx context.Context, cond filter.Cond, orders []filter.Order, page filter.Page) ([]*models.Comment, int64, error) {
	args := filter.NewArgs()
	whereSQL, err := where(cond, commentColumns, args)
	if err != nil {
		return nil, 0, err
	}
	orderSQL, err := filter.OrderBy(commentColumns, orders, "cm.id")
	if err != nil {
		return nil, 0, err
	}

	total, err := count(r.d, ctx, `SELECT COUNT(*) FROM comments cm WHERE `+whereSQL, slices.Clone(args.Values()))
	if err != nil {
		return nil, 0, mapError(err)
	}

	query := selectComments + " WHERE " + whereSQL + " " + orderSQL + limitOffset(page, args)
	comments, err := databaseutils.ExecuteQuery(r.d.sqlTemplate, ctx, query, scanComment, args.Values()...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	return comments, total, nil
}

// UpdateStatus is a single conditional UPDATE; a concurrent moderator who
// already moved the comment makes it affect no rows.
func (r *commentRepo) UpdateStatus(ctx context.Context, id int64, from, to models.CommentStatus, at time.Time) error {
	query := `UPDATE comments SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	affected, err := databaseutils.Execute(r.d.sqlTemplate, ctx, query, to, at, id, from)
	if err != nil {
		return mapError(err)
	}
	if affected == 1 {
		return nil
	}

	exists, err := databaseutils.ExecuteSingleQuery(r.d.sqlTemplate, ctx, `SELECT EXISTS (SELECT 1 FROM comments WHERE id = $1)`, func(rows *sql.Rows) (bool, error) {
		var ok bool
		return ok, rows.Scan(&ok)
	}, id)
	if err != nil {
		return mapError(err)
	}
	if !exists {
		return xerrors.New(data.ErrRecordNotFound)
	}
	return xerrors.New(data.ErrEditConflict)
}

func (r *commentRepo) Delete(ctx context.Context, id int64) error {
	return expectOne(databaseutils.Execute(r.d.sqlTemplate, ctx, `DELETE FROM comments WHERE id = $1`, id))
}

func (r *commentRepo) CountApproved(ctx context.Context, postIDs []int64) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}

	type postCount struct {
		postID int64
		n      int64
	}
	query := `
		SELECT post_id, COUNT(*) FROM comments
		WHERE post_id = ANY($1) AND status = 'approved'
		GROUP BY post_id
	`
	rows, err := databaseutils.ExecuteQuery(r.d.sqlTemplate, ctx, query, func(rows *sql.Rows) (postCount, error) {
		var pc postCount
		return pc, rows.Scan(&pc.postID, &pc.n)
	}, pq.Array(postIDs))
	if err != nil {
		return nil, mapError(err)
	}
	for _, pc := range rows {
		counts[pc.postID] = pc.n
	}
	return counts, nil
}
