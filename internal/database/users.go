package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/siahsang/blogplatform/internal/auth"
	"github.com/siahsang/blogplatform/internal/utils/databaseutils"
)

type userRepo struct{ d *DB }

const userColumns = `id, email, username, first_name, last_name, password, bio, avatar,
	article_count, is_staff, is_active, date_joined, last_login`

func scanUser(rows *sql.Rows) (*auth.User, error) {
	user := &auth.User{}
	var lastLogin sql.NullTime
	if err := rows.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Password,
		&user.Bio,
		&user.Avatar,
		&user.ArticleCount,
		&user.IsStaff,
		&user.IsActive,
		&user.DateJoined,
		&lastLogin,
	); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	return user, nil
}

func (r *userRepo) Insert(ctx context.Context, user *auth.User) error {
	query := `
		INSERT INTO users (email, username, first_name, last_name, password, bio, avatar, is_staff, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, date_joined
	`
	args := []any{user.Email, user.Username, user.FirstName, user.LastName, user.Password, user.Bio, user.Avatar, user.IsStaff, user.IsActive}

	_, err := databaseutils.ExecuteSingleQuery(r.d.sqlTemplate, ctx, query, func(rows *sql.Rows) (*auth.User, error) {
		return user, rows.Scan(&user.ID, &user.DateJoined)
	}, args...)
	return mapError(err)
}

func (r *userRepo) getOne(ctx context.Context, condition string, arg any) (*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + condition
	user, err := databaseutils.ExecuteSingleQuery(r.d.sqlTemplate, ctx, query, scanUser, arg)
	if err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getOne(ctx, "lower(email) = lower($1)", email)
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	return r.getOne(ctx, "username = $1", username)
}

func (r *userRepo) GetByIDs(ctx context.Context, ids []int64) ([]*auth.User, error) {
	if len(ids) == 0 {
		return []*auth.User{}, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1) ORDER BY id`
	users, err := databaseutils.ExecuteQuery(r.d.sqlTemplate, ctx, query, scanUser, pq.Array(ids))
	if err != nil {
		return nil, mapError(err)
	}
	return users, nil
}

func (r *userRepo) Update(ctx context.Context, user *auth.User) error {
	query := `
		UPDATE users
		SET email = $1, username = $2, first_name = $3, last_name = $4, password = $5,
			bio = $6, avatar = $7, is_staff = $8, is_active = $9
		WHERE id = $10
	`
	args := []any{user.Email, user.Username, user.FirstName, user.LastName, user.Password,
		user.Bio, user.Avatar, user.IsStaff, user.IsActive, user.ID}
	if err := expectOne(databaseutils.Execute(r.d.sqlTemplate, ctx, query, args...)); err != nil {
		return err
	}

	r.d.log.Info("User updated Successfully", "user_id", user.ID)
	return nil
}

func (r *userRepo) SetLastLogin(ctx context.Context, id int64, at time.Time) error {
	return expectOne(databaseutils.Execute(r.d.sqlTemplate, ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at, id))
}

func (r *userRepo) AdjustArticleCount(ctx context.Context, id int64, delta int64) error {
	query := `UPDATE users SET article_count = GREATEST(article_count + $1, 0) WHERE id = $2`
	return expectOne(databaseutils.Execute(r.d.sqlTemplate, ctx, query, delta, id))
}
