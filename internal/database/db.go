package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/blogplatform/internal/data"
	"github.com/siahsang/blogplatform/internal/filter"
	"github.com/siahsang/blogplatform/internal/utils/databaseutils"
)

//go:embed schema.sql
var schema string

// uniqueFields maps constraint names to the field reported to clients.
var uniqueFields = map[string]string{
	"users_email_key":                  "email",
	"users_username_key":               "username",
	"authors_user_id_key":              "user",
	"authors_slug_key":                 "slug",
	"social_links_author_platform_key": "platform",
	"categories_name_key":              "name",
	"categories_slug_key":              "slug",
	"tags_name_key":                    "name",
	"tags_slug_key":                    "slug",
	"posts_slug_key":                   "slug",
}

type DB struct {
	log         *slog.Logger
	db          *sql.DB
	sqlTemplate *databaseutils.SQLTemplate
	session     *databaseutils.Session
}

func NewDB(dbConn *sql.DB, log *slog.Logger, queryTimeout time.Duration) *DB {
	return &DB{
		log:         log,
		db:          dbConn,
		sqlTemplate: databaseutils.NewSQLTemplate(dbConn, queryTimeout),
		session:     databaseutils.NewSession(dbConn),
	}
}

type PoolConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

// Open connects with the postgres driver and pings the server.
func Open(ctx context.Context, cfg PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, xerrors.New(err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, xerrors.New(err)
	}
	return db, nil
}

// Migrate creates missing tables and indexes.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return xerrors.Newf("database: migrate: %w", err)
	}
	d.log.Info("Database schema is up to date")
	return nil
}

func (d *DB) Models() data.Models {
	return data.Models{
		Tx:          d.session,
		Users:       &userRepo{d},
		Authors:     &authorRepo{d},
		SocialLinks: &linkRepo{d},
		Categories:  &categoryRepo{d},
		Tags:        &tagRepo{d},
		Posts:       &postRepo{d},
		Comments:    &commentRepo{d},
	}
}

// mapError turns driver errors into the storage sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return xerrors.New(data.ErrRecordNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			field, ok := uniqueFields[pqErr.Constraint]
			if !ok {
				field = pqErr.Constraint
			}
			return &data.UniqueViolation{Field: field}
		case "23503":
			return xerrors.Newf("%w: %s", data.ErrRecordNotFound, pqErr.Constraint)
		}
	}
	return xerrors.New(err)
}

func expectOne(affected int64, err error) error {
	if err != nil {
		return mapError(err)
	}
	if affected == 0 {
		return xerrors.New(data.ErrRecordNotFound)
	}
	return nil
}

// where renders cond against cols, continuing the given args.
func where(cond filter.Cond, cols filter.Columns, args *filter.Args) (string, error) {
	if cond == nil {
		return "TRUE", nil
	}
	s, err := cond.SQL(cols, args)
	if err != nil {
		return "", xerrors.New(err)
	}
	return s, nil
}

func limitOffset(page filter.Page, args *filter.Args) string {
	if page.Size <= 0 {
		return ""
	}
	return " LIMIT " + args.Add(page.Limit()) + " OFFSET " + args.Add(page.Offset())
}

func count(d *DB, ctx context.Context, query string, args []any) (int64, error) {
	return databaseutils.ExecuteSingleQuery(d.sqlTemplate, ctx, query, func(rows *sql.Rows) (int64, error) {
		var n int64
		err := rows.Scan(&n)
		return n, err
	}, args...)
}
