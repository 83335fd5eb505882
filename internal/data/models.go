package data

import (
	"context"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/blogplatform/internal/auth"
	"github.com/siahsang/blogplatform/internal/filter"
	"github.com/siahsang/blogplatform/models"
)

var (
	ErrRecordNotFound = xerrors.Message("record not found")
	ErrEditConflict   = xerrors.Message("edit conflict")
)

// UniqueViolation reports a write rejected by a uniqueness constraint.
type UniqueViolation struct {
	Field string
}

func (e *UniqueViolation) Error() string {
	return "duplicate value for " + e.Field
}

// Transactor runs fn in one transaction; repositories called with the
// context passed to fn take part in it. Nested calls join the outer one.
type Transactor interface {
	DoTransactionally(ctx context.Context, fn func(txCtx context.Context) error) error
}

type Users interface {
	Insert(ctx context.Context, user *auth.User) error
	GetByID(ctx context.Context, id int64) (*auth.User, error)
	GetByEmail(ctx context.Context, email string) (*auth.User, error)
	GetByUsername(ctx context.Context, username string) (*auth.User, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*auth.User, error)
	// Update writes the profile fields, password and flags.
	Update(ctx context.Context, user *auth.User) error
	SetLastLogin(ctx context.Context, id int64, at time.Time) error
	AdjustArticleCount(ctx context.Context, id int64, delta int64) error
}

type Authors interface {
	Insert(ctx context.Context, author *models.Author) error
	GetByID(ctx context.Context, id int64) (*models.Author, error)
	GetBySlug(ctx context.Context, slug string) (*models.Author, error)
	GetByUserID(ctx context.Context, userID int64) (*models.Author, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*models.Author, error)
	Update(ctx context.Context, author *models.Author) error
	List(ctx context.Context, where filter.Cond, orders []filter.Order, page filter.Page) ([]*models.Author, int64, error)
}

type SocialLinks interface {
	// Upsert replaces the author's link for the same platform.
	Upsert(ctx context.Context, link *models.SocialLink) error
	Delete(ctx context.Context, authorID int64, platform string) error
	ListByAuthors(ctx context.Context, authorIDs []int64) ([]*models.SocialLink, error)
}

type Categories interface {
	Insert(ctx context.Context, category *models.Category) error
	GetByID(ctx context.Context, id int64) (*models.Category, error)
	GetBySlug(ctx context.Context, slug string) (*models.Category, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*models.Category, error)
	Update(ctx context.Context, category *models.Category) error
	// Delete leaves referencing posts uncategorised.
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, where filter.Cond, orders []filter.Order, page filter.Page) ([]*models.Category, int64, error)
}

type Tags interface {
	Insert(ctx context.Context, tag *models.Tag) error
	GetBySlug(ctx context.Context, slug string) (*models.Tag, error)
	GetBySlugs(ctx context.Context, slugs []string) ([]*models.Tag, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*models.Tag, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, where filter.Cond, orders []filter.Order, page filter.Page) ([]*models.Tag, int64, error)
}

type Posts interface {
	// Insert and Update also replace the post's tag links from TagIDs.
	Insert(ctx context.Context, post *models.Post) error
	Update(ctx context.Context, post *models.Post) error
	// Delete removes the post together with its comments and tag links.
	Delete(ctx context.Context, id int64) error
	// Get returns the single post matching where.
	Get(ctx context.Context, where filter.Cond) (*models.Post, error)
	List(ctx context.Context, where filter.Cond, orders []filter.Order, page filter.Page) ([]*models.Post, int64, error)
}

type Comments interface {
	Insert(ctx context.Context, comment *models.Comment) error
	Get(ctx context.Context, where filter.Cond) (*models.Comment, error)
	List(ctx context.Context, where filter.Cond, orders []filter.Order, page filter.Page) ([]*models.Comment, int64, error)
	// UpdateStatus moves the comment from one status to another and fails
	// with ErrEditConflict when its current status is not from.
	UpdateStatus(ctx context.Context, id int64, from, to models.CommentStatus, at time.Time) error
	Delete(ctx context.Context, id int64) error
	CountApproved(ctx context.Context, postIDs []int64) (map[int64]int64, error)
}

type Models struct {
	Tx          Transactor
	Users       Users
	Authors     Authors
	SocialLinks SocialLinks
	Categories  Categories
	Tags        Tags
	Posts       Posts
	Comments    Comments
}
