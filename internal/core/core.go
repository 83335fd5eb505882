package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/blogplatform/internal/auth"
	"github.com/siahsang/blogplatform/internal/data"
	"github.com/siahsang/blogplatform/internal/validator"
)

var (
	ErrNotFound           = xerrors.Message("Not found.")
	ErrForbidden          = xerrors.Message("You do not have permission to perform this action.")
	ErrInvalidCredentials = xerrors.Message("No active account found with the given credentials")
	ErrInactiveAccount    = xerrors.Message("User account is disabled.")
)

// ValidationError carries field level messages that are reported back to
// the client as a 400.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Fields))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func fieldError(field, message string) error {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func validationError(v *validator.Validator) error {
	if v.IsValid() {
		return nil
	}
	return &ValidationError{Fields: v.Errors}
}

// storeError translates repository failures into core errors.
func storeError(err error) error {
	var uv *data.UniqueViolation
	switch {
	case err == nil:
		return nil
	case errors.Is(err, data.ErrRecordNotFound):
		return xerrors.New(ErrNotFound)
	case errors.As(err, &uv):
		return fieldError(uv.Field, fmt.Sprintf("A record with this %s already exists.", uv.Field))
	}
	return err
}

type Core struct {
	log    *slog.Logger
	models data.Models
	now    func() time.Time
}

func NewCore(models data.Models, log *slog.Logger) *Core {
	return &Core{
		log:    log,
		models: models,
		now:    time.Now,
	}
}

func isStaff(user *auth.User) bool {
	return user != nil && user.IsStaff
}

func (c *Core) inTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return c.models.Tx.DoTransactionally(ctx, fn)
}

// Page is one page of a listing together with the unpaginated total.
type Page[T any] struct {
	Items []T
	Total int64
}
