package core

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/gosimple/slug"
	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/blogplatform/internal/data"
)

const (
	maxSlugLength     = 100
	maxSlugCollisions = 5
	maxSlugSuffix     = 10_000
)

// Slugify derives a lowercase hyphenated ASCII slug from name. Names that
// transliterate to nothing get a stable hash based slug instead.
func Slugify(name string) string {
	s := slug.Make(name)
	if len(s) > maxSlugLength {
		s = slug.Make(s[:maxSlugLength])
	}
	if s == "" {
		h := fnv.New32a()
		_, _ = h.Write([]byte(name))
		s = fmt.Sprintf("n-%08x", h.Sum32())
	}
	return s
}

func IsSlug(s string) bool {
	return len(s) <= maxSlugLength && slug.IsSlug(s)
}

type slugTarget struct {
	explicit string
	name     string
	exists   func(ctx context.Context, slug string) (bool, error)
	// insert runs inside a transaction and must fail with a slug
	// UniqueViolation when the slug is taken.
	insert func(txCtx context.Context, slug string) error
}

// insertWithSlug stores a new record under a unique slug. An explicit slug is
// used verbatim and a collision on it is a validation error. A derived slug
// gets -2, -3, ... appended until the insert succeeds; the unique constraint
// decides races between concurrent creators.
func (c *Core) insertWithSlug(ctx context.Context, t slugTarget) error {
	if t.explicit != "" {
		err := c.inTx(ctx, func(txCtx context.Context) error { return t.insert(txCtx, t.explicit) })
		if isSlugViolation(err) {
			return fieldError("slug", "This slug is already in use.")
		}
		return err
	}

	base := Slugify(t.name)
	collisions := 0
	for n := 1; n <= maxSlugSuffix; n++ {
		candidate := base
		if n > 1 {
			candidate = fmt.Sprintf("%s-%d", base, n)
		}

		taken, err := t.exists(ctx, candidate)
		if err != nil {
			return err
		}
		if taken {
			continue
		}

		err = c.inTx(ctx, func(txCtx context.Context) error { return t.insert(txCtx, candidate) })
		if !isSlugViolation(err) {
			return err
		}
		collisions++
		if collisions >= maxSlugCollisions {
			break
		}
		c.log.Debug("slug taken concurrently, retrying", "slug", candidate)
	}
	return xerrors.Newf("could not find a free slug for %q", t.name)
}

func isSlugViolation(err error) bool {
	var uv *data.UniqueViolation
	return errors.As(err, &uv) && uv.Field == "slug"
}

func notFoundAsFalse(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, data.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}
