// Package memory keeps every repository in process. It backs STORAGE=memory
// and the handler tests.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/siahsang/blogplatform/internal/auth"
	"github.com/siahsang/blogplatform/internal/data"
	"github.com/siahsang/blogplatform/internal/filter"
	"github.com/siahsang/blogplatform/internal/utils/functional"
	"github.com/siahsang/blogplatform/models"
)

type state struct {
	seq        int64
	users      map[int64]auth.User
	authors    map[int64]models.Author
	links      map[int64]models.SocialLink
	categories map[int64]models.Category
	tags       map[int64]models.Tag
	posts      map[int64]models.Post
	comments   map[int64]models.Comment
}

func newState() *state {
	return &state{
		users:      map[int64]auth.User{},
		authors:    map[int64]models.Author{},
		links:      map[int64]models.SocialLink{},
		categories: map[int64]models.Category{},
		tags:       map[int64]models.Tag{},
		posts:      map[int64]models.Post{},
		comments:   map[int64]models.Comment{},
	}
}

// clone is shallow per entity; slices inside entities are only ever
// replaced, never modified in place.
func (st *state) clone() *state {
	return &state{
		seq:        st.seq,
		users:      maps.Clone(st.users),
		authors:    maps.Clone(st.authors),
		links:      maps.Clone(st.links),
		categories: maps.Clone(st.categories),
		tags:       maps.Clone(st.tags),
		posts:      maps.Clone(st.posts),
		comments:   maps.Clone(st.comments),
	}
}

func (st *state) nextID() int64 {
	st.seq++
	return st.seq
}

type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	st   *state
	now  func() time.Time
}

type txKey struct{}

func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

func (s *Store) Models() data.Models {
	return data.Models{
		Tx:          s,
		Users:       &userRepo{s},
		Authors:     &authorRepo{s},
		SocialLinks: &linkRepo{s},
		Categories:  &categoryRepo{s},
		Tags:        &tagRepo{s},
		Posts:       &postRepo{s},
		Comments:    &commentRepo{s},
	}
}

// DoTransactionally serialises transactions and restores a snapshot when fn
// fails or panics. Writes made outside a transaction wait on the same lock.
func (s *Store) DoTransactionally(ctx context.Context, fn func(txCtx context.Context) error) (err error) {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, true))
}

func (s *Store) restore(snapshot *state) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = snapshot
}

func (s *Store) lock() (*state, func()) {
	s.mu.Lock()
	return s.st, s.mu.Unlock
}

// writeLock is lock for mutations. Outside a transaction it also waits for
// the running transaction to finish, so a rollback can only ever undo that
// transaction's own writes.
func (s *Store) writeLock(ctx context.Context) (*state, func()) {
	if ctx.Value(txKey{}) != nil {
		return s.lock()
	}
	s.txMu.Lock()
	s.mu.Lock()
	return s.st, func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

// paginate filters, orders and slices rows. Rows are first put in id order so
// that ties are broken the same way as in SQL.
func paginate[R filter.Row](rows []R, id func(R) int64, where filter.Cond, orders []filter.Order, page filter.Page) ([]R, int64) {
	if where == nil {
		where = filter.And()
	}
	matched := functional.Filter(rows, func(r R) bool { return where.Match(r) })
	slices.SortFunc(matched, func(a, b R) int { return cmp.Compare(id(a), id(b)) })
	filter.SortRows(matched, orders)

	total := int64(len(matched))
	if page.Size <= 0 {
		return matched, total
	}
	start := min(page.Offset(), len(matched))
	end := min(start+page.Limit(), len(matched))
	return matched[start:end], total
}

func sortedValues[V any](m map[int64]V) []V {
	keys := slices.Sorted(maps.Keys(m))
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
