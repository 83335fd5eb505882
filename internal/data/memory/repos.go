package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/blogplatform/internal/auth"
	"github.com/siahsang/blogplatform/internal/data"
	"github.com/siahsang/blogplatform/internal/filter"
	"github.com/siahsang/blogplatform/models"
)

var notFound = data.ErrRecordNotFound

type userRepo struct{ s *Store }

func (r *userRepo) checkUnique(st *state, user *auth.User) error {
	for _, u := range st.users {
		if u.ID == user.ID {
			continue
		}
		if strings.EqualFold(u.Email, user.Email) {
			return &data.UniqueViolation{Field: "email"}
		}
		if u.Username == user.Username {
			return &data.UniqueViolation{Field: "username"}
		}
	}
	return nil
}

func (r *userRepo) Insert(ctx context.Context, user *auth.User) error {
	st, unlock := r.s.writeLock(ctx)
	defer unlock()

	if err := r.checkUnique(st, user); err != nil {
		return err
	}
	user.ID = st.nextID()
	if user.DateJoined.IsZero() {
		user.DateJoined = r.s.now()
	}
	st.users[user.ID] = *user
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id int64) (*auth.User, error) {
	st, unlock := r.s.lock()
	defer unlock()

	u, ok := st.users[id]
	if !ok {
		return nil, xerrors.New(notFound)
	}
	return &u, nil
}

func (r *userRepo) find(match func(u auth.User) bool) (*auth.User, error) {
	st, unlock := r.s.lock()
	defer unlock()

	for _, u := range st.users {
		if match(u) {
			return ptr(u), nil
		}
	}
	return nil, xerrors.New(notFound)
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	return r.find(func(u auth.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *userRepo) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	return r.find(func(u auth.User) bool { return u.Username == username })
}

func (r *userRepo) GetByIDs(_ context.Context, ids []int64) ([]*auth.User, error) {
	st, unlock := r.s.lock()
	defer unlock()

	var out []*auth.User
	for _, u := range sortedValues(st.users) {
		if slices.Contains(ids, u.ID) {
			out = append(out, ptr(u))
		}
	}
	return out, nil
}

func (r *userRepo) Update(ctx context.Context, user *auth.User) error {
	st, unlock := r.s.writeLock(ctx)
	defer unlock()

	current, ok := st.users[user.ID]
	if !ok {
		return xerrors.New(notFound)
	}
	if err := r.checkUnique(st, user); err != nil {
		return err
	}
	updated := *user
	updated.ArticleCount = current.ArticleCount
	updated.LastLogin = current.LastLogin
	updated.DateJoined = current.DateJoined
	st.users[user.ID] = updated
	return nil
}

func (r *userRepo) SetLastLogin(ctx context.Context, id int64, at time.Time) error {
	st, unlock := r.s.writeLock(ctx)
	defer unlock()

	u, ok := st.users[id]
	if !ok {
		return xerrors.New(notFound)
	}
	u.LastLogin = &at
	st.users[id] = u
	return nil
}

func (r *userRepo) AdjustArticleCount(ctx context.Context, id int64, delta int64) error {
	st, unlock := r.s.writeLock(ctx)
	defer unlock()

	u, ok := st.users[id]
	if !ok {
		return xerrors.New(notFound)
	}
	u.ArticleCount = max(u.ArticleCount+delta, 0)
	st.users[id] = u
	return nil
}

type authorRepo struct{ s *Store }

func (r *authorRepo) withCount(st *state, a models.Author) *models.Author {
	a.PostsCount = st.publishedCount(func(p models.Post) bool { return p.AuthorID == a.ID })
	return &a
}

func (r *authorRepo) Insert(ctx context.Context, author *models.Author) error {
	st, unlock := r.s.writeLock(ctx)
	defer unlock()

	for _, a := range st.authors {
		if a.Slug == author.Slug {
			return &data.UniqueViolation{Field: "slug"}
		}
		if a.UserID == author.UserID {
			return &data.UniqueViolation{Field: "user"}
		}
	}
	now := r.s.now()
	author.ID = st.nextID()
	author.CreatedAt, author.UpdatedAt = now, now
	st.authors[author.ID] = *author
	return nil
}

func (r *authorRepo) find(match func(a models.Author) bool) (*models.Author, error) {
	st, unlock := r.s.lock()
	defer unlock()

	for _, a := range st.authors {
		if match(a) {
			return r.withCount(st, a), nil
		}
	}
	return nil, xerrors.New(notFound)
}

func (r *authorRepo) GetByID(_ context.Context, id int64) (*models.Author, error) {
	return r.find(func(a models.Author) bool { return a.ID == id })
}

func (r *authorRepo) GetBySlug(_ context.Context, slug string) (*models.Author, error) {
	return r.find(func(a models.Author) bool { return a.Slug == slug })
}

func (r *authorRepo) GetByUserID(_ context.Context, userID int64) (*models.Author, error) {
	return r.find(func(a models.Author) bool { return a.UserID == userID })
}

func (r *authorRepo) GetByIDs(_ context.Context, ids []int64) ([]*models.Author, error) {
	st, unlock := r.s.lock()
	defer unlock()

	var out []*models.Author
	for _, a := range sortedValues(st.authors) {
		if slices.Contains(ids, a.ID) {
			out = append(out, r.withCount(st, a))
		}
	}
	return out, nil
}

func (r *authorRepo) Update(ctx context.Context, author *models.Author) error {
	st, unlock := r.s.writeLock(ctx)
	defer unlock()

	if _, ok := st.authors[author.ID]; !ok {
		return xerrors.New(notFound)
	}
	for _, a := range st.authors {
		if a.ID != author.ID && a.Slug == author.Slug {
			return &data.UniqueViolation{Field: "slug"}
		}
	}
	author.UpdatedAt = r.s.now()
	st.authors[author.ID] = *author
	return nil
}

func (r *authorRepo) List(_ context.Context, where filter.Cond, orders []filter.Order, page filter.Page) ([]*models.Author, int64, error) {
	st, unlock := r.s.lock()
	defer unlock()

	var rows []authorRow
	for _, a := range st.authors {
		rows = append(rows, authorRow{author: r.withCount(st, a), st: st})
	}
	rows, total := paginate(rows, func(row authorRow) int64 { return row.author.ID }, where, orders, page)

	out := make([]*models.Author, len(rows))
	for i, row := range rows {
		out[i] = row.author
	}
	return out, total, nil
}

type linkRepo struct{ s *Store }

func (r *linkRepo) Upsert(ctx context.Context, link *models.SocialLink) error {
	st, unlock := r.s.writeLock(ctx)
	defer unlock()

	for id, l := range st.links {
		if l.AuthorID == link.AuthorID && l.Platform == link.Platform {
			link.ID = id
			st.links[id] = *link
			return nil
		}
	}
	link.ID = st.nextID()
	st.links[link.ID] = *link
	return nil
}

func (r *linkRepo) Delete(ctx context.Context, authorID int64, platform string) error {
	st, unlock := r.s.writeLock(ctx)
	defer unlock()

	for id, l := range st.links {
		if l.AuthorID == authorID && l.Platform == platform {
			delete(st.links, id)
			return nil
		}
	}
	return xerrors.New(notFound)
}

func (r *linkRepo) ListByAuthors(_ context.Context, authorIDs []int64) ([]*models.SocialLink, error) {
	st, unlock := r.s.lock()
	defer unlock()

	var out []*models.SocialLink
	for _, l := range sortedValues(st.links) {
		if slices.Contains(authorIDs, l.AuthorID) {
			out = append(out, ptr(l))
		}
	}
	return out, nil
}

type categoryRepo struct{ s *Store }

func (r *categoryRepo) withCount(st *state, c models.Category) *models.Category {
	c.PostsCount = st.publishedCount(func(p models.Post) bool { return p.CategoryID != nil && *p.CategoryID == c.ID })
	return &c
}

func (r *categoryRepo) checkUnique(st *state, category *models.Category) error {
	for _, c := range st.categories {
		if c.ID == category.ID {
			continue
		}
		if c.Name == category.Name {
			return &data.UniqueViolation{Field: "name"}
		}
		if c.Slug == category.Slug {
			return &data.UniqueViolation{Field: "slug"}
		}
	}
	return nil
}

func (r *categoryRepo) Insert(ctx context.Context, category *models.Category) error {
	st, unlock := r.s.writeLock(ctx)
	defer unlock()

	if err := r.checkUnique(st, category); err != nil {
		return err
	}
	now := r.s.now()
	category.ID = st.nextID()
	category.CreatedAt, category.UpdatedAt = now, now
	st.categories[category.ID] = *category
	return nil
}

func (r *categoryRepo) GetByID(_ context.Context, id int64) (*models.Category, error) {
	st, unlock := r.s.lock()
	defer unlock()

	c, ok := st.categories[id]
	if !ok {
		return nil, xerrors.New(notFound)
	}
	return r.withCount(st, c), nil
}

func (r *categoryRepo) GetBySlug(_ context.Context, slug string) (*models.Category, error) {
	st, unlock := r.s.lock()
	defer unlock()

	for _, c := range st.categories {
		if c.Slug == slug {
			return r.withCount(st, c), nil
		}
	}
	return nil, xerrors.New(notFound)
}

func (r *categoryRepo) GetByIDs(_ context.Context, ids []int64) ([]*models.Category, error) {
	st, unlock := r.s.lock()
	defer unlock()

	var out []*models.Category
	for _, c := range sortedValues(st.categories) {
		if slices.Contains(ids, c.ID) {
			out = append(out, r.withCount(st, c))
		}
	}
	return out, nil
}

func (r *categoryRepo) Update(ctx context.Context, category *models.Category) error {
	st, unlock := r.s.writeLock(ctx)
	defer unlock()

	if _, ok := st.categories[category.ID]; !ok {
		return xerrors.New(notFound)
	}
	if err := r.checkUnique(st, category); err != nil {
		return err
	}
	category.UpdatedAt = r.s.now()
	st.categories[category.ID] = *category
	return nil
}

func (r *categoryRepo) Delete(ctx context.Context, id int64) error {
	st, unlock := r.s.writeLock(ctx)
	defer unlock()

	if _, ok := st.categories[id]; !ok {
		return xerrors.New(notFound)
	}
	delete(st.categories, id)
	for pid, p := range st.posts {
		if p.CategoryID != nil && *p.CategoryID == id {
			p.CategoryID = nil
			st.posts[pid] = p
		}
	}
	return nil
}

func (r *categoryRepo) List(_ context.Context, where filter.Cond, orders []filter.Order, page filter.Page) ([]*models.Category, int64, error) {
	st, unlock := r.s.lock()
	defer unlock()

	var rows []categoryRow
	for _, c := range st.categories {
		rows = append(rows, categoryRow{category: r.withCount(st, c)})
	}
	rows, total := paginate(rows, func(row categoryRow) int64 { return row.category.ID }, where, orders, page)

	out := make([]*models.Category, len(rows))
	for i, row := range rows {
		out[i] = row.category
	}
	return out, total, nil
}

type tagRepo struct{ s *Store }

func (r *tagRepo) withCount(st *state, t models.Tag) *models.Tag {
	t.PostsCount = st.publishedCount(func(p models.Post) bool { return slices.Contains(p.TagIDs, t.ID) })
	return &t
}

func (r *tagRepo) Insert(ctx context.Context, tag *models.Tag) error {
	st, unlock := r.s.writeLock(ctx)
	defer unlock()

	for _, t := range st.tags {
		if t.Name == tag.Name {
			return &data.UniqueViolation{Field: "name"}
		}
		if t.Slug == tag.Slug {
			return &data.UniqueViolation{Field: "slug"}
		}
	}
	tag.ID = st.nextID()
	tag.CreatedAt = r.s.now()
	st.tags[tag.ID] = *tag
	return nil
}

func (r *tagRepo) GetBySlug(_ context.Context, slug string) (*models.Tag, error) {
	st, unlock := r.s.lock()
	defer unlock()

	for _, t := range st.tags {
		if t.Slug == slug {
			return r.withCount(st, t), nil
		}
	}
	return nil, xerrors.New(notFound)
}

func (r *tagRepo) GetBySlugs(_ context.Context, slugs []string) ([]*models.Tag, error) {
	st, unlock := r.s.lock()
	defer unlock()

	var out []*models.Tag
	for _, t := range sortedValues(st.tags) {
		if slices.Contains(slugs, t.Slug) {
			out = append(out, r.withCount(st, t))
		}
	}
	return out, nil
}

func (r *tagRepo) GetByIDs(_ context.Context, ids []int64) ([]*models.Tag, error) {
	st, unlock := r.s.lock()
	defer unlock()

	var out []*models.Tag
	for _, t := range sortedValues(st.tags) {
		if slices.Contains(ids, t.ID) {
			out = append(out, r.withCount(st, t))
		}
	}
	return out, nil
}

func (r *tagRepo) Delete(ctx context.Context, id int64) error {
	st, unlock := r.s.writeLock(ctx)
	defer unlock()

	if _, ok := st.tags[id]; !ok {
		return xerrors.New(notFound)
	}
	delete(st.tags, id)
	for pid, p := range st.posts {
		if slices.Contains(p.TagIDs, id) {
			p.TagIDs = slices.DeleteFunc(slices.Clone(p.TagIDs), func(t int64) bool { return t == id })
			st.posts[pid] = p
		}
	}
	return nil
}

func (r *tagRepo) List(_ context.Context, where filter.Cond, orders []filter.Order, page filter.Page) ([]*models.Tag, int64, error) {
	st, unlock := r.s.lock()
	defer unlock()

	var rows []tagRow
	for _, t := range st.tags {
		rows = append(rows, tagRow{tag: r.withCount(st, t)})
	}
	rows, total := paginate(rows, func(row tagRow) int64 { return row.tag.ID }, where, orders, page)

	out := make([]*models.Tag, len(rows))
	for i, row := range rows {
		out[i] = row.tag
	}
	return out, total, nil
}

type postRepo struct{ s *Store }

func (r *postRepo) checkSlug(st *state, post *models.Post) error {
	for _, p := range st.posts {
		if p.ID != post.ID && p.Slug == post.Slug {
			return &data.UniqueViolation{Field: "slug"}
		}
	}
	return nil
}

func (r *postRepo) Insert(ctx context.Context, post *models.Post) error {
	st, unlock := r.s.writeLock(ctx)
	defer unlock()

	if err := r.checkSlug(st, post); err != nil {
		return err
	}
	now := r.s.now()
	post.ID = st.nextID()
	post.CreatedAt, post.UpdatedAt = now, now
	post.TagIDs = slices.Clone(post.TagIDs)
	st.posts[post.ID] = *post
	return nil
}

func (r *postRepo) Update(ctx context.Context, post *models.Post) error {
	st, unlock := r.s.writeLock(ctx)
	defer unlock()

	if _, ok := st.posts[post.ID]; !ok {
		return xerrors.New(notFound)
	}
	if err := r.checkSlug(st, post); err != nil {
		return err
	}
	post.UpdatedAt = r.s.now()
	post.TagIDs = slices.Clone(post.TagIDs)
	st.posts[post.ID] = *post
	return nil
}

func (r *postRepo) Delete(ctx context.Context, id int64) error {
	st, unlock := r.s.writeLock(ctx)
	defer unlock()

	if _, ok := st.posts[id]; !ok {
		return xerrors.New(notFound)
	}
	delete(st.posts, id)
	for cid, c := range st.comments {
		if c.PostID == id {
			delete(st.comments, cid)
		}
	}
	return nil
}

func (r *postRepo) Get(ctx context.Context, where filter.Cond) (*models.Post, error) {
	posts, _, err := r.List(ctx, where, nil, filter.Page{Number: 1, Size: 1})
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, xerrors.New(notFound)
	}
	return posts[0], nil
}

func (r *postRepo) List(_ context.Context, where filter.Cond, orders []filter.Order, page filter.Page) ([]*models.Post, int64, error) {
	st, unlock := r.s.lock()
	defer unlock()

	var rows []postRow
	for _, p := range st.posts {
		rows = append(rows, postRow{post: ptr(p), st: st})
	}
	rows, total := paginate(rows, func(row postRow) int64 { return row.post.ID }, where, orders, page)

	out := make([]*models.Post, len(rows))
	for i, row := range rows {
		out[i] = row.post
	}
	return out, total, nil
}

type commentRepo struct{ s *Store }

func (r *commentRepo) Insert(ctx context.Context, comment *models.Comment) error {
	st, unlock := r.s.writeLock(ctx)
	defer unlock()

	if _, ok := st.posts[comment.PostID]; !ok {
		return xerrors.New(notFound)
	}
	now := r.s.now()
	comment.ID = st.nextID()
	comment.CreatedAt, comment.UpdatedAt = now, now
	st.comments[comment.ID] = *comment
	return nil
}

func (r *commentRepo) Get(ctx context.Context, where filter.Cond) (*models.Comment, error) {
	comments, _, err := r.List(ctx, where, nil, filter.Page{Number: 1, Size: 1})
	if err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return nil, xerrors.New(notFound)
	}
	return comments[0], nil
}

func (r *commentRepo) List(_ context.Context, where filter.Cond, orders []filter.Order, page filter.Page) ([]*models.Comment, int64, error) {
	st, unlock := r.s.lock()
	defer unlock()

	var rows []commentRow
	for _, c := range st.comments {
		rows = append(rows, commentRow{comment: ptr(c)})
	}
	rows, total := paginate(rows, func(row commentRow) int64 { return row.comment.ID }, where, orders, page)

	out := make([]*models.Comment, len(rows))
	for i, row := range rows {
		out[i] = row.comment
	}
	return out, total, nil
}

func (r *commentRepo) UpdateStatus(ctx context.Context, id int64, from, to models.CommentStatus, at time.Time) error {
	st, unlock := r.s.writeLock(ctx)
	defer unlock()

	c, ok := st.comments[id]
	if !ok {
		return xerrors.New(notFound)
	}
	if c.Status != from {
		return xerrors.New(data.ErrEditConflict)
	}
	c.Status = to
	c.UpdatedAt = at
	st.comments[id] = c
	return nil
}

func (r *commentRepo) Delete(ctx context.Context, id int64) error {
	st, unlock := r.s.writeLock(ctx)
	defer unlock()

	if _, ok := st.comments[id]; !ok {
		return xerrors.New(notFound)
	}
	delete(st.comments, id)
	return nil
}

func (r *commentRepo) CountApproved(_ context.Context, postIDs []int64) (map[int64]int64, error) {
	st, unlock := r.s.lock()
	defer unlock()

	counts := make(map[int64]int64, len(postIDs))
	for _, c := range st.comments {
		if c.Status == models.CommentApproved && slices.Contains(postIDs, c.PostID) {
			counts[c.PostID]++
		}
	}
	return counts, nil
}
