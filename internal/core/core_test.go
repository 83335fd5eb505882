package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/siahsang/blogplatform/internal/auth"
	"github.com/siahsang/blogplatform/internal/data"
	"github.com/siahsang/blogplatform/internal/data/memory"
	"github.com/siahsang/blogplatform/internal/filter"
	"github.com/siahsang/blogplatform/models"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	auth.PasswordCost = bcrypt.MinCost
}

func ptr[T any](v T) *T {
	return &v
}

func newTestCore(t *testing.T) (*Core, data.Models) {
	t.Helper()
	m := memory.New().Models()
	return NewCore(m, slog.New(slog.NewTextHandler(io.Discard, nil))), m
}

func register(t *testing.T, c *Core, username string, staff bool) *auth.User {
	t.Helper()
	user, err := c.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret-password",
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	if staff {
		user.IsStaff = true
		if err := c.models.Users.Update(context.Background(), user); err != nil {
			t.Fatalf("promote %s: %v", username, err)
		}
	}
	return user
}

func createPost(t *testing.T, c *Core, user *auth.User, title string, status models.PostStatus) *PostView {
	t.Helper()
	view, err := c.CreatePost(context.Background(), user, PostInput{
		Title:   ptr(title),
		Content: ptr("Some content about " + title),
		Excerpt: ptr("About " + title),
		Status:  ptr(string(status)),
	})
	if err != nil {
		t.Fatalf("create post %q: %v", title, err)
	}
	return view
}

func assertFieldError(t *testing.T, err error, field string) {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := ve.Fields[field]; !ok {
		t.Fatalf("expected error on %q, got %v", field, ve.Fields)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Hello World", "hello-world"},
		{"  Go: Tips & Tricks!  ", "go-tips-and-tricks"},
		{"Technology", "technology"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.name); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}

	got := Slugify("!!!")
	if !strings.HasPrefix(got, "n-") || got != Slugify("!!!") {
		t.Fatalf("expected a stable fallback slug, got %q", got)
	}
}

func TestCategorySlugsAreDerivedAndDisambiguated(t *testing.T) {
	c, _ := newTestCore(t)
	ctx := context.Background()
	staff := register(t, c, "editor", true)

	first, err := c.CreateCategory(ctx, staff, CategoryInput{Name: ptr("Technology")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Slug != "technology" || first.Color != DefaultCategoryColor {
		t.Fatalf("unexpected category %+v", first)
	}

	second, err := c.CreateCategory(ctx, staff, CategoryInput{Name: ptr("Technology!")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Slug != "technology-2" {
		t.Fatalf("expected suffixed slug, got %q", second.Slug)
	}

	_, err = c.CreateCategory(ctx, staff, CategoryInput{Name: ptr("Tech"), Slug: ptr("technology")})
	assertFieldError(t, err, "slug")

	explicit, err := c.CreateCategory(ctx, staff, CategoryInput{Name: ptr("Science"), Slug: ptr("sci")})
	if err != nil || explicit.Slug != "sci" {
		t.Fatalf("expected explicit slug to be kept, got %+v %v", explicit, err)
	}
}

func TestTaxonomyWritesRequireStaff(t *testing.T) {
	c, _ := newTestCore(t)
	user := register(t, c, "writer", false)

	if _, err := c.CreateTag(context.Background(), user, TagInput{Name: "Go"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := c.CreateCategory(context.Background(), nil, CategoryInput{Name: ptr("Go")}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCreatePostAppliesDefaults(t *testing.T) {
	c, m := newTestCore(t)
	user := register(t, c, "writer", false)

	view := createPost(t, c, user, "Hello World", models.PostPublished)
	p := view.Post
	if p.Slug != "hello-world" {
		t.Fatalf("expected slug hello-world, got %q", p.Slug)
	}
	if p.PublishedAt == nil {
		t.Fatalf("expected published_at to be set")
	}
	if p.MetaTitle != "Hello World" || p.MetaDescription != "About Hello World" {
		t.Fatalf("unexpected SEO defaults %q %q", p.MetaTitle, p.MetaDescription)
	}
	if view.Author == nil || view.Author.Author.Slug != "writer" || view.ReadingTime != 1 {
		t.Fatalf("unexpected view %+v", view)
	}

	stored, _ := m.Users.GetByID(context.Background(), user.ID)
	if stored.ArticleCount != 1 {
		t.Fatalf("expected article count 1, got %d", stored.ArticleCount)
	}

	again := createPost(t, c, user, "Hello World", models.PostDraft)
	if again.Post.Slug != "hello-world-2" || again.Post.PublishedAt != nil {
		t.Fatalf("unexpected second post %+v", again.Post)
	}
}

func TestCreatePostValidatesReferences(t *testing.T) {
	c, _ := newTestCore(t)
	user := register(t, c, "writer", false)

	_, err := c.CreatePost(context.Background(), user, PostInput{
		Title:    ptr("Title"),
		Content:  ptr("Body"),
		Category: ptr("missing"),
		Tags:     ptr([]string{"nope"}),
		Status:   ptr("archived"),
	})
	assertFieldError(t, err, "category")
	assertFieldError(t, err, "tags")
	assertFieldError(t, err, "status")
}

func TestPublishedAtIsSetOnce(t *testing.T) {
	c, _ := newTestCore(t)
	ctx := context.Background()
	user := register(t, c, "writer", false)

	clock := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	view := createPost(t, c, user, "Draft", models.PostDraft)
	if view.Post.PublishedAt != nil {
		t.Fatalf("draft must not have published_at")
	}

	updated, err := c.UpdatePost(ctx, user, view.Post.Slug, PostInput{Status: ptr("published")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := *updated.Post.PublishedAt
	if !first.Equal(clock) {
		t.Fatalf("expected published_at %v, got %v", clock, first)
	}

	clock = clock.Add(time.Hour)
	for _, in := range []PostInput{{Title: ptr("Renamed")}, {Status: ptr("draft")}, {Status: ptr("published")}} {
		updated, err = c.UpdatePost(ctx, user, view.Post.Slug, in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.Post.PublishedAt == nil || !updated.Post.PublishedAt.Equal(first) {
			t.Fatalf("published_at changed to %v", updated.Post.PublishedAt)
		}
	}
	if updated.Post.Slug != "draft" {
		t.Fatalf("slug must not change, got %q", updated.Post.Slug)
	}
}

func TestPostVisibility(t *testing.T) {
	c, _ := newTestCore(t)
	ctx := context.Background()
	writer := register(t, c, "writer", false)
	staff := register(t, c, "editor", true)

	createPost(t, c, writer, "Public", models.PostPublished)
	draft := createPost(t, c, writer, "Secret", models.PostDraft)

	page := filter.NewPage(1, 20)
	anon, err := c.ListPosts(ctx, nil, filter.Eq(filter.PostStatus, models.PostDraft), nil, page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if anon.Total != 0 {
		t.Fatalf("anonymous callers must never see drafts, got %d", anon.Total)
	}

	all, _ := c.ListPosts(ctx, staff, nil, nil, page)
	if all.Total != 2 {
		t.Fatalf("staff should see every post, got %d", all.Total)
	}

	if _, err := c.GetPost(ctx, nil, draft.Post.Slug); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for hidden draft, got %v", err)
	}
	if _, err := c.GetPost(ctx, staff, draft.Post.Slug); err != nil {
		t.Fatalf("staff should read drafts: %v", err)
	}
}

func TestPostOwnership(t *testing.T) {
	c, _ := newTestCore(t)
	ctx := context.Background()
	owner := register(t, c, "owner", false)
	other := register(t, c, "other", false)
	staff := register(t, c, "editor", true)

	post := createPost(t, c, owner, "Mine", models.PostPublished)
	draft := createPost(t, c, owner, "Unfinished", models.PostDraft)

	if _, err := c.UpdatePost(ctx, other, post.Post.Slug, PostInput{Title: ptr("Hijacked")}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := c.UpdatePost(ctx, other, draft.Post.Slug, PostInput{Title: ptr("Hijacked")}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for someone else's draft, got %v", err)
	}

	updated, err := c.UpdatePost(ctx, owner, draft.Post.Slug, PostInput{Title: ptr("Finished")})
	if err != nil || updated.Post.Title != "Finished" {
		t.Fatalf("owner update failed: %v", err)
	}
	if _, err := c.UpdatePost(ctx, staff, post.Post.Slug, PostInput{Excerpt: ptr("Edited")}); err != nil {
		t.Fatalf("staff update failed: %v", err)
	}

	if err := c.DeletePost(ctx, other, post.Post.Slug); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := c.DeletePost(ctx, owner, post.Post.Slug); err != nil {
		t.Fatalf("owner delete failed: %v", err)
	}
	stored, _ := c.GetUser(ctx, owner.ID)
	if stored.ArticleCount != 1 {
		t.Fatalf("expected article count 1 after delete, got %d", stored.ArticleCount)
	}
}

func TestCommentsStartPending(t *testing.T) {
	c, _ := newTestCore(t)
	ctx := context.Background()
	writer := register(t, c, "writer", false)
	post := createPost(t, c, writer, "Post", models.PostPublished)

	comment, err := c.CreateComment(ctx, CommentInput{
		Post:    post.Post.ID,
		Author:  "Reader",
		Email:   "Reader@Example.com",
		Content: "Nice",
		Status:  "approved",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comment.Status != models.CommentPending || comment.AuthorEmail != "reader@example.com" {
		t.Fatalf("unexpected comment %+v", comment)
	}

	if _, err := c.GetComment(ctx, nil, comment.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("pending comments must be hidden, got %v", err)
	}

	draft := createPost(t, c, writer, "Draft", models.PostDraft)
	_, err = c.CreateComment(ctx, CommentInput{Post: draft.Post.ID, Author: "R", Email: "r@example.com", Content: "x"})
	assertFieldError(t, err, "post")
}

func TestModerationStateMachine(t *testing.T) {
	c, _ := newTestCore(t)
	ctx := context.Background()
	writer := register(t, c, "writer", false)
	staff := register(t, c, "editor", true)
	post := createPost(t, c, writer, "Post", models.PostPublished)

	comment, _ := c.CreateComment(ctx, CommentInput{Post: post.Post.ID, Author: "R", Email: "r@example.com", Content: "x"})

	if _, err := c.ApproveComment(ctx, writer, comment.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	got, err := c.ApproveComment(ctx, staff, comment.ID)
	if err != nil || got.Status != models.CommentApproved {
		t.Fatalf("approve failed: %+v %v", got, err)
	}
	_, err = c.RejectComment(ctx, staff, comment.ID)
	assertFieldError(t, err, "status")
	_, err = c.ApproveComment(ctx, staff, comment.ID)
	assertFieldError(t, err, "status")

	if got, err = c.ResetComment(ctx, staff, comment.ID); err != nil || got.Status != models.CommentPending {
		t.Fatalf("reset failed: %+v %v", got, err)
	}
	if got, err = c.RejectComment(ctx, staff, comment.ID); err != nil || got.Status != models.CommentRejected {
		t.Fatalf("reject failed: %+v %v", got, err)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.CommentStatus
		want     bool
	}{
		{models.CommentPending, models.CommentApproved, true},
		{models.CommentPending, models.CommentRejected, true},
		{models.CommentApproved, models.CommentPending, true},
		{models.CommentRejected, models.CommentPending, true},
		{models.CommentApproved, models.CommentRejected, false},
		{models.CommentRejected, models.CommentApproved, false},
		{models.CommentPending, models.CommentPending, false},
		{models.CommentApproved, models.CommentApproved, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSearchReturnsPublishedMatches(t *testing.T) {
	c, _ := newTestCore(t)
	ctx := context.Background()
	writer := register(t, c, "writer", false)

	createPost(t, c, writer, "Test Post", models.PostPublished)
	createPost(t, c, writer, "Other", models.PostPublished)
	createPost(t, c, writer, "Test Draft", models.PostDraft)

	result, err := c.Search(ctx, filter.PostSearch("Test"), filter.NewPage(1, 20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 1 || result.Items[0].Post.Title != "Test Post" {
		t.Fatalf("unexpected search result %+v", result.Items)
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	c, m := newTestCore(t)
	ctx := context.Background()
	user := register(t, c, "alice", false)

	author, err := m.Authors.GetByUserID(ctx, user.ID)
	if err != nil || author.Slug != "alice" || author.DisplayName != "alice" {
		t.Fatalf("expected author profile, got %+v %v", author, err)
	}

	_, err = c.Register(ctx, RegisterInput{Username: "alice2", Email: "ALICE@example.com", Password: "secret-password"})
	assertFieldError(t, err, "email")

	_, err = c.Register(ctx, RegisterInput{Username: "al", Email: "x@example.com", Password: "short"})
	assertFieldError(t, err, "username")
	assertFieldError(t, err, "password")

	if _, err := c.Authenticate(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	got, err := c.Authenticate(ctx, "alice@example.com", "secret-password")
	if err != nil || got.ID != user.ID {
		t.Fatalf("authenticate failed: %v", err)
	}

	got.IsActive = false
	_ = m.Users.Update(ctx, got)
	if _, err := c.Authenticate(ctx, "alice@example.com", "secret-password"); !errors.Is(err, ErrInactiveAccount) {
		t.Fatalf("expected inactive account, got %v", err)
	}
}

func TestProfileAndPassword(t *testing.T) {
	c, m := newTestCore(t)
	ctx := context.Background()
	user := register(t, c, "alice", false)

	updated, err := c.UpdateProfile(ctx, user, ProfileInput{FirstName: ptr("Alice"), LastName: ptr("Smith"), Bio: ptr("hi")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	author, _ := m.Authors.GetByUserID(ctx, user.ID)
	if updated.Bio != "hi" || author.DisplayName != "Alice Smith" {
		t.Fatalf("profile not propagated: %+v %+v", updated, author)
	}

	_, err = c.UpdateProfile(ctx, user, ProfileInput{Avatar: ptr("not a url")})
	assertFieldError(t, err, "avatar")

	err = c.ChangePassword(ctx, user, "wrong", "another-password")
	assertFieldError(t, err, "old_password")
	if err := c.ChangePassword(ctx, user, "secret-password", "another-password"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Authenticate(ctx, "alice@example.com", "another-password"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}

	link, err := c.SaveSocialLink(ctx, user, SocialLinkInput{Platform: "github", URL: "https://github.com/alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.SaveSocialLink(ctx, user, SocialLinkInput{Platform: "github", URL: "https://github.com/alice2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	view, _ := c.GetAuthor(ctx, "alice")
	if len(view.SocialLinks) != 1 || view.SocialLinks[0].ID != link.ID || view.SocialLinks[0].URL != "https://github.com/alice2" {
		t.Fatalf("expected the link to be replaced, got %+v", view.SocialLinks)
	}
	if err := c.DeleteSocialLink(ctx, user, "github"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.DeleteSocialLink(ctx, user, "github"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// lateAuthors misses the first profile lookup, as if another request created
// the profile between our lookup and our insert.
type lateAuthors struct {
	data.Authors
	missed bool
}

func (a *lateAuthors) GetByUserID(ctx context.Context, userID int64) (*models.Author, error) {
	if !a.missed {
		a.missed = true
		return nil, data.ErrRecordNotFound
	}
	return a.Authors.GetByUserID(ctx, userID)
}

func TestEnsureAuthorReusesProfileCreatedConcurrently(t *testing.T) {
	c, m := newTestCore(t)
	ctx := context.Background()
	user := register(t, c, "alice", false)

	existing, err := c.ensureAuthor(ctx, user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.models.Authors = &lateAuthors{Authors: m.Authors}
	got, err := c.ensureAuthor(ctx, user)
	if err != nil {
		t.Fatalf("expected the existing profile, got %v", err)
	}
	if got.ID != existing.ID {
		t.Fatalf("expected author %d, got %d", existing.ID, got.ID)
	}
}

func TestEnsureAuthorFromParallelRequests(t *testing.T) {
	c, _ := newTestCore(t)
	ctx := context.Background()
	user := register(t, c, "alice", false)

	const workers = 8
	ids := make([]int64, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			author, err := c.ensureAuthor(ctx, user)
			errs[i] = err
			if err == nil {
				ids[i] = author.ID
			}
		}()
	}
	wg.Wait()

	for i := range workers {
		if errs[i] != nil {
			t.Fatalf("worker %d: unexpected error: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("expected one profile, got ids %v", ids)
		}
	}
}
