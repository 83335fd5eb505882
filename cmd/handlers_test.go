package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/siahsang/blogplatform/internal/auth"
	"github.com/siahsang/blogplatform/internal/config"
	"github.com/siahsang/blogplatform/internal/core"
	"github.com/siahsang/blogplatform/internal/data"
	"github.com/siahsang/blogplatform/internal/data/memory"
	"github.com/siahsang/blogplatform/internal/ratelimit"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	auth.PasswordCost = bcrypt.MinCost
}

type testServer struct {
	app     *application
	models  data.Models
	handler http.Handler
}

func generousRates() map[string]ratelimit.Rate {
	rates := ratelimit.DefaultRates()
	for scope := range rates {
		rates[scope] = ratelimit.Rate{Limit: 1000, Window: time.Minute}
	}
	return rates
}

func newTestServer(t *testing.T, rates map[string]ratelimit.Rate) *testServer {
	t.Helper()

	var cfg config.Config
	cfg.Env = "test"
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Issuer = "blogplatform-test"
	cfg.Throttle = rates
	cfg.Burst.RPS = 1000
	cfg.Burst.Burst = 1000

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	models := memory.New().Models()
	app := &application{
		config:  cfg,
		logger:  logger,
		core:    core.NewCore(models, logger),
		auth:    auth.New(auth.Options{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}),
		limiter: ratelimit.NewLimiter(ratelimit.NewMemoryStore(), rates),
		burst:   ratelimit.NewBurstStore(cfg.Burst.RPS, cfg.Burst.Burst),
	}
	return &testServer{app: app, models: models, handler: app.routes()}
}

func (s *testServer) do(t *testing.T, method, target string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		js, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(js)
	}

	r := httptest.NewRequest(method, target, reader)
	r.RemoteAddr = "192.0.2.1:1234"
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) map[string]any {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
	if w.Code == http.StatusNoContent {
		return nil
	}
	return decode(t, w)
}

// register signs up username and returns its access and refresh tokens.
func (s *testServer) register(t *testing.T, username string, staff bool) (string, string) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret-password",
	}, "")
	body := expectStatus(t, w, http.StatusCreated)

	if staff {
		user, err := s.models.Users.GetByUsername(context.Background(), username)
		if err != nil {
			t.Fatalf("load %s: %v", username, err)
		}
		user.IsStaff = true
		if err := s.models.Users.Update(context.Background(), user); err != nil {
			t.Fatalf("promote %s: %v", username, err)
		}
	}
	return body["access"].(string), body["refresh"].(string)
}

func (s *testServer) createPost(t *testing.T, token, title, status string) map[string]any {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/posts", map[string]any{
		"title":   title,
		"content": "Some content about " + title,
		"status":  status,
	}, token)
	return expectStatus(t, w, http.StatusCreated)
}

func TestHealthcheck(t *testing.T) {
	s := newTestServer(t, generousRates())
	body := expectStatus(t, s.do(t, http.MethodGet, "/healthz", nil, ""), http.StatusOK)
	if body["status"] != "available" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRegisterLoginAndProfile(t *testing.T) {
	s := newTestServer(t, generousRates())
	s.register(t, "alice", false)

	w := s.do(t, http.MethodPost, "/api/auth/token", map[string]string{
		"email":    "alice@example.com",
		"password": "secret-password",
	}, "")
	body := expectStatus(t, w, http.StatusOK)
	access := body["access"].(string)
	if user := body["user"].(map[string]any); user["last_login"] == nil {
		t.Fatalf("expected last login to be recorded, got %v", user)
	}

	body = expectStatus(t, s.do(t, http.MethodGet, "/api/auth/profile", nil, access), http.StatusOK)
	if body["username"] != "alice" {
		t.Fatalf("unexpected profile %v", body)
	}
	if body["author_profile"] == nil {
		t.Fatalf("expected the author profile created at registration")
	}

	body = expectStatus(t, s.do(t, http.MethodPatch, "/api/auth/profile", map[string]string{
		"first_name": "Alice",
		"last_name":  "Liddell",
	}, access), http.StatusOK)
	author := body["author_profile"].(map[string]any)
	if author["display_name"] != "Alice Liddell" {
		t.Fatalf("expected display name to follow the profile, got %v", author["display_name"])
	}

	body = expectStatus(t, s.do(t, http.MethodGet, "/api/auth/status", nil, access), http.StatusOK)
	if body["authenticated"] != true {
		t.Fatalf("expected authenticated status, got %v", body)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t, generousRates())
	s.register(t, "alice", false)

	w := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "al",
		"email":    "alice@example.com",
		"password": "short",
	}, "")
	body := expectStatus(t, w, http.StatusBadRequest)
	details := body["errorDetails"].(map[string]any)
	for _, field := range []string{"username", "password"} {
		if _, ok := details[field]; !ok {
			t.Fatalf("expected error on %s, got %v", field, details)
		}
	}

	w = s.do(t, http.MethodPost, "/api/auth/register", map[string]any{"username": "bob", "unknown": 1}, "")
	expectStatus(t, w, http.StatusBadRequest)
}

func TestAuthenticationErrors(t *testing.T) {
	s := newTestServer(t, generousRates())
	s.register(t, "alice", false)

	w := s.do(t, http.MethodGet, "/api/auth/profile", nil, "")
	expectStatus(t, w, http.StatusUnauthorized)
	if w.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Fatalf("expected WWW-Authenticate header")
	}

	expectStatus(t, s.do(t, http.MethodGet, "/api/posts", nil, "not-a-token"), http.StatusUnauthorized)

	r := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	r.Header.Set("Authorization", "Token abc")
	w = httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	expectStatus(t, w, http.StatusUnauthorized)

	w = s.do(t, http.MethodPost, "/api/auth/token", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	}, "")
	body := expectStatus(t, w, http.StatusBadRequest)
	if body["errorMessage"] != core.ErrInvalidCredentials.Error() {
		t.Fatalf("unexpected message %v", body["errorMessage"])
	}
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	s := newTestServer(t, generousRates())
	access, refresh := s.register(t, "alice", false)

	expectStatus(t, s.do(t, http.MethodPost, "/api/auth/token/verify", map[string]string{"token": access}, ""), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodPost, "/api/auth/token/refresh", map[string]string{"refresh": access}, ""), http.StatusUnauthorized)

	body := expectStatus(t, s.do(t, http.MethodPost, "/api/auth/token/refresh", map[string]string{"refresh": refresh}, ""), http.StatusOK)
	rotated := body["refresh"].(string)

	expectStatus(t, s.do(t, http.MethodPost, "/api/auth/token/refresh", map[string]string{"refresh": refresh}, ""), http.StatusUnauthorized)

	expectStatus(t, s.do(t, http.MethodPost, "/api/auth/logout", map[string]string{"refresh_token": rotated}, access), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodPost, "/api/auth/token/refresh", map[string]string{"refresh": rotated}, ""), http.StatusUnauthorized)
	expectStatus(t, s.do(t, http.MethodPost, "/api/auth/token/verify", map[string]string{"token": rotated}, ""), http.StatusUnauthorized)
}

func TestConcurrentRefreshSpendsTokenOnce(t *testing.T) {
	s := newTestServer(t, generousRates())
	_, refresh := s.register(t, "alice", false)

	const attempts = 8
	codes := make(chan int, attempts)
	var wg sync.WaitGroup
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- s.do(t, http.MethodPost, "/api/auth/token/refresh", map[string]string{"refresh": refresh}, "").Code
		}()
	}
	wg.Wait()
	close(codes)

	ok := 0
	for code := range codes {
		switch code {
		case http.StatusOK:
			ok++
		case http.StatusUnauthorized:
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one refresh to succeed, got %d", ok)
	}
}

func TestLogoutRejectsForeignRefreshToken(t *testing.T) {
	s := newTestServer(t, generousRates())
	access, _ := s.register(t, "alice", false)
	_, bobRefresh := s.register(t, "bob", false)

	expectStatus(t, s.do(t, http.MethodPost, "/api/auth/logout", map[string]string{"refresh_token": bobRefresh}, access), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodPost, "/api/auth/token/refresh", map[string]string{"refresh": bobRefresh}, ""), http.StatusOK)
}

func TestPostVisibilityAndOwnership(t *testing.T) {
	s := newTestServer(t, generousRates())
	alice, _ := s.register(t, "alice", false)
	bob, _ := s.register(t, "bob", false)
	staff, _ := s.register(t, "editor", true)

	post := s.createPost(t, alice, "Hello World", "draft")
	if post["slug"] != "hello-world" || post["published_at"] != nil {
		t.Fatalf("unexpected draft %v", post)
	}

	expectStatus(t, s.do(t, http.MethodGet, "/api/posts/hello-world", nil, ""), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodGet, "/api/posts/hello-world", nil, staff), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodPatch, "/api/posts/hello-world", map[string]string{"title": "Mine"}, bob), http.StatusNotFound)

	body := expectStatus(t, s.do(t, http.MethodPatch, "/api/posts/hello-world", map[string]string{"status": "published"}, alice), http.StatusOK)
	if body["published_at"] == nil {
		t.Fatalf("expected published_at to be set")
	}
	if seo := body["seo"].(map[string]any); seo["metaTitle"] != "Hello World" {
		t.Fatalf("expected default meta title, got %v", seo)
	}

	expectStatus(t, s.do(t, http.MethodGet, "/api/posts/hello-world", nil, ""), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodPatch, "/api/posts/hello-world", map[string]string{"title": "Mine"}, bob), http.StatusForbidden)
	expectStatus(t, s.do(t, http.MethodDelete, "/api/posts/hello-world", nil, ""), http.StatusUnauthorized)
	expectStatus(t, s.do(t, http.MethodDelete, "/api/posts/hello-world", nil, staff), http.StatusNoContent)
	expectStatus(t, s.do(t, http.MethodGet, "/api/posts/hello-world", nil, staff), http.StatusNotFound)
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var out []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestFeaturedAndRecentPosts(t *testing.T) {
	s := newTestServer(t, generousRates())
	alice, _ := s.register(t, "alice", false)

	for i := range 12 {
		s.createPost(t, alice, "Story "+strconv.Itoa(i), "published")
	}
	s.createPost(t, alice, "Unfinished", "draft")
	expectStatus(t, s.do(t, http.MethodPatch, "/api/posts/story-3", map[string]string{
		"featured_image": "https://example.com/cover.png",
	}, alice), http.StatusOK)

	recent := decodeList(t, s.do(t, http.MethodGet, "/api/posts/recent", nil, ""))
	if len(recent) != 10 {
		t.Fatalf("expected 10 recent posts, got %d", len(recent))
	}
	for _, p := range recent {
		if p["slug"] == "unfinished" {
			t.Fatalf("expected drafts to stay out of the recent list")
		}
	}

	featured := decodeList(t, s.do(t, http.MethodGet, "/api/posts/featured", nil, ""))
	if len(featured) != 1 || featured[0]["slug"] != "story-3" {
		t.Fatalf("expected only the post with a featured image, got %v", featured)
	}

	body := expectStatus(t, s.do(t, http.MethodPost, "/api/posts", map[string]string{
		"title": "Anything", "content": "Body", "slug": "recent",
	}, alice), http.StatusBadRequest)
	if details := body["errorDetails"].(map[string]any); details["slug"] == nil {
		t.Fatalf("expected a slug error, got %v", details)
	}
	post := s.createPost(t, alice, "Featured", "published")
	if post["slug"] != "featured-2" {
		t.Fatalf("expected the generated slug to avoid the action name, got %v", post["slug"])
	}
}

func TestPostListPagination(t *testing.T) {
	s := newTestServer(t, generousRates())
	alice, _ := s.register(t, "alice", false)
	for _, title := range []string{"First", "Second", "Third"} {
		s.createPost(t, alice, title, "published")
	}
	s.createPost(t, alice, "Hidden", "draft")

	body := expectStatus(t, s.do(t, http.MethodGet, "/api/posts?page_size=2&ordering=title", nil, ""), http.StatusOK)
	if body["count"] != float64(3) || body["total_pages"] != float64(2) || body["page"] != float64(1) {
		t.Fatalf("unexpected envelope %v", body)
	}
	if body["previous"] != nil {
		t.Fatalf("expected no previous link, got %v", body["previous"])
	}
	next, _ := body["next"].(string)
	if !strings.Contains(next, "page=2") || !strings.Contains(next, "ordering=title") {
		t.Fatalf("unexpected next link %q", next)
	}
	results := body["results"].([]any)
	if len(results) != 2 || results[0].(map[string]any)["title"] != "First" {
		t.Fatalf("unexpected results %v", results)
	}

	body = expectStatus(t, s.do(t, http.MethodGet, "/api/posts?page=5", nil, ""), http.StatusNotFound)
	if body["errorMessage"] != "Invalid page." {
		t.Fatalf("unexpected message %v", body["errorMessage"])
	}

	body = expectStatus(t, s.do(t, http.MethodGet, "/api/posts?ordering=bogus&page=x", nil, ""), http.StatusBadRequest)
	details := body["errorDetails"].(map[string]any)
	if details["ordering"] == nil || details["page"] == nil {
		t.Fatalf("expected ordering and page errors, got %v", details)
	}
}

func TestCommentModeration(t *testing.T) {
	s := newTestServer(t, generousRates())
	alice, _ := s.register(t, "alice", false)
	staff, _ := s.register(t, "editor", true)
	post := s.createPost(t, alice, "Hello World", "published")

	body := expectStatus(t, s.do(t, http.MethodPost, "/api/comments", map[string]any{
		"post":    post["id"],
		"author":  "Reader",
		"email":   "Reader@Example.com",
		"content": "Nice post",
		"status":  "approved",
	}, ""), http.StatusCreated)
	if body["status"] != "pending" || body["email"] != "reader@example.com" {
		t.Fatalf("unexpected comment %v", body)
	}
	id := int64(body["id"].(float64))
	commentPath := "/api/comments/" + strconv.FormatInt(id, 10)

	page := expectStatus(t, s.do(t, http.MethodGet, "/api/posts/hello-world/comments", nil, ""), http.StatusOK)
	if page["count"] != float64(0) {
		t.Fatalf("expected pending comment to be hidden, got %v", page)
	}
	expectStatus(t, s.do(t, http.MethodGet, commentPath, nil, ""), http.StatusNotFound)

	expectStatus(t, s.do(t, http.MethodPost, commentPath+"/approve", nil, alice), http.StatusForbidden)
	expectStatus(t, s.do(t, http.MethodPost, commentPath+"/approve", nil, ""), http.StatusUnauthorized)

	body = expectStatus(t, s.do(t, http.MethodPost, commentPath+"/approve", nil, staff), http.StatusOK)
	if body["status"] != "approved" {
		t.Fatalf("expected approved, got %v", body["status"])
	}

	body = expectStatus(t, s.do(t, http.MethodPost, commentPath+"/reject", nil, staff), http.StatusBadRequest)
	if body["errorDetails"].(map[string]any)["status"] == nil {
		t.Fatalf("expected status error, got %v", body)
	}

	detail := expectStatus(t, s.do(t, http.MethodGet, "/api/posts/hello-world", nil, ""), http.StatusOK)
	if detail["comments_count"] != float64(1) {
		t.Fatalf("expected one approved comment, got %v", detail["comments_count"])
	}

	expectStatus(t, s.do(t, http.MethodPost, commentPath+"/reset", nil, staff), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodDelete, commentPath, nil, staff), http.StatusNoContent)
}

func TestCommentRequiresPublishedPost(t *testing.T) {
	s := newTestServer(t, generousRates())
	alice, _ := s.register(t, "alice", false)
	draft := s.createPost(t, alice, "Draft", "draft")

	body := expectStatus(t, s.do(t, http.MethodPost, "/api/comments", map[string]any{
		"post":    draft["id"],
		"author":  "Reader",
		"email":   "reader@example.com",
		"content": "Hi",
	}, ""), http.StatusBadRequest)
	if body["errorDetails"].(map[string]any)["post"] == nil {
		t.Fatalf("expected post error, got %v", body)
	}

	expectStatus(t, s.do(t, http.MethodPost, "/api/comments", map[string]any{
		"post":    "abc",
		"author":  "Reader",
		"email":   "reader@example.com",
		"content": "Hi",
	}, ""), http.StatusBadRequest)
}

func TestSearch(t *testing.T) {
	s := newTestServer(t, generousRates())
	alice, _ := s.register(t, "alice", false)
	s.createPost(t, alice, "Go Concurrency", "published")
	s.createPost(t, alice, "Go Drafts", "draft")
	s.createPost(t, alice, "Rust Ownership", "published")

	body := expectStatus(t, s.do(t, http.MethodGet, "/api/search", nil, ""), http.StatusOK)
	if body["count"] != float64(0) || len(body["results"].([]any)) != 0 {
		t.Fatalf("expected an empty page without terms, got %v", body)
	}

	body = expectStatus(t, s.do(t, http.MethodGet, "/api/search?q=go", nil, alice), http.StatusOK)
	if body["count"] != float64(1) {
		t.Fatalf("expected only the published match, got %v", body)
	}
}

func TestThrottledLogin(t *testing.T) {
	rates := generousRates()
	rates[ratelimit.ScopeLogin] = ratelimit.Rate{Limit: 2, Window: time.Minute}
	s := newTestServer(t, rates)

	credentials := map[string]string{"email": "nobody@example.com", "password": "whatever-password"}
	for i := 0; i < 2; i++ {
		w := s.do(t, http.MethodPost, "/api/auth/token", credentials, "")
		expectStatus(t, w, http.StatusBadRequest)
		if w.Header().Get("X-RateLimit-Limit") != "2" {
			t.Fatalf("expected rate limit headers, got %v", w.Header())
		}
	}

	w := s.do(t, http.MethodPost, "/api/auth/token", credentials, "")
	expectStatus(t, w, http.StatusTooManyRequests)
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	// other scopes keep their own windows
	expectStatus(t, s.do(t, http.MethodGet, "/api/search?q=x", nil, ""), http.StatusOK)
}

func TestCategoriesAndTags(t *testing.T) {
	s := newTestServer(t, generousRates())
	alice, _ := s.register(t, "alice", false)
	staff, _ := s.register(t, "editor", true)

	expectStatus(t, s.do(t, http.MethodPost, "/api/categories", map[string]string{"name": "Technology"}, alice), http.StatusForbidden)

	body := expectStatus(t, s.do(t, http.MethodPost, "/api/categories", map[string]string{"name": "Technology"}, staff), http.StatusCreated)
	if body["slug"] != "technology" || body["color"] != core.DefaultCategoryColor {
		t.Fatalf("unexpected category %v", body)
	}
	body = expectStatus(t, s.do(t, http.MethodPost, "/api/categories", map[string]string{"name": "Technology"}, staff), http.StatusCreated)
	if body["slug"] != "technology-2" {
		t.Fatalf("expected suffixed slug, got %v", body["slug"])
	}
	expectStatus(t, s.do(t, http.MethodPost, "/api/categories", map[string]string{"name": "Tech", "slug": "technology"}, staff), http.StatusBadRequest)

	body = expectStatus(t, s.do(t, http.MethodPatch, "/api/categories/technology", map[string]string{"color": "#000000"}, staff), http.StatusOK)
	if body["color"] != "#000000" {
		t.Fatalf("expected color update, got %v", body)
	}

	expectStatus(t, s.do(t, http.MethodPost, "/api/tags", map[string]string{"name": "Go"}, staff), http.StatusCreated)
	w := s.do(t, http.MethodPost, "/api/posts", map[string]any{
		"title":    "Tagged",
		"content":  "content",
		"status":   "published",
		"category": "technology",
		"tags":     []string{"go"},
	}, alice)
	expectStatus(t, w, http.StatusCreated)

	for _, path := range []string{"/api/categories/technology/posts", "/api/tags/go/posts", "/api/authors/alice/posts"} {
		body = expectStatus(t, s.do(t, http.MethodGet, path, nil, ""), http.StatusOK)
		if body["count"] != float64(1) {
			t.Fatalf("%s: expected one post, got %v", path, body)
		}
	}
	expectStatus(t, s.do(t, http.MethodGet, "/api/categories/missing/posts", nil, ""), http.StatusNotFound)

	expectStatus(t, s.do(t, http.MethodDelete, "/api/categories/technology", nil, staff), http.StatusNoContent)
	detail := expectStatus(t, s.do(t, http.MethodGet, "/api/posts/tagged", nil, ""), http.StatusOK)
	if detail["category"] != nil {
		t.Fatalf("expected post to be uncategorised, got %v", detail["category"])
	}
}

func TestRouterErrors(t *testing.T) {
	s := newTestServer(t, generousRates())
	expectStatus(t, s.do(t, http.MethodGet, "/nope", nil, ""), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodPut, "/api/posts", nil, ""), http.StatusMethodNotAllowed)
}

func TestRecoverPanic(t *testing.T) {
	s := newTestServer(t, generousRates())
	h := s.app.recoverPanic(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	expectStatus(t, w, http.StatusInternalServerError)
	if w.Header().Get("Connection") != "close" {
		t.Fatalf("expected Connection: close")
	}
}
