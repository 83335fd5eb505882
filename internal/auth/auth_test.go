package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	PasswordCost = bcrypt.MinCost
}

func newTestAuth() *Auth {
	return New(Options{Secret: "test-secret", Issuer: "blog"})
}

func testUser() *User {
	return &User{ID: 7, Email: "jane@example.com", Username: "jane", IsActive: true}
}

func TestPasswordRoundTrip(t *testing.T) {
	u := testUser()
	if err := u.SetPassword("correct horse"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(u.Password) == "correct horse" {
		t.Fatalf("password stored in plaintext")
	}

	ok, err := u.IsPasswordMatch("correct horse")
	if err != nil || !ok {
		t.Fatalf("expected match, got %v %v", ok, err)
	}
	ok, err = u.IsPasswordMatch("wrong")
	if err != nil || ok {
		t.Fatalf("expected mismatch, got %v %v", ok, err)
	}
}

func TestIssuePairAndAuthenticate(t *testing.T) {
	a := newTestAuth()
	pair, err := a.IssuePair(testUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claim, err := a.Authenticate(pair.Access)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claim.UserID != 7 || claim.Email != "jane@example.com" || claim.TokenType != AccessToken {
		t.Fatalf("unexpected claim %+v", claim)
	}
	if claim.ID == "" {
		t.Fatalf("expected jti to be set")
	}

	if _, err := a.Authenticate(pair.Refresh); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected refresh token to be refused as access token, got %v", err)
	}
	if _, err := a.ParseRefresh(context.Background(), pair.Access); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected access token to be refused as refresh token, got %v", err)
	}
}

func TestAuthenticateRejectsForeignSignature(t *testing.T) {
	pair, _ := New(Options{Secret: "other"}).IssuePair(testUser())
	if _, err := newTestAuth().Authenticate(pair.Access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestExpiredTokenIsInvalid(t *testing.T) {
	a := newTestAuth()
	a.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	pair, _ := a.IssuePair(testUser())

	a.now = time.Now
	if _, err := a.Authenticate(pair.Access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be invalid, got %v", err)
	}
}

func TestRevokeBlocksRefresh(t *testing.T) {
	a := newTestAuth()
	ctx := context.Background()
	pair, _ := a.IssuePair(testUser())

	claim, err := a.ParseRefresh(ctx, pair.Refresh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Revoke(ctx, claim); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = a.ParseRefresh(ctx, pair.Refresh)
	if !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked token, got %v", err)
	}
	if !IsTokenError(err) {
		t.Fatalf("expected revoked error to be a token error")
	}
}

func TestMemoryBlacklistExpires(t *testing.T) {
	b := NewMemoryBlacklist()
	now := time.Now()
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Revoke(ctx, "a", now.Add(time.Minute))
	_ = b.Revoke(ctx, "b", now.Add(-time.Minute))

	if revoked, _ := b.IsRevoked(ctx, "a"); !revoked {
		t.Fatalf("expected a to be revoked")
	}
	if removed := b.Purge(); removed != 1 {
		t.Fatalf("expected one purged entry, got %d", removed)
	}
	if revoked, _ := b.IsRevoked(ctx, "b"); revoked {
		t.Fatalf("expected b to have lapsed")
	}
}

func TestRedisBlacklist(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	b := NewRedisBlacklist(rdb)
	ctx := context.Background()
	if err := b.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if revoked, err := b.IsRevoked(ctx, "jti-1"); err != nil || !revoked {
		t.Fatalf("expected revoked, got %v %v", revoked, err)
	}
	if revoked, _ := b.IsRevoked(ctx, "jti-2"); revoked {
		t.Fatalf("expected unknown jti not to be revoked")
	}

	mr.FastForward(2 * time.Hour)
	if revoked, _ := b.IsRevoked(ctx, "jti-1"); revoked {
		t.Fatalf("expected entry to expire with the token")
	}
}

func TestBlacklistRevokeIsSingleUse(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	blacklists := map[string]Blacklist{
		"memory": NewMemoryBlacklist(),
		"redis":  NewRedisBlacklist(rdb),
	}
	for name, b := range blacklists {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			until := time.Now().Add(time.Hour)

			var claimed, rejected atomic.Int32
			var wg sync.WaitGroup
			for range 16 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := b.Revoke(ctx, "jti-once", until)
					switch {
					case err == nil:
						claimed.Add(1)
					case errors.Is(err, ErrTokenRevoked):
						rejected.Add(1)
					}
				}()
			}
			wg.Wait()

			if claimed.Load() != 1 || rejected.Load() != 15 {
				t.Fatalf("expected one claim and 15 rejections, got %d and %d", claimed.Load(), rejected.Load())
			}
		})
	}
}

func TestMemoryBlacklistReclaimsLapsedEntry(t *testing.T) {
	b := NewMemoryBlacklist()
	now := time.Now()
	b.now = func() time.Time { return now }
	ctx := context.Background()

	if err := b.Revoke(ctx, "a", now.Add(-time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Revoke(ctx, "a", now.Add(time.Minute)); err != nil {
		t.Fatalf("expected lapsed entry to be replaceable, got %v", err)
	}
	if err := b.Revoke(ctx, "a", now.Add(time.Minute)); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected second claim to fail, got %v", err)
	}
}

func TestRequestContextUser(t *testing.T) {
	a := newTestAuth()
	r := httptest.NewRequest("GET", "/", nil)
	if a.IsUserAuthenticated(r) {
		t.Fatalf("expected anonymous request")
	}
	r = a.SetAuthenticatedUser(r, testUser())
	u, err := a.GetAuthenticatedUser(r)
	if err != nil || u.Username != "jane" {
		t.Fatalf("unexpected user %v %v", u, err)
	}
}

func TestDisplayName(t *testing.T) {
	u := &User{Username: "jdoe"}
	if u.DisplayName() != "jdoe" {
		t.Fatalf("expected username fallback")
	}
	u.FirstName, u.LastName = "Jane", "Doe"
	if u.DisplayName() != "Jane Doe" {
		t.Fatalf("unexpected display name %q", u.DisplayName())
	}
}
