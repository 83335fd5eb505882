package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestParseRate(t *testing.T) {
	cases := map[string]Rate{
		"5/min":    {Limit: 5, Window: time.Minute},
		"3/m":      {Limit: 3, Window: time.Minute},
		"10/hour":  {Limit: 10, Window: time.Hour},
		"50/h":     {Limit: 50, Window: time.Hour},
		"2/second": {Limit: 2, Window: time.Second},
		"1000/day": {Limit: 1000, Window: 24 * time.Hour},
	}
	for in, want := range cases {
		got, err := ParseRate(in)
		if err != nil {
			t.Fatalf("ParseRate(%q): unexpected error %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseRate(%q) = %v, want %v", in, got, want)
		}
	}

	for _, bad := range []string{"", "5", "x/min", "0/min", "5/week", "5/"} {
		if _, err := ParseRate(bad); err == nil {
			t.Fatalf("expected ParseRate(%q) to fail", bad)
		}
	}
}

func TestParseRateRejectsUnknownPeriodWords(t *testing.T) {
	for _, bad := range []string{"5/month", "5/mango", "5/hours", "5/daily", "5/seconds", "5/ms"} {
		_, err := ParseRate(bad)
		if !errors.Is(err, ErrInvalidRate) {
			t.Fatalf("ParseRate(%q): expected ErrInvalidRate, got %v", bad, err)
		}
	}
	if got, err := ParseRate(" 4 / Minute "); err != nil || got != (Rate{Limit: 4, Window: time.Minute}) {
		t.Fatalf("expected case and spacing to be ignored, got %v %v", got, err)
	}
}

func TestLimiter_AllowAllowDenyThenWindowResets(t *testing.T) {
	clock := newClock()
	l := NewLimiter(NewMemoryStore(WithClock(clock.Now)), map[string]Rate{
		ScopeLogin: {Limit: 2, Window: time.Minute},
	})
	ctx := context.Background()

	want := []bool{true, true, false}
	for i, w := range want {
		d, err := l.Allow(ctx, ScopeLogin, "ip:1.2.3.4")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.Allowed != w {
			t.Fatalf("call %d: expected allowed=%v", i+1, w)
		}
	}

	clock.Advance(time.Minute)
	d, _ := l.Allow(ctx, ScopeLogin, "ip:1.2.3.4")
	if !d.Allowed {
		t.Fatalf("expected allow after window elapsed")
	}
}

func TestLimiter_RejectedAttemptsDoNotExtendWindow(t *testing.T) {
	clock := newClock()
	l := NewLimiter(NewMemoryStore(WithClock(clock.Now)), map[string]Rate{
		ScopeLogin: {Limit: 1, Window: time.Minute},
	})
	ctx := context.Background()

	l.Allow(ctx, ScopeLogin, "u")
	for i := 0; i < 5; i++ {
		clock.Advance(10 * time.Second)
		d, _ := l.Allow(ctx, ScopeLogin, "u")
		if d.Allowed {
			t.Fatalf("expected deny inside window")
		}
		if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
			t.Fatalf("unexpected retry after %v", d.RetryAfter)
		}
	}

	clock.Advance(10 * time.Second)
	if d, _ := l.Allow(ctx, ScopeLogin, "u"); !d.Allowed {
		t.Fatalf("expected window to end one minute after the first hit")
	}
}

func TestLimiter_ScopesAndIdentitiesAreIndependent(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), map[string]Rate{
		ScopeLogin:  {Limit: 1, Window: time.Minute},
		ScopeSearch: {Limit: 1, Window: time.Minute},
	})
	ctx := context.Background()

	if d, _ := l.Allow(ctx, ScopeLogin, "a"); !d.Allowed {
		t.Fatalf("expected first login allowed")
	}
	if d, _ := l.Allow(ctx, ScopeSearch, "a"); !d.Allowed {
		t.Fatalf("expected search to have its own counter")
	}
	if d, _ := l.Allow(ctx, ScopeLogin, "b"); !d.Allowed {
		t.Fatalf("expected other identity to have its own counter")
	}
	if d, _ := l.Allow(ctx, "unknown", "a"); !d.Allowed {
		t.Fatalf("expected unknown scope to be unthrottled")
	}
}

func TestLimiter_ConcurrentChecksAdmitExactlyLimit(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), map[string]Rate{ScopeComment: {Limit: 10, Window: time.Hour}})

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d, _ := l.Allow(context.Background(), ScopeComment, "ip:9.9.9.9"); d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if allowed.Load() != 10 {
		t.Fatalf("expected exactly 10 admitted, got %d", allowed.Load())
	}
}

func TestMemoryStore_CleanupDropsExpired(t *testing.T) {
	clock := newClock()
	s := NewMemoryStore(WithClock(clock.Now), WithCleanupEvery(0))
	s.Incr(context.Background(), "a", time.Second)
	s.Incr(context.Background(), "b", time.Hour)

	clock.Advance(2 * time.Second)
	s.Cleanup()

	if s.Len() != 1 {
		t.Fatalf("expected one live counter, got %d", s.Len())
	}
}

func TestRedisStore_WindowAndCounts(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	l := NewLimiter(NewRedisStore(rdb), map[string]Rate{ScopeLogin: {Limit: 2, Window: time.Minute}})
	ctx := context.Background()

	for i, want := range []bool{true, true, false} {
		d, err := l.Allow(ctx, ScopeLogin, "ip:1.1.1.1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.Allowed != want {
			t.Fatalf("call %d: expected allowed=%v", i+1, want)
		}
	}

	if ttl := mr.TTL("throttle:login:ip:1.1.1.1"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected key ttl %v", ttl)
	}

	mr.FastForward(time.Minute)
	if d, _ := l.Allow(ctx, ScopeLogin, "ip:1.1.1.1"); !d.Allowed {
		t.Fatalf("expected allow after expiry")
	}
}

func TestRedisStore_ErrorFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	l := NewLimiter(NewRedisStore(rdb), DefaultRates())
	d, err := l.Allow(context.Background(), ScopeLogin, "x")
	if err == nil {
		t.Fatalf("expected store error")
	}
	if !d.Allowed {
		t.Fatalf("expected fail open on store error")
	}
}

func TestBurstStore_LowBurstRejectsSecondImmediateAllow(t *testing.T) {
	s := NewBurstStore(0.02, 1)

	if !s.Allow("k") {
		t.Fatalf("expected first Allow to be true")
	}
	if s.Allow("k") {
		t.Fatalf("expected second immediate Allow to be false (burst=1)")
	}
	if !s.Allow("other") {
		t.Fatalf("expected other key to have its own bucket")
	}
}

func TestBurstStore_CleanupRemovesIdleEntries(t *testing.T) {
	s := NewBurstStore(10, 1, WithIdleTTL(2*time.Millisecond), WithBurstCleanupEvery(0))

	before := s.Get("k")
	time.Sleep(4 * time.Millisecond)

	s.Cleanup()

	after := s.Get("k")
	if before == after {
		t.Fatalf("expected limiter to be recreated after cleanup")
	}
}
