package ratelimit

import (
	"context"
	"time"

	"github.com/mdobak/go-xerrors"
)

// Decision is the outcome of one throttle check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter enforces per-scope fixed windows. Every check counts, including
// rejected ones, but only the first check of a window arms its expiry: a
// client that keeps hammering stays blocked until the original window ends
// and no longer.
type Limiter struct {
	store  CounterStore
	rates  map[string]Rate
	prefix string
}

func NewLimiter(store CounterStore, rates map[string]Rate) *Limiter {
	return &Limiter{
		store:  store,
		rates:  rates,
		prefix: "throttle",
	}
}

// Allow counts one request of identity against scope. Unknown scopes are not
// throttled. On store failure the request is allowed and the error returned
// so the caller can log it.
func (l *Limiter) Allow(ctx context.Context, scope, identity string) (Decision, error) {
	rate, ok := l.rates[scope]
	if !ok {
		return Decision{Allowed: true}, nil
	}

	count, ttl, err := l.store.Incr(ctx, l.prefix+":"+scope+":"+identity, rate.Window)
	if err != nil {
		return Decision{Allowed: true, Limit: rate.Limit}, xerrors.New(err)
	}

	d := Decision{
		Allowed:   count <= int64(rate.Limit),
		Limit:     rate.Limit,
		Remaining: max(rate.Limit-int(count), 0),
	}
	if !d.Allowed {
		d.RetryAfter = ttl
	}
	return d, nil
}
