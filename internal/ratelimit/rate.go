package ratelimit

import (
	"strconv"
	"strings"
	"time"

	"github.com/mdobak/go-xerrors"
)

const (
	ScopeLogin    = "login"
	ScopeRegister = "register"
	ScopeComment  = "comment"
	ScopeSearch   = "search"
)

var ErrInvalidRate = xerrors.Message("invalid rate")

// Rate allows Limit requests per Window.
type Rate struct {
	Limit  int
	Window time.Duration
}

func (r Rate) String() string {
	return strconv.Itoa(r.Limit) + "/" + r.Window.String()
}

// DefaultRates are the per-scope limits used unless configured otherwise.
func DefaultRates() map[string]Rate {
	return map[string]Rate{
		ScopeLogin:    {Limit: 5, Window: time.Minute},
		ScopeRegister: {Limit: 3, Window: time.Minute},
		ScopeComment:  {Limit: 10, Window: time.Hour},
		ScopeSearch:   {Limit: 50, Window: time.Hour},
	}
}

var periods = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "second": time.Second,
	"m": time.Minute, "min": time.Minute, "minute": time.Minute,
	"h": time.Hour, "hour": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour,
}

// ParseRate reads "<count>/<period>" where period is one of s, sec, second,
// m, min, minute, h, hour, d or day.
func ParseRate(s string) (Rate, error) {
	num, period, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Rate{}, xerrors.Newf("%w: %q", ErrInvalidRate, s)
	}
	limit, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil || limit < 1 {
		return Rate{}, xerrors.Newf("%w: %q", ErrInvalidRate, s)
	}
	window, ok := periods[strings.ToLower(strings.TrimSpace(period))]
	if !ok {
		return Rate{}, xerrors.Newf("%w: %q", ErrInvalidRate, s)
	}
	return Rate{Limit: limit, Window: window}, nil
}
