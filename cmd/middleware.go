package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/blogplatform/internal/core"
	"github.com/siahsang/blogplatform/internal/web"
)

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.internalErrorResponse(w, r, xerrors.New(fmt.Sprintf("%v", err)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (app *application) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// logRequest attaches the request info used by later middleware and logs
// one line per request once it completes.
func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := web.RequestInfo{
			ClientIP:  web.ClientIP(r, app.config.TrustProxy),
			StartedAt: time.Now(),
		}
		r = web.SetRequestInfo(r, info)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		app.logger.Info("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"client_ip", info.ClientIP,
			"status", rec.status,
			"duration", time.Since(info.StartedAt).String(),
		)
	})
}

func (app *application) clientIP(r *http.Request) string {
	if info, ok := web.GetRequestInfo(r); ok {
		return info.ClientIP
	}
	return web.ClientIP(r, app.config.TrustProxy)
}

// burstLimit smooths request spikes per client address, independently of
// the per-scope throttles.
func (app *application) burstLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !app.burst.Allow(app.clientIP(r)) {
			app.errorResponse(w, r, http.StatusTooManyRequests, &AppError{
				ErrorMessage: "Request was throttled.",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (app *application) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Authorization")

		authorization := r.Header.Get("Authorization")
		if authorization == "" {
			next.ServeHTTP(w, r)
			return
		}

		scheme, token, found := strings.Cut(authorization, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			app.invalidAuthenticationTokenResponse(w, r, xerrors.New("authorization header must be in the format 'Bearer <token>'"))
			return
		}

		claim, err := app.auth.Authenticate(strings.TrimSpace(token))
		if err != nil {
			app.invalidAuthenticationTokenResponse(w, r, err)
			return
		}

		user, err := app.core.GetUser(r.Context(), claim.UserID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				app.invalidAuthenticationTokenResponse(w, r, err)
				return
			}
			app.internalErrorResponse(w, r, err)
			return
		}
		if !user.IsActive {
			app.invalidAuthenticationTokenResponse(w, r, core.ErrInactiveAccount)
			return
		}

		next.ServeHTTP(w, app.auth.SetAuthenticatedUser(r, user))
	})
}

func (app *application) requireAuthenticatedUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !app.auth.IsUserAuthenticated(r) {
			app.authenticationRequiredResponse(w, r)
			return
		}
		next(w, r)
	}
}

func (app *application) requireStaff(next http.HandlerFunc) http.HandlerFunc {
	return app.requireAuthenticatedUser(func(w http.ResponseWriter, r *http.Request) {
		if user := app.viewer(r); !user.IsStaff {
			app.forbiddenResponse(w, r)
			return
		}
		next(w, r)
	})
}

// throttle applies the fixed window of scope, keyed by user for
// authenticated callers and by client address otherwise. Limiter failures
// let the request through.
func (app *application) throttle(scope string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := "ip:" + app.clientIP(r)
		if user := app.viewer(r); user != nil {
			identity = "user:" + strconv.FormatInt(user.ID, 10)
		}

		decision, err := app.limiter.Allow(r.Context(), scope, identity)
		if err != nil {
			app.logger.Error("Rate limiter unavailable", "scope", scope, "stack", xerrors.Sprint(err))
			next(w, r)
			return
		}
		if decision.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		}
		if !decision.Allowed {
			app.rateLimitExceededResponse(w, r, decision)
			return
		}
		next(w, r)
	}
}
