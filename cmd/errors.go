package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/blogplatform/internal/core"
	"github.com/siahsang/blogplatform/internal/filter"
	"github.com/siahsang/blogplatform/internal/ratelimit"
)

type AppError struct {
	ErrorStack   error
	ErrorMessage string
	ErrorDetails map[string]string
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, appError *AppError) {
	if appError.ErrorMessage == "" {
		appError.ErrorMessage = "Invalid input."
	}
	app.errorResponse(w, r, http.StatusBadRequest, appError)
}

func (app *application) authenticationRequiredResponse(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	app.errorResponse(w, r, http.StatusUnauthorized, &AppError{
		ErrorMessage: "Authentication credentials were not provided.",
	})
}

func (app *application) invalidAuthenticationTokenResponse(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	app.errorResponse(w, r, http.StatusUnauthorized, &AppError{
		ErrorStack:   err,
		ErrorMessage: "Given token not valid for any token type",
	})
}

func (app *application) forbiddenResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusForbidden, &AppError{
		ErrorMessage: core.ErrForbidden.Error(),
	})
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusNotFound, &AppError{
		ErrorMessage: "The requested resource could not be found.",
	})
}

func (app *application) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusMethodNotAllowed, &AppError{
		ErrorMessage: fmt.Sprintf("Method %q not allowed.", r.Method),
	})
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request, d ratelimit.Decision) {
	message := "Request was throttled."
	if d.RetryAfter > 0 {
		seconds := int(math.Ceil(d.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		message = fmt.Sprintf("Request was throttled. Expected available in %d seconds.", seconds)
	}
	app.errorResponse(w, r, http.StatusTooManyRequests, &AppError{ErrorMessage: message})
}

func (app *application) internalErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusInternalServerError, &AppError{ErrorStack: err,
		ErrorMessage: "An internal server error occurred.",
	})
}

// coreErrorResponse maps errors returned by core onto HTTP responses.
func (app *application) coreErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *core.ValidationError
	switch {
	case errors.As(err, &validationErr):
		app.badRequestResponse(w, r, &AppError{ErrorDetails: validationErr.Fields})
	case errors.Is(err, core.ErrNotFound):
		app.notFoundResponse(w, r)
	case errors.Is(err, filter.ErrInvalidPage):
		app.errorResponse(w, r, http.StatusNotFound, &AppError{ErrorMessage: filter.ErrInvalidPage.Error()})
	case errors.Is(err, core.ErrForbidden):
		app.forbiddenResponse(w, r)
	case errors.Is(err, core.ErrInvalidCredentials):
		app.badRequestResponse(w, r, &AppError{ErrorMessage: core.ErrInvalidCredentials.Error()})
	case errors.Is(err, core.ErrInactiveAccount):
		app.badRequestResponse(w, r, &AppError{ErrorMessage: core.ErrInactiveAccount.Error()})
	default:
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) errorResponse(w http.ResponseWriter, r *http.Request, status int, appError *AppError) {
	errorDetails := map[string]any{
		"errorMessage": appError.ErrorMessage,
		"errorDetails": appError.ErrorDetails,
	}

	var attrs []slog.Attr
	attrs = append(attrs, slog.String("request_url", r.URL.String()))
	attrs = append(attrs, slog.String("request_method", r.Method))
	attrs = append(attrs, slog.Int("status", status))
	if appError.ErrorStack != nil {
		attrs = append(attrs, slog.String("stack", xerrors.Sprint(appError.ErrorStack)))
	}

	for key, valueData := range appError.ErrorDetails {
		attrs = append(attrs, slog.Any(key, valueData))
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	app.logger.LogAttrs(r.Context(), level, "Error in handling request", attrs...)

	err := app.writeJSON(w, status, errorDetails, nil)
	if err != nil {
		app.logger.Error(err.Error())
		w.WriteHeader(http.StatusInternalServerError)
	}
}
