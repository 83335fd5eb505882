package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/blogplatform/internal/auth"
	"github.com/siahsang/blogplatform/internal/filter"
	"github.com/siahsang/blogplatform/internal/utils/functional"
	"github.com/siahsang/blogplatform/internal/validator"
)

type envelope map[string]any

func (app *application) readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	const maxBytes = 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {

		var (
			syntaxError           *json.SyntaxError
			unmarshalTypeError    *json.UnmarshalTypeError
			invalidUnmarshalError *json.InvalidUnmarshalError
			maxBytesError         *http.MaxBytesError
		)

		switch {
		case errors.As(err, &syntaxError):
			return xerrors.Newf("body contains badly-formed JSON at (character %d)", syntaxError.Offset)

		case errors.Is(err, io.ErrUnexpectedEOF):
			return xerrors.Newf("body contains badly-formed JSON")

		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return xerrors.Newf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return xerrors.Newf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return xerrors.Newf("body must not be empty")

		case errors.As(err, &maxBytesError):
			return xerrors.Newf("body must not be larger than %d bytes", maxBytes)

		case errors.As(err, &invalidUnmarshalError):
			panic(err)

		default:
			return xerrors.Newf("error decoding JSON: %w", err)
		}
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return xerrors.Newf("body must contain only a single JSON value")
	}

	return nil
}

// decodeJSON reads the body into dst and answers 400 itself on failure.
func (app *application) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := app.readJSON(w, r, dst); err != nil {
		app.badRequestResponse(w, r, &AppError{
			ErrorMessage: err.Error(),
			ErrorStack:   err,
		})
		return false
	}
	return true
}

func (app *application) writeJSON(w http.ResponseWriter, status int, data any, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}

	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(js); err != nil {
		app.logger.Error(err.Error())
		return err
	}

	return nil
}

func (app *application) respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	if err := app.writeJSON(w, status, data, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func slugParam(r *http.Request) string {
	return httprouter.ParamsFromContext(r.Context()).ByName("slug")
}

func (app *application) readIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(httprouter.ParamsFromContext(r.Context()).ByName("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, xerrors.Newf("invalid id parameter")
	}
	return id, nil
}

// viewer is the authenticated user, or nil for anonymous requests.
func (app *application) viewer(r *http.Request) *auth.User {
	user, err := app.auth.GetAuthenticatedUser(r)
	if err != nil {
		return nil
	}
	return user
}

type paginatedResponse[T any] struct {
	Count      int64   `json:"count"`
	Next       *string `json:"next"`
	Previous   *string `json:"previous"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	TotalPages int     `json:"total_pages"`
	Results    []T     `json:"results"`
}

// paginate wraps one page of results. Links are absolute and keep every
// other query parameter of the request.
func paginate[S, T any](app *application, r *http.Request, page filter.Page, total int64, items []S, mapper func(S) T) (*paginatedResponse[T], error) {
	meta, err := filter.NewMetadata(page, total)
	if err != nil {
		return nil, err
	}

	base := app.requestURL(r)
	return &paginatedResponse[T]{
		Count:      meta.Count,
		Next:       meta.Next(base),
		Previous:   meta.Previous(base),
		Page:       meta.Page,
		PageSize:   meta.PageSize,
		TotalPages: meta.TotalPages,
		Results:    functional.Map(items, mapper),
	}, nil
}

type listing struct {
	where  filter.Cond
	orders []filter.Order
	page   filter.Page
}

// parseListing reads the filter, ordering and page parameters of a list
// endpoint and answers 400 itself when any of them is malformed.
func (app *application) parseListing(w http.ResponseWriter, r *http.Request, ordering filter.Ordering,
	where func(url.Values, *validator.Validator) filter.Cond) (listing, bool) {
	query := r.URL.Query()
	v := validator.New()

	l := listing{
		orders: ordering.Parse(query, v),
		page:   filter.ParsePage(query, filter.DefaultPageSize, v),
	}
	if where != nil {
		l.where = where(query, v)
	}

	if !v.IsValid() {
		app.badRequestResponse(w, r, &AppError{ErrorDetails: v.Errors})
		return listing{}, false
	}
	return l, true
}

func (app *application) requestURL(r *http.Request) *url.URL {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); app.config.TrustProxy && proto != "" {
		scheme = proto
	}
	return &url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: r.URL.RawQuery}
}

func (app *application) doInBackground(fn func()) {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				app.logger.Error(fmt.Sprintf("panic in background task: %v", r))
			}
		}()
		fn()
	}()
}
