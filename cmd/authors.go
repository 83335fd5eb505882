package main

import (
	"net/http"

	"github.com/siahsang/blogplatform/internal/filter"
)

func (app *application) listAuthorsHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := app.parseListing(w, r, filter.AuthorOrdering, filter.AuthorsFromQuery)
	if !ok {
		return
	}

	result, err := app.core.ListAuthors(r.Context(), l.where, l.orders, l.page)
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	resp, err := paginate(app, r, l.page, result.Total, result.Items, authorResponse)
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusOK, resp)
}

func (app *application) getAuthorHandler(w http.ResponseWriter, r *http.Request) {
	view, err := app.core.GetAuthor(r.Context(), slugParam(r))
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusOK, authorDetailResponse(view))
}

func (app *application) authorPostsHandler(w http.ResponseWriter, r *http.Request) {
	view, err := app.core.GetAuthor(r.Context(), slugParam(r))
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	l, ok := app.parseListing(w, r, filter.PostOrdering, filter.PostsFromQuery)
	if !ok {
		return
	}
	app.writePostPage(w, r, l, filter.Eq(filter.PostAuthorID, view.Author.ID))
}
