package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/siahsang/blogplatform/internal/auth"
	"github.com/siahsang/blogplatform/internal/core"
	"github.com/siahsang/blogplatform/internal/filter"
	"github.com/siahsang/blogplatform/models"
)

func (app *application) listCommentsHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := app.parseListing(w, r, filter.CommentOrdering, filter.CommentsFromQuery)
	if !ok {
		return
	}

	result, err := app.core.ListComments(r.Context(), app.viewer(r), l.where, l.orders, l.page)
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	resp, err := paginate(app, r, l.page, result.Total, result.Items, commentResponse)
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusOK, resp)
}

// createCommentHandler accepts anonymous submissions. The post id may be sent
// as a number or a numeric string; any status in the body is ignored.
func (app *application) createCommentHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Post    json.Number `json:"post"`
		Author  string      `json:"author"`
		Email   string      `json:"email"`
		Content string      `json:"content"`
		Status  string      `json:"status"`
	}
	if !app.decodeJSON(w, r, &input) {
		return
	}

	var postID int64
	if input.Post != "" {
		id, err := input.Post.Int64()
		if err != nil {
			app.badRequestResponse(w, r, &AppError{ErrorDetails: map[string]string{
				"post": "Incorrect type. Expected pk value.",
			}})
			return
		}
		postID = id
	}

	comment, err := app.core.CreateComment(r.Context(), core.CommentInput{
		Post:    postID,
		Author:  input.Author,
		Email:   input.Email,
		Content: input.Content,
		Status:  input.Status,
	})
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusCreated, commentResponse(comment))
}

func (app *application) getCommentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	comment, err := app.core.GetComment(r.Context(), app.viewer(r), id)
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusOK, commentResponse(comment))
}

func (app *application) deleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	if err := app.core.DeleteComment(r.Context(), app.viewer(r), id); err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moderateFunc func(ctx context.Context, viewer *auth.User, id int64) (*models.Comment, error)

func (app *application) moderateComment(w http.ResponseWriter, r *http.Request, moderate moderateFunc) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	comment, err := moderate(r.Context(), app.viewer(r), id)
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusOK, commentResponse(comment))
}

func (app *application) approveCommentHandler(w http.ResponseWriter, r *http.Request) {
	app.moderateComment(w, r, app.core.ApproveComment)
}

func (app *application) rejectCommentHandler(w http.ResponseWriter, r *http.Request) {
	app.moderateComment(w, r, app.core.RejectComment)
}

func (app *application) resetCommentHandler(w http.ResponseWriter, r *http.Request) {
	app.moderateComment(w, r, app.core.ResetComment)
}
