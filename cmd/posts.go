package main

import (
	"context"
	"net/http"

	"github.com/siahsang/blogplatform/internal/auth"
	"github.com/siahsang/blogplatform/internal/core"
	"github.com/siahsang/blogplatform/internal/filter"
	"github.com/siahsang/blogplatform/internal/utils/functional"
)

type postInput struct {
	Title           *string   `json:"title"`
	Slug            *string   `json:"slug"`
	Excerpt         *string   `json:"excerpt"`
	Content         *string   `json:"content"`
	FeaturedImage   *string   `json:"featured_image"`
	Category        *string   `json:"category"`
	Tags            *[]string `json:"tags"`
	Status          *string   `json:"status"`
	MetaTitle       *string   `json:"meta_title"`
	MetaDescription *string   `json:"meta_description"`
	Keywords        *[]string `json:"keywords"`
	OGImage         *string   `json:"og_image"`
}

func (in postInput) core() core.PostInput {
	return core.PostInput{
		Title:           in.Title,
		Slug:            in.Slug,
		Excerpt:         in.Excerpt,
		Content:         in.Content,
		FeaturedImage:   in.FeaturedImage,
		Category:        in.Category,
		Tags:            in.Tags,
		Status:          in.Status,
		MetaTitle:       in.MetaTitle,
		MetaDescription: in.MetaDescription,
		Keywords:        in.Keywords,
		OGImage:         in.OGImage,
	}
}

func (app *application) listPostsHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := app.parseListing(w, r, filter.PostOrdering, filter.PostsFromQuery)
	if !ok {
		return
	}
	app.writePostPage(w, r, l, nil)
}

// writePostPage lists the posts visible to the caller that match the query
// and, when scope is set, the enclosing resource.
func (app *application) writePostPage(w http.ResponseWriter, r *http.Request, l listing, scope filter.Cond) {
	result, err := app.core.ListPosts(r.Context(), app.viewer(r), filter.And(scope, l.where), l.orders, l.page)
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}

	resp, err := paginate(app, r, l.page, result.Total, result.Items, postResponse)
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusOK, resp)
}

func (app *application) createPostHandler(w http.ResponseWriter, r *http.Request) {
	var input postInput
	if !app.decodeJSON(w, r, &input) {
		return
	}

	view, err := app.core.CreatePost(r.Context(), app.viewer(r), input.core())
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusCreated, postDetailResponse(view))
}

func (app *application) getPostHandler(w http.ResponseWriter, r *http.Request) {
	// httprouter cannot register /api/posts/featured next to /api/posts/:slug,
	// so the list actions are dispatched here. Their names are reserved slugs.
	switch slugParam(r) {
	case "featured":
		app.postShortlistHandler(w, r, app.core.FeaturedPosts)
		return
	case "recent":
		app.postShortlistHandler(w, r, app.core.RecentPosts)
		return
	}

	view, err := app.core.GetPost(r.Context(), app.viewer(r), slugParam(r))
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusOK, postDetailResponse(view))
}

// postShortlistHandler writes an unpaginated list of posts.
func (app *application) postShortlistHandler(w http.ResponseWriter, r *http.Request, list func(context.Context, *auth.User) ([]*core.PostView, error)) {
	views, err := list(r.Context(), app.viewer(r))
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusOK, functional.Map(views, postResponse))
}

func (app *application) updatePostHandler(w http.ResponseWriter, r *http.Request) {
	var input postInput
	if !app.decodeJSON(w, r, &input) {
		return
	}

	view, err := app.core.UpdatePost(r.Context(), app.viewer(r), slugParam(r), input.core())
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusOK, postDetailResponse(view))
}

func (app *application) deletePostHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.core.DeletePost(r.Context(), app.viewer(r), slugParam(r)); err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) postCommentsHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := app.parseListing(w, r, filter.CommentOrdering, nil)
	if !ok {
		return
	}

	result, err := app.core.PostComments(r.Context(), app.viewer(r), slugParam(r), l.page)
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

// searchHandler only returns published posts. Without any of q, category or
// tag the result is an empty page rather than every post.
func (app *application) searchHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := app.parseListing(w, r, filter.SearchOrdering, nil)
	if !ok {
		return
	}

	where, ok := filter.SearchFromQuery(r.URL.Query())
	if !ok {
		resp, err := paginate(app, r, filter.NewPage(1, l.page.Size), 0, []*core.PostView{}, postResponse)
		if err != nil {
			app.coreErrorResponse(w, r, err)
			return
		}
		app.respond(w, r, http.StatusOK, resp)
		return
	}

	result, err := app.core.Search(r.Context(), where, l.page)
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}

	resp, err := paginate(app, r, l.page, result.Total, result.Items, postResponse)
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusOK, resp)
}
