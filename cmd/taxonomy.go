package main

import (
	"net/http"

	"github.com/siahsang/blogplatform/internal/core"
	"github.com/siahsang/blogplatform/internal/filter"
)

type categoryInput struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

func (in categoryInput) core() core.CategoryInput {
	return core.CategoryInput{Name: in.Name, Slug: in.Slug, Description: in.Description, Color: in.Color}
}

func (app *application) listCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := app.parseListing(w, r, filter.CategoryOrdering, filter.CategoriesFromQuery)
	if !ok {
		return
	}

	result, err := app.core.ListCategories(r.Context(), l.where, l.orders, l.page)
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	resp, err := paginate(app, r, l.page, result.Total, result.Items, categoryResponse)
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusOK, resp)
}

func (app *application) createCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var input categoryInput
	if !app.decodeJSON(w, r, &input) {
		return
	}

	category, err := app.core.CreateCategory(r.Context(), app.viewer(r), input.core())
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusCreated, categoryResponse(category))
}

func (app *application) getCategoryHandler(w http.ResponseWriter, r *http.Request) {
	category, err := app.core.GetCategory(r.Context(), slugParam(r))
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusOK, categoryResponse(category))
}

func (app *application) updateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var input categoryInput
	if !app.decodeJSON(w, r, &input) {
		return
	}

	category, err := app.core.UpdateCategory(r.Context(), app.viewer(r), slugParam(r), input.core())
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusOK, categoryResponse(category))
}

func (app *application) deleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.core.DeleteCategory(r.Context(), app.viewer(r), slugParam(r)); err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) categoryPostsHandler(w http.ResponseWriter, r *http.Request) {
	category, err := app.core.GetCategory(r.Context(), slugParam(r))
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	l, ok := app.parseListing(w, r, filter.PostOrdering, filter.PostsFromQuery)
	if !ok {
		return
	}
	app.writePostPage(w, r, l, filter.Eq(filter.PostCategoryID, category.ID))
}

func (app *application) listTagsHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := app.parseListing(w, r, filter.TagOrdering, filter.TagsFromQuery)
	if !ok {
		return
	}

	result, err := app.core.ListTags(r.Context(), l.where, l.orders, l.page)
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	resp, err := paginate(app, r, l.page, result.Total, result.Items, tagResponse)
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusOK, resp)
}

func (app *application) createTagHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name string  `json:"name"`
		Slug *string `json:"slug"`
	}
	if !app.decodeJSON(w, r, &input) {
		return
	}

	tag, err := app.core.CreateTag(r.Context(), app.viewer(r), core.TagInput{Name: input.Name, Slug: input.Slug})
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusCreated, tagResponse(tag))
}

func (app *application) getTagHandler(w http.ResponseWriter, r *http.Request) {
	tag, err := app.core.GetTag(r.Context(), slugParam(r))
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusOK, tagResponse(tag))
}

func (app *application) deleteTagHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.core.DeleteTag(r.Context(), app.viewer(r), slugParam(r)); err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) tagPostsHandler(w http.ResponseWriter, r *http.Request) {
	tag, err := app.core.GetTag(r.Context(), slugParam(r))
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	l, ok := app.parseListing(w, r, filter.PostOrdering, filter.PostsFromQuery)
	if !ok {
		return
	}
	app.writePostPage(w, r, l, filter.Eq(filter.PostTagSlug, tag.Slug))
}
