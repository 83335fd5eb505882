package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/siahsang/blogplatform/internal/core"
)

type ProfileResponse struct {
	UserResponse
	AuthorProfile *AuthorResponse `json:"author_profile"`
}

type PublicProfileResponse struct {
	PublicUserResponse
	AuthorProfile *AuthorResponse `json:"author_profile"`
}

func authorProfile(view *core.AuthorView) *AuthorResponse {
	if view.Author == nil {
		return nil
	}
	resp := authorDetailResponse(view)
	return &resp
}

func (app *application) getProfileHandler(w http.ResponseWriter, r *http.Request) {
	app.writeProfile(w, r, http.StatusOK)
}

func (app *application) writeProfile(w http.ResponseWriter, r *http.Request, status int) {
	user := app.viewer(r)
	view, err := app.core.Profile(r.Context(), user)
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, status, ProfileResponse{
		UserResponse:  userResponse(user),
		AuthorProfile: authorProfile(view),
	})
}

func (app *application) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		Bio       *string `json:"bio"`
		Avatar    *string `json:"avatar"`
	}
	if !app.decodeJSON(w, r, &input) {
		return
	}

	updated, err := app.core.UpdateProfile(r.Context(), app.viewer(r), core.ProfileInput{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Bio:       input.Bio,
		Avatar:    input.Avatar,
	})
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}

	r = app.auth.SetAuthenticatedUser(r, updated)
	app.writeProfile(w, r, http.StatusOK)
}

func (app *application) changePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if !app.decodeJSON(w, r, &input) {
		return
	}

	if err := app.core.ChangePassword(r.Context(), app.viewer(r), input.OldPassword, input.NewPassword); err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusOK, envelope{"detail": "Password changed successfully."})
}

func (app *application) getUserHandler(w http.ResponseWriter, r *http.Request) {
	username := httprouter.ParamsFromContext(r.Context()).ByName("username")

	user, err := app.core.GetUserByUsername(r.Context(), username)
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	view, err := app.core.Profile(r.Context(), user)
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}

	app.respond(w, r, http.StatusOK, PublicProfileResponse{
		PublicUserResponse: publicUserResponse(user),
		AuthorProfile:      authorProfile(view),
	})
}

func (app *application) saveSocialLinkHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Platform string `json:"platform"`
		URL      string `json:"url"`
		Icon     string `json:"icon"`
	}
	if !app.decodeJSON(w, r, &input) {
		return
	}

	link, err := app.core.SaveSocialLink(r.Context(), app.viewer(r), core.SocialLinkInput{
		Platform: input.Platform,
		URL:      input.URL,
		Icon:     input.Icon,
	})
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusCreated, socialLinkResponse(link))
}

func (app *application) deleteSocialLinkHandler(w http.ResponseWriter, r *http.Request) {
	platform := httprouter.ParamsFromContext(r.Context()).ByName("platform")

	if err := app.core.DeleteSocialLink(r.Context(), app.viewer(r), platform); err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
