package main

import (
	"errors"
	"net/http"

	"github.com/siahsang/blogplatform/internal/auth"
	"github.com/siahsang/blogplatform/internal/core"
)

func (app *application) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	app.respond(w, r, http.StatusOK, envelope{"status": "available", "env": app.config.Env})
}

func (app *application) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if !app.decodeJSON(w, r, &input) {
		return
	}

	user, err := app.core.Register(r.Context(), core.RegisterInput{
		Username:  input.Username,
		Email:     input.Email,
		Password:  input.Password,
		FirstName: input.FirstName,
		LastName:  input.LastName,
	})
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}

	pair, err := app.auth.IssuePair(user)
	if err != nil {
		app.internalErrorResponse(w, r, err)
		return
	}

	app.respond(w, r, http.StatusCreated, envelope{
		"user":    userResponse(user),
		"access":  pair.Access,
		"refresh": pair.Refresh,
	})
}

func (app *application) obtainTokenHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !app.decodeJSON(w, r, &input) {
		return
	}

	user, err := app.core.Authenticate(r.Context(), input.Email, input.Password)
	if err != nil {
		app.coreErrorResponse(w, r, err)
		return
	}
	if err := app.core.RecordLogin(r.Context(), user); err != nil {
		app.internalErrorResponse(w, r, err)
		return
	}

	pair, err := app.auth.IssuePair(user)
	if err != nil {
		app.internalErrorResponse(w, r, err)
		return
	}

	app.respond(w, r, http.StatusOK, envelope{
		"access":  pair.Access,
		"refresh": pair.Refresh,
		"user":    userResponse(user),
	})
}

// refreshTokenHandler rotates the pair: the presented refresh token is
// revoked once the new one is issued.
func (app *application) refreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Refresh string `json:"refresh"`
	}
	if !app.decodeJSON(w, r, &input) {
		return
	}
	if input.Refresh == "" {
		app.badRequestResponse(w, r, &AppError{ErrorDetails: map[string]string{"refresh": "This field may not be blank."}})
		return
	}

	claim, err := app.auth.ParseRefresh(r.Context(), input.Refresh)
	if err != nil {
		app.tokenErrorResponse(w, r, err)
		return
	}

	user, err := app.core.GetUser(r.Context(), claim.UserID)
	if err != nil || !user.IsActive {
		app.invalidAuthenticationTokenResponse(w, r, err)
		return
	}

	// Spend the old refresh token first; of two concurrent refreshes only one
	// gets a new pair.
	if err := app.auth.Revoke(r.Context(), claim); err != nil {
		app.tokenErrorResponse(w, r, err)
		return
	}
	pair, err := app.auth.IssuePair(user)
	if err != nil {
		app.internalErrorResponse(w, r, err)
		return
	}

	app.respond(w, r, http.StatusOK, envelope{
		"access":  pair.Access,
		"refresh": pair.Refresh,
		"user":    userResponse(user),
	})
}

func (app *application) verifyTokenHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Token string `json:"token"`
	}
	if !app.decodeJSON(w, r, &input) {
		return
	}
	if input.Token == "" {
		app.badRequestResponse(w, r, &AppError{ErrorDetails: map[string]string{"token": "This field may not be blank."}})
		return
	}

	if _, err := app.auth.Verify(r.Context(), input.Token); err != nil {
		app.tokenErrorResponse(w, r, err)
		return
	}
	app.respond(w, r, http.StatusOK, envelope{})
}

func (app *application) logoutHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		RefreshToken string `json:"refresh_token"`
		Refresh      string `json:"refresh"`
	}
	if r.ContentLength != 0 && !app.decodeJSON(w, r, &input) {
		return
	}

	token := input.RefreshToken
	if token == "" {
		token = input.Refresh
	}
	if token != "" {
		claim, err := app.auth.ParseRefresh(r.Context(), token)
		if err != nil || claim.UserID != app.viewer(r).ID {
			app.badRequestResponse(w, r, &AppError{ErrorStack: err, ErrorMessage: "Logout failed."})
			return
		}
		if err := app.auth.Revoke(r.Context(), claim); err != nil {
			if errors.Is(err, auth.ErrTokenRevoked) {
				app.badRequestResponse(w, r, &AppError{ErrorStack: err, ErrorMessage: "Logout failed."})
				return
			}
			app.internalErrorResponse(w, r, err)
			return
		}
	}

	app.respond(w, r, http.StatusOK, envelope{"detail": "Successfully logged out."})
}

func (app *application) authStatusHandler(w http.ResponseWriter, r *http.Request) {
	user := app.viewer(r)
	if user == nil {
		app.respond(w, r, http.StatusOK, envelope{"authenticated": false})
		return
	}
	app.respond(w, r, http.StatusOK, envelope{"authenticated": true, "user": userResponse(user)})
}

// tokenErrorResponse answers 401 for rejected tokens and 500 for anything
// else, such as an unreachable blacklist.
func (app *application) tokenErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if auth.IsTokenError(err) {
		app.invalidAuthenticationTokenResponse(w, r, err)
		return
	}
	app.internalErrorResponse(w, r, err)
}
