package main

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/julienschmidt/httprouter"
	"github.com/siahsang/blogplatform/internal/ratelimit"
)

func (app *application) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	router.HandlerFunc(http.MethodGet, "/healthz", app.healthcheckHandler)

	router.HandlerFunc(http.MethodPost, "/api/auth/register", app.throttle(ratelimit.ScopeRegister, app.registerUserHandler))
	router.HandlerFunc(http.MethodPost, "/api/auth/token", app.throttle(ratelimit.ScopeLogin, app.obtainTokenHandler))
	router.HandlerFunc(http.MethodPost, "/api/auth/token/refresh", app.refreshTokenHandler)
	router.HandlerFunc(http.MethodPost, "/api/auth/token/verify", app.verifyTokenHandler)
	router.HandlerFunc(http.MethodPost, "/api/auth/logout", app.requireAuthenticatedUser(app.logoutHandler))
	router.HandlerFunc(http.MethodGet, "/api/auth/status", app.authStatusHandler)
	router.HandlerFunc(http.MethodGet, "/api/auth/profile", app.requireAuthenticatedUser(app.getProfileHandler))
	router.HandlerFunc(http.MethodPatch, "/api/auth/profile", app.requireAuthenticatedUser(app.updateProfileHandler))
	router.HandlerFunc(http.MethodPost, "/api/auth/profile/social-links", app.requireAuthenticatedUser(app.saveSocialLinkHandler))
	router.HandlerFunc(http.MethodDelete, "/api/auth/profile/social-links/:platform", app.requireAuthenticatedUser(app.deleteSocialLinkHandler))
	router.HandlerFunc(http.MethodPost, "/api/auth/change-password", app.requireAuthenticatedUser(app.changePasswordHandler))
	router.HandlerFunc(http.MethodGet, "/api/auth/users/:username", app.getUserHandler)

	router.HandlerFunc(http.MethodGet, "/api/posts", app.listPostsHandler)
	router.HandlerFunc(http.MethodPost, "/api/posts", app.requireAuthenticatedUser(app.createPostHandler))
	router.HandlerFunc(http.MethodGet, "/api/posts/:slug", app.getPostHandler)
	router.HandlerFunc(http.MethodPatch, "/api/posts/:slug", app.requireAuthenticatedUser(app.updatePostHandler))
	router.HandlerFunc(http.MethodDelete, "/api/posts/:slug", app.requireAuthenticatedUser(app.deletePostHandler))
	router.HandlerFunc(http.MethodGet, "/api/posts/:slug/comments", app.postCommentsHandler)
	router.HandlerFunc(http.MethodGet, "/api/search", app.throttle(ratelimit.ScopeSearch, app.searchHandler))

	router.HandlerFunc(http.MethodGet, "/api/categories", app.listCategoriesHandler)
	router.HandlerFunc(http.MethodPost, "/api/categories", app.requireStaff(app.createCategoryHandler))
	router.HandlerFunc(http.MethodGet, "/api/categories/:slug", app.getCategoryHandler)
	router.HandlerFunc(http.MethodPatch, "/api/categories/:slug", app.requireStaff(app.updateCategoryHandler))
	router.HandlerFunc(http.MethodDelete, "/api/categories/:slug", app.requireStaff(app.deleteCategoryHandler))
	router.HandlerFunc(http.MethodGet, "/api/categories/:slug/posts", app.categoryPostsHandler)

	router.HandlerFunc(http.MethodGet, "/api/tags", app.listTagsHandler)
	router.HandlerFunc(http.MethodPost, "/api/tags", app.requireStaff(app.createTagHandler))
	router.HandlerFunc(http.MethodGet, "/api/tags/:slug", app.getTagHandler)
	router.HandlerFunc(http.MethodDelete, "/api/tags/:slug", app.requireStaff(app.deleteTagHandler))
	router.HandlerFunc(http.MethodGet, "/api/tags/:slug/posts", app.tagPostsHandler)

	router.HandlerFunc(http.MethodGet, "/api/authors", app.listAuthorsHandler)
	router.HandlerFunc(http.MethodGet, "/api/authors/:slug", app.getAuthorHandler)
	router.HandlerFunc(http.MethodGet, "/api/authors/:slug/posts", app.authorPostsHandler)

	router.HandlerFunc(http.MethodGet, "/api/comments", app.listCommentsHandler)
	router.HandlerFunc(http.MethodPost, "/api/comments", app.throttle(ratelimit.ScopeComment, app.createCommentHandler))
	router.HandlerFunc(http.MethodGet, "/api/comments/:id", app.getCommentHandler)
	router.HandlerFunc(http.MethodDelete, "/api/comments/:id", app.requireStaff(app.deleteCommentHandler))
	router.HandlerFunc(http.MethodPost, "/api/comments/:id/approve", app.requireStaff(app.approveCommentHandler))
	router.HandlerFunc(http.MethodPost, "/api/comments/:id/reject", app.requireStaff(app.rejectCommentHandler))
	router.HandlerFunc(http.MethodPost, "/api/comments/:id/reset", app.requireStaff(app.resetCommentHandler))

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   app.config.CorsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return app.recoverPanic(app.logRequest(corsHandler(app.securityHeaders(app.burstLimit(app.authenticate(router))))))
}
