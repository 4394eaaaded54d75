// Package api wires the HTTP surface: router, middleware, and handlers.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/memenem/memenem/internal/api/middleware"
	"github.com/memenem/memenem/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	GenerateHandler  http.HandlerFunc
	PollJobHandler   http.HandlerFunc
	ListJobsHandler  http.HandlerFunc
	CancelJobHandler http.HandlerFunc

	ListTemplatesHandler http.HandlerFunc
	CacheStatsHandler    http.HandlerFunc
	CacheCleanupHandler  http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/memes/generate", orNotImplemented(deps.GenerateHandler))
		r.Get("/api/v1/memes/jobs", orNotImplemented(deps.ListJobsHandler))
		r.Get("/api/v1/memes/jobs/{jobID}", orNotImplemented(deps.PollJobHandler))
		r.Delete("/api/v1/memes/jobs/{jobID}", orNotImplemented(deps.CancelJobHandler))

		r.Get("/api/v1/templates", orNotImplemented(deps.ListTemplatesHandler))

		r.Get("/api/v1/cache/stats", orNotImplemented(deps.CacheStatsHandler))
		r.Post("/api/v1/cache/cleanup", orNotImplemented(deps.CacheCleanupHandler))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("admin"))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
