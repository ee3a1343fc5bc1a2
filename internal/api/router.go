package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/shikibuild/internal/buildservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *buildservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Builds.
	r.Get("/builds", h.ListBuilds)
	r.Post("/builds", h.TriggerBuild)
	r.Get("/builds/latest", h.LatestBuild)
	r.Get("/builds/{id}", h.GetBuild)
	r.Get("/builds/{id}/errors", h.BuildErrors)

	// Languages and themes.
	r.Get("/languages", h.ListLanguages)
	r.Get("/languages/{tag}", h.CheckLanguage)
	r.Get("/themes", h.ListThemes)

	// One-off rendering.
	r.Post("/highlight", h.Highlight)

	// Stored per-file results.
	r.Get("/results/*", h.GetResult)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
