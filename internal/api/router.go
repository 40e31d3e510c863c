package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/treggify/mindweaver/internal/index"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(weaver Weaver, db index.NoteIndex, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(weaver, db)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Discovery pipeline.
	r.Post("/connections", h.Connect)
	r.Post("/tags", h.WeaveTags)
	r.Post("/reindex", h.Reindex)

	// Vault inspection.
	r.Get("/notes", h.ListNotes)
	r.Get("/tags", h.ListTags)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
