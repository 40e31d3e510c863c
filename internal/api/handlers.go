// Package api implements the Mindweaver REST API using chi.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/treggify/mindweaver/internal/apperr"
	"github.com/treggify/mindweaver/internal/index"
)

// Weaver is the slice of the discovery engine the API needs.
type Weaver interface {
	Connect(ctx context.Context, path string, apply bool) (string, error)
	WeaveTagsForNote(ctx context.Context, path string) ([]string, error)
	ReindexConcepts(ctx context.Context) error
}

// Handler holds API route handlers.
type Handler struct {
	weaver Weaver
	db     index.NoteIndex
}

// NewHandler creates a new Handler.
func NewHandler(weaver Weaver, db index.NoteIndex) *Handler {
	return &Handler{weaver: weaver, db: db}
}

type connectRequest struct {
	Path  string `json:"path"`
	Apply bool   `json:"apply"`
}

type connectResponse struct {
	Section string `json:"section"`
	Applied bool   `json:"applied"`
}

// Connect handles POST /api/connections: runs the discovery pipeline for one
// note and, when apply is set, writes the links section into it.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	section, err := h.weaver.Connect(r.Context(), req.Path, req.Apply)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("note not found"))
		case errors.Is(err, apperr.ErrNoCredential):
			writeJSON(w, http.StatusPreconditionFailed, errorBody("no API key configured"))
		default:
			slog.Error("connect failed", slog.String("path", req.Path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, connectResponse{
		Section: section,
		Applied: req.Apply && section != "",
	})
}

type tagsRequest struct {
	Path string `json:"path"`
}

type tagsResponse struct {
	Tags []string `json:"tags"`
}

// WeaveTags handles POST /api/tags: suggests vocabulary tags for one note.
func (h *Handler) WeaveTags(w http.ResponseWriter, r *http.Request) {
	var req tagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	tags, err := h.weaver.WeaveTagsForNote(r.Context(), req.Path)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("note not found"))
		case errors.Is(err, apperr.ErrNoCredential):
			writeJSON(w, http.StatusPreconditionFailed, errorBody("no API key configured"))
		default:
			slog.Error("tag weaving failed", slog.String("path", req.Path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, tagsResponse{Tags: tags})
}

// Reindex handles POST /api/reindex: rebuilds the concepts index. The call
// blocks until the run finishes; progress streams over /api/events.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	if err := h.weaver.ReindexConcepts(r.Context()); err != nil {
		if errors.Is(err, apperr.ErrNoCredential) {
			writeJSON(w, http.StatusPreconditionFailed, errorBody("no API key configured"))
			return
		}
		slog.Error("reindex failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListNotes handles GET /api/notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.ListNotes()
	if err != nil {
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	type item struct {
		Path  string   `json:"path"`
		Title string   `json:"title"`
		Tags  []string `json:"tags"`
	}
	items := make([]item, len(rows))
	for i, row := range rows {
		tags := row.Tags
		if tags == nil {
			tags = []string{}
		}
		items[i] = item{Path: row.Path, Title: row.Title, Tags: tags}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notes": items,
		"total": len(items),
	})
}

// ListTags handles GET /api/tags: the distinct tags observed in the vault.
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.db.AllTags()
	if err != nil {
		slog.Error("list tags failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}
