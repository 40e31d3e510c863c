package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/treggify/mindweaver/internal/apperr"
	"github.com/treggify/mindweaver/internal/index"
)

// fakeWeaver scripts engine responses per path.
type fakeWeaver struct {
	sections map[string]string
	tags     map[string][]string
	err      error
	reindexN int
}

func (f *fakeWeaver) Connect(_ context.Context, path string, _ bool) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	s, ok := f.sections[path]
	if !ok {
		return "", apperr.ErrNotFound
	}
	return s, nil
}

func (f *fakeWeaver) WeaveTagsForNote(_ context.Context, path string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tags[path]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return t, nil
}

func (f *fakeWeaver) ReindexConcepts(context.Context) error {
	f.reindexN++
	return f.err
}

type fakeIndex struct {
	index.NoteIndex
	rows []index.NoteRow
	tags []string
}

func (f *fakeIndex) ListNotes() ([]index.NoteRow, error) { return f.rows, nil }
func (f *fakeIndex) AllTags() ([]string, error)          { return f.tags, nil }

func newRouter(w Weaver, db index.NoteIndex, token string) http.Handler {
	return NewRouter(w, db, token != "", token, nil)
}

func postJSON(t *testing.T, router http.Handler, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestConnectEndpoint(t *testing.T) {
	w := &fakeWeaver{sections: map[string]string{"A.md": "### Related notes\n[[B]]\n"}}
	router := newRouter(w, &fakeIndex{}, "")

	rec := postJSON(t, router, "/connections", map[string]any{"path": "A.md", "apply": true}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp connectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Section != "### Related notes\n[[B]]\n" || !resp.Applied {
		t.Errorf("response = %+v", resp)
	}
}

func TestConnectEndpoint_NotFound(t *testing.T) {
	router := newRouter(&fakeWeaver{}, &fakeIndex{}, "")
	rec := postJSON(t, router, "/connections", map[string]any{"path": "ghost.md"}, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestConnectEndpoint_MissingPath(t *testing.T) {
	router := newRouter(&fakeWeaver{}, &fakeIndex{}, "")
	rec := postJSON(t, router, "/connections", map[string]any{}, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestConnectEndpoint_NoCredential(t *testing.T) {
	router := newRouter(&fakeWeaver{err: apperr.ErrNoCredential}, &fakeIndex{}, "")
	rec := postJSON(t, router, "/connections", map[string]any{"path": "A.md"}, "")
	if rec.Code != http.StatusPreconditionFailed {
		t.Errorf("status = %d, want 412", rec.Code)
	}
}

func TestTagsEndpoint(t *testing.T) {
	w := &fakeWeaver{tags: map[string][]string{"trip.md": {"#finance"}}}
	router := newRouter(w, &fakeIndex{}, "")

	rec := postJSON(t, router, "/tags", map[string]any{"path": "trip.md"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp tagsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Tags) != 1 || resp.Tags[0] != "#finance" {
		t.Errorf("tags = %v", resp.Tags)
	}
}

func TestTagsEndpoint_NoSuggestions(t *testing.T) {
	// An empty vocabulary or an empty model result is a no-op, not a failure.
	w := &fakeWeaver{tags: map[string][]string{"trip.md": nil}}
	router := newRouter(w, &fakeIndex{}, "")
	rec := postJSON(t, router, "/tags", map[string]any{"path": "trip.md"}, "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	var resp tagsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Tags == nil || len(resp.Tags) != 0 {
		t.Errorf("tags = %#v, want empty list", resp.Tags)
	}
}

func TestReindexEndpoint(t *testing.T) {
	w := &fakeWeaver{}
	router := newRouter(w, &fakeIndex{}, "")
	rec := postJSON(t, router, "/reindex", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if w.reindexN != 1 {
		t.Errorf("reindex calls = %d", w.reindexN)
	}
}

func TestListNotesEndpoint(t *testing.T) {
	db := &fakeIndex{rows: []index.NoteRow{
		{Path: "A.md", Title: "A", Tags: []string{"x"}, UpdatedAt: time.Now()},
	}}
	router := newRouter(&fakeWeaver{}, db, "")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Notes []struct {
			Path string `json:"path"`
		} `json:"notes"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Notes[0].Path != "A.md" {
		t.Errorf("response = %+v", resp)
	}
}

func TestAuthMiddleware(t *testing.T) {
	router := newRouter(&fakeWeaver{}, &fakeIndex{tags: []string{"a"}}, "secret")

	req := httptest.NewRequest(http.MethodGet, "/tags", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/tags", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/tags", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("good token: status = %d, want 200", rec.Code)
	}
}
