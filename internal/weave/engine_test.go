package weave

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/treggify/mindweaver/internal/index"
	"github.com/treggify/mindweaver/internal/llm"
	"github.com/treggify/mindweaver/internal/models"
	"github.com/treggify/mindweaver/internal/ratelimit"
	"github.com/treggify/mindweaver/internal/storage"
)

// scriptedCompleter replays canned responses in order and records the
// requests it saw.
type scriptedCompleter struct {
	responses []scriptedResponse
	calls     [][]llm.Message
}

type scriptedResponse struct {
	text string
	err  error
}

func (s *scriptedCompleter) Complete(_ context.Context, messages []llm.Message) (string, error) {
	s.calls = append(s.calls, messages)
	if len(s.responses) == 0 {
		return "", nil
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	return r.text, r.err
}

// memIndex is an in-memory NoteIndex for engine tests.
type memIndex struct {
	tags        []string
	concepts    map[string]models.ConceptSummary
	lastIndexed time.Time
}

func newMemIndex() *memIndex {
	return &memIndex{concepts: make(map[string]models.ConceptSummary)}
}

func (m *memIndex) UpsertNote(index.NoteRow) error           { return nil }
func (m *memIndex) DeleteNote(string) error                  { return nil }
func (m *memIndex) GetChecksum(string) (string, error)       { return "", nil }
func (m *memIndex) AllChecksums() (map[string]string, error) { return nil, nil }
func (m *memIndex) ListNotes() ([]index.NoteRow, error)      { return nil, nil }
func (m *memIndex) AllTags() ([]string, error)               { return m.tags, nil }
func (m *memIndex) LastIndexed() (time.Time, error)          { return m.lastIndexed, nil }
func (m *memIndex) SetLastIndexed(t time.Time) error         { m.lastIndexed = t; return nil }
func (m *memIndex) Close() error                             { return nil }

func (m *memIndex) PutConcept(path, summary string, at time.Time) error {
	m.concepts[path] = models.ConceptSummary{Path: path, Summary: summary, IndexedAt: at}
	return nil
}

func (m *memIndex) GetConcept(path string) (*models.ConceptSummary, error) {
	c, ok := m.concepts[path]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func testVault(t *testing.T) storage.Provider {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEngine(t *testing.T, store storage.Provider, db index.NoteIndex, completer llm.Completer, opts Options) *Engine {
	t.Helper()
	if opts.Format == "" {
		opts.Format = FormatComma
	}
	if opts.Strength == "" {
		opts.Strength = StrengthBalanced
	}
	if opts.HeaderText == "" {
		opts.HeaderText = "Related notes"
		opts.ShowHeader = true
		opts.HeaderLevel = 3
	}
	e := New(store, db, completer, ratelimit.New(time.Microsecond, 100000),
		llm.Profile{Kind: llm.KindOllama, Model: "test"}, opts, testLogger())
	e.sleep = func(context.Context, time.Duration) error { return nil }
	return e
}

func TestGenerateBacklinks_EndToEnd(t *testing.T) {
	store := testVault(t)
	_ = store.Write("A.md", []byte("Compound interest grows savings"))
	_ = store.Write("B.md", []byte("Explains compound interest formula"))
	_ = store.Write("C.md", []byte("Grocery list"))

	completer := &scriptedCompleter{responses: []scriptedResponse{
		{text: "[true, false]"}, // pre-filter: B survives, C drops
		{text: "true"},          // validator: B accepted
	}}
	e := newTestEngine(t, store, newMemIndex(), completer, Options{})

	out, err := e.GenerateBacklinks(context.Background(), "A.md")
	if err != nil {
		t.Fatalf("GenerateBacklinks: %v", err)
	}
	want := "### Related notes\n[[B]]\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if len(completer.calls) != 2 {
		t.Errorf("model calls = %d, want 2 (one pre-filter chunk, one validation)", len(completer.calls))
	}
}

func TestGenerateBacklinks_PreFilterFailsOpen(t *testing.T) {
	store := testVault(t)
	_ = store.Write("A.md", []byte("source"))
	_ = store.Write("B.md", []byte("candidate one"))
	_ = store.Write("C.md", []byte("candidate two"))

	completer := &scriptedCompleter{responses: []scriptedResponse{
		{text: "I cannot answer that."}, // unparsable: both candidates survive
		{text: "true"},
		{text: "true"},
	}}
	e := newTestEngine(t, store, newMemIndex(), completer, Options{})

	out, err := e.GenerateBacklinks(context.Background(), "A.md")
	if err != nil {
		t.Fatalf("GenerateBacklinks: %v", err)
	}
	want := "### Related notes\n[[B]], [[C]]\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestGenerateBacklinks_ValidatorFailsClosed(t *testing.T) {
	store := testVault(t)
	_ = store.Write("A.md", []byte("source"))
	_ = store.Write("B.md", []byte("candidate"))

	completer := &scriptedCompleter{responses: []scriptedResponse{
		{text: "[true]"},
		{err: &llm.ProviderError{Status: 500, Message: "boom"}},
	}}
	e := newTestEngine(t, store, newMemIndex(), completer, Options{})

	out, err := e.GenerateBacklinks(context.Background(), "A.md")
	if err != nil {
		t.Fatalf("provider error must not escape the validator: %v", err)
	}
	if out != "" {
		t.Errorf("output = %q, want empty (no connections)", out)
	}
}

func TestGenerateBacklinks_NoCredentialAborts(t *testing.T) {
	store := testVault(t)
	_ = store.Write("A.md", []byte("source"))

	completer := &scriptedCompleter{}
	e := newTestEngine(t, store, newMemIndex(), completer, Options{})
	e.profile = llm.Profile{Kind: llm.KindOpenAI, Model: "gpt-4o-mini"} // no key

	_, err := e.GenerateBacklinks(context.Background(), "A.md")
	if err == nil {
		t.Fatal("expected credential error")
	}
	if len(completer.calls) != 0 {
		t.Errorf("model calls = %d, want 0 before credential gate", len(completer.calls))
	}
}

func TestGenerateBacklinks_ExcludedFolders(t *testing.T) {
	store := testVault(t)
	_ = store.Write("A.md", []byte("source"))
	_ = store.Write("Archive/old.md", []byte("archived"))
	_ = store.Write("B.md", []byte("candidate"))

	completer := &scriptedCompleter{responses: []scriptedResponse{
		{text: "[true]"},
		{text: "true"},
	}}
	e := newTestEngine(t, store, newMemIndex(), completer, Options{ExcludedFolders: []string{"Archive"}})

	out, err := e.GenerateBacklinks(context.Background(), "A.md")
	if err != nil {
		t.Fatalf("GenerateBacklinks: %v", err)
	}
	want := "### Related notes\n[[B]]\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestConnect_AppendsSection(t *testing.T) {
	store := testVault(t)
	_ = store.Write("A.md", []byte("source body\n"))
	_ = store.Write("B.md", []byte("candidate"))

	completer := &scriptedCompleter{responses: []scriptedResponse{
		{text: "[true]"},
		{text: "true"},
	}}
	e := newTestEngine(t, store, newMemIndex(), completer, Options{})

	if _, err := e.Connect(context.Background(), "A.md", true); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	data, _ := store.Read("A.md")
	want := "source body\n\n### Related notes\n[[B]]\n"
	if string(data) != want {
		t.Errorf("note = %q, want %q", data, want)
	}
}

func TestConnect_EmptyResultDoesNotWrite(t *testing.T) {
	store := testVault(t)
	original := []byte("source body\n")
	_ = store.Write("A.md", original)
	_ = store.Write("B.md", []byte("candidate"))

	completer := &scriptedCompleter{responses: []scriptedResponse{
		{text: "[false]"},
	}}
	e := newTestEngine(t, store, newMemIndex(), completer, Options{})

	out, err := e.Connect(context.Background(), "A.md", true)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if out != "" {
		t.Errorf("out = %q, want empty", out)
	}
	data, _ := store.Read("A.md")
	if string(data) != string(original) {
		t.Errorf("note mutated on empty result: %q", data)
	}
}

func TestReindexConcepts_PositionalSplit(t *testing.T) {
	store := testVault(t)
	_ = store.Write("a.md", []byte("# Alpha\nbody a"))
	_ = store.Write("b.md", []byte("# Beta\nbody b"))
	_ = store.Write("c.md", []byte("# Gamma\nbody c"))

	// Two segments for three notes: the trailing note gets an empty summary.
	completer := &scriptedCompleter{responses: []scriptedResponse{
		{text: "alpha summary\n---NOTE---\nbeta summary"},
	}}
	db := newMemIndex()
	e := newTestEngine(t, store, db, completer, Options{ConceptsTTL: 24 * time.Hour})

	if err := e.ReindexConcepts(context.Background()); err != nil {
		t.Fatalf("ReindexConcepts: %v", err)
	}

	a, _ := db.GetConcept("a.md")
	if a == nil || a.Summary != "alpha summary" {
		t.Errorf("a.md concept = %+v", a)
	}
	b, _ := db.GetConcept("b.md")
	if b == nil || b.Summary != "beta summary" {
		t.Errorf("b.md concept = %+v", b)
	}
	c, _ := db.GetConcept("c.md")
	if c == nil || c.Summary != "" {
		t.Errorf("c.md concept = %+v, want empty summary", c)
	}
	if db.lastIndexed.IsZero() {
		t.Error("last indexed not recorded after successful run")
	}
}

func TestReindexConcepts_FailureKeepsProgress(t *testing.T) {
	store := testVault(t)
	for _, p := range []string{"a.md", "b.md", "c.md", "d.md", "e.md", "f.md"} {
		_ = store.Write(p, []byte("# "+p+"\nbody"))
	}

	// First batch of five succeeds, second batch fails.
	completer := &scriptedCompleter{responses: []scriptedResponse{
		{text: "s1\n---NOTE---\ns2\n---NOTE---\ns3\n---NOTE---\ns4\n---NOTE---\ns5"},
		{err: &llm.ProviderError{Status: 502, Message: "bad gateway"}},
	}}
	db := newMemIndex()
	e := newTestEngine(t, store, db, completer, Options{ConceptsTTL: 24 * time.Hour})

	if err := e.ReindexConcepts(context.Background()); err == nil {
		t.Fatal("expected error from failed batch")
	}
	if len(db.concepts) != 5 {
		t.Errorf("concepts stored = %d, want 5 (first batch kept)", len(db.concepts))
	}
	if !db.lastIndexed.IsZero() {
		t.Error("last indexed must not advance on a failed run")
	}
}

func TestPrefilter_UsesFreshSummaries(t *testing.T) {
	store := testVault(t)
	_ = store.Write("A.md", []byte("source"))
	_ = store.Write("B.md", []byte("candidate"))

	db := newMemIndex()
	_ = db.PutConcept("B.md", "all about compounding", time.Now())

	completer := &scriptedCompleter{responses: []scriptedResponse{
		{text: "[false]"},
	}}
	e := newTestEngine(t, store, db, completer, Options{ConceptsTTL: 24 * time.Hour})

	_, _ = e.GenerateBacklinks(context.Background(), "A.md")
	if len(completer.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(completer.calls))
	}
	prompt := completer.calls[0][0].Content
	if !strings.Contains(prompt, "all about compounding") {
		t.Errorf("pre-filter prompt missing fresh summary: %q", prompt)
	}
}

func TestPrefilter_IgnoresStaleSummaries(t *testing.T) {
	store := testVault(t)
	_ = store.Write("A.md", []byte("source"))
	_ = store.Write("B.md", []byte("candidate"))

	db := newMemIndex()
	_ = db.PutConcept("B.md", "stale summary", time.Now().Add(-48*time.Hour))

	completer := &scriptedCompleter{responses: []scriptedResponse{
		{text: "[false]"},
	}}
	e := newTestEngine(t, store, db, completer, Options{ConceptsTTL: 24 * time.Hour})

	_, _ = e.GenerateBacklinks(context.Background(), "A.md")
	prompt := completer.calls[0][0].Content
	if strings.Contains(prompt, "stale summary") {
		t.Errorf("stale summary leaked into pre-filter prompt: %q", prompt)
	}
}
