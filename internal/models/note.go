// Package models defines the domain types for Mindweaver.
package models

import (
	"path"
	"strings"
	"time"
)

// Note is an immutable snapshot of a Markdown file in the vault at the time
// it was read. There is no concurrent-mutation handling; re-reading is the
// only refresh mechanism.
type Note struct {
	Path string `json:"path"`
	Body string `json:"body"`
}

// Basename returns the file name of the note without directory or extension.
// This is the title form used for cheap title-only screening.
func (n Note) Basename() string {
	return strings.TrimSuffix(path.Base(n.Path), ".md")
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Link is a canonical wikilink target: no directory, no .md extension, no
// display alias. NewLink performs the cleanup.
type Link string

// NewLink normalizes a raw reference (vault path or wikilink body) into its
// canonical form.
func NewLink(raw string) Link {
	s := raw
	if i := strings.Index(s, "|"); i >= 0 {
		s = s[:i]
	}
	s = path.Base(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, ".md")
	return Link(s)
}

// Wikilink renders the link in [[target]] form.
func (l Link) Wikilink() string {
	return "[[" + string(l) + "]]"
}

// ConceptSummary is one cached per-note concepts entry. Staleness is
// determined by comparing IndexedAt against the configured TTL.
type ConceptSummary struct {
	Path      string    `json:"path"`
	Summary   string    `json:"summary"`
	IndexedAt time.Time `json:"indexed_at"`
}
