package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/treggify/mindweaver/internal/models"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path      string
	Title     string
	Checksum  string
	Tags      []string
	UpdatedAt time.Time
}

// UpsertNote inserts or replaces a note's metadata.
func (db *DB) UpsertNote(n NoteRow) error {
	tagsJSON, _ := json.Marshal(n.Tags)
	_, err := db.conn.Exec(`
		INSERT INTO notes (path, title, checksum, tags, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			updated_at = excluded.updated_at
	`, n.Path, n.Title, n.Checksum, string(tagsJSON), n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}
	return nil
}

// DeleteNote removes a note and its concepts entry.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, _ = tx.Exec(`DELETE FROM concepts WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM notes WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns a path → checksum map for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// ListNotes returns metadata rows for every indexed note, ordered by path.
func (db *DB) ListNotes() ([]NoteRow, error) {
	rows, err := db.conn.Query(`SELECT path, title, checksum, tags, updated_at FROM notes ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		var r NoteRow
		var tagsJSON string
		if err := rows.Scan(&r.Path, &r.Title, &r.Checksum, &tagsJSON, &r.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tagsJSON), &r.Tags)
		out = append(out, r)
	}
	return out, rows.Err()
}

// AllTags returns the distinct tags observed across the vault.
func (db *DB) AllTags() ([]string, error) {
	rows, err := db.conn.Query(`SELECT tags FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all tags: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var out []string
	for rows.Next() {
		var tagsJSON string
		if err := rows.Scan(&tagsJSON); err != nil {
			return nil, err
		}
		var tags []string
		_ = json.Unmarshal([]byte(tagsJSON), &tags)
		for _, t := range tags {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out, rows.Err()
}

// PutConcept overwrites the concepts entry for a note. One entry per note.
func (db *DB) PutConcept(path, summary string, indexedAt time.Time) error {
	_, err := db.conn.Exec(`
		INSERT INTO concepts (path, summary, indexed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			summary    = excluded.summary,
			indexed_at = excluded.indexed_at
	`, path, summary, indexedAt)
	if err != nil {
		return fmt.Errorf("index: put concept: %w", err)
	}
	return nil
}

// GetConcept returns the concepts entry for a note, or nil when absent.
func (db *DB) GetConcept(path string) (*models.ConceptSummary, error) {
	var c models.ConceptSummary
	err := db.conn.QueryRow(`SELECT path, summary, indexed_at FROM concepts WHERE path = ?`, path).
		Scan(&c.Path, &c.Summary, &c.IndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: get concept: %w", err)
	}
	return &c, nil
}

// LastIndexed returns the timestamp of the last fully successful reindex run,
// or the zero time when no run has completed.
func (db *DB) LastIndexed() (time.Time, error) {
	var raw string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = 'last_indexed'`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("index: last indexed: %w", err)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("index: parse last indexed: %w", err)
	}
	return t, nil
}

// SetLastIndexed records the completion time of a reindex run. Callers only
// invoke this after every batch succeeds; a failed run leaves the previous
// value in place while still keeping any per-note progress.
func (db *DB) SetLastIndexed(t time.Time) error {
	_, err := db.conn.Exec(`
		INSERT INTO meta (key, value) VALUES ('last_indexed', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, t.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("index: set last indexed: %w", err)
	}
	return nil
}
