package index

import (
	"time"

	"github.com/treggify/mindweaver/internal/models"
)

// NoteIndex defines the interface for metadata-cache operations. Consumers
// should depend on this interface rather than the concrete *DB type to
// facilitate testing with mocks.
type NoteIndex interface {
	UpsertNote(n NoteRow) error
	DeleteNote(path string) error
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	ListNotes() ([]NoteRow, error)
	AllTags() ([]string, error)
	PutConcept(path, summary string, indexedAt time.Time) error
	GetConcept(path string) (*models.ConceptSummary, error)
	LastIndexed() (time.Time, error)
	SetLastIndexed(t time.Time) error
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
