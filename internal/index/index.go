package index

import (
	"github.com/starford/aozoraconv/internal/models"
)

// Catalog defines the interface for catalog operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type Catalog interface {
	UpsertAuthors(authors []models.Author) error
	UpsertDocument(doc *models.Document) error
	RecordFailure(bookID, kind, message string) error
	DeleteBook(id string) error
	GetChecksum(id string) (string, error)
	AllChecksums() (map[string]string, error)
	GetBook(id string) (*BookRow, error)
	ListBooks(limit, offset int, authorID string) ([]BookRow, int, error)
	Warnings(id string) ([]WarningRow, error)
	Failures() ([]FailureRow, error)
	Text(id string) (string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)
