// Package bookservice is the read side of the converted corpus, shared by
// the HTTP API and the MCP server.
package bookservice

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/starford/aozoraconv/internal/apperr"
	"github.com/starford/aozoraconv/internal/corpus"
	"github.com/starford/aozoraconv/internal/export"
	"github.com/starford/aozoraconv/internal/index"
	"github.com/starford/aozoraconv/internal/models"
)

// BookListItem is a lightweight item in a list response.
type BookListItem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	TitleKana    string    `json:"title_kana,omitempty"`
	Subtitle     string    `json:"subtitle,omitempty"`
	Authors      []string  `json:"authors"`
	WarningCount int       `json:"warning_count"`
	ConvertedAt  time.Time `json:"converted_at"`
}

// BookDetail is the full catalog record of a book.
type BookDetail struct {
	BookListItem
	Checksum string      `json:"checksum"`
	Book     models.Book `json:"book"`
}

// Warning is one stored parser warning.
type Warning struct {
	Kind    string `json:"kind"`
	Section string `json:"section"`
	Line    int    `json:"line"`
	Detail  string `json:"detail,omitempty"`
}

// Failure is the last failed conversion of a book.
type Failure struct {
	BookID   string    `json:"book_id"`
	Kind     string    `json:"kind"`
	Message  string    `json:"message"`
	FailedAt time.Time `json:"failed_at"`
}

// SearchResult is one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Authors string `json:"authors"`
	Snippet string `json:"snippet"`
}

// DocumentReader loads converted documents.
type DocumentReader interface {
	ReadDocument(bookID string) (*export.Content, error)
}

// ArchiveSource reads a book's raw text archive.
type ArchiveSource interface {
	Archive(book models.Book) (*corpus.Archive, error)
}

// Service coordinates catalog, output and corpus reads.
type Service struct {
	db     index.Catalog
	docs   DocumentReader
	corpus ArchiveSource
}

// NewService creates a new book service. corpus may be nil, in which case
// figures are never found.
func NewService(db index.Catalog, docs DocumentReader, corpus ArchiveSource) *Service {
	return &Service{db: db, docs: docs, corpus: corpus}
}

// ListBooks returns paginated books, optionally restricted to one author.
func (s *Service) ListBooks(_ context.Context, limit, offset int, authorID string) ([]BookListItem, int, error) {
	rows, total, err := s.db.ListBooks(limit, offset, authorID)
	if err != nil {
		return nil, 0, err
	}
	items := make([]BookListItem, len(rows))
	for i := range rows {
		items[i] = listItem(&rows[i])
	}
	return items, total, nil
}

// GetBook returns a catalogued book or apperr.ErrNotFound.
func (s *Service) GetBook(_ context.Context, id string) (*BookDetail, error) {
	row, err := s.db.GetBook(id)
	if err != nil {
		return nil, err
	}
	return &BookDetail{BookListItem: listItem(row), Checksum: row.Checksum, Book: row.Book}, nil
}

// Content returns the converted segment tree of a book.
func (s *Service) Content(_ context.Context, id string) (*export.Content, error) {
	return s.docs.ReadDocument(id)
}

// Warnings returns the parser warnings of a book in source order.
func (s *Service) Warnings(_ context.Context, id string) ([]Warning, error) {
	if _, err := s.db.GetBook(id); err != nil {
		return nil, err
	}
	rows, err := s.db.Warnings(id)
	if err != nil {
		return nil, err
	}
	out := make([]Warning, len(rows))
	for i, w := range rows {
		out[i] = Warning{Kind: w.Kind, Section: w.Section, Line: w.Line, Detail: w.Detail}
	}
	return out, nil
}

// Failures returns every book whose last conversion failed.
func (s *Service) Failures(_ context.Context) ([]Failure, error) {
	rows, err := s.db.Failures()
	if err != nil {
		return nil, err
	}
	out := make([]Failure, len(rows))
	for i, f := range rows {
		out[i] = Failure{BookID: f.BookID, Kind: f.Kind, Message: f.Message, FailedAt: f.FailedAt}
	}
	return out, nil
}

// Text returns the plain reading text of a book's body.
func (s *Service) Text(_ context.Context, id string) (string, error) {
	return s.db.Text(id)
}

// Search delegates full-text search to the catalog.
func (s *Service) Search(_ context.Context, query string, limit int) ([]SearchResult, error) {
	rows, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]SearchResult, len(rows))
	for i, r := range rows {
		out[i] = SearchResult(r)
	}
	return out, nil
}

// Figure returns an image stored next to the book's text in its archive.
func (s *Service) Figure(_ context.Context, id, name string) ([]byte, error) {
	row, err := s.db.GetBook(id)
	if err != nil {
		return nil, err
	}
	if s.corpus == nil {
		return nil, apperr.ErrNotFound
	}
	a, err := s.corpus.Archive(row.Book)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return corpus.ExtractFile(a.Data, name)
}

func listItem(r *index.BookRow) BookListItem {
	authors := r.Authors
	if authors == nil {
		authors = []string{}
	}
	return BookListItem{
		ID:           r.ID,
		Title:        r.Title,
		TitleKana:    r.TitleKana,
		Subtitle:     r.Subtitle,
		Authors:      authors,
		WarningCount: r.WarningCount,
		ConvertedAt:  r.ConvertedAt,
	}
}
