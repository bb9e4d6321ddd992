// Package export writes converted documents and the catalog listings as
// JSON files under the output root.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/starford/aozoraconv/internal/apperr"
	"github.com/starford/aozoraconv/internal/models"
	"github.com/starford/aozoraconv/internal/parser"
	"github.com/starford/aozoraconv/internal/storage"
)

// Output file names relative to the output root.
const (
	BooksFile       = "books.json"
	AuthorsFile     = "authors.json"
	BookAuthorsFile = "book_authors.json"
	contentFile     = "content.json"
)

// Content is the JSON document written for one book.
type Content struct {
	Book     models.Book `json:"book"`
	Checksum string      `json:"checksum"`
	Header   []Node      `json:"header"`
	Body     []Node      `json:"body"`
	Colophon []Node      `json:"colophon"`
	Warnings []Warning   `json:"warnings"`
}

// Warning is the JSON shape of a parser warning.
type Warning struct {
	Kind    string `json:"kind"`
	Section string `json:"section"`
	Line    int    `json:"line"`
	Detail  string `json:"detail,omitempty"`
}

// BookAuthor is one row of the work/person relation.
type BookAuthor struct {
	BookID   string `json:"book_id"`
	AuthorID string `json:"author_id"`
	Role     string `json:"role"`
}

// Warnings converts parser warnings.
func Warnings(ws []parser.Warning) []Warning {
	out := make([]Warning, 0, len(ws))
	for _, w := range ws {
		out = append(out, Warning{
			Kind:    w.Kind.String(),
			Section: string(w.Section),
			Line:    w.Line,
			Detail:  w.Detail,
		})
	}
	return out
}

// NewContent builds the JSON document for doc.
func NewContent(doc *models.Document) Content {
	return Content{
		Book:     doc.Book,
		Checksum: doc.Checksum,
		Header:   Nodes(doc.Header),
		Body:     Nodes(doc.Body),
		Colophon: Nodes(doc.Colophon),
		Warnings: Warnings(doc.Warnings),
	}
}

// ContentPath is where a book's document lives under the output root.
func ContentPath(bookID string) string {
	return path.Join("book", bookID, contentFile)
}

// Writer serializes to a storage provider.
type Writer struct {
	store storage.Provider
}

// NewWriter creates a Writer over the output store.
func NewWriter(store storage.Provider) *Writer {
	return &Writer{store: store}
}

// WriteDocument writes book/<id>/content.json atomically.
func (w *Writer) WriteDocument(doc *models.Document) error {
	data, err := json.MarshalIndent(NewContent(doc), "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal %s: %w", doc.Book.ID, err)
	}
	if err := w.store.Write(ContentPath(doc.Book.ID), data); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// ReadDocument loads a previously written document.
func (w *Writer) ReadDocument(bookID string) (*Content, error) {
	data, err := w.store.Read(ContentPath(bookID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("export: %w", err)
	}
	var c Content
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("export: decode %s: %w", bookID, err)
	}
	return &c, nil
}

// WriteCatalog writes the book, author and relation listings.
func (w *Writer) WriteCatalog(books []models.Book, authors []models.Author) error {
	var rel []BookAuthor
	for _, b := range books {
		for _, c := range b.Contributors {
			rel = append(rel, BookAuthor{BookID: b.ID, AuthorID: c.AuthorID, Role: c.Role})
		}
	}
	files := []struct {
		name string
		v    any
	}{
		{BooksFile, books},
		{AuthorsFile, authors},
		{BookAuthorsFile, rel},
	}
	for _, f := range files {
		data, err := json.Marshal(f.v)
		if err != nil {
			return fmt.Errorf("export: marshal %s: %w", f.name, err)
		}
		if err := w.store.Write(f.name, data); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	return nil
}

// DeleteDocument removes a book's output directory.
func (w *Writer) DeleteDocument(bookID string) error {
	if err := w.store.Delete(path.Join("book", bookID)); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}
