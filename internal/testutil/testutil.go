// Package testutil provides shared test helpers for building corpus fixtures
// and databases.
package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/japanese"

	"github.com/starford/aozoraconv/internal/charmap"
	"github.com/starford/aozoraconv/internal/checksum"
	"github.com/starford/aozoraconv/internal/export"
	"github.com/starford/aozoraconv/internal/index"
	"github.com/starford/aozoraconv/internal/models"
	"github.com/starford/aozoraconv/internal/parser"
	"github.com/starford/aozoraconv/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp(t.TempDir(), "aozoraconv-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestOutput creates a temporary output directory with a storage.Provider.
func TestOutput(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Work is one listing row plus the text its archive should hold.
type Work struct {
	ID              string
	Title           string
	AuthorID        string
	LastName        string
	FirstName       string
	Role            string
	Copyright       bool
	AuthorCopyright bool
	TextURL         string
	Encoding        string
	// Text is stored Shift_JIS encoded unless Encoding is "UTF-8".
	Text string
	// Raw, when set, is stored as the .txt entry as is.
	Raw []byte
	// Entries overrides the archive contents entirely.
	Entries map[string][]byte
}

// ArchiveURL returns the canonical text URL for a work id.
func ArchiveURL(id string) string {
	return "https://www.aozora.gr.jp/cards/000001/files/" + id + "_ruby.zip"
}

// Row renders w as a 55-column listing record.
func (w Work) Row() []string {
	rec := make([]string, 55)
	rec[0] = w.ID
	rec[1] = w.Title
	rec[9] = "新字新仮名"
	rec[10] = flag(w.Copyright)
	rec[11] = "2000-01-01"
	rec[12] = "2011-04-01"
	rec[14] = w.AuthorID
	rec[15] = w.LastName
	rec[16] = w.FirstName
	rec[23] = w.Role
	if rec[23] == "" {
		rec[23] = "著者"
	}
	rec[26] = flag(w.AuthorCopyright)
	rec[45] = w.TextURL
	rec[47] = w.Encoding
	if rec[47] == "" {
		rec[47] = "ShiftJIS"
	}
	return rec
}

func flag(b bool) string {
	if b {
		return "あり"
	}
	return "なし"
}

// ListingCSV renders a header row plus one row per work.
func ListingCSV(t *testing.T, works ...Work) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := make([]string, 55)
	header[0] = "作品ID"
	header[1] = "作品名"
	if err := w.Write(header); err != nil {
		t.Fatal(err)
	}
	for _, wk := range works {
		if err := w.Write(wk.Row()); err != nil {
			t.Fatal(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// Zip builds an archive from name → content.
func Zip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// ShiftJIS encodes s.
func ShiftJIS(t *testing.T, s string) []byte {
	t.Helper()
	b, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatalf("encode Shift_JIS: %v", err)
	}
	return b
}

// Corpus lays out a corpus tree under a temp dir: the listing archive and
// one text archive per work whose URL points into the corpus.
func Corpus(t *testing.T, works ...Work) string {
	t.Helper()
	root := t.TempDir()
	listing := Zip(t, map[string][]byte{
		"list_person_all_extended_utf8.csv": ListingCSV(t, works...),
	})
	writeFile(t, filepath.Join(root, "index_pages", "list_person_all_extended_utf8.zip"), listing)
	for _, w := range works {
		WriteArchive(t, root, w)
	}
	return root
}

// WriteArchive (re)writes the text archive of w under root.
func WriteArchive(t *testing.T, root string, w Work) {
	t.Helper()
	rel, ok := strings.CutPrefix(w.TextURL, "https://www.aozora.gr.jp/")
	if !ok || rel == "" {
		return
	}
	entries := w.Entries
	if entries == nil {
		data := w.Raw
		if data == nil {
			if w.Encoding == "UTF-8" {
				data = []byte(w.Text)
			} else {
				data = ShiftJIS(t, w.Text)
			}
		}
		entries = map[string][]byte{w.ID + ".txt": data}
	}
	writeFile(t, filepath.Join(root, filepath.FromSlash(rel)), Zip(t, entries))
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// Convert parses text with the built-in tables and stores the result the
// way a batch run does: content.json under out and a row in db. The
// contributors of book are registered as authors named after their id.
func Convert(t *testing.T, db *index.DB, out storage.Provider, book models.Book, text string) *models.Document {
	t.Helper()
	authors := make([]models.Author, 0, len(book.Contributors))
	for _, c := range book.Contributors {
		authors = append(authors, models.Author{ID: c.AuthorID, LastName: "著者" + c.AuthorID})
	}
	if err := db.UpsertAuthors(authors); err != nil {
		t.Fatal(err)
	}
	parsed := parser.ParseBook(charmap.New(), text)
	doc := &models.Document{
		Book:     book,
		Header:   parsed.Header,
		Body:     parsed.Body,
		Colophon: parsed.Colophon,
		Warnings: parsed.Warnings,
		Checksum: checksum.Sum([]byte(text)),
	}
	if err := export.NewWriter(out).WriteDocument(doc); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertDocument(doc); err != nil {
		t.Fatal(err)
	}
	return doc
}
