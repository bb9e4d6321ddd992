package export

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/starford/aozoraconv/internal/apperr"
	"github.com/starford/aozoraconv/internal/models"
	"github.com/starford/aozoraconv/internal/parser"
	"github.com/starford/aozoraconv/internal/storage"
)

func tempWriter(t *testing.T) *Writer {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewWriter(fs)
}

func TestNodesCoverEveryVariant(t *testing.T) {
	segs := []parser.Segment{
		parser.PlainText{Text: "a"},
		parser.Ruby{Base: "吾輩", Reading: "わがはい"},
		parser.Emphasis{Kind: parser.EmphasisDot, Style: "sesame", Children: []parser.Segment{parser.PlainText{Text: "b"}}},
		parser.Heading{Level: parser.HeadingLarge},
		parser.IndentBlock{Level: 0, Wrap: 0, Style: parser.IndentCenteredBottom},
		parser.CenterAlign{},
		parser.PageBreak{Kind: parser.BreakNewPage},
		parser.Kunten{Mark: parser.KuntenOneTwo, Order: 0},
		parser.Warichu{Children: []parser.Segment{parser.PlainText{Text: "注"}}},
		parser.ExternalChar{Resolved: '鯖', OK: true, Raw: "※［＃「魚＋青」］"},
		parser.ExternalChar{Raw: "※［＃「？」］"},
		parser.UnknownAnnotation{Raw: "［＃謎］"},
		parser.Caption{},
		parser.Image{Path: "fig1_1.png", Alt: "図"},
	}
	nodes := Nodes(segs)
	if len(nodes) != len(segs) {
		t.Fatalf("len = %d, want %d", len(nodes), len(segs))
	}
	for i, n := range nodes {
		if n.Type != segs[i].Type().String() {
			t.Errorf("node %d type = %q, want %q", i, n.Type, segs[i].Type())
		}
	}
	if nodes[4].Level == nil || *nodes[4].Level != 0 {
		t.Error("zero indent level must still be written")
	}
	if nodes[7].Order == nil || *nodes[7].Order != 0 {
		t.Error("kaeriten order must be written")
	}
	if nodes[8].Text != "注" {
		t.Errorf("warichu text = %q", nodes[8].Text)
	}
	if nodes[9].Char != "鯖" || !*nodes[9].Resolved {
		t.Errorf("resolved gaiji = %+v", nodes[9])
	}
	if nodes[10].Char != "" || *nodes[10].Resolved {
		t.Errorf("unresolved gaiji = %+v", nodes[10])
	}
}

func TestNodeJSONDiscriminator(t *testing.T) {
	data, err := json.Marshal(Nodes([]parser.Segment{parser.Ruby{Base: "東京", Reading: "とうきょう", Explicit: true}}))
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"type":"ruby","base":"東京","reading":"とうきょう","explicit":true}]`
	if string(data) != want {
		t.Errorf("json = %s\nwant %s", data, want)
	}
}

func TestWriteAndReadDocument(t *testing.T) {
	w := tempWriter(t)
	doc := &models.Document{
		Book:     models.Book{ID: "000789", Title: "吾輩は猫である"},
		Body:     []parser.Segment{parser.PlainText{Text: "本文"}},
		Warnings: []parser.Warning{{Kind: parser.DanglingRuby, Line: 3, Section: parser.SectionBody}},
		Checksum: "abc",
	}
	if err := w.WriteDocument(doc); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	got, err := w.ReadDocument("000789")
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	if got.Book.Title != doc.Book.Title || got.Checksum != "abc" {
		t.Errorf("content = %+v", got)
	}
	if len(got.Warnings) != 1 || got.Warnings[0].Kind != "dangling_ruby" || got.Warnings[0].Section != "body" {
		t.Errorf("warnings = %+v", got.Warnings)
	}
	if len(got.Body) != 1 || got.Body[0].Text != "本文" {
		t.Errorf("body = %+v", got.Body)
	}

	if _, err := w.ReadDocument("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing: err = %v", err)
	}
}

func TestWriteCatalog(t *testing.T) {
	w := tempWriter(t)
	books := []models.Book{{ID: "1", Contributors: []models.Contributor{{AuthorID: "9", Role: "著者"}}}}
	authors := []models.Author{{ID: "9", LastName: "夏目"}}
	if err := w.WriteCatalog(books, authors); err != nil {
		t.Fatalf("WriteCatalog: %v", err)
	}
	for _, name := range []string{BooksFile, AuthorsFile, BookAuthorsFile} {
		data, err := w.store.Read(name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.HasPrefix(string(data), "[") {
			t.Errorf("%s = %s", name, data)
		}
	}
	data, _ := w.store.Read(BookAuthorsFile)
	if string(data) != `[{"book_id":"1","author_id":"9","role":"著者"}]` {
		t.Errorf("book_authors = %s", data)
	}
}
