package bookservice

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/aozoraconv/internal/apperr"
	"github.com/starford/aozoraconv/internal/corpus"
	"github.com/starford/aozoraconv/internal/export"
	"github.com/starford/aozoraconv/internal/models"
	"github.com/starford/aozoraconv/internal/storage"
	"github.com/starford/aozoraconv/internal/testutil"
)

const rashomon = "羅生門\n芥川龍之介\n\n" +
	"　ある日の暮方の事である。\n" +
	"［＃ここから２字下げ］\n" +
	"下人［＃「下人」に傍点］\n" +
	"\n底本：「芥川龍之介全集」\n"

func newService(t *testing.T) *Service {
	t.Helper()
	db := testutil.TestDB(t)
	_, out := testutil.TestOutput(t)

	w := testutil.Work{
		ID:      "000127",
		TextURL: testutil.ArchiveURL("000127"),
		Entries: map[string][]byte{
			"rashomon.txt":  testutil.ShiftJIS(t, rashomon),
			"fig127_01.png": []byte("\x89PNG"),
		},
	}
	root := testutil.Corpus(t, w)
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}

	book := models.Book{
		ID:           "000127",
		Title:        "羅生門",
		TitleKana:    "らしょうもん",
		TextURL:      w.TextURL,
		Contributors: []models.Contributor{{AuthorID: "000879", Role: "著者"}},
	}
	testutil.Convert(t, db, out, book, rashomon)
	if err := db.RecordFailure("000999", "encoding", "decode: undecodable byte sequence on line 3"); err != nil {
		t.Fatal(err)
	}
	return NewService(db, export.NewWriter(out), corpus.New(store))
}

func TestListAndGet(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	items, total, err := svc.ListBooks(ctx, 10, 0, "")
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != "000127" {
		t.Fatalf("ListBooks = %+v, %d", items, total)
	}
	if len(items[0].Authors) != 1 {
		t.Errorf("authors = %v", items[0].Authors)
	}

	if items, total, _ := svc.ListBooks(ctx, 10, 0, "000001"); total != 0 || len(items) != 0 {
		t.Errorf("author filter: %+v, %d", items, total)
	}

	d, err := svc.GetBook(ctx, "000127")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if d.Title != "羅生門" || d.Book.TextURL == "" || d.Checksum == "" {
		t.Errorf("GetBook = %+v", d)
	}

	if _, err := svc.GetBook(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing book: err = %v", err)
	}
}

func TestContentAndWarnings(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	c, err := svc.Content(ctx, "000127")
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	if len(c.Body) == 0 || len(c.Colophon) == 0 {
		t.Errorf("content sections: body %d colophon %d", len(c.Body), len(c.Colophon))
	}

	ws, err := svc.Warnings(ctx, "000127")
	if err != nil {
		t.Fatalf("Warnings: %v", err)
	}
	if len(ws) != 1 || ws[0].Kind != "unterminated_block" || ws[0].Section != "body" {
		t.Errorf("Warnings = %+v", ws)
	}
	if _, err := svc.Warnings(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing book: err = %v", err)
	}
	if _, err := svc.Content(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing content: err = %v", err)
	}
}

func TestTextAndSearch(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	text, err := svc.Text(ctx, "000127")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if text == "" {
		t.Error("empty text")
	}

	hits, err := svc.Search(ctx, "暮方の事", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "000127" {
		t.Errorf("Search = %+v", hits)
	}
}

func TestFailures(t *testing.T) {
	svc := newService(t)
	fs, err := svc.Failures(context.Background())
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(fs) != 1 || fs[0].BookID != "000999" || fs[0].Kind != "encoding" {
		t.Errorf("Failures = %+v", fs)
	}
}

func TestFigure(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	data, err := svc.Figure(ctx, "000127", "fig127_01.png")
	if err != nil || string(data) != "\x89PNG" {
		t.Fatalf("Figure = %q, %v", data, err)
	}
	if _, err := svc.Figure(ctx, "000127", "fig127_02.png"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing figure: err = %v", err)
	}
	if _, err := svc.Figure(ctx, "000127", "../rashomon.txt"); !errors.Is(err, corpus.ErrBadName) {
		t.Errorf("traversal: err = %v", err)
	}
}
