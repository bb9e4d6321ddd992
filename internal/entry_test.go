package internal

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/aozoraconv/internal/export"
	"github.com/starford/aozoraconv/internal/index"
	"github.com/starford/aozoraconv/internal/models"
	"github.com/starford/aozoraconv/internal/testutil"
)

func testConfig(t *testing.T, root string) *Config {
	t.Helper()
	out := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Corpus.Root = root
	cfg.Output.Path = filepath.Join(out, "out")
	cfg.SQLite.Path = filepath.Join(out, "db", "catalog.db")
	cfg.Batch.Workers = 2
	return cfg
}

func TestRunConvertsEligibleBooks(t *testing.T) {
	free := testutil.Work{
		ID: "000001", Title: "走れメロス", AuthorID: "000035", LastName: "太宰", FirstName: "治",
		TextURL: testutil.ArchiveURL("000001"),
		Text:    "走れメロス\n太宰治\n\n　メロスは激怒した。\n\n底本：「太宰治全集」\n",
	}
	protected := testutil.Work{
		ID: "000002", Title: "新しい作品", AuthorID: "000036", LastName: "現代", FirstName: "作家",
		AuthorCopyright: true,
		TextURL:         testutil.ArchiveURL("000002"),
		Text:            "新しい作品\n\n本文\n",
	}
	broken := testutil.Work{
		ID: "000003", Title: "壊れた", AuthorID: "000035", LastName: "太宰", FirstName: "治",
		TextURL: testutil.ArchiveURL("000003"),
		Entries: map[string][]byte{"readme.html": nil},
	}
	root := testutil.Corpus(t, free, protected, broken)
	cfg := testConfig(t, root)

	if err := Run(context.Background(), WithConfig(cfg), WithLogOutput(io.Discard)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.Output.Path, export.BooksFile))
	if err != nil {
		t.Fatalf("read books.json: %v", err)
	}
	var books []models.Book
	if err := json.Unmarshal(data, &books); err != nil {
		t.Fatal(err)
	}
	if len(books) != 2 {
		t.Errorf("books.json lists %d books, want the 2 eligible ones", len(books))
	}

	if _, err := os.Stat(filepath.Join(cfg.Output.Path, filepath.FromSlash(export.ContentPath("000001")))); err != nil {
		t.Errorf("content of converted book: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Output.Path, filepath.FromSlash(export.ContentPath("000002")))); !os.IsNotExist(err) {
		t.Errorf("copyrighted book was written: %v", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.GetBook("000001"); err != nil {
		t.Errorf("catalog: %v", err)
	}
	failures, err := db.Failures()
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != 1 || failures[0].BookID != "000003" || failures[0].Kind != "io" {
		t.Errorf("failures = %+v", failures)
	}
}

func TestRunPrunesBooksNoLongerEligible(t *testing.T) {
	w := testutil.Work{
		ID: "000001", Title: "羅生門", AuthorID: "000879", LastName: "芥川", FirstName: "竜之介",
		TextURL: testutil.ArchiveURL("000001"),
		Text:    "羅生門\n\n　ある日の暮方の事である。\n",
	}
	root := testutil.Corpus(t, w)
	cfg := testConfig(t, root)
	if err := Run(context.Background(), WithConfig(cfg), WithLogOutput(io.Discard)); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// The listing now marks the work as copyrighted.
	w.Copyright = true
	listing := testutil.Zip(t, map[string][]byte{
		"list_person_all_extended_utf8.csv": testutil.ListingCSV(t, w),
	})
	if err := os.WriteFile(filepath.Join(root, filepath.FromSlash(cfg.Corpus.Registry)), listing, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Run(context.Background(), WithConfig(cfg), WithLogOutput(io.Discard)); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.Output.Path, "book", "000001")); !os.IsNotExist(err) {
		t.Errorf("output of pruned book still present: %v", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.GetBook("000001"); err == nil {
		t.Error("pruned book still catalogued")
	}
}

func TestRunSetupFailures(t *testing.T) {
	ctx := context.Background()

	if err := Run(ctx); err == nil {
		t.Error("missing config should fail")
	}

	cfg := testConfig(t, t.TempDir())
	if err := Run(ctx, WithConfig(cfg), WithLogOutput(io.Discard)); err == nil {
		t.Error("missing registry should fail")
	}

	cfg = testConfig(t, filepath.Join(t.TempDir(), "absent"))
	if err := Run(ctx, WithConfig(cfg), WithLogOutput(io.Discard)); err == nil {
		t.Error("missing corpus root should fail")
	}

	cfg = testConfig(t, testutil.Corpus(t))
	cfg.Tables.Path = filepath.Join(t.TempDir(), "tables.json")
	if err := Run(ctx, WithConfig(cfg), WithLogOutput(io.Discard)); err == nil {
		t.Error("unreadable tables should fail")
	}
}
