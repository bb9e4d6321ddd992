package corpus

import (
	"errors"
	"testing"

	"github.com/starford/aozoraconv/internal/apperr"
	"github.com/starford/aozoraconv/internal/models"
	"github.com/starford/aozoraconv/internal/storage"
	"github.com/starford/aozoraconv/internal/testutil"
)

func source(t *testing.T, works ...testutil.Work) *Source {
	t.Helper()
	root := testutil.Corpus(t, works...)
	fs, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return New(fs)
}

func book(w testutil.Work) models.Book {
	return models.Book{ID: w.ID, TextURL: w.TextURL, TextEncoding: w.Encoding}
}

func TestShiftJISRoundTrip(t *testing.T) {
	w := testutil.Work{ID: "000001", TextURL: testutil.ArchiveURL("000001"), Text: "吾輩《わがはい》は猫である。\r\n"}
	s := source(t, w)

	a, err := s.Archive(book(w))
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if a.Checksum == "" || a.Path != "cards/000001/files/000001_ruby.zip" {
		t.Errorf("archive = %+v", a)
	}
	text, err := s.Text(book(w), a)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if text != w.Text {
		t.Errorf("text = %q, want %q", text, w.Text)
	}
}

func TestUTF8WithBOM(t *testing.T) {
	w := testutil.Work{
		ID: "000002", TextURL: testutil.ArchiveURL("000002"), Encoding: "UTF-8",
		Raw: append([]byte{0xEF, 0xBB, 0xBF}, "𠀋の字"...),
	}
	s := source(t, w)
	a, err := s.Archive(book(w))
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	text, err := s.Text(book(w), a)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if text != "𠀋の字" {
		t.Errorf("text = %q", text)
	}
}

func TestMissingArchiveIsIOFailure(t *testing.T) {
	s := source(t)
	_, err := s.Archive(models.Book{ID: "9", TextURL: testutil.ArchiveURL("9")})
	if !errors.Is(err, apperr.ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
	var de *apperr.DocumentError
	if !errors.As(err, &de) || de.BookID != "9" {
		t.Errorf("err = %#v", err)
	}
}

func TestForeignURLIsIOFailure(t *testing.T) {
	s := source(t)
	_, err := s.Archive(models.Book{ID: "9", TextURL: "https://example.com/9.zip"})
	if !errors.Is(err, ErrNotInCorpus) || !errors.Is(err, apperr.ErrIO) {
		t.Errorf("err = %v", err)
	}
}

func TestTextEntryCount(t *testing.T) {
	none := testutil.Work{ID: "3", TextURL: testutil.ArchiveURL("3"), Entries: map[string][]byte{"a.html": nil}}
	two := testutil.Work{ID: "4", TextURL: testutil.ArchiveURL("4"), Entries: map[string][]byte{"a.txt": nil, "b.TXT": nil}}
	upper := testutil.Work{ID: "5", TextURL: testutil.ArchiveURL("5"), Entries: map[string][]byte{"A.TXT": []byte("abc"), "fig1.png": nil}}
	s := source(t, none, two, upper)

	for _, c := range []struct {
		w    testutil.Work
		want error
	}{{none, ErrNoText}, {two, ErrMultipleText}} {
		a, err := s.Archive(book(c.w))
		if err != nil {
			t.Fatalf("Archive: %v", err)
		}
		if _, err := s.Text(book(c.w), a); !errors.Is(err, c.want) || !errors.Is(err, apperr.ErrIO) {
			t.Errorf("%s: err = %v, want %v", c.w.ID, err, c.want)
		}
	}

	a, _ := s.Archive(book(upper))
	text, err := s.Text(book(upper), a)
	if err != nil || text != "abc" {
		t.Errorf("upper-case entry: %q, %v", text, err)
	}
}

func TestUndecodableBytesAreEncodingFailure(t *testing.T) {
	w := testutil.Work{ID: "6", TextURL: testutil.ArchiveURL("6"), Raw: []byte{'a', '\n', 0x82}}
	s := source(t, w)
	a, err := s.Archive(book(w))
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	_, err = s.Text(book(w), a)
	if !errors.Is(err, apperr.ErrEncoding) {
		t.Errorf("err = %v, want ErrEncoding", err)
	}
	if apperr.Kind(err) != "encoding" {
		t.Errorf("Kind = %s", apperr.Kind(err))
	}
}

func TestCorruptArchive(t *testing.T) {
	if _, _, err := ExtractText([]byte("PK broken")); err == nil {
		t.Error("expected error")
	}
}

func TestExtractFile(t *testing.T) {
	archive := testutil.Zip(t, map[string][]byte{
		"a.txt":             []byte("x"),
		"fig/fig10_01.png":  []byte("png"),
		"other/readme.html": nil,
	})

	data, err := ExtractFile(archive, "fig10_01.png")
	if err != nil || string(data) != "png" {
		t.Fatalf("ExtractFile = %q, %v", data, err)
	}
	if _, err := ExtractFile(archive, "fig10_02.png"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing entry: err = %v", err)
	}
	for _, name := range []string{"", "..", "../a.txt", `fig\a.png`, "fig/fig10_01.png"} {
		if _, err := ExtractFile(archive, name); !errors.Is(err, ErrBadName) {
			t.Errorf("ExtractFile(%q): err = %v, want ErrBadName", name, err)
		}
	}
}
