// Package corpus locates a work's text archive under the corpus root,
// extracts its single .txt entry and decodes it to UTF-8.
package corpus

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"

	"github.com/starford/aozoraconv/internal/apperr"
	"github.com/starford/aozoraconv/internal/checksum"
	"github.com/starford/aozoraconv/internal/models"
	"github.com/starford/aozoraconv/internal/registry"
	"github.com/starford/aozoraconv/internal/storage"
)

var (
	ErrNoText       = errors.New("archive has no .txt entry")
	ErrMultipleText = errors.New("archive has more than one .txt entry")
	ErrNotInCorpus  = errors.New("text url is not mirrored in the corpus")
	ErrBadName      = errors.New("invalid entry name")
)

// Archive is a work's raw text archive.
type Archive struct {
	Path     string
	Data     []byte
	Checksum string
}

// Source reads text archives from a corpus root.
type Source struct {
	store storage.Provider
}

// New creates a Source over the given store, rooted at the corpus.
func New(store storage.Provider) *Source {
	return &Source{store: store}
}

// Archive reads the zip the book's text URL points at. Failures are
// IoFailures of that book.
func (s *Source) Archive(book models.Book) (*Archive, error) {
	path, ok := registry.ArchivePath(book.TextURL)
	if !ok {
		return nil, apperr.IO(book.ID, fmt.Errorf("%w: %s", ErrNotInCorpus, book.TextURL))
	}
	data, err := s.store.Read(path)
	if err != nil {
		return nil, apperr.IO(book.ID, err)
	}
	return &Archive{Path: path, Data: data, Checksum: checksum.Sum(data)}, nil
}

// Text extracts and decodes the archive's text.
func (s *Source) Text(book models.Book, a *Archive) (string, error) {
	_, raw, err := ExtractText(a.Data)
	if err != nil {
		return "", apperr.IO(book.ID, err)
	}
	text, err := Decode(raw, book.TextEncoding)
	if err != nil {
		return "", apperr.Encoding(book.ID, err)
	}
	return text, nil
}

// ExtractText returns the name and bytes of the only entry whose name ends
// in ".txt" (any case).
func ExtractText(archive []byte) (string, []byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return "", nil, fmt.Errorf("open archive: %w", err)
	}
	var found *zip.File
	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".txt") {
			continue
		}
		if found != nil {
			return "", nil, ErrMultipleText
		}
		found = f
	}
	if found == nil {
		return "", nil, ErrNoText
	}
	rc, err := found.Open()
	if err != nil {
		return "", nil, fmt.Errorf("open %s: %w", found.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", found.Name, err)
	}
	return found.Name, data, nil
}

// ExtractFile returns the entry whose base name is name, such as a figure
// referenced by an image directive. Names with path separators are
// rejected; a missing entry is apperr.ErrNotFound.
func ExtractFile(archive []byte, name string) ([]byte, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrBadName, name)
	}
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	for _, f := range zr.File {
		if path.Base(f.Name) != name || f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, apperr.ErrNotFound
}

// Decode converts raw text to UTF-8. The corpus is Shift_JIS unless the
// listing says UTF-8. Bytes with no mapping are an error rather than a
// silent replacement character.
func Decode(raw []byte, textEncoding string) (string, error) {
	enc := codec(textEncoding)
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if !utf8.Valid(out) {
		return "", fmt.Errorf("decode: invalid UTF-8 output")
	}
	if i := bytes.IndexRune(out, utf8.RuneError); i >= 0 {
		line := bytes.Count(out[:i], []byte{'\n'}) + 1
		return "", fmt.Errorf("decode: undecodable byte sequence on line %d", line)
	}
	return string(out), nil
}

func codec(textEncoding string) encoding.Encoding {
	switch strings.ToUpper(strings.ReplaceAll(textEncoding, "-", "")) {
	case "UTF8":
		return unicode.UTF8BOM
	}
	return japanese.ShiftJIS
}
