// Package registry reads the corpus's person/work listing, a CSV shipped
// inside a zip archive, and decides which works may be converted.
package registry

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/starford/aozoraconv/internal/models"
)

// DefaultPath is where the listing lives relative to the corpus root.
const DefaultPath = "index_pages/list_person_all_extended_utf8.zip"

// EntryName is the CSV file expected inside the archive.
const EntryName = "list_person_all_extended_utf8.csv"

// TextURLPrefix is the only host whose archives are mirrored in the corpus.
const TextURLPrefix = "https://www.aozora.gr.jp/"

// Column positions in the extended listing.
const (
	colBookID         = 0
	colTitle          = 1
	colTitleKana      = 2
	colSortKey        = 3
	colSubtitle       = 4
	colSubtitleKana   = 5
	colOriginalTitle  = 6
	colWritingSystem  = 9
	colBookCopyright  = 10
	colPublishedAt    = 11
	colUpdatedAt      = 12
	colAuthorID       = 14
	colRole           = 23
	colBirthDate      = 24
	colDeathDate      = 25
	colAuthorCopy     = 26
	colOriginalBook1  = 27
	colOriginalBook2  = 35
	colInputter       = 43
	colProofreader    = 44
	colTextURL        = 45
	colTextEncoding   = 47
	minColumns        = colTextEncoding + 1
	originalBookWidth = 8
)

// ErrMalformed marks listing content that cannot be interpreted.
var ErrMalformed = errors.New("registry: malformed listing")

// List is the parsed listing. Books and Authors are sorted by id.
type List struct {
	Books   []models.Book
	Authors []models.Author

	authors map[string]int
}

// Author looks up a person by id.
func (l *List) Author(id string) (models.Author, bool) {
	i, ok := l.authors[id]
	if !ok {
		return models.Author{}, false
	}
	return l.Authors[i], true
}

// Open reads the listing archive from r and parses its CSV entry.
func Open(r io.ReaderAt, size int64) (*List, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("registry: open archive: %w", err)
	}
	f, err := zr.Open(EntryName)
	if err != nil {
		return nil, fmt.Errorf("registry: %s: %w", EntryName, err)
	}
	defer f.Close()
	return Parse(f)
}

// OpenBytes is Open over an in-memory archive.
func OpenBytes(data []byte) (*List, error) {
	return Open(bytes.NewReader(data), int64(len(data)))
}

// Parse reads the CSV listing. The first row is a header. Every row names
// one (work, person) pair; rows are merged so each work and each person
// appears once. Conflicting duplicates are an error.
func Parse(r io.Reader) (*List, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return &List{authors: map[string]int{}}, nil
		}
		return nil, fmt.Errorf("registry: read header: %w", err)
	}

	books := make(map[string]*models.Book)
	authors := make(map[string]models.Author)
	seen := make(map[[2]string]bool)

	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("registry: read row %d: %w", row, err)
		}
		if len(record) < minColumns {
			return nil, fmt.Errorf("%w: row %d has %d columns, want at least %d", ErrMalformed, row, len(record), minColumns)
		}

		book, err := parseBook(record)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		author, err := parseAuthor(record)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		if prev, ok := authors[author.ID]; ok && prev != author {
			return nil, fmt.Errorf("%w: row %d: person %s listed with different details", ErrMalformed, row, author.ID)
		}
		authors[author.ID] = author

		if prev, ok := books[book.ID]; ok {
			cmp := *prev
			cmp.Contributors = nil
			if !reflect.DeepEqual(cmp, book) {
				return nil, fmt.Errorf("%w: row %d: work %s listed with different details", ErrMalformed, row, book.ID)
			}
		} else {
			b := book
			books[book.ID] = &b
		}

		key := [2]string{book.ID, author.ID}
		if seen[key] {
			return nil, fmt.Errorf("%w: row %d: work %s lists person %s twice", ErrMalformed, row, book.ID, author.ID)
		}
		seen[key] = true
		books[book.ID].Contributors = append(books[book.ID].Contributors, models.Contributor{
			AuthorID: author.ID,
			Role:     record[colRole],
		})
	}

	l := &List{
		Books:   make([]models.Book, 0, len(books)),
		Authors: make([]models.Author, 0, len(authors)),
		authors: make(map[string]int, len(authors)),
	}
	for _, b := range books {
		l.Books = append(l.Books, *b)
	}
	for _, a := range authors {
		l.Authors = append(l.Authors, a)
	}
	sort.Slice(l.Books, func(i, j int) bool { return l.Books[i].ID < l.Books[j].ID })
	sort.Slice(l.Authors, func(i, j int) bool { return l.Authors[i].ID < l.Authors[j].ID })
	for i, a := range l.Authors {
		l.authors[a.ID] = i
	}
	return l, nil
}

func parseBook(record []string) (models.Book, error) {
	copyright, err := parseFlag(record[colBookCopyright])
	if err != nil {
		return models.Book{}, fmt.Errorf("work copyright: %w", err)
	}
	published, err := parseDate(record[colPublishedAt])
	if err != nil {
		return models.Book{}, fmt.Errorf("published date: %w", err)
	}
	updated, err := parseDate(record[colUpdatedAt])
	if err != nil {
		return models.Book{}, fmt.Errorf("updated date: %w", err)
	}

	b := models.Book{
		ID:              record[colBookID],
		Title:           record[colTitle],
		TitleKana:       record[colTitleKana],
		SortKey:         record[colSortKey],
		Subtitle:        record[colSubtitle],
		SubtitleKana:    record[colSubtitleKana],
		OriginalTitle:   record[colOriginalTitle],
		WritingSystem:   record[colWritingSystem],
		Copyright:       copyright,
		PublishedAt:     published,
		UpdatedAt:       updated,
		InputterName:    record[colInputter],
		ProofreaderName: record[colProofreader],
		TextURL:         record[colTextURL],
		TextEncoding:    record[colTextEncoding],
	}
	for _, i := range []int{colOriginalBook1, colOriginalBook2} {
		f := record[i : i+originalBookWidth]
		if f[0] == "" {
			continue
		}
		b.OriginalBooks = append(b.OriginalBooks, models.OriginalBook{
			Title:                  f[0],
			Publisher:              f[1],
			FirstEditionDate:       f[2],
			InputEdition:           f[3],
			ProofreadingEdition:    f[4],
			ParentTitle:            f[5],
			ParentPublisher:        f[6],
			ParentFirstEditionDate: f[7],
		})
	}
	return b, nil
}

func parseAuthor(record []string) (models.Author, error) {
	copyright, err := parseFlag(record[colAuthorCopy])
	if err != nil {
		return models.Author{}, fmt.Errorf("person copyright: %w", err)
	}
	return models.Author{
		ID:               record[colAuthorID],
		LastName:         record[colAuthorID+1],
		FirstName:        record[colAuthorID+2],
		LastNameKana:     record[colAuthorID+3],
		FirstNameKana:    record[colAuthorID+4],
		LastNameSortKey:  record[colAuthorID+5],
		FirstNameSortKey: record[colAuthorID+6],
		LastNameRomaji:   record[colAuthorID+7],
		FirstNameRomaji:  record[colAuthorID+8],
		BirthDate:        record[colBirthDate],
		DeathDate:        record[colDeathDate],
		Copyright:        copyright,
	}, nil
}

func parseFlag(s string) (bool, error) {
	switch s {
	case "あり":
		return true, nil
	case "なし":
		return false, nil
	}
	return false, fmt.Errorf("%w: unknown copyright flag %q", ErrMalformed, s)
}

// parseDate accepts Y, Y-M or Y-M-D with "-" or "/" separators and stray
// spaces, and returns it zero-padded with "-" separators.
func parseDate(s string) (string, error) {
	s = strings.ReplaceAll(s, " ", "")
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '/' })
	if len(parts) == 0 || len(parts) > 3 {
		return "", fmt.Errorf("%w: invalid date %q", ErrMalformed, s)
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return "", fmt.Errorf("%w: invalid date %q", ErrMalformed, s)
		}
		if i == 0 {
			out[i] = fmt.Sprintf("%04d", n)
		} else {
			out[i] = fmt.Sprintf("%02d", n)
		}
	}
	return strings.Join(out, "-"), nil
}
