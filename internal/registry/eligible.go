package registry

import (
	"strings"

	"github.com/starford/aozoraconv/internal/models"
)

// Reason explains why a work is left out of a conversion run.
type Reason string

const (
	Eligible          Reason = ""
	ReasonCopyright   Reason = "work_copyright"
	ReasonAuthorRight Reason = "author_copyright"
	ReasonNoText      Reason = "no_text_url"
	ReasonExternal    Reason = "external_text_url"
	ReasonNotArchive  Reason = "not_zip"
)

// Check reports whether b may be converted. A work is excluded when it or
// any of its contributors is still under copyright, or when its text is
// not a zip archive mirrored in the corpus.
func (l *List) Check(b models.Book) Reason {
	if b.Copyright {
		return ReasonCopyright
	}
	for _, c := range b.Contributors {
		if a, ok := l.Author(c.AuthorID); ok && a.Copyright {
			return ReasonAuthorRight
		}
	}
	switch {
	case b.TextURL == "":
		return ReasonNoText
	case !strings.HasPrefix(b.TextURL, TextURLPrefix):
		return ReasonExternal
	case !strings.HasSuffix(b.TextURL, "zip"):
		return ReasonNotArchive
	}
	return Eligible
}

// Eligible returns the works that pass Check, in id order, plus a count of
// exclusions per reason.
func (l *List) Eligible() ([]models.Book, map[Reason]int) {
	var out []models.Book
	skipped := make(map[Reason]int)
	for _, b := range l.Books {
		if r := l.Check(b); r != Eligible {
			skipped[r]++
			continue
		}
		out = append(out, b)
	}
	return out, skipped
}

// ArchivePath maps a text URL to its path relative to the corpus root.
func ArchivePath(textURL string) (string, bool) {
	if !strings.HasPrefix(textURL, TextURLPrefix) {
		return "", false
	}
	p := strings.TrimPrefix(textURL, TextURLPrefix)
	if p == "" {
		return "", false
	}
	return p, true
}
