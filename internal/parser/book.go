package parser

import (
	"regexp"
	"strings"

	"github.com/starford/aozoraconv/internal/charmap"
)

// Section names a part of a book file.
type Section string

const (
	SectionHeader   Section = "header"
	SectionBody     Section = "body"
	SectionColophon Section = "colophon"
)

// Book is a parsed book file: the title lines, the main text and the
// colophon that starts at the first "底本：" or "底本「" line.
type Book struct {
	Header   []Segment
	Body     []Segment
	Colophon []Segment
	Warnings []Warning
}

const noticeTitle = "【テキスト中に現れる記号について】"

var colophonRe = regexp.MustCompile(`^底本(?:・初出)?[：:「]`)

// ParseBook splits text into its sections and parses each one. Line endings
// are normalized to "\n". Hyphen rules in the body separate blocks: the
// notation notice block is dropped and the remaining blocks are joined by
// page breaks. Without a colophon the whole remainder is body.
func ParseBook(tables *charmap.Tables, text string) Book {
	lines := splitLines(text)

	i := 0
	for i < len(lines) && lines[i] != "" {
		i++
	}
	header := lines[:i]
	for i < len(lines) && lines[i] == "" {
		i++
	}
	rest := lines[i:]

	end := -1
	for j, l := range rest {
		if colophonRe.MatchString(l) {
			end = j
			break
		}
	}

	var b Book
	b.Header = b.parse(tables, SectionHeader, strings.Join(trimBlank(header), "\n"))
	if end < 0 {
		b.Body = b.parse(tables, SectionBody, bodyText(rest))
		b.Warnings = append(b.Warnings, Warning{
			Kind:    MissingColophon,
			Line:    len(lines),
			Detail:  "no 底本 line found",
			Section: SectionBody,
		})
		return b
	}
	b.Body = b.parse(tables, SectionBody, bodyText(rest[:end]))
	b.Colophon = b.parse(tables, SectionColophon, strings.Join(trimBlank(rest[end:]), "\n"))
	return b
}

func (b *Book) parse(tables *charmap.Tables, section Section, text string) []Segment {
	res := Parse(tables, text)
	for _, w := range res.Warnings {
		w.Section = section
		b.Warnings = append(b.Warnings, w)
	}
	return res.Segments
}

func bodyText(lines []string) string {
	var blocks [][]string
	cur := []string{}
	for _, l := range lines {
		if isRule(l) {
			blocks = append(blocks, cur)
			cur = []string{}
			continue
		}
		cur = append(cur, l)
	}
	blocks = append(blocks, cur)

	var out strings.Builder
	for _, blk := range blocks {
		blk = trimBlank(blk)
		if len(blk) == 0 || blk[0] == noticeTitle {
			continue
		}
		if out.Len() > 0 && !strings.HasSuffix(out.String(), "［＃改ページ］") {
			out.WriteString("［＃改ページ］")
		}
		out.WriteString(strings.Join(blk, "\n"))
	}
	return out.String()
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

func isRule(line string) bool {
	return line != "" && strings.Trim(line, "-") == ""
}

func trimBlank(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
