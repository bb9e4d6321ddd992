package parser

import "fmt"

// WarningKind classifies a recoverable irregularity in the source.
type WarningKind int

const (
	UnterminatedBlock WarningKind = iota
	MismatchedClose
	UnrecognizedDirective
	UnresolvedExternalChar
	UnterminatedBracket
	DanglingRuby
	UnmatchedTarget
	ImplicitClose
	MissingColophon
)

var warningNames = [...]string{
	UnterminatedBlock:      "unterminated_block",
	MismatchedClose:        "mismatched_close",
	UnrecognizedDirective:  "unrecognized_directive",
	UnresolvedExternalChar: "unresolved_external_char",
	UnterminatedBracket:    "unterminated_bracket",
	DanglingRuby:           "dangling_ruby",
	UnmatchedTarget:        "unmatched_target",
	ImplicitClose:          "implicit_close",
	MissingColophon:        "missing_colophon",
}

func (k WarningKind) String() string {
	if int(k) < len(warningNames) {
		return warningNames[k]
	}
	return "invalid"
}

// Warning is attached to a parse result instead of failing the document.
// Line is 1-based within the parsed text; Section is set by ParseBook.
type Warning struct {
	Kind    WarningKind
	Line    int
	Detail  string
	Section Section
}

func (w Warning) String() string {
	if w.Section != "" {
		return fmt.Sprintf("%s line %d: %s: %s", w.Section, w.Line, w.Kind, w.Detail)
	}
	return fmt.Sprintf("line %d: %s: %s", w.Line, w.Kind, w.Detail)
}

// Result is the output of one parse.
type Result struct {
	Segments []Segment
	Warnings []Warning
}

// HasWarning reports whether r carries a warning of kind k.
func (r Result) HasWarning(k WarningKind) bool {
	for _, w := range r.Warnings {
		if w.Kind == k {
			return true
		}
	}
	return false
}
