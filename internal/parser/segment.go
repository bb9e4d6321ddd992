// Package parser turns annotated ruby-txt into an ordered tree of typed
// segments.
package parser

// Kind identifies a segment variant.
type Kind int

const (
	KindPlainText Kind = iota
	KindRuby
	KindEmphasis
	KindHeading
	KindIndentBlock
	KindCenterAlign
	KindPageBreak
	KindKunten
	KindWarichu
	KindExternalChar
	KindUnknownAnnotation
	KindCaption
	KindImage
)

var kindNames = [...]string{
	KindPlainText:         "text",
	KindRuby:              "ruby",
	KindEmphasis:          "emphasis",
	KindHeading:           "heading",
	KindIndentBlock:       "indent",
	KindCenterAlign:       "center",
	KindPageBreak:         "page_break",
	KindKunten:            "kunten",
	KindWarichu:           "warichu",
	KindExternalChar:      "gaiji",
	KindUnknownAnnotation: "unknown",
	KindCaption:           "caption",
	KindImage:             "image",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Segment is one element of a parsed document. The set of variants is
// closed: only types in this package implement it.
type Segment interface {
	Type() Kind
	segment()
}

// PlainText is literal passthrough text.
type PlainText struct {
	Text string
}

// Ruby is a base run with a phonetic reading.
type Ruby struct {
	Base     string
	Reading  string
	Explicit bool
}

// EmphasisKind is the family of an emphasis span.
type EmphasisKind int

const (
	EmphasisDot EmphasisKind = iota
	EmphasisLine
	EmphasisBold
	EmphasisItalic
)

func (k EmphasisKind) String() string {
	switch k {
	case EmphasisDot:
		return "dot"
	case EmphasisLine:
		return "line"
	case EmphasisBold:
		return "bold"
	case EmphasisItalic:
		return "italic"
	}
	return "invalid"
}

// Side is the side of the text an emphasis mark is drawn on.
type Side int

const (
	SideRight Side = iota
	SideLeft
)

func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

// Emphasis wraps a span marked with dots, lines, bold or italic. Style names
// the mark shape for dot and line emphasis, e.g. "sesame" or "wave".
type Emphasis struct {
	Kind     EmphasisKind
	Style    string
	Side     Side
	Children []Segment
}

// HeadingStyle is how a heading sits in the text flow.
type HeadingStyle int

const (
	HeadingNormal HeadingStyle = iota
	HeadingSameLine
	HeadingWindow
)

func (s HeadingStyle) String() string {
	switch s {
	case HeadingSameLine:
		return "same_line"
	case HeadingWindow:
		return "window"
	}
	return "normal"
}

// HeadingLevel is the size of a heading.
type HeadingLevel int

const (
	HeadingLarge HeadingLevel = iota
	HeadingMedium
	HeadingSmall
)

func (l HeadingLevel) String() string {
	switch l {
	case HeadingLarge:
		return "large"
	case HeadingMedium:
		return "medium"
	}
	return "small"
}

// Heading is a heading block.
type Heading struct {
	Style    HeadingStyle
	Level    HeadingLevel
	Children []Segment
}

// IndentStyle is the alignment of an indent block.
type IndentStyle int

const (
	// IndentPlain indents Level characters from the top.
	IndentPlain IndentStyle = iota
	// IndentCenteredBottom sets the text flush against the bottom.
	IndentCenteredBottom
	// IndentCenteredAlign raises the text Level characters from the bottom.
	IndentCenteredAlign
)

func (s IndentStyle) String() string {
	switch s {
	case IndentCenteredBottom:
		return "bottom"
	case IndentCenteredAlign:
		return "raised"
	}
	return "plain"
}

// IndentBlock is an indented or bottom-aligned region. Wrap is the indent of
// wrapped lines and equals Level unless the source says otherwise.
type IndentBlock struct {
	Level    int
	Wrap     int
	Style    IndentStyle
	Children []Segment
}

// CenterAlign centers its children on the page.
type CenterAlign struct {
	Children []Segment
}

// BreakKind is the kind of a page break.
type BreakKind int

const (
	BreakNewSignature BreakKind = iota
	BreakNewPage
	BreakNewSpread
	BreakNewColumn
)

func (k BreakKind) String() string {
	switch k {
	case BreakNewSignature:
		return "new_signature"
	case BreakNewSpread:
		return "new_spread"
	case BreakNewColumn:
		return "new_column"
	}
	return "new_page"
}

// PageBreak is a content-free paging directive.
type PageBreak struct {
	Kind BreakKind
}

// KuntenMark is the family of a classical reading mark.
type KuntenMark int

const (
	KuntenOneTwo KuntenMark = iota
	KuntenUpperLower
	KuntenFirstSecond
	KuntenRe
	KuntenOkurigana
)

func (m KuntenMark) String() string {
	switch m {
	case KuntenOneTwo:
		return "one_two"
	case KuntenUpperLower:
		return "upper_lower"
	case KuntenFirstSecond:
		return "first_second"
	case KuntenRe:
		return "re"
	}
	return "okurigana"
}

// Kunten is a reading mark bound to one character. AttachedTo is the rune
// offset of that character in the document's reading text, or -1 when the
// mark precedes all text. Order is the position within the mark family
// (一=0, 二=1, ...). Reading holds the kana of an okurigana mark.
type Kunten struct {
	Mark       KuntenMark
	Order      int
	Re         bool
	Reading    string
	AttachedTo int
}

// Warichu is an inline aside set in two half-size lines.
type Warichu struct {
	Children []Segment
}

// Text returns the aside as reading text.
func (w Warichu) Text() string {
	return Text(w.Children)
}

// ExternalChar is a character outside the source encoding. Raw is the
// notation exactly as written; Resolved is set only when OK.
type ExternalChar struct {
	Resolved rune
	OK       bool
	Raw      string
}

// UnknownAnnotation is a directive the parser does not interpret.
type UnknownAnnotation struct {
	Raw string
}

// Caption is the caption of a figure.
type Caption struct {
	Children []Segment
}

// Image is an inserted figure.
type Image struct {
	Path string
	Alt  string
	Raw  string
}

func (PlainText) Type() Kind         { return KindPlainText }
func (Ruby) Type() Kind              { return KindRuby }
func (Emphasis) Type() Kind          { return KindEmphasis }
func (Heading) Type() Kind           { return KindHeading }
func (IndentBlock) Type() Kind       { return KindIndentBlock }
func (CenterAlign) Type() Kind       { return KindCenterAlign }
func (PageBreak) Type() Kind         { return KindPageBreak }
func (Kunten) Type() Kind            { return KindKunten }
func (Warichu) Type() Kind           { return KindWarichu }
func (ExternalChar) Type() Kind      { return KindExternalChar }
func (UnknownAnnotation) Type() Kind { return KindUnknownAnnotation }
func (Caption) Type() Kind           { return KindCaption }
func (Image) Type() Kind             { return KindImage }

func (PlainText) segment()         {}
func (Ruby) segment()              {}
func (Emphasis) segment()          {}
func (Heading) segment()           {}
func (IndentBlock) segment()       {}
func (CenterAlign) segment()       {}
func (PageBreak) segment()         {}
func (Kunten) segment()            {}
func (Warichu) segment()           {}
func (ExternalChar) segment()      {}
func (UnknownAnnotation) segment() {}
func (Caption) segment()           {}
func (Image) segment()             {}
