package export

import (
	"fmt"

	"github.com/starford/aozoraconv/internal/parser"
)

// Node is the JSON shape of one segment. Type is the discriminator; the
// other fields are set according to it.
type Node struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Base     string `json:"base,omitempty"`
	Reading  string `json:"reading,omitempty"`
	Explicit bool   `json:"explicit,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Style    string `json:"style,omitempty"`
	Side     string `json:"side,omitempty"`
	Size     string `json:"size,omitempty"`
	Level    *int   `json:"level,omitempty"`
	Wrap     *int   `json:"wrap,omitempty"`
	Order    *int   `json:"order,omitempty"`
	Re       bool   `json:"re,omitempty"`
	Attached *int   `json:"attached_to,omitempty"`
	Char     string `json:"char,omitempty"`
	Resolved *bool  `json:"resolved,omitempty"`
	Raw      string `json:"raw,omitempty"`
	Path     string `json:"path,omitempty"`
	Alt      string `json:"alt,omitempty"`
	Children []Node `json:"children,omitempty"`
}

// Nodes converts a segment tree. It panics on a segment type it does not
// know, so a new variant cannot be silently dropped from the output.
func Nodes(segs []parser.Segment) []Node {
	out := make([]Node, 0, len(segs))
	for _, s := range segs {
		out = append(out, node(s))
	}
	return out
}

func node(seg parser.Segment) Node {
	n := Node{Type: seg.Type().String()}
	switch s := seg.(type) {
	case parser.PlainText:
		n.Text = s.Text
	case parser.Ruby:
		n.Base, n.Reading, n.Explicit = s.Base, s.Reading, s.Explicit
	case parser.Emphasis:
		n.Kind, n.Style, n.Side = s.Kind.String(), s.Style, s.Side.String()
		n.Children = Nodes(s.Children)
	case parser.Heading:
		n.Style, n.Size = s.Style.String(), s.Level.String()
		n.Children = Nodes(s.Children)
	case parser.IndentBlock:
		n.Style = s.Style.String()
		n.Level, n.Wrap = intp(s.Level), intp(s.Wrap)
		n.Children = Nodes(s.Children)
	case parser.CenterAlign:
		n.Children = Nodes(s.Children)
	case parser.PageBreak:
		n.Kind = s.Kind.String()
	case parser.Kunten:
		n.Kind, n.Re, n.Reading = s.Mark.String(), s.Re, s.Reading
		n.Attached = intp(s.AttachedTo)
		if s.Mark != parser.KuntenRe && s.Mark != parser.KuntenOkurigana {
			n.Order = intp(s.Order)
		}
	case parser.Warichu:
		n.Text = s.Text()
		n.Children = Nodes(s.Children)
	case parser.ExternalChar:
		ok := s.OK
		n.Resolved, n.Raw = &ok, s.Raw
		if s.OK {
			n.Char = string(s.Resolved)
		}
	case parser.UnknownAnnotation:
		n.Raw = s.Raw
	case parser.Caption:
		n.Children = Nodes(s.Children)
	case parser.Image:
		n.Path, n.Alt, n.Raw = s.Path, s.Alt, s.Raw
	default:
		panic(fmt.Sprintf("export: unhandled segment %T", seg))
	}
	return n
}

func intp(v int) *int {
	return &v
}
