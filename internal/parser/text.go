package parser

import (
	"fmt"
	"strings"
)

// Text returns the reading text of segs: plain text, ruby bases and
// resolved characters in source order. Content-free segments contribute
// nothing; an unresolved external character contributes its raw notation.
func Text(segs []Segment) string {
	var b strings.Builder
	writeText(&b, segs)
	return b.String()
}

func writeText(b *strings.Builder, segs []Segment) {
	for _, seg := range segs {
		b.WriteString(segmentText(seg))
	}
}

func segmentText(seg Segment) string {
	switch s := seg.(type) {
	case PlainText:
		return s.Text
	case Ruby:
		return s.Base
	case Emphasis:
		return Text(s.Children)
	case Heading:
		return Text(s.Children)
	case IndentBlock:
		return Text(s.Children)
	case CenterAlign:
		return Text(s.Children)
	case Warichu:
		return Text(s.Children)
	case Caption:
		return Text(s.Children)
	case ExternalChar:
		if s.OK {
			return string(s.Resolved)
		}
		return s.Raw
	case PageBreak, Kunten, UnknownAnnotation, Image:
		return ""
	default:
		panic(fmt.Sprintf("parser: unhandled segment %T", seg))
	}
}

// Children returns the nested segments of a block segment, or nil.
func Children(seg Segment) []Segment {
	switch s := seg.(type) {
	case Emphasis:
		return s.Children
	case Heading:
		return s.Children
	case IndentBlock:
		return s.Children
	case CenterAlign:
		return s.Children
	case Warichu:
		return s.Children
	case Caption:
		return s.Children
	}
	return nil
}

// Walk calls fn for every segment of the tree in source order, parents
// before their children.
func Walk(segs []Segment, fn func(Segment)) {
	for _, seg := range segs {
		fn(seg)
		Walk(Children(seg), fn)
	}
}
