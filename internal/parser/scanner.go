package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/starford/aozoraconv/internal/charmap"
)

type lexState int

const (
	statePlain lexState = iota
	stateDirective
	stateRuby
	stateGaiji
	stateWarichu
)

// Rune lengths of the bracket openers.
const (
	gaijiOpenLen     = 3 // ※［＃
	directiveOpenLen = 2 // ［＃
)

// frame is an open block on the scanner stack. Only the field matching kind
// is meaningful.
type frame struct {
	kind       frameKind
	lineScoped bool
	line       int
	indent     IndentBlock
	heading    Heading
	emphasis   Emphasis
	children   []Segment
}

func (f *frame) build() Segment {
	switch f.kind {
	case frameIndent:
		b := f.indent
		b.Children = f.children
		return b
	case frameHeading:
		h := f.heading
		h.Children = f.children
		return h
	case frameEmphasis:
		e := f.emphasis
		e.Children = f.children
		return e
	case frameCenter:
		return CenterAlign{Children: f.children}
	case frameCaption:
		return Caption{Children: f.children}
	case frameWarichu:
		return Warichu{Children: f.children}
	}
	panic("parser: build called on root frame")
}

// closedBy reports whether the close directive c ends f.
func (f *frame) closedBy(c frame) bool {
	if f.kind != c.kind {
		return false
	}
	switch f.kind {
	case frameIndent:
		return f.indent.Style == c.indent.Style
	case frameEmphasis:
		return f.emphasis.Kind == c.emphasis.Kind
	}
	return true
}

type scanner struct {
	tables   *charmap.Tables
	rs       []rune
	pos      int
	line     int
	state    lexState
	stack    []*frame
	text     []rune // pending plain text of the top frame
	offset   int    // runes of reading text emitted so far
	warnings []Warning
}

// Parse converts one document into segments. It never fails: every
// irregularity in the notation is recovered locally and reported as a
// warning. A nil tables uses the built-in tables.
func Parse(tables *charmap.Tables, text string) Result {
	if tables == nil {
		tables = charmap.New()
	}
	s := &scanner{
		tables: tables,
		rs:     []rune(text),
		line:   1,
		stack:  []*frame{{kind: frameRoot}},
	}
	s.run()
	return Result{Segments: s.stack[0].children, Warnings: s.warnings}
}

func (s *scanner) run() {
	for s.pos < len(s.rs) {
		switch s.state {
		case statePlain, stateWarichu:
			s.scanPlain()
		case stateDirective:
			s.scanDirective()
		case stateRuby:
			s.scanRuby()
		case stateGaiji:
			s.scanGaiji()
		}
	}
	s.finish()
}

func (s *scanner) scanPlain() {
	r := s.rs[s.pos]
	switch r {
	case '※':
		if hasPrefix(s.rs, s.pos, "※［＃") {
			s.state = stateGaiji
			return
		}
	case '［':
		if hasPrefix(s.rs, s.pos, "［＃") {
			s.state = stateDirective
			return
		}
	case '｜', '《':
		s.state = stateRuby
		return
	case '\n', '\r':
		s.newline()
		return
	case '〔':
		if s.scanAccent() {
			return
		}
	case '／':
		if mark, n := s.tables.RepeatMark(s.rs, s.pos); n > 0 {
			s.appendRune(mark)
			s.pos += n
			return
		}
	}
	if kana, ok := s.tables.VariantKana(r); ok {
		s.appendText(kana)
	} else {
		s.appendRune(r)
	}
	s.pos++
}

func (s *scanner) newline() {
	s.closeLineFrames()
	if s.rs[s.pos] == '\r' && s.pos+1 < len(s.rs) && s.rs[s.pos+1] == '\n' {
		s.appendText("\r\n")
		s.pos += 2
	} else {
		s.appendRune(s.rs[s.pos])
		s.pos++
	}
	s.line++
}

// scanAccent composes a 〔…〕 span. It reports false when the span is not
// accent notation, leaving 〔 to be copied literally.
func (s *scanner) scanAccent() bool {
	end := findOnLine(s.rs, s.pos+1, '〕')
	if end < 0 {
		return false
	}
	inner := s.rs[s.pos+1 : end]
	for _, r := range inner {
		if strings.ContainsRune("［］《》｜※〔／", r) {
			return false
		}
	}
	composed, ok := s.tables.ComposeAccents(string(inner))
	if !ok {
		return false
	}
	s.appendText(composed)
	s.pos = end + 1
	return true
}

func (s *scanner) scanGaiji() {
	s.state = s.plainState()
	start := s.pos
	end, ok := closingBracket(s.rs, start+gaijiOpenLen)
	if !ok {
		s.warn(UnterminatedBracket, "external character notation is not closed on its line")
		s.appendText("※［＃")
		s.pos += gaijiOpenLen
		return
	}
	raw := string(s.rs[start : end+1])
	s.pos = end + 1

	ec := s.resolveGaiji(string(s.rs[start+gaijiOpenLen:end]), raw, true)
	s.emit(ec)
	s.offset += utf8.RuneCountInString(segmentText(ec))
}

func (s *scanner) resolveGaiji(payload, raw string, warn bool) ExternalChar {
	if r, ok := s.tables.Gaiji(payload); ok {
		return ExternalChar{Resolved: r, OK: true, Raw: raw}
	}
	if warn {
		s.warn(UnresolvedExternalChar, raw)
	}
	return ExternalChar{Raw: raw}
}

func (s *scanner) scanDirective() {
	s.state = s.plainState()
	start := s.pos
	end, ok := closingBracket(s.rs, start+directiveOpenLen)
	if !ok {
		s.warn(UnterminatedBracket, "directive is not closed on its line")
		s.appendText("［＃")
		s.pos += directiveOpenLen
		return
	}
	raw := string(s.rs[start : end+1])
	s.pos = end + 1

	s.applyDirective(string(s.rs[start+directiveOpenLen:end]), raw)
	s.state = s.plainState()
}

func (s *scanner) applyDirective(payload, raw string) {
	// An empty directive is an inputter's note marker, kept as text.
	if payload == "" {
		s.appendText(raw)
		return
	}

	d := classify(payload)
	switch d.kind {
	case dirPageBreak:
		s.pageBreak(d.brk)
	case dirOpen:
		s.open(d.frame, false)
	case dirLineOpen:
		s.open(d.frame, true)
	case dirClose:
		s.close(d.frame, raw)
	case dirRetro:
		s.retro(d.frame, d.target, raw)
	case dirCorrection:
		s.correction(d.target)
	case dirKunten:
		k := d.kunten
		k.AttachedTo = s.offset - 1
		s.emit(k)
	case dirImage:
		img := d.image
		img.Raw = raw
		s.emit(img)
	default:
		s.emit(UnknownAnnotation{Raw: raw})
		s.warn(UnrecognizedDirective, payload)
	}
}

func (s *scanner) open(f frame, lineScoped bool) {
	s.flush()
	f.lineScoped = lineScoped
	f.line = s.line
	f.children = nil
	s.stack = append(s.stack, &f)
}

func (s *scanner) close(c frame, raw string) {
	s.flush()
	// A close may end the innermost block or a line block of the same
	// style; line blocks above the match end with it.
	for i := len(s.stack) - 1; i > 0; i-- {
		f := s.stack[i]
		if f.closedBy(c) {
			for len(s.stack) > i {
				s.pop()
			}
			return
		}
		if !f.lineScoped {
			break
		}
	}
	s.emit(UnknownAnnotation{Raw: raw})
	s.warn(MismatchedClose, raw)
}

// pageBreak ends a centered page before emitting the break.
func (s *scanner) pageBreak(k BreakKind) {
	if idx := s.find(frameCenter); idx > 0 {
		s.flush()
		for len(s.stack)-1 > idx {
			if top := s.top(); !top.lineScoped {
				s.warn(ImplicitClose, "block closed by page break")
			}
			s.pop()
		}
		s.pop()
	}
	s.emit(PageBreak{Kind: k})
}

// retro wraps the text just emitted that reads as target.
func (s *scanner) retro(f frame, target, raw string) {
	s.flush()
	want := s.inlineText([]rune(target), false)
	top := s.top()
	keep, taken, ok := takeSuffix(top.children, want)
	if !ok {
		s.emit(UnknownAnnotation{Raw: raw})
		s.warn(UnmatchedTarget, target)
		return
	}
	f.children = taken
	top.children = append(keep, f.build())
}

// correction drops a correction note, keeping the quoted original text
// unless it was already emitted.
func (s *scanner) correction(target string) {
	if target == "" {
		return
	}
	want := s.inlineText([]rune(target), false)
	if strings.HasSuffix(s.trailingText(len(want)), want) {
		return
	}
	s.appendText(want)
}

func (s *scanner) scanRuby() {
	s.state = s.plainState()
	if s.rs[s.pos] == '｜' {
		s.explicitRuby()
		return
	}
	s.implicitRuby()
}

func (s *scanner) explicitRuby() {
	open := -1
	for i := s.pos + 1; i < len(s.rs); i++ {
		r := s.rs[i]
		if r == '\n' || r == '\r' || r == '｜' || r == '》' {
			break
		}
		if r == '［' && s.rs[i-1] != '※' {
			break
		}
		if r == '《' {
			open = i
			break
		}
	}
	end := -1
	if open > s.pos+1 {
		end = findOnLine(s.rs, open+1, '》')
	}
	if end <= open+1 {
		s.appendRune('｜')
		s.pos++
		return
	}

	base := s.inlineText(s.rs[s.pos+1:open], true)
	reading := s.inlineText(s.rs[open+1:end], true)
	s.emit(Ruby{Base: base, Reading: reading, Explicit: true})
	s.offset += utf8.RuneCountInString(base)
	s.pos = end + 1
}

func (s *scanner) implicitRuby() {
	end := findOnLine(s.rs, s.pos+1, '》')
	if end < 0 {
		s.warn(UnterminatedBracket, "ruby reading is not closed on its line")
		s.appendRune('《')
		s.pos++
		return
	}
	if end == s.pos+1 {
		s.appendRune('《')
		s.pos++
		return
	}

	reading := s.inlineText(s.rs[s.pos+1:end], true)
	s.flush()
	if !s.attachRuby(reading) {
		s.warn(DanglingRuby, reading)
		s.appendText(string(s.rs[s.pos : end+1]))
	}
	s.pos = end + 1
}

// attachRuby turns the trailing run of same-class characters of the top
// frame into the base of a ruby.
func (s *scanner) attachRuby(reading string) bool {
	top := s.top()
	ch := top.children
	class := charmap.ClassOther
	var parts []string
	cut := len(ch)
	var rest []Segment

scan:
	for i := len(ch) - 1; i >= 0; i-- {
		switch c := ch[i].(type) {
		case PlainText:
			rs := []rune(c.Text)
			j := len(rs)
			for ; j > 0; j-- {
				cl := charmap.ClassOf(rs[j-1])
				if class == charmap.ClassOther {
					class = cl
				}
				if cl != class || cl == charmap.ClassOther {
					break
				}
			}
			if j == len(rs) {
				break scan
			}
			parts = append(parts, string(rs[j:]))
			cut = i
			if j > 0 {
				rest = []Segment{PlainText{Text: string(rs[:j])}}
				break scan
			}
		case ExternalChar:
			cl := externalClass(c)
			if class == charmap.ClassOther {
				class = cl
			}
			if cl != class {
				break scan
			}
			parts = append(parts, segmentText(c))
			cut = i
		default:
			break scan
		}
	}
	if len(parts) == 0 {
		return false
	}

	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteString(parts[i])
	}
	out := append(ch[:cut:cut], rest...)
	top.children = append(out, Ruby{Base: b.String(), Reading: reading})
	return true
}

// Unresolved external characters are almost always kanji.
func externalClass(c ExternalChar) charmap.Class {
	if !c.OK {
		return charmap.ClassKanji
	}
	if cl := charmap.ClassOf(c.Resolved); cl != charmap.ClassOther {
		return cl
	}
	return charmap.ClassKanji
}

// inlineText resolves the notation allowed inside ruby and quoted targets:
// external characters, repeat marks and variant kana.
func (s *scanner) inlineText(rs []rune, warn bool) string {
	var b strings.Builder
	for i := 0; i < len(rs); {
		r := rs[i]
		if r == '※' && hasPrefix(rs, i, "※［＃") {
			if end, ok := closingBracket(rs, i+gaijiOpenLen); ok {
				ec := s.resolveGaiji(string(rs[i+gaijiOpenLen:end]), string(rs[i:end+1]), warn)
				b.WriteString(segmentText(ec))
				i = end + 1
				continue
			}
		}
		if mark, n := s.tables.RepeatMark(rs, i); n > 0 {
			b.WriteRune(mark)
			i += n
			continue
		}
		if kana, ok := s.tables.VariantKana(r); ok {
			b.WriteString(kana)
		} else {
			b.WriteRune(r)
		}
		i++
	}
	return b.String()
}

func (s *scanner) finish() {
	s.flush()
	warned := false
	for len(s.stack) > 1 {
		top := s.top()
		if !warned && !top.lineScoped && top.kind != frameCenter {
			s.warnAt(top.line, UnterminatedBlock, "block still open at end of text")
			warned = true
		}
		s.pop()
	}
}

// closeLineFrames ends the blocks that apply to the current line only.
// A multi-line block opened inside one of them stays open and moves to the
// line block's parent.
func (s *scanner) closeLineFrames() {
	s.flush()
	for i := len(s.stack) - 1; i > 0; i-- {
		f := s.stack[i]
		if !f.lineScoped {
			continue
		}
		parent := s.stack[i-1]
		parent.children = appendSegment(parent.children, f.build())
		s.stack = append(s.stack[:i], s.stack[i+1:]...)
	}
	s.state = s.plainState()
}

func (s *scanner) pop() {
	s.flush()
	top := s.top()
	s.stack = s.stack[:len(s.stack)-1]
	s.appendChild(top.build())
	s.state = s.plainState()
}

func (s *scanner) top() *frame {
	return s.stack[len(s.stack)-1]
}

func (s *scanner) find(kind frameKind) int {
	for i := len(s.stack) - 1; i > 0; i-- {
		if s.stack[i].kind == kind {
			return i
		}
	}
	return -1
}

func (s *scanner) plainState() lexState {
	if s.top().kind == frameWarichu {
		return stateWarichu
	}
	return statePlain
}

// trailingText returns at least n bytes of the reading text that ends the
// top frame, or all of it when shorter.
func (s *scanner) trailingText(n int) string {
	acc := string(s.text)
	ch := s.top().children
	for i := len(ch) - 1; i >= 0 && len(acc) < n; i-- {
		acc = segmentText(ch[i]) + acc
	}
	return acc
}

func (s *scanner) appendRune(r rune) {
	s.text = append(s.text, r)
	s.offset++
}

func (s *scanner) appendText(t string) {
	for _, r := range t {
		s.appendRune(r)
	}
}

func (s *scanner) flush() {
	if len(s.text) == 0 {
		return
	}
	s.appendChild(PlainText{Text: string(s.text)})
	s.text = s.text[:0]
}

func (s *scanner) emit(seg Segment) {
	s.flush()
	s.appendChild(seg)
}

// appendChild adds seg to the top frame, merging adjacent plain text.
func (s *scanner) appendChild(seg Segment) {
	top := s.top()
	top.children = appendSegment(top.children, seg)
}

func appendSegment(children []Segment, seg Segment) []Segment {
	if pt, ok := seg.(PlainText); ok && len(children) > 0 {
		last := len(children) - 1
		if prev, ok := children[last].(PlainText); ok {
			children[last] = PlainText{Text: prev.Text + pt.Text}
			return children
		}
	}
	return append(children, seg)
}

func (s *scanner) warn(kind WarningKind, detail string) {
	s.warnAt(s.line, kind, detail)
}

func (s *scanner) warnAt(line int, kind WarningKind, detail string) {
	s.warnings = append(s.warnings, Warning{Kind: kind, Line: line, Detail: detail})
}

// takeSuffix splits children so that taken reads exactly as want. A plain
// text child may be split at the boundary.
func takeSuffix(children []Segment, want string) (keep, taken []Segment, ok bool) {
	if want == "" {
		return nil, nil, false
	}
	acc := ""
	for i := len(children) - 1; i >= 0; i-- {
		t := segmentText(children[i])
		next := t + acc
		switch {
		case next == want:
			return children[:i:i], append([]Segment(nil), children[i:]...), true
		case strings.HasSuffix(want, next):
			acc = next
		case strings.HasSuffix(next, want):
			pt, isText := children[i].(PlainText)
			if !isText {
				return nil, nil, false
			}
			cut := len(next) - len(want)
			keep = append(children[:i:i], PlainText{Text: pt.Text[:cut]})
			taken = append([]Segment{PlainText{Text: pt.Text[cut:]}}, children[i+1:]...)
			return keep, taken, true
		default:
			return nil, nil, false
		}
	}
	return nil, nil, false
}

// closingBracket finds the ］ matching a bracket opened just before from,
// counting nested ［＃ openings. Brackets never span lines.
func closingBracket(rs []rune, from int) (int, bool) {
	depth := 0
	for i := from; i < len(rs); i++ {
		switch rs[i] {
		case '\n', '\r':
			return 0, false
		case '［':
			if i+1 < len(rs) && rs[i+1] == '＃' {
				depth++
			}
		case '］':
			if depth == 0 {
				return i, true
			}
			depth--
		}
	}
	return 0, false
}

func findOnLine(rs []rune, from int, target rune) int {
	for i := from; i < len(rs); i++ {
		switch rs[i] {
		case target:
			return i
		case '\n', '\r':
			return -1
		}
	}
	return -1
}

func hasPrefix(rs []rune, i int, prefix string) bool {
	for _, r := range prefix {
		if i >= len(rs) || rs[i] != r {
			return false
		}
		i++
	}
	return true
}
