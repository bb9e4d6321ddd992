// Package charmap holds the read-only lookup tables used while parsing
// annotated text: external characters (gaiji), variant kana, accented Latin
// notation and repeat marks.
//
// A Tables value is built once and never mutated afterwards, so a single
// instance can be shared by any number of concurrent parses.
package charmap

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
)

// JISCode addresses one cell of JIS X 0213.
type JISCode struct {
	Plane int
	Row   int
	Cell  int
}

// Tables is the immutable set of mapping tables.
type Tables struct {
	jis          map[JISCode]rune
	descriptions map[string]rune
	variantKana  map[rune]string
	accents      map[string]rune
	maxAccentLen int
	repeat       []repeatMark
	jis0208      bool
}

type repeatMark struct {
	notation []rune
	mark     rune
}

// Option configures table construction.
type Option func(*Tables)

// WithJIS adds a JIS X 0213 entry. An optional description registers the
// same character under its gaiji description (e.g. "魚＋非").
func WithJIS(code JISCode, r rune, description string) Option {
	return func(t *Tables) {
		t.jis[code] = r
		if description != "" {
			t.descriptions[description] = r
		}
	}
}

// WithDescription registers a character under a gaiji description only.
func WithDescription(description string, r rune) Option {
	return func(t *Tables) {
		t.descriptions[description] = r
	}
}

// WithVariantKana maps a variant kana code point to standard kana.
func WithVariantKana(variant rune, kana string) Option {
	return func(t *Tables) {
		t.variantKana[variant] = kana
	}
}

// WithoutJIS0208Fallback disables resolving plane 1 references through the
// EUC-JP decoder when the JIS table has no entry.
func WithoutJIS0208Fallback() Option {
	return func(t *Tables) {
		t.jis0208 = false
	}
}

// New builds the tables from the built-in data plus opts.
func New(opts ...Option) *Tables {
	t := &Tables{
		jis:          make(map[JISCode]rune),
		descriptions: make(map[string]rune),
		variantKana:  builtinVariantKana(),
		jis0208:      true,
		repeat: []repeatMark{
			{notation: []rune("／″＼"), mark: '〲'},
			{notation: []rune("／＼"), mark: '〱'},
		},
	}
	t.accents = buildAccents()
	for k := range t.accents {
		if n := len([]rune(k)); n > t.maxAccentLen {
			t.maxAccentLen = n
		}
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var (
	variantKanaRe = regexp.MustCompile(`^変体仮名(.)`)
	codepointRe   = regexp.MustCompile(`、U\+([0-9A-Fa-f]{4,6})(?:、|$)`)
	jisRe         = regexp.MustCompile(`、(?:第[34]水準)?([0-9]+)-([0-9]+)-([0-9]+)$`)
	descriptionRe = regexp.MustCompile(`^「([^」]+)」`)
)

// Gaiji resolves the payload of an external character notation, the text
// between "※［＃" and "］". The lookup order is variant kana, explicit code
// point, description, then JIS X 0213 reference.
func (t *Tables) Gaiji(payload string) (rune, bool) {
	if m := variantKanaRe.FindStringSubmatch(payload); m != nil {
		return []rune(m[1])[0], true
	}
	if m := codepointRe.FindStringSubmatch(payload); m != nil {
		cp, err := strconv.ParseUint(m[1], 16, 32)
		if err == nil && utf8.ValidRune(rune(cp)) {
			return rune(cp), true
		}
	}
	if m := descriptionRe.FindStringSubmatch(payload); m != nil {
		if r, ok := t.descriptions[m[1]]; ok {
			return r, true
		}
	}
	if code, ok := ParseJISCode(payload); ok {
		return t.JIS(code)
	}
	return 0, false
}

// ParseJISCode extracts the trailing plane-row-cell reference of a payload.
func ParseJISCode(payload string) (JISCode, bool) {
	m := jisRe.FindStringSubmatch(payload)
	if m == nil {
		return JISCode{}, false
	}
	plane, _ := strconv.Atoi(m[1])
	row, _ := strconv.Atoi(m[2])
	cell, _ := strconv.Atoi(m[3])
	if plane < 1 || plane > 2 || row < 1 || row > 94 || cell < 1 || cell > 94 {
		return JISCode{}, false
	}
	return JISCode{Plane: plane, Row: row, Cell: cell}, true
}

// JIS resolves a JIS X 0213 cell.
func (t *Tables) JIS(code JISCode) (rune, bool) {
	if r, ok := t.jis[code]; ok {
		return r, true
	}
	// Rows 1-84 of plane 1 overlap JIS X 0208.
	if !t.jis0208 || code.Plane != 1 || code.Row > 84 {
		return 0, false
	}
	dec := japanese.EUCJP.NewDecoder()
	out, err := dec.Bytes([]byte{byte(0xA0 + code.Row), byte(0xA0 + code.Cell)})
	if err != nil {
		return 0, false
	}
	rs := []rune(string(out))
	if len(rs) != 1 || rs[0] == utf8.RuneError {
		return 0, false
	}
	return rs[0], true
}

// VariantKana returns the standard kana for a variant kana code point.
func (t *Tables) VariantKana(r rune) (string, bool) {
	s, ok := t.variantKana[r]
	return s, ok
}

// RepeatMark reports whether a repeat mark notation starts at rs[i], and
// returns the mark and the notation length.
func (t *Tables) RepeatMark(rs []rune, i int) (rune, int) {
	for _, m := range t.repeat {
		if hasPrefixAt(rs, i, m.notation) {
			return m.mark, len(m.notation)
		}
	}
	return 0, 0
}

// ComposeAccents replaces accent notation ("e'", "a:", "ae&" ...) with
// precomposed letters. The second result is false when nothing was composed.
func (t *Tables) ComposeAccents(s string) (string, bool) {
	rs := []rune(s)
	var b strings.Builder
	composed := false
	for i := 0; i < len(rs); {
		matched := false
		// Shorter notations are tried first.
		for n := 2; n <= t.maxAccentLen && i+n <= len(rs); n++ {
			if r, ok := t.accents[string(rs[i:i+n])]; ok {
				b.WriteRune(r)
				i += n
				matched = true
				break
			}
		}
		if matched {
			composed = true
			continue
		}
		b.WriteRune(rs[i])
		i++
	}
	return b.String(), composed
}

func hasPrefixAt(rs []rune, i int, prefix []rune) bool {
	if i+len(prefix) > len(rs) {
		return false
	}
	for j, r := range prefix {
		if rs[i+j] != r {
			return false
		}
	}
	return true
}

func builtinVariantKana() map[rune]string {
	m := map[rune]string{
		'ゟ':          "より",
		'ヿ':          "コト",
		'\U0001B000': "エ",
	}
	groups := []struct {
		from, to rune
		kana     string
	}{
		{0x1B002, 0x1B005, "あ"},
		{0x1B006, 0x1B009, "い"},
		{0x1B00A, 0x1B00E, "う"},
		{0x1B00F, 0x1B013, "え"},
		{0x1B014, 0x1B016, "お"},
	}
	for _, g := range groups {
		for r := g.from; r <= g.to; r++ {
			m[r] = g.kana
		}
	}
	return m
}
