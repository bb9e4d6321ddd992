package charmap

import (
	"golang.org/x/text/unicode/norm"
)

// accentMarks lists, per notation suffix, the combining mark it stands for
// and the base letters that take it.
var accentMarks = []struct {
	suffix rune
	mark   rune
	bases  string
}{
	{'`', '\u0300', "aeinouAEINOU"},
	{'\'', '\u0301', "aceilmnorsuyzACEILMNORSUYZ"},
	{'^', '\u0302', "aceghijosuACEGHIJOSU"},
	{'~', '\u0303', "aeinouAEINOU"},
	{'_', '\u0304', "aeiouAEIOU"},
	{':', '\u0308', "aeiouyAEIOU"},
	{'&', '\u030A', "auAU"},
	{',', '\u0327', "cstCST"},
}

// Letters with a stroke and ligatures have no canonical decomposition.
var accentSpecials = map[string]rune{
	"d/":  'đ',
	"h/":  'ħ',
	"i/":  'ɨ',
	"l/":  'ł',
	"o/":  'ø',
	"D/":  'Đ',
	"L/":  'Ł',
	"O/":  'Ø',
	"s&":  'ß',
	"ae&": 'æ',
	"AE&": 'Æ',
	"oe&": 'œ',
	"OE&": 'Œ',
}

func buildAccents() map[string]rune {
	m := make(map[string]rune, 160)
	for _, a := range accentMarks {
		for _, base := range a.bases {
			composed := []rune(norm.NFC.String(string([]rune{base, a.mark})))
			if len(composed) != 1 {
				continue
			}
			m[string([]rune{base, a.suffix})] = composed[0]
		}
	}
	for k, v := range accentSpecials {
		m[k] = v
	}
	return m
}
