package charmap

// Class is the script class used to find the base of an implicit ruby.
type Class int

const (
	ClassOther Class = iota
	ClassLatin
	ClassHiragana
	ClassKatakana
	ClassKanji
)

// ClassOf classifies r.
func ClassOf(r rune) Class {
	switch r {
	case '仝', '々', '〆', '〇', 'ヶ':
		return ClassKanji
	case '×', '÷':
		return ClassOther
	}
	switch {
	case 'A' <= r && r <= 'Z', 'a' <= r && r <= 'z', 0x00C0 <= r && r <= 0x00FF:
		return ClassLatin
	case 0x3040 <= r && r <= 0x309F:
		return ClassHiragana
	case 0x30A0 <= r && r <= 0x30FF:
		return ClassKatakana
	case 0x3400 <= r && r <= 0x4DBF, 0x4E00 <= r && r <= 0x9FFF, 0xF900 <= r && r <= 0xFAFF, 0x20000 <= r && r <= 0x3FFFF:
		return ClassKanji
	}
	return ClassOther
}
