package parser

import (
	"regexp"
	"strconv"

	"golang.org/x/text/width"
)

type directiveKind int

const (
	dirUnknown directiveKind = iota
	dirPageBreak
	dirOpen
	dirLineOpen
	dirClose
	dirRetro
	dirCorrection
	dirKunten
	dirImage
)

// directive is the classified payload of a ［＃…］ bracket.
type directive struct {
	kind   directiveKind
	brk    BreakKind
	frame  frame
	target string
	kunten Kunten
	image  Image
}

type frameKind int

const (
	frameRoot frameKind = iota
	frameIndent
	frameHeading
	frameEmphasis
	frameCenter
	frameCaption
	frameWarichu
)

var emphasisStyles = map[string]struct {
	kind  EmphasisKind
	style string
}{
	"傍点":    {EmphasisDot, "sesame"},
	"白ゴマ傍点": {EmphasisDot, "white_sesame"},
	"丸傍点":   {EmphasisDot, "black_circle"},
	"白丸傍点":  {EmphasisDot, "white_circle"},
	"黒三角傍点": {EmphasisDot, "black_triangle"},
	"白三角傍点": {EmphasisDot, "white_triangle"},
	"二重丸傍点": {EmphasisDot, "bullseye"},
	"蛇の目傍点": {EmphasisDot, "fisheye"},
	"ばつ傍点":  {EmphasisDot, "saltire"},
	"傍線":    {EmphasisLine, "solid"},
	"二重傍線":  {EmphasisLine, "double"},
	"鎖線":    {EmphasisLine, "dotted"},
	"破線":    {EmphasisLine, "dashed"},
	"波線":    {EmphasisLine, "wave"},
}

const num = `([0-9０-９]+)`

var (
	indentLineRe     = regexp.MustCompile(`^` + num + `字下げ$`)
	indentOpenRe     = regexp.MustCompile(`^ここから` + num + `字下げ$`)
	indentWrapRe     = regexp.MustCompile(`^ここから` + num + `字下げ、折り返して` + num + `字下げ$`)
	indentHangRe     = regexp.MustCompile(`^ここから改行天付き、折り返して` + num + `字下げ$`)
	raisedLineRe     = regexp.MustCompile(`^地から` + num + `字上げ$`)
	raisedOpenRe     = regexp.MustCompile(`^ここから地から` + num + `字上げ$`)
	headingOpenRe    = regexp.MustCompile(`^(?:ここから)?(同行|窓)?(大|中|小)見出し$`)
	headingCloseRe   = regexp.MustCompile(`^(?:ここで)?.*見出し終わり$`)
	emphasisOpenRe   = regexp.MustCompile(`^(?:ここから)?(左に)?(.*(?:点|線))$`)
	emphasisCloseRe  = regexp.MustCompile(`^(?:ここで)?(左に)?(.*(?:点|線))終わり$`)
	kaeritenRe       = regexp.MustCompile(`^(一|二|三|四)?(上|中|下)?(甲|乙|丙|丁)?(レ)?$`)
	okuriganaRe      = regexp.MustCompile(`^（(.+)）$`)
	imageRe          = regexp.MustCompile(`^(.+)（(fig[0-9]+_[0-9]+\.png)(?:、横[0-9]+×縦[0-9]+)?）入る$`)
	rubyMamaRe       = regexp.MustCompile(`^ルビの「.+」はママ$`)
	mamaRe           = regexp.MustCompile(`^「(.+)」(?:はママ|に「ママ」の注記)$`)
	originalReadsRe  = regexp.MustCompile(`^「(.+?)」は底本では.+$`)
	retroEmphasisRe  = regexp.MustCompile(`^「(.+)」(の左)?に(.*(?:点|線))$`)
	retroDecoratedRe = regexp.MustCompile(`^「(.+)」は(太字|斜体|キャプション)$`)
	retroHeadingRe   = regexp.MustCompile(`^「(.+)」は(同行|窓)?(大|中|小)見出し$`)
)

// classify maps a directive payload to what the scanner should do with it.
// Correction notes come first since their quoted text may itself end in a
// keyword.
func classify(payload string) directive {
	if rubyMamaRe.MatchString(payload) {
		return directive{kind: dirCorrection}
	}
	if m := mamaRe.FindStringSubmatch(payload); m != nil {
		return directive{kind: dirCorrection, target: m[1]}
	}
	if m := originalReadsRe.FindStringSubmatch(payload); m != nil {
		return directive{kind: dirCorrection, target: m[1]}
	}

	if m := retroEmphasisRe.FindStringSubmatch(payload); m != nil {
		if e, ok := emphasisStyles[m[3]]; ok {
			f := frame{kind: frameEmphasis, emphasis: Emphasis{Kind: e.kind, Style: e.style}}
			if m[2] != "" {
				f.emphasis.Side = SideLeft
			}
			return directive{kind: dirRetro, frame: f, target: m[1]}
		}
		return directive{}
	}
	if m := retroDecoratedRe.FindStringSubmatch(payload); m != nil {
		var f frame
		switch m[2] {
		case "太字":
			f = frame{kind: frameEmphasis, emphasis: Emphasis{Kind: EmphasisBold}}
		case "斜体":
			f = frame{kind: frameEmphasis, emphasis: Emphasis{Kind: EmphasisItalic}}
		default:
			f = frame{kind: frameCaption}
		}
		return directive{kind: dirRetro, frame: f, target: m[1]}
	}
	if m := retroHeadingRe.FindStringSubmatch(payload); m != nil {
		return directive{kind: dirRetro, frame: headingFrame(m[2], m[3]), target: m[1]}
	}

	switch payload {
	case "改丁":
		return directive{kind: dirPageBreak, brk: BreakNewSignature}
	case "改ページ":
		return directive{kind: dirPageBreak, brk: BreakNewPage}
	case "改見開き":
		return directive{kind: dirPageBreak, brk: BreakNewSpread}
	case "改段":
		return directive{kind: dirPageBreak, brk: BreakNewColumn}
	case "ページの左右中央":
		return directive{kind: dirOpen, frame: frame{kind: frameCenter}}
	case "地付き":
		return directive{kind: dirLineOpen, frame: indentFrame(IndentCenteredBottom, 0, 0)}
	case "ここから地付き":
		return directive{kind: dirOpen, frame: indentFrame(IndentCenteredBottom, 0, 0)}
	case "ここで地付き終わり":
		return directive{kind: dirClose, frame: indentFrame(IndentCenteredBottom, 0, 0)}
	case "ここで字下げ終わり":
		return directive{kind: dirClose, frame: indentFrame(IndentPlain, 0, 0)}
	case "ここで字上げ終わり":
		return directive{kind: dirClose, frame: indentFrame(IndentCenteredAlign, 0, 0)}
	case "太字", "ここから太字":
		return directive{kind: dirOpen, frame: frame{kind: frameEmphasis, emphasis: Emphasis{Kind: EmphasisBold}}}
	case "太字終わり", "ここで太字終わり":
		return directive{kind: dirClose, frame: frame{kind: frameEmphasis, emphasis: Emphasis{Kind: EmphasisBold}}}
	case "斜体", "ここから斜体":
		return directive{kind: dirOpen, frame: frame{kind: frameEmphasis, emphasis: Emphasis{Kind: EmphasisItalic}}}
	case "斜体終わり", "ここで斜体終わり":
		return directive{kind: dirClose, frame: frame{kind: frameEmphasis, emphasis: Emphasis{Kind: EmphasisItalic}}}
	case "キャプション":
		return directive{kind: dirOpen, frame: frame{kind: frameCaption}}
	case "キャプション終わり":
		return directive{kind: dirClose, frame: frame{kind: frameCaption}}
	case "割り注":
		return directive{kind: dirOpen, frame: frame{kind: frameWarichu}}
	case "割り注終わり":
		return directive{kind: dirClose, frame: frame{kind: frameWarichu}}
	}

	if m := indentLineRe.FindStringSubmatch(payload); m != nil {
		n := parseNumber(m[1])
		return directive{kind: dirLineOpen, frame: indentFrame(IndentPlain, n, n)}
	}
	if m := indentOpenRe.FindStringSubmatch(payload); m != nil {
		n := parseNumber(m[1])
		return directive{kind: dirOpen, frame: indentFrame(IndentPlain, n, n)}
	}
	if m := indentWrapRe.FindStringSubmatch(payload); m != nil {
		return directive{kind: dirOpen, frame: indentFrame(IndentPlain, parseNumber(m[1]), parseNumber(m[2]))}
	}
	if m := indentHangRe.FindStringSubmatch(payload); m != nil {
		return directive{kind: dirOpen, frame: indentFrame(IndentPlain, 0, parseNumber(m[1]))}
	}
	if m := raisedLineRe.FindStringSubmatch(payload); m != nil {
		n := parseNumber(m[1])
		return directive{kind: dirLineOpen, frame: indentFrame(IndentCenteredAlign, n, n)}
	}
	if m := raisedOpenRe.FindStringSubmatch(payload); m != nil {
		n := parseNumber(m[1])
		return directive{kind: dirOpen, frame: indentFrame(IndentCenteredAlign, n, n)}
	}

	if m := headingOpenRe.FindStringSubmatch(payload); m != nil {
		return directive{kind: dirOpen, frame: headingFrame(m[1], m[2])}
	}
	if headingCloseRe.MatchString(payload) {
		return directive{kind: dirClose, frame: frame{kind: frameHeading}}
	}

	if m := kaeritenRe.FindStringSubmatch(payload); m != nil && payload != "" {
		return directive{kind: dirKunten, kunten: kaeriten(m)}
	}
	if m := okuriganaRe.FindStringSubmatch(payload); m != nil {
		return directive{kind: dirKunten, kunten: Kunten{Mark: KuntenOkurigana, Reading: m[1]}}
	}

	if m := emphasisCloseRe.FindStringSubmatch(payload); m != nil {
		if f, ok := emphasisFrame(m[1], m[2]); ok {
			return directive{kind: dirClose, frame: f}
		}
		return directive{}
	}
	if m := emphasisOpenRe.FindStringSubmatch(payload); m != nil {
		if f, ok := emphasisFrame(m[1], m[2]); ok {
			return directive{kind: dirOpen, frame: f}
		}
		return directive{}
	}

	if m := imageRe.FindStringSubmatch(payload); m != nil {
		return directive{kind: dirImage, image: Image{Alt: m[1], Path: m[2]}}
	}

	return directive{}
}

func indentFrame(style IndentStyle, level, wrap int) frame {
	return frame{kind: frameIndent, indent: IndentBlock{Level: level, Wrap: wrap, Style: style}}
}

func headingFrame(style, level string) frame {
	h := Heading{}
	switch style {
	case "同行":
		h.Style = HeadingSameLine
	case "窓":
		h.Style = HeadingWindow
	}
	switch level {
	case "大":
		h.Level = HeadingLarge
	case "中":
		h.Level = HeadingMedium
	default:
		h.Level = HeadingSmall
	}
	return frame{kind: frameHeading, heading: h}
}

func emphasisFrame(left, name string) (frame, bool) {
	e, ok := emphasisStyles[name]
	if !ok {
		return frame{}, false
	}
	f := frame{kind: frameEmphasis, emphasis: Emphasis{Kind: e.kind, Style: e.style}}
	if left != "" {
		f.emphasis.Side = SideLeft
	}
	return f, true
}

func kaeriten(m []string) Kunten {
	k := Kunten{Re: m[4] != ""}
	switch {
	case m[1] != "":
		k.Mark, k.Order = KuntenOneTwo, indexOf([]string{"一", "二", "三", "四"}, m[1])
	case m[2] != "":
		k.Mark, k.Order = KuntenUpperLower, indexOf([]string{"上", "中", "下"}, m[2])
	case m[3] != "":
		k.Mark, k.Order = KuntenFirstSecond, indexOf([]string{"甲", "乙", "丙", "丁"}, m[3])
	default:
		k.Mark = KuntenRe
	}
	return k
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// parseNumber reads ASCII or full-width decimal digits.
func parseNumber(s string) int {
	n, err := strconv.Atoi(width.Narrow.String(s))
	if err != nil {
		return 0
	}
	return n
}
