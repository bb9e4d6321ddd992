package parser

import (
	"reflect"
	"strings"
	"testing"

	"github.com/starford/aozoraconv/internal/charmap"
)

func parse(t *testing.T, input string) Result {
	t.Helper()
	return Parse(charmap.New(), input)
}

func assertSegments(t *testing.T, got, want []Segment) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("segments mismatch\n got: %#v\nwant: %#v", got, want)
	}
}

func assertNoWarnings(t *testing.T, r Result) {
	t.Helper()
	if len(r.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", r.Warnings)
	}
}

func countWarnings(r Result, k WarningKind) int {
	n := 0
	for _, w := range r.Warnings {
		if w.Kind == k {
			n++
		}
	}
	return n
}

func TestSegmentType(t *testing.T) {
	tests := []struct {
		seg  Segment
		want string
	}{
		{PlainText{Text: "a"}, "text"},
		{Ruby{Base: "漢", Reading: "かん"}, "ruby"},
		{Emphasis{Kind: EmphasisDot, Style: "sesame"}, "emphasis"},
		{PageBreak{Kind: BreakNewColumn}, "page_break"},
		{Warichu{}, "warichu"},
		{ExternalChar{Raw: "※［＃x］"}, "gaiji"},
		{UnknownAnnotation{Raw: "［＃x］"}, "unknown"},
	}
	for _, tt := range tests {
		if got := tt.seg.Type().String(); got != tt.want {
			t.Errorf("%T.Type() = %q, want %q", tt.seg, got, tt.want)
		}
	}

	// Variant fields named Kind are independent of the segment type.
	if pb := (PageBreak{Kind: BreakNewColumn}); pb.Kind.String() != "new_column" || pb.Type() != KindPageBreak {
		t.Errorf("page break = %v / %v", pb.Kind, pb.Type())
	}
}

func TestParse_IndentBlock(t *testing.T) {
	r := parse(t, "普通の［＃ここから２字下げ］字下げされた文［＃ここで字下げ終わり］文章")
	assertSegments(t, r.Segments, []Segment{
		PlainText{Text: "普通の"},
		IndentBlock{Level: 2, Wrap: 2, Style: IndentPlain, Children: []Segment{
			PlainText{Text: "字下げされた文"},
		}},
		PlainText{Text: "文章"},
	})
	assertNoWarnings(t, r)
}

func TestParse_IndentWithWrap(t *testing.T) {
	r := parse(t, "［＃ここから1字下げ、折り返して3字下げ］本文［＃ここで字下げ終わり］")
	assertSegments(t, r.Segments, []Segment{
		IndentBlock{Level: 1, Wrap: 3, Children: []Segment{PlainText{Text: "本文"}}},
	})

	r = parse(t, "［＃ここから改行天付き、折り返して２字下げ］本文［＃ここで字下げ終わり］")
	assertSegments(t, r.Segments, []Segment{
		IndentBlock{Level: 0, Wrap: 2, Children: []Segment{PlainText{Text: "本文"}}},
	})
}

func TestParse_ImplicitRuby(t *testing.T) {
	r := parse(t, "漢字《かんじ》")
	assertSegments(t, r.Segments, []Segment{Ruby{Base: "漢字", Reading: "かんじ"}})
	assertNoWarnings(t, r)
}

func TestParse_ImplicitRubyStopsAtClassChange(t *testing.T) {
	r := parse(t, "普通の漢字《かんじ》です")
	assertSegments(t, r.Segments, []Segment{
		PlainText{Text: "普通の"},
		Ruby{Base: "漢字", Reading: "かんじ"},
		PlainText{Text: "です"},
	})

	r = parse(t, "東京タワー《とうきょうたわー》")
	assertSegments(t, r.Segments, []Segment{
		PlainText{Text: "東京"},
		Ruby{Base: "タワー", Reading: "とうきょうたわー"},
	})
}

func TestParse_ExplicitRuby(t *testing.T) {
	r := parse(t, "これは｜東京タワー《とうきょうたわー》だ")
	assertSegments(t, r.Segments, []Segment{
		PlainText{Text: "これは"},
		Ruby{Base: "東京タワー", Reading: "とうきょうたわー", Explicit: true},
		PlainText{Text: "だ"},
	})
	assertNoWarnings(t, r)
}

func TestParse_DanglingRuby(t *testing.T) {
	r := parse(t, "、《よみ》")
	assertSegments(t, r.Segments, []Segment{PlainText{Text: "、《よみ》"}})
	if countWarnings(r, DanglingRuby) != 1 {
		t.Errorf("warnings = %v, want one dangling ruby", r.Warnings)
	}
}

func TestParse_LiteralRubyMarks(t *testing.T) {
	r := parse(t, "a｜b》c《》")
	assertSegments(t, r.Segments, []Segment{PlainText{Text: "a｜b》c《》"}})
}

func TestParse_RubyOnUnresolvedGaiji(t *testing.T) {
	raw := "※［＃「麻かんむり／鬼」、第4水準2-94-57］"
	r := parse(t, "の"+raw+"《ま》")
	assertSegments(t, r.Segments, []Segment{
		PlainText{Text: "の"},
		Ruby{Base: raw, Reading: "ま"},
	})
	if countWarnings(r, UnresolvedExternalChar) != 1 {
		t.Errorf("warnings = %v", r.Warnings)
	}
}

func TestParse_UnknownAnnotation(t *testing.T) {
	r := parse(t, "［＃謎の注記］続く文章")
	assertSegments(t, r.Segments, []Segment{
		UnknownAnnotation{Raw: "［＃謎の注記］"},
		PlainText{Text: "続く文章"},
	})
	if len(r.Warnings) != 1 || r.Warnings[0].Kind != UnrecognizedDirective {
		t.Errorf("warnings = %v, want one unrecognized directive", r.Warnings)
	}
}

func TestParse_RepeatMarks(t *testing.T) {
	r := parse(t, "ゆく／＼と、しみ／″＼")
	assertSegments(t, r.Segments, []Segment{PlainText{Text: "ゆく〱と、しみ〲"}})
}

func TestParse_ExternalChar(t *testing.T) {
	raw := "※［＃「魚＋非」、第3水準1-94-68］"

	tables := charmap.New(charmap.WithJIS(charmap.JISCode{Plane: 1, Row: 94, Cell: 68}, '鯡', "魚＋非"))
	r := Parse(tables, raw)
	assertSegments(t, r.Segments, []Segment{ExternalChar{Resolved: '鯡', OK: true, Raw: raw}})
	assertNoWarnings(t, r)

	r = Parse(charmap.New(), raw)
	assertSegments(t, r.Segments, []Segment{ExternalChar{Raw: raw}})
	if countWarnings(r, UnresolvedExternalChar) != 1 {
		t.Errorf("warnings = %v", r.Warnings)
	}
}

func TestParse_SurrogateCodepointStaysUnresolved(t *testing.T) {
	raw := "※［＃「さんずい＋日」、U+D800、1-1］"
	r := parse(t, raw)
	assertSegments(t, r.Segments, []Segment{ExternalChar{Raw: raw}})
	if countWarnings(r, UnresolvedExternalChar) != 1 {
		t.Errorf("warnings = %v", r.Warnings)
	}
}

func TestParse_VariantKanaGaiji(t *testing.T) {
	raw := "※［＃変体仮名え、1-2-3］"
	r := parse(t, raw)
	assertSegments(t, r.Segments, []Segment{ExternalChar{Resolved: 'え', OK: true, Raw: raw}})
}

func TestParse_CorrectionNotes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Segment
	}{
		{"bare", "［＃「誤字」はママ］", []Segment{PlainText{Text: "誤字"}}},
		{"after text", "誤字［＃「誤字」はママ］です", []Segment{PlainText{Text: "誤字です"}}},
		{"mama note", "誤字［＃「誤字」に「ママ」の注記］", []Segment{PlainText{Text: "誤字"}}},
		{"original reads", "誤植［＃「誤植」は底本では「誤殖」］", []Segment{PlainText{Text: "誤植"}}},
		{"ruby", "｜漢字《かんじ》［＃ルビの「かんじ」はママ］", []Segment{Ruby{Base: "漢字", Reading: "かんじ", Explicit: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := parse(t, tt.input)
			assertSegments(t, r.Segments, tt.want)
			assertNoWarnings(t, r)
		})
	}
}

func TestParse_CleanInputRoundTrip(t *testing.T) {
	inputs := []string{
		"吾輩は猫である。名前はまだ無い。",
		"一行目\n二行目\r\n三行目\n",
		"abc",
	}
	for _, in := range inputs {
		r := parse(t, in)
		assertSegments(t, r.Segments, []Segment{PlainText{Text: in}})
		assertNoWarnings(t, r)
	}

	if r := parse(t, ""); len(r.Segments) != 0 {
		t.Errorf("empty input produced %v", r.Segments)
	}
}

func TestParse_OrderPreservation(t *testing.T) {
	tables := charmap.New(charmap.WithJIS(charmap.JISCode{Plane: 1, Row: 94, Cell: 68}, '鯡', "魚＋非"))
	input := "普通の［＃ここから２字下げ］字下げ［＃ここで字下げ終わり］漢字《かんじ》と" +
		"※［＃「魚＋非」、第3水準1-94-68］［＃改ページ］重要［＃「重要」に傍点］［＃謎］終"
	r := Parse(tables, input)
	if got, want := Text(r.Segments), "普通の字下げ漢字と鯡重要終"; got != want {
		t.Errorf("Text = %q, want %q", got, want)
	}
}

func TestParse_UnterminatedBlock(t *testing.T) {
	r := parse(t, "［＃ここから太字］強い［＃ここから２字下げ］まだ")
	assertSegments(t, r.Segments, []Segment{
		Emphasis{Kind: EmphasisBold, Children: []Segment{
			PlainText{Text: "強い"},
			IndentBlock{Level: 2, Wrap: 2, Children: []Segment{PlainText{Text: "まだ"}}},
		}},
	})
	if n := countWarnings(r, UnterminatedBlock); n != 1 || len(r.Warnings) != 1 {
		t.Errorf("warnings = %v, want exactly one unterminated block", r.Warnings)
	}
}

func TestParse_DeepNesting(t *testing.T) {
	const depth = 20000
	input := strings.Repeat("［＃ここから太字］", depth) + "芯"
	r := parse(t, input)
	if countWarnings(r, UnterminatedBlock) != 1 {
		t.Fatalf("warnings = %d, want one unterminated block", len(r.Warnings))
	}
	levels := 0
	segs := r.Segments
	for len(segs) == 1 {
		e, ok := segs[0].(Emphasis)
		if !ok {
			break
		}
		levels++
		segs = e.Children
	}
	if levels != depth {
		t.Errorf("nesting depth = %d, want %d", levels, depth)
	}
}

func TestParse_MismatchedClose(t *testing.T) {
	r := parse(t, "［＃ここから太字］a［＃ここで字下げ終わり］b［＃ここで太字終わり］c")
	assertSegments(t, r.Segments, []Segment{
		Emphasis{Kind: EmphasisBold, Children: []Segment{
			PlainText{Text: "a"},
			UnknownAnnotation{Raw: "［＃ここで字下げ終わり］"},
			PlainText{Text: "b"},
		}},
		PlainText{Text: "c"},
	})
	if len(r.Warnings) != 1 || r.Warnings[0].Kind != MismatchedClose {
		t.Errorf("warnings = %v", r.Warnings)
	}
}

func TestParse_LineScopedIndent(t *testing.T) {
	r := parse(t, "［＃２字下げ］一行目\n二行目")
	assertSegments(t, r.Segments, []Segment{
		IndentBlock{Level: 2, Wrap: 2, Children: []Segment{PlainText{Text: "一行目"}}},
		PlainText{Text: "\n二行目"},
	})
	assertNoWarnings(t, r)

	r = parse(t, "本文［＃地付き］署名\r\n次")
	assertSegments(t, r.Segments, []Segment{
		PlainText{Text: "本文"},
		IndentBlock{Style: IndentCenteredBottom, Children: []Segment{PlainText{Text: "署名"}}},
		PlainText{Text: "\r\n次"},
	})

	r = parse(t, "［＃地から１字上げ］結び")
	assertSegments(t, r.Segments, []Segment{
		IndentBlock{Level: 1, Wrap: 1, Style: IndentCenteredAlign, Children: []Segment{PlainText{Text: "結び"}}},
	})
	assertNoWarnings(t, r)
}

func TestParse_BlockOpenedInsideLineIndent(t *testing.T) {
	r := parse(t, "［＃１字下げ］［＃ここから２字下げ］x\ny［＃ここで字下げ終わり］z")
	assertSegments(t, r.Segments, []Segment{
		IndentBlock{Level: 1, Wrap: 1},
		IndentBlock{Level: 2, Wrap: 2, Children: []Segment{PlainText{Text: "x\ny"}}},
		PlainText{Text: "z"},
	})
	assertNoWarnings(t, r)

	r = parse(t, "［＃３字下げ］前［＃ここから太字］強\n調")
	assertSegments(t, r.Segments, []Segment{
		IndentBlock{Level: 3, Wrap: 3, Children: []Segment{PlainText{Text: "前"}}},
		Emphasis{Kind: EmphasisBold, Children: []Segment{PlainText{Text: "強\n調"}}},
	})
	if len(r.Warnings) != 1 || r.Warnings[0].Kind != UnterminatedBlock || r.Warnings[0].Line != 1 {
		t.Errorf("warnings = %v, want one unterminated block on line 1", r.Warnings)
	}
}

func TestParse_LineScopedClosedExplicitly(t *testing.T) {
	r := parse(t, "a［＃地付き］b［＃ここで地付き終わり］c\nd")
	assertSegments(t, r.Segments, []Segment{
		PlainText{Text: "a"},
		IndentBlock{Style: IndentCenteredBottom, Children: []Segment{PlainText{Text: "b"}}},
		PlainText{Text: "c\nd"},
	})
	assertNoWarnings(t, r)

	// A close matching neither the line block nor a block below it
	// leaves the line block open.
	r = parse(t, "［＃地付き］b［＃ここで字上げ終わり］c\nd")
	assertSegments(t, r.Segments, []Segment{
		IndentBlock{Style: IndentCenteredBottom, Children: []Segment{
			PlainText{Text: "b"},
			UnknownAnnotation{Raw: "［＃ここで字上げ終わり］"},
			PlainText{Text: "c"},
		}},
		PlainText{Text: "\nd"},
	})
	if countWarnings(r, MismatchedClose) != 1 {
		t.Errorf("warnings = %v", r.Warnings)
	}
}

func TestParse_BlockBottomAlign(t *testing.T) {
	r := parse(t, "［＃ここから地付き］右\n寄せ［＃ここで地付き終わり］")
	assertSegments(t, r.Segments, []Segment{
		IndentBlock{Style: IndentCenteredBottom, Children: []Segment{PlainText{Text: "右\n寄せ"}}},
	})
	assertNoWarnings(t, r)
}

func TestParse_CenterAlign(t *testing.T) {
	r := parse(t, "［＃ページの左右中央］\n扉\n［＃改ページ］\n本文")
	assertSegments(t, r.Segments, []Segment{
		CenterAlign{Children: []Segment{PlainText{Text: "\n扉\n"}}},
		PageBreak{Kind: BreakNewPage},
		PlainText{Text: "\n本文"},
	})
	assertNoWarnings(t, r)

	r = parse(t, "［＃ページの左右中央］扉")
	assertSegments(t, r.Segments, []Segment{CenterAlign{Children: []Segment{PlainText{Text: "扉"}}}})
	assertNoWarnings(t, r)
}

func TestParse_PageBreaks(t *testing.T) {
	r := parse(t, "［＃改丁］［＃改ページ］［＃改見開き］［＃改段］")
	assertSegments(t, r.Segments, []Segment{
		PageBreak{Kind: BreakNewSignature},
		PageBreak{Kind: BreakNewPage},
		PageBreak{Kind: BreakNewSpread},
		PageBreak{Kind: BreakNewColumn},
	})
}

func TestParse_Headings(t *testing.T) {
	r := parse(t, "第一章［＃「第一章」は大見出し］")
	assertSegments(t, r.Segments, []Segment{
		Heading{Level: HeadingLarge, Children: []Segment{PlainText{Text: "第一章"}}},
	})

	r = parse(t, "［＃ここから窓中見出し］章題［＃ここで中見出し終わり］")
	assertSegments(t, r.Segments, []Segment{
		Heading{Style: HeadingWindow, Level: HeadingMedium, Children: []Segment{PlainText{Text: "章題"}}},
	})

	r = parse(t, "［＃同行小見出し］節［＃同行小見出し終わり］本文")
	assertSegments(t, r.Segments, []Segment{
		Heading{Style: HeadingSameLine, Level: HeadingSmall, Children: []Segment{PlainText{Text: "節"}}},
		PlainText{Text: "本文"},
	})
}

func TestParse_RetroEmphasis(t *testing.T) {
	r := parse(t, "これは重要［＃「重要」に傍点］です")
	assertSegments(t, r.Segments, []Segment{
		PlainText{Text: "これは"},
		Emphasis{Kind: EmphasisDot, Style: "sesame", Children: []Segment{PlainText{Text: "重要"}}},
		PlainText{Text: "です"},
	})
	assertNoWarnings(t, r)

	r = parse(t, "線［＃「線」の左に波線］")
	assertSegments(t, r.Segments, []Segment{
		Emphasis{Kind: EmphasisLine, Style: "wave", Side: SideLeft, Children: []Segment{PlainText{Text: "線"}}},
	})

	r = parse(t, "｜東京《とうきょう》［＃「東京」は太字］")
	assertSegments(t, r.Segments, []Segment{
		Emphasis{Kind: EmphasisBold, Children: []Segment{
			Ruby{Base: "東京", Reading: "とうきょう", Explicit: true},
		}},
	})
}

func TestParse_RetroUnmatched(t *testing.T) {
	r := parse(t, "abc［＃「xyz」に傍点］")
	assertSegments(t, r.Segments, []Segment{
		PlainText{Text: "abc"},
		UnknownAnnotation{Raw: "［＃「xyz」に傍点］"},
	})
	if countWarnings(r, UnmatchedTarget) != 1 {
		t.Errorf("warnings = %v", r.Warnings)
	}
}

func TestParse_EmphasisBlock(t *testing.T) {
	r := parse(t, "［＃左に白丸傍点］強｜調《きょう》［＃左に白丸傍点終わり］")
	assertSegments(t, r.Segments, []Segment{
		Emphasis{Kind: EmphasisDot, Style: "white_circle", Side: SideLeft, Children: []Segment{
			PlainText{Text: "強"},
			Ruby{Base: "調", Reading: "きょう", Explicit: true},
		}},
	})
	assertNoWarnings(t, r)

	r = parse(t, "［＃ここから斜体］italic［＃ここで斜体終わり］")
	assertSegments(t, r.Segments, []Segment{
		Emphasis{Kind: EmphasisItalic, Children: []Segment{PlainText{Text: "italic"}}},
	})
}

func TestParse_Kunten(t *testing.T) {
	r := parse(t, "学［＃二］而時習［＃一］之［＃（ヲ）］")
	assertSegments(t, r.Segments, []Segment{
		PlainText{Text: "学"},
		Kunten{Mark: KuntenOneTwo, Order: 1, AttachedTo: 0},
		PlainText{Text: "而時習"},
		Kunten{Mark: KuntenOneTwo, Order: 0, AttachedTo: 3},
		PlainText{Text: "之"},
		Kunten{Mark: KuntenOkurigana, Reading: "ヲ", AttachedTo: 4},
	})
	assertNoWarnings(t, r)

	r = parse(t, "不［＃レ］")
	assertSegments(t, r.Segments, []Segment{
		PlainText{Text: "不"},
		Kunten{Mark: KuntenRe, Re: true, AttachedTo: 0},
	})

	r = parse(t, "［＃一レ］")
	assertSegments(t, r.Segments, []Segment{
		Kunten{Mark: KuntenOneTwo, Order: 0, Re: true, AttachedTo: -1},
	})
}

func TestParse_Warichu(t *testing.T) {
	r := parse(t, "本文［＃割り注］注釈｜漢《かん》［＃割り注終わり］続き")
	assertSegments(t, r.Segments, []Segment{
		PlainText{Text: "本文"},
		Warichu{Children: []Segment{
			PlainText{Text: "注釈"},
			Ruby{Base: "漢", Reading: "かん", Explicit: true},
		}},
		PlainText{Text: "続き"},
	})
	w := r.Segments[1].(Warichu)
	if w.Text() != "注釈漢" {
		t.Errorf("Warichu.Text = %q", w.Text())
	}
}

func TestParse_CaptionAndImage(t *testing.T) {
	r := parse(t, "［＃挿絵（fig1234_01.png、横320×縦240）入る］\n［＃キャプション］猫の図［＃キャプション終わり］")
	assertSegments(t, r.Segments, []Segment{
		Image{Path: "fig1234_01.png", Alt: "挿絵", Raw: "［＃挿絵（fig1234_01.png、横320×縦240）入る］"},
		PlainText{Text: "\n"},
		Caption{Children: []Segment{PlainText{Text: "猫の図"}}},
	})
	assertNoWarnings(t, r)

	r = parse(t, "猫の図［＃「猫の図」はキャプション］")
	assertSegments(t, r.Segments, []Segment{Caption{Children: []Segment{PlainText{Text: "猫の図"}}}})
}

func TestParse_Accents(t *testing.T) {
	r := parse(t, "〔cafe'〕と〔plain〕")
	assertSegments(t, r.Segments, []Segment{PlainText{Text: "caféと〔plain〕"}})
}

func TestParse_VariantKana(t *testing.T) {
	r := parse(t, "\U0001B002りがとう")
	assertSegments(t, r.Segments, []Segment{PlainText{Text: "ありがとう"}})
}

func TestParse_EmptyDirective(t *testing.T) {
	r := parse(t, "注［＃］記")
	assertSegments(t, r.Segments, []Segment{PlainText{Text: "注［＃］記"}})
	assertNoWarnings(t, r)
}

func TestParse_UnterminatedBracket(t *testing.T) {
	r := parse(t, "［＃改ページ\n次")
	assertSegments(t, r.Segments, []Segment{PlainText{Text: "［＃改ページ\n次"}})
	if countWarnings(r, UnterminatedBracket) != 1 {
		t.Errorf("warnings = %v", r.Warnings)
	}
}

func TestParse_NestedGaijiInDirective(t *testing.T) {
	raw := "［＃「※［＃「魚＋非」、第3水準1-94-68］」は謎］"
	r := parse(t, raw)
	assertSegments(t, r.Segments, []Segment{UnknownAnnotation{Raw: raw}})
}

func TestParse_VerbatimRaw(t *testing.T) {
	inputs := []string{
		"前［＃謎の注記］後",
		"※［＃「口＋世」、第4水準2-4-2］と※［＃「未知」］",
		"［＃ここから太字］［＃ここで傍点終わり］",
		"［＃「※［＃「魚＋非」、第3水準1-94-68］」は謎］",
	}
	for _, in := range inputs {
		r := parse(t, in)
		Walk(r.Segments, func(seg Segment) {
			var raw string
			switch s := seg.(type) {
			case UnknownAnnotation:
				raw = s.Raw
			case ExternalChar:
				if s.OK {
					return
				}
				raw = s.Raw
			default:
				return
			}
			if !strings.Contains(in, raw) || !strings.HasSuffix(raw, "］") {
				t.Errorf("raw %q is not a verbatim slice of %q", raw, in)
			}
		})
	}
}

func TestParse_Deterministic(t *testing.T) {
	tables := charmap.New()
	input := "漢字《かんじ》※［＃「魚＋非」、第3水準1-94-68］［＃ここから２字下げ］本文"
	a := Parse(tables, input)
	b := Parse(tables, input)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("parses differ:\n%#v\n%#v", a, b)
	}
}

func TestParse_WarningLines(t *testing.T) {
	r := parse(t, "一\n二\n［＃謎］")
	if len(r.Warnings) != 1 || r.Warnings[0].Line != 3 {
		t.Errorf("warnings = %v, want one on line 3", r.Warnings)
	}
}
