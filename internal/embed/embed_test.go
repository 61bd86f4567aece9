package embed

import (
	"errors"
	"reflect"
	"testing"

	"github.com/erykwalder/quoth/internal/span"
	"github.com/erykwalder/quoth/internal/textpos"
)

func mustParse(t *testing.T, text string) Embed {
	t.Helper()
	e, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q): %v", text, err)
	}
	return e
}

func TestParse_Path(t *testing.T) {
	tests := []struct {
		line, file, subpath string
	}{
		{"path: [[Once in a Blue Moon]]", "Once in a Blue Moon", ""},
		{"path: [[Once in a Blue Moon#Lunar Cycles]]", "Once in a Blue Moon", "#Lunar Cycles"},
		{"path: [[Once in a Blue Moon#Lunar Cycles#21]]", "Once in a Blue Moon", "#Lunar Cycles#21"},
		{"path: [[Once in a Blue Moon#^ablockid]]", "Once in a Blue Moon", "#^ablockid"},
		{"file: [[Twice in a Blue Moon]]", "Twice in a Blue Moon", ""},
		{"heading: #Lunar Cycles#Waning", "", "#Lunar Cycles#Waning"},
		{"block: ^blockid", "", "#^blockid"},
	}
	for _, tt := range tests {
		e := mustParse(t, tt.line)
		if e.File != tt.file || e.Subpath != tt.subpath {
			t.Errorf("Parse(%q) = file %q subpath %q, want %q %q", tt.line, e.File, e.Subpath, tt.file, tt.subpath)
		}
	}
}

func TestParse_Ranges(t *testing.T) {
	tests := []struct {
		line string
		want []span.Range
	}{
		{"ranges: 5:10 to 7:15", []span.Range{span.PosRange{Start: textpos.Position{Line: 5, Col: 10}, End: textpos.Position{Line: 7, Col: 15}}}},
		{`ranges: "Hello" to "world."`, []span.Range{span.StringRange{Start: "Hello", End: "world."}}},
		{`ranges: "Hello world."`, []span.Range{span.WholeString{Text: "Hello world."}}},
		{`ranges: after "Hello"`, []span.Range{span.AfterString{Text: "Hello"}}},
		{`ranges: after 0:5`, []span.Range{span.AfterPos{Pos: textpos.Position{Line: 0, Col: 5}}}},
		{`ranges: "Hello" to "foobar", "Biz" to "baz"`, []span.Range{
			span.StringRange{Start: "Hello", End: "foobar"},
			span.StringRange{Start: "Biz", End: "baz"},
		}},
	}
	for _, tt := range tests {
		e := mustParse(t, tt.line)
		if !reflect.DeepEqual(e.Ranges, tt.want) {
			t.Errorf("Parse(%q).Ranges = %#v, want %#v", tt.line, e.Ranges, tt.want)
		}
	}
}

func TestParse_Defaults(t *testing.T) {
	e := mustParse(t, "")
	if e.Join != DefaultJoin {
		t.Errorf("Join = %q, want %q", e.Join, DefaultJoin)
	}
	if e.Display != DisplayEmbedded {
		t.Errorf("Display = %q, want %q", e.Display, DisplayEmbedded)
	}
	if e.Show != (Show{}) {
		t.Errorf("Show = %+v, want none", e.Show)
	}
}

func TestParse_Options(t *testing.T) {
	if e := mustParse(t, `join: "; "`); e.Join != "; " {
		t.Errorf("Join = %q", e.Join)
	}
	if e := mustParse(t, "show: title, author"); e.Show != (Show{Title: true, Author: true}) {
		t.Errorf("Show = %+v", e.Show)
	}
	if e := mustParse(t, "display: inline"); e.Display != DisplayInline {
		t.Errorf("Display = %q", e.Display)
	}
}

func TestParse_MultipleLines(t *testing.T) {
	text := "\nfile: [[Once in a Blue Moon]]\nheading: #Lunar Cycles\n    "
	e := mustParse(t, text)
	if e.File != "Once in a Blue Moon" || e.Subpath != "#Lunar Cycles" {
		t.Errorf("got file %q subpath %q", e.File, e.Subpath)
	}
}

func TestParse_WholeBlock(t *testing.T) {
	text := "```quoth\n" +
		"file: [[File Title]]\n" +
		"heading: #Heading#21\n" +
		"block: ^someid\n" +
		`ranges: 123:10 to 125:10, "doc" to "text", "start" to "end", after "text"` + "\n" +
		`join: ", "` + "\n" +
		"show: title\n" +
		"display: inline\n" +
		"```"
	want := Embed{
		File:    "File Title",
		Subpath: "#Heading#21#^someid",
		Ranges: []span.Range{
			span.PosRange{Start: textpos.Position{Line: 123, Col: 10}, End: textpos.Position{Line: 125, Col: 10}},
			span.StringRange{Start: "doc", End: "text"},
			span.StringRange{Start: "start", End: "end"},
			span.AfterString{Text: "text"},
		},
		Join:    ", ",
		Show:    Show{Title: true},
		Display: DisplayInline,
	}
	if got := mustParse(t, text); !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v\nwant %#v", got, want)
	}
}

func TestParse_OrderInsensitiveSubpath(t *testing.T) {
	a := mustParse(t, "block: ^id\nheading: #H\nfile: [[F]]")
	b := mustParse(t, "file: [[F]]\nheading: #H\nblock: ^id")
	if a.Subpath != b.Subpath || a.Subpath != "#H#^id" {
		t.Errorf("subpaths %q and %q", a.Subpath, b.Subpath)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		text    string
		setting string
	}{
		{"path: Once in a Blue Moon", "path"},
		{"file: nope", "file"},
		{"heading: Lunar", "heading"},
		{"block: blockid", "block"},
		{`join: ; `, "join"},
		{"show: title, colour", "show"},
		{"display: sideways", "display"},
		{`ranges: "unterminated`, "ranges"},
	}
	for _, tt := range tests {
		_, err := Parse(tt.text)
		var se *SettingError
		if !errors.As(err, &se) {
			t.Errorf("Parse(%q): got %v, want *SettingError", tt.text, err)
			continue
		}
		if se.Setting != tt.setting {
			t.Errorf("Parse(%q): setting %q, want %q", tt.text, se.Setting, tt.setting)
		}
	}

	_, err := Parse(`ranges: 1:2 3:4`)
	var syn *span.SyntaxError
	if !errors.As(err, &syn) {
		t.Errorf("range errors should unwrap to *span.SyntaxError, got %v", err)
	}
}

func TestParse_IgnoresUnknownSettings(t *testing.T) {
	e := mustParse(t, "colour: blue\npath: [[Note]]")
	if e.File != "Note" {
		t.Errorf("File = %q", e.File)
	}
}

func TestSerialize(t *testing.T) {
	e := New()
	e.File = "Note"
	e.Subpath = "#Heading"
	if got, want := Serialize(e), "```quoth\npath: [[Note#Heading]]\n```"; got != want {
		t.Errorf("minimal:\n%s\nwant\n%s", got, want)
	}

	e.Ranges = []span.Range{span.WholeString{Text: `say "hi"`}, span.AfterPos{Pos: textpos.Position{Line: 2}}}
	e.Join = ", "
	e.Display = DisplayInline
	e.Show = Show{Title: true, Author: true}
	want := "```quoth\n" +
		"path: [[Note#Heading]]\n" +
		`ranges: "say \"hi\"", after 2:0` + "\n" +
		`join: ", "` + "\n" +
		"display: inline\n" +
		"show: author, title\n" +
		"```"
	if got := Serialize(e); got != want {
		t.Errorf("full:\n%s\nwant\n%s", got, want)
	}
}

func TestSerialize_RoundTrip(t *testing.T) {
	embeds := []Embed{
		{File: "A", Join: DefaultJoin, Display: DefaultDisplay},
		{File: "dir/B", Subpath: "#^blk", Ranges: []span.Range{span.StringRange{Start: "x", End: "y"}}, Join: "", Display: DisplayInline},
		{File: "C", Subpath: "#One#Two", Ranges: []span.Range{
			span.PosRange{Start: textpos.Position{Line: 1, Col: 2}, End: textpos.Position{Line: 3, Col: 4}},
			span.AfterString{Text: "line\nbreak"},
		}, Join: " / ", Show: Show{Author: true}, Display: DefaultDisplay},
	}
	for _, e := range embeds {
		got, err := Parse(Serialize(e))
		if err != nil {
			t.Fatalf("Parse(Serialize(%+v)): %v", e, err)
		}
		if !reflect.DeepEqual(got, e) {
			t.Errorf("round trip:\n got %#v\nwant %#v", got, e)
		}
	}
}

func TestBlocks(t *testing.T) {
	doc := "intro\n" +
		"```quoth\npath: [[A]]\n```\n" +
		"middle\n" +
		"  ~~~~quoth\npath: [[B]]\n~~~~\n" +
		"```go\ncode\n```\n" +
		"```quoth\npath: [[C]]"
	spans := Blocks(doc)
	if len(spans) != 3 {
		t.Fatalf("got %d blocks, want 3", len(spans))
	}
	wantFiles := []string{"A", "B", "C"}
	for i, sp := range spans {
		e, err := Parse(doc[sp.Start:sp.End])
		if err != nil {
			t.Fatalf("block %d: %v", i, err)
		}
		if e.File != wantFiles[i] {
			t.Errorf("block %d file = %q, want %q", i, e.File, wantFiles[i])
		}
	}
	if got := doc[spans[0].Start:spans[0].End]; got != "```quoth\npath: [[A]]\n```" {
		t.Errorf("block 0 = %q", got)
	}
	if spans[2].End != len(doc) {
		t.Errorf("unterminated block should run to end of doc")
	}
}

func TestBlocks_FenceMatching(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			"info string must be exactly quoth",
			"```quothx\npath: [[A]]\n```\n```quoth-notes\npath: [[B]]\n```\n```quoth  \npath: [[C]]\n```\n",
			[]string{"```quoth  \npath: [[C]]\n```"},
		},
		{
			"tilde block ignores backtick lines",
			"~~~quoth\npath: [[A]]\n```\nranges: \"full\"\n~~~\nafter",
			[]string{"~~~quoth\npath: [[A]]\n```\nranges: \"full\"\n~~~"},
		},
		{
			"closing fence at least as long",
			"````quoth\npath: [[A]]\n```\nranges: \"x\"\n`````\nafter",
			[]string{"````quoth\npath: [[A]]\n```\nranges: \"x\"\n`````"},
		},
		{
			"closing fence with trailing text does not close",
			"```quoth\npath: [[A]]\n``` no\n```\n",
			[]string{"```quoth\npath: [[A]]\n``` no\n```"},
		},
		{
			"crlf",
			"```quoth\r\npath: [[A]]\r\n```\r\nafter",
			[]string{"```quoth\r\npath: [[A]]\r\n```"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, sp := range Blocks(tt.doc) {
				got = append(got, tt.doc[sp.Start:sp.End])
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestBody(t *testing.T) {
	if got := Body("~~~quoth\npath: [[A]]\n```\n~~~"); got != "path: [[A]]\n```" {
		t.Errorf("Body = %q", got)
	}
	if got := Body("```quoth\npath: [[A]]\nranges: \"x\"\n```"); got != "path: [[A]]\nranges: \"x\"" {
		t.Errorf("Body = %q", got)
	}
}
