package textpos

import (
	"errors"
	"testing"
	"unicode/utf8"
)

func TestLineStart(t *testing.T) {
	text := "hello\nworld\n\nend"
	tests := []struct {
		line int
		want int
	}{
		{0, 0},
		{1, 6},
		{2, 12},
		{3, 13},
	}
	for _, tt := range tests {
		got, err := LineStart(text, tt.line)
		if err != nil {
			t.Fatalf("LineStart(%d): %v", tt.line, err)
		}
		if got != tt.want {
			t.Errorf("LineStart(%d) = %d, want %d", tt.line, got, tt.want)
		}
	}

	if _, err := LineStart(text, 4); !errors.Is(err, ErrLineNotFound) {
		t.Errorf("LineStart past end: got %v, want ErrLineNotFound", err)
	}
	if _, err := LineStart(text, -1); !errors.Is(err, ErrLineNotFound) {
		t.Errorf("LineStart(-1): got %v, want ErrLineNotFound", err)
	}
}

func TestPositionOffsetRoundTrip(t *testing.T) {
	text := "hello\nwörld 😀 x\n"
	for off := 0; off <= len(text); off++ {
		if off < len(text) && !utf8.RuneStart(text[off]) {
			continue
		}
		pos := OffsetToPosition(text, off)
		got, err := PositionToOffset(text, pos)
		if err != nil {
			t.Fatalf("offset %d: %v", off, err)
		}
		if OffsetToPosition(text, got) != pos {
			t.Errorf("offset %d: position %s maps back to %d", off, pos, got)
		}
	}
}

func TestPositionToOffset_UTF16Columns(t *testing.T) {
	text := "a😀b"
	// the emoji is one rune, four bytes and two UTF-16 units
	off, err := PositionToOffset(text, Position{Line: 0, Col: 3})
	if err != nil {
		t.Fatalf("PositionToOffset: %v", err)
	}
	if text[off:] != "b" {
		t.Errorf("col 3 lands on %q, want %q", text[off:], "b")
	}
	if got := OffsetToPosition(text, len(text)); got.Col != 4 {
		t.Errorf("end col = %d, want 4", got.Col)
	}
}

func TestPositionToOffset_OutOfBounds(t *testing.T) {
	text := "hello\nworld"
	tests := []Position{
		{Line: 2, Col: 0},
		{Line: 0, Col: 6},
		{Line: 1, Col: -1},
	}
	for _, pos := range tests {
		if _, err := PositionToOffset(text, pos); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("PositionToOffset(%s): got %v, want ErrOutOfBounds", pos, err)
		}
	}
	off, err := PositionToOffset(text, Position{Line: 0, Col: 5})
	if err != nil || off != 5 {
		t.Errorf("end of line: got %d, %v", off, err)
	}
}

func TestIsUnique(t *testing.T) {
	tests := []struct {
		text, sub string
		want      bool
	}{
		{"hello world", "world", true},
		{"hello world", "l", false},
		{"hello world", "xyz", false},
		{"aaa", "aa", false},
		{"abc", "", false},
	}
	for _, tt := range tests {
		if got := IsUnique(tt.text, tt.sub); got != tt.want {
			t.Errorf("IsUnique(%q, %q) = %v, want %v", tt.text, tt.sub, got, tt.want)
		}
	}
}

func TestMinimalUniqueAnchors(t *testing.T) {
	t.Run("short selection returned whole", func(t *testing.T) {
		got := MinimalUniqueAnchors("one two three", "two")
		if len(got) != 1 || got[0] != "two" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("long selection split into anchors", func(t *testing.T) {
		sel := "The quick brown fox jumps over the lazy dog near the river bank"
		doc := "Intro. " + sel + " Outro."
		got := MinimalUniqueAnchors(doc, sel)
		if len(got) != 2 {
			t.Fatalf("got %q, want two anchors", got)
		}
		if got[0] != "The quick " || got[1] != "river bank" {
			t.Errorf("anchors = %q", got)
		}
	})

	t.Run("anchors grow until unique", func(t *testing.T) {
		sel := "repeated text AAAA middle part here BBBB repeated text"
		doc := "repeated text and " + sel
		got := MinimalUniqueAnchors(doc, sel)
		if len(got) != 2 {
			t.Fatalf("got %q, want two anchors", got)
		}
		for _, a := range got {
			if !IsUnique(doc, a) {
				t.Errorf("anchor %q is not unique", a)
			}
		}
		if got[0] != "repeated text A" {
			t.Errorf("start anchor = %q", got[0])
		}
	})

	t.Run("anchors meeting collapse to whole", func(t *testing.T) {
		sel := "abcdefghijklmnopqrst"
		got := MinimalUniqueAnchors(sel, sel)
		if len(got) != 1 || got[0] != sel {
			t.Errorf("got %q", got)
		}
	})
}
