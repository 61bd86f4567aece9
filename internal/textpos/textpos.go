// Package textpos converts between line/column positions and byte offsets,
// and finds short substrings that identify a selection uniquely.
package textpos

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

var (
	// ErrLineNotFound is returned when a line number is past the end of the text.
	ErrLineNotFound = errors.New("line not found")

	// ErrOutOfBounds is returned when a position or span falls outside the text.
	ErrOutOfBounds = errors.New("position out of bounds")
)

// anchorMinLen is the length, in runes, that anchors start growing from.
const anchorMinLen = 10

// Position addresses a character by 0-indexed line and column.
// Col counts UTF-16 code units, the unit editors report selections in.
type Position struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Before reports whether p sorts strictly before o.
func (p Position) Before(o Position) bool {
	return p.Line < o.Line || (p.Line == o.Line && p.Col < o.Col)
}

// Span is a half-open byte range [Start, End) into a document.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Contains reports whether other lies entirely within s.
func (s Span) Contains(other Span) bool {
	return s.Start <= other.Start && other.End <= s.End
}

// Validate checks the span against a document of length n.
func (s Span) Validate(n int) error {
	if s.Start < 0 || s.End > n || s.End < s.Start {
		return fmt.Errorf("span %d-%d in %d bytes: %w", s.Start, s.End, n, ErrOutOfBounds)
	}
	return nil
}

// LineStart returns the offset of the first byte of the given 0-indexed line.
func LineStart(text string, line int) (int, error) {
	if line < 0 {
		return -1, fmt.Errorf("line %d: %w", line, ErrLineNotFound)
	}
	idx := -1
	for n := 0; n < line; n++ {
		next := strings.IndexByte(text[idx+1:], '\n')
		if next < 0 {
			return -1, fmt.Errorf("line %d: %w", line, ErrLineNotFound)
		}
		idx += next + 1
	}
	return idx + 1, nil
}

// OffsetToPosition returns the position of a byte offset. Offsets outside
// the text are clamped to its bounds.
func OffsetToPosition(text string, offset int) Position {
	offset = max(0, min(offset, len(text)))
	prefix := text[:offset]
	lineStart := strings.LastIndexByte(prefix, '\n') + 1
	return Position{
		Line: strings.Count(prefix, "\n"),
		Col:  utf16Len(prefix[lineStart:]),
	}
}

// PositionToOffset returns the byte offset of a position. The column may
// point at the end of its line but not past it.
func PositionToOffset(text string, pos Position) (int, error) {
	start, err := LineStart(text, pos.Line)
	if err != nil || pos.Col < 0 {
		return -1, fmt.Errorf("position %s: %w", pos, ErrOutOfBounds)
	}
	end := len(text)
	if i := strings.IndexByte(text[start:], '\n'); i >= 0 {
		end = start + i
	}
	units := 0
	for i, r := range text[start:end] {
		// a column inside a surrogate pair rounds up to the next rune
		if units >= pos.Col {
			return start + i, nil
		}
		units += utf16.RuneLen(r)
	}
	if units >= pos.Col {
		return end, nil
	}
	return -1, fmt.Errorf("position %s: %w", pos, ErrOutOfBounds)
}

// IsUnique reports whether sub occurs in text exactly once.
// Overlapping occurrences count as separate.
func IsUnique(text, sub string) bool {
	if sub == "" {
		return false
	}
	idx := strings.Index(text, sub)
	return idx >= 0 && strings.Index(text[idx+1:], sub) < 0
}

// MinimalUniqueAnchors grows a prefix and a suffix of sub, one rune at a
// time from anchorMinLen, until each occurs in text only once. When the two
// anchors would together cover sub, sub itself is returned as the only
// anchor. sub should itself be unique in text.
func MinimalUniqueAnchors(text, sub string) []string {
	runes := []rune(sub)
	n := len(runes)

	startLen := min(n, anchorMinLen)
	for startLen < n && !IsUnique(text, string(runes[:startLen])) {
		startLen++
	}
	endLen := min(n, anchorMinLen)
	for endLen < n && !IsUnique(text, string(runes[n-endLen:])) {
		endLen++
	}

	if startLen+endLen >= n {
		return []string{sub}
	}
	return []string{string(runes[:startLen]), string(runes[n-endLen:])}
}

func utf16Len(s string) int {
	n := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		n += utf16.RuneLen(r)
		s = s[size:]
	}
	return n
}
