// Package span defines the range variants that address a piece of a document,
// their textual syntax, and the capture policy that picks a range for a
// selection.
package span

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/erykwalder/quoth/internal/textpos"
)

var (
	// ErrAnchorNotFound is returned when an anchor string is missing from the document.
	ErrAnchorNotFound = errors.New("anchor not found")
	ErrOutOfBounds    = textpos.ErrOutOfBounds
)

// Range addresses a span of a document. The set of variants is closed.
type Range interface {
	// Resolve locates the range in doc. Positions are honoured literally;
	// string anchors use the first occurrence.
	Resolve(doc string) (textpos.Span, error)
	// String renders the range in the syntax accepted by Parse.
	String() string

	isRange()
}

// PosRange spans from one line/column position to another.
type PosRange struct {
	Start textpos.Position
	End   textpos.Position
}

// StringRange starts at the first occurrence of Start and ends after the
// first occurrence of End at or after that point.
type StringRange struct {
	Start string
	End   string
}

// WholeString spans the first occurrence of Text.
type WholeString struct {
	Text string
}

// AfterString spans from the end of the first occurrence of Text to the end
// of the document.
type AfterString struct {
	Text string
}

// AfterPos spans from a position to the end of the document.
type AfterPos struct {
	Pos textpos.Position
}

func (PosRange) isRange()    {}
func (StringRange) isRange() {}
func (WholeString) isRange() {}
func (AfterString) isRange() {}
func (AfterPos) isRange()    {}

func (r PosRange) Resolve(doc string) (textpos.Span, error) {
	start, err := textpos.PositionToOffset(doc, r.Start)
	if err != nil {
		return textpos.Span{}, err
	}
	end, err := textpos.PositionToOffset(doc, r.End)
	if err != nil {
		return textpos.Span{}, err
	}
	if end < start {
		return textpos.Span{}, fmt.Errorf("range %s ends before it starts: %w", r, textpos.ErrOutOfBounds)
	}
	return textpos.Span{Start: start, End: end}, nil
}

func (r PosRange) String() string {
	return r.Start.String() + " to " + r.End.String()
}

func (r StringRange) Resolve(doc string) (textpos.Span, error) {
	start, err := find(doc, r.Start, 0)
	if err != nil {
		return textpos.Span{}, err
	}
	end, err := find(doc, r.End, start)
	if err != nil {
		return textpos.Span{}, err
	}
	return textpos.Span{Start: start, End: end + len(r.End)}, nil
}

func (r StringRange) String() string {
	return Quote(r.Start) + " to " + Quote(r.End)
}

func (r WholeString) Resolve(doc string) (textpos.Span, error) {
	start, err := find(doc, r.Text, 0)
	if err != nil {
		return textpos.Span{}, err
	}
	return textpos.Span{Start: start, End: start + len(r.Text)}, nil
}

func (r WholeString) String() string {
	return Quote(r.Text)
}

func (r AfterString) Resolve(doc string) (textpos.Span, error) {
	start, err := find(doc, r.Text, 0)
	if err != nil {
		return textpos.Span{}, err
	}
	return textpos.Span{Start: start + len(r.Text), End: len(doc)}, nil
}

func (r AfterString) String() string {
	return "after " + Quote(r.Text)
}

func (r AfterPos) Resolve(doc string) (textpos.Span, error) {
	start, err := textpos.PositionToOffset(doc, r.Pos)
	if err != nil {
		return textpos.Span{}, err
	}
	return textpos.Span{Start: start, End: len(doc)}, nil
}

func (r AfterPos) String() string {
	return "after " + r.Pos.String()
}

// Join renders ranges as a comma separated list.
func Join(ranges []Range) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

// Quote renders s as a JSON string literal without HTML escaping.
func Quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

// Unquote decodes a JSON string literal.
func Unquote(lit string) (string, error) {
	var s string
	if err := json.Unmarshal([]byte(lit), &s); err != nil {
		return "", fmt.Errorf("unquote %s: %w", lit, err)
	}
	return s, nil
}

func find(doc, anchor string, from int) (int, error) {
	if from > len(doc) {
		return -1, fmt.Errorf("could not find %s in file: %w", Quote(anchor), ErrAnchorNotFound)
	}
	idx := strings.Index(doc[from:], anchor)
	if idx < 0 {
		return -1, fmt.Errorf("could not find %s in file: %w", Quote(anchor), ErrAnchorNotFound)
	}
	return from + idx, nil
}
