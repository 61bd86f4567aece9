package subpath

import (
	"math"
	"strings"

	"github.com/erykwalder/quoth/internal/metadata"
	"github.com/erykwalder/quoth/internal/textpos"
)

// Scope returns the narrowest subpath that encloses the lines from..to and
// resolves to one place: a containing block, else the shortest trailing part
// of the parent heading chain that is unique. It returns "" when neither
// exists.
func Scope(meta *metadata.Metadata, from, to textpos.Position) string {
	if meta == nil {
		return ""
	}
	if b, ok := ContainingBlock(meta, from, to); ok {
		return "#^" + b.ID
	}
	chain := ParentHeadings(meta.Headings, from, to)
	names := make([]string, len(chain))
	for i, h := range chain {
		names[i] = linkableHeading(h.Heading)
	}
	for n := 1; n <= len(names); n++ {
		tail := names[len(names)-n:]
		if len(matchHeadingPath(meta.Headings, tail, 2)) <= 1 {
			return "#" + strings.Join(tail, "#")
		}
	}
	return ""
}

// ContainingBlock returns the first block, in document order, whose lines
// cover from.Line through to.Line.
func ContainingBlock(meta *metadata.Metadata, from, to textpos.Position) (metadata.Block, bool) {
	for _, b := range meta.SortedBlocks() {
		if b.Position.Start.Line <= from.Line && b.Position.End.Line >= to.Line {
			return b, true
		}
	}
	return metadata.Block{}, false
}

// ParentHeadings returns the headings whose sections enclose the lines
// from..to, outermost first.
func ParentHeadings(headings []metadata.Heading, from, to textpos.Position) []metadata.Heading {
	last := -1
	for i, h := range headings {
		if h.Position.End.Line > to.Line {
			break
		}
		last = i
	}

	var chain []metadata.Heading
	level := math.MaxInt
	for i := last; i >= 0; i-- {
		h := headings[i]
		if h.Level >= level {
			continue
		}
		level = h.Level
		if h.Position.Start.Line <= from.Line {
			chain = append([]metadata.Heading{h}, chain...)
		}
	}
	return chain
}

// linkableHeading drops the characters that cannot appear in a heading link.
func linkableHeading(h string) string {
	h = strings.Map(func(r rune) rune {
		switch r {
		case '#', '^', '[', ']', '|':
			return ' '
		}
		return r
	}, h)
	return strings.Join(strings.Fields(h), " ")
}
