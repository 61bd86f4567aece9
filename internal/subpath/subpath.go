// Package subpath resolves "#Heading#Sub", "#^block" and "#-item" addresses
// against a document's metadata, and computes the narrowest unique subpath
// that encloses a selection.
package subpath

import (
	"errors"
	"fmt"
	"strings"

	"github.com/erykwalder/quoth/internal/metadata"
	"github.com/erykwalder/quoth/internal/textpos"
)

var (
	ErrHeadingNotFound  = errors.New("heading not found")
	ErrBlockNotFound    = errors.New("block not found")
	ErrListItemNotFound = errors.New("list item not found")
)

// Kind identifies what a subpath resolved to.
type Kind string

const (
	KindDocument Kind = "document"
	KindHeading  Kind = "heading"
	KindBlock    Kind = "block"
	KindListItem Kind = "list-item"
)

// Result is a resolved subpath.
type Result struct {
	Kind  Kind
	Start metadata.Point
	End   metadata.Point

	// Children holds the direct children of a resolved list item.
	Children []metadata.ListItem
}

// Span returns the byte range covered by the result.
func (r Result) Span() textpos.Span {
	return textpos.Span{Start: r.Start.Offset, End: r.End.Offset}
}

// Resolve locates path in doc. An empty path resolves to the whole document.
func Resolve(doc string, meta *metadata.Metadata, path string) (Result, error) {
	if path == "" {
		return Result{Kind: KindDocument, Start: pointAt(doc, 0), End: pointAt(doc, len(doc))}, nil
	}
	if i := strings.Index(path, "#-"); i >= 0 {
		res, err := resolveList(doc, meta, path, i)
		if err == nil {
			return res, nil
		}
		if fallback, ferr := resolveHeadingOrBlock(doc, meta, path); ferr == nil {
			return fallback, nil
		}
		return Result{}, err
	}
	return resolveHeadingOrBlock(doc, meta, path)
}

func resolveHeadingOrBlock(doc string, meta *metadata.Metadata, path string) (Result, error) {
	// block ids are unique within a document, so headings before one are not consulted
	if i := strings.Index(path, "#^"); i >= 0 {
		id := path[i+2:]
		b, ok := meta.Blocks[id]
		if !ok {
			return Result{}, fmt.Errorf("^%s: %w", id, ErrBlockNotFound)
		}
		return Result{Kind: KindBlock, Start: b.Position.Start, End: b.Position.End}, nil
	}

	parts := splitHeadingPath(path)
	if len(parts) == 0 {
		return Result{}, fmt.Errorf("%q: %w", path, ErrHeadingNotFound)
	}
	matches := matchHeadingPath(meta.Headings, parts, 1)
	if len(matches) == 0 {
		return Result{}, fmt.Errorf("%s: %w", path, ErrHeadingNotFound)
	}
	return headingResult(doc, meta.Headings, matches[0]), nil
}

// headingResult spans a heading through the line before the next heading of
// the same or a higher level, or to the end of the document.
func headingResult(doc string, headings []metadata.Heading, i int) Result {
	h := headings[i]
	end := pointAt(doc, len(doc))
	for _, next := range headings[i+1:] {
		if next.Level <= h.Level {
			end = pointAt(doc, max(h.Position.End.Offset, next.Position.Start.Offset-1))
			break
		}
	}
	return Result{Kind: KindHeading, Start: h.Position.Start, End: end}
}

// matchHeadingPath returns the indexes of headings reached by parts, each
// part matching a heading nested deeper than the previous match. It stops
// once limit matches are found; a limit of 0 finds all of them.
func matchHeadingPath(headings []metadata.Heading, parts []string, limit int) []int {
	var matches []int
	var levels []int
	for i, h := range headings {
		for len(levels) > 0 && h.Level <= levels[len(levels)-1] {
			levels = levels[:len(levels)-1]
		}
		if linkableHeading(h.Heading) != parts[len(levels)] {
			continue
		}
		levels = append(levels, h.Level)
		if len(levels) == len(parts) {
			matches = append(matches, i)
			if limit > 0 && len(matches) >= limit {
				return matches
			}
			levels = levels[:len(levels)-1]
		}
	}
	return matches
}

func splitHeadingPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "#") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func pointAt(doc string, offset int) metadata.Point {
	pos := textpos.OffsetToPosition(doc, offset)
	return metadata.Point{Line: pos.Line, Col: pos.Col, Offset: offset}
}
