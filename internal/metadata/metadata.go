// Package metadata extracts the structural cache of a markdown document:
// headings, block ids, list items and frontmatter, each with line, column and
// byte offset positions.
package metadata

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/erykwalder/quoth/internal/textpos"
)

// NoParent marks a list item at the root of its list.
const NoParent = -1

// Point is a location in a document.
type Point struct {
	Line   int `json:"line"`
	Col    int `json:"col"`
	Offset int `json:"offset"`
}

// Loc is the start and end of a structural element.
type Loc struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

type Heading struct {
	Heading  string `json:"heading"`
	Level    int    `json:"level"`
	Position Loc    `json:"position"`
}

type Block struct {
	ID       string `json:"id"`
	Position Loc    `json:"position"`
}

// ListItem is one item of a list. Parent is the start line of the enclosing
// item, or NoParent.
type ListItem struct {
	Parent   int `json:"parent"`
	Position Loc `json:"position"`
}

// Metadata is the structural cache of one document.
type Metadata struct {
	Headings    []Heading        `json:"headings"`
	Blocks      map[string]Block `json:"blocks"`
	ListItems   []ListItem       `json:"listItems"`
	Frontmatter map[string]any   `json:"frontmatter,omitempty"`
}

// SortedBlocks returns the blocks in document order.
func (m *Metadata) SortedBlocks() []Block {
	blocks := make([]Block, 0, len(m.Blocks))
	for _, b := range m.Blocks {
		blocks = append(blocks, b)
	}
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].Position.Start.Offset < blocks[j].Position.Start.Offset
	})
	return blocks
}

// Author returns the frontmatter author, or "" if there is none.
func (m *Metadata) Author() string {
	switch v := m.Frontmatter["author"].(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		names := make([]string, 0, len(v))
		for _, n := range v {
			names = append(names, fmt.Sprint(n))
		}
		return strings.Join(names, ", ")
	default:
		return fmt.Sprint(v)
	}
}

var blockIDRe = regexp.MustCompile(`(?:^|\s)\^([A-Za-z0-9-]+)$`)

// Build parses doc and returns its metadata. Malformed frontmatter is
// skipped rather than treated as an error.
func Build(doc string) *Metadata {
	m := &Metadata{Blocks: make(map[string]Block)}
	src := []byte(doc)

	fm, fmEnd, err := ParseFrontmatter(doc)
	if fmEnd > 0 {
		if err == nil {
			m.Frontmatter = fm
		}
		// keep offsets stable while hiding the fences from the markdown parser
		for i := 0; i < fmEnd; i++ {
			if src[i] != '\n' {
				src[i] = ' '
			}
		}
	}

	idx := newLineIndex(doc)
	root := goldmark.New().Parser().Parse(text.NewReader(src))
	itemLines := make(map[ast.Node]int)

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if h, ok := buildHeading(node, src, idx); ok {
				m.Headings = append(m.Headings, h)
			}
		case *ast.ListItem:
			if li, ok := buildListItem(node, src, idx, itemLines); ok {
				itemLines[node] = li.Position.Start.Line
				m.ListItems = append(m.ListItems, li)
			}
		case *ast.Paragraph, *ast.TextBlock:
			if b, ok := buildBlock(n, src, idx); ok {
				m.Blocks[b.ID] = b
			}
		}
		return ast.WalkContinue, nil
	})
	return m
}

// ParseFrontmatter decodes a leading YAML frontmatter section. It returns the
// byte length of the section including both fences, or 0 if doc has none.
func ParseFrontmatter(doc string) (map[string]any, int, error) {
	if !strings.HasPrefix(doc, "---\n") && !strings.HasPrefix(doc, "---\r\n") {
		return nil, 0, nil
	}
	bodyStart := strings.IndexByte(doc, '\n') + 1
	for pos := bodyStart; pos < len(doc); {
		lineEnd := len(doc)
		next := len(doc)
		if i := strings.IndexByte(doc[pos:], '\n'); i >= 0 {
			lineEnd = pos + i
			next = lineEnd + 1
		}
		if strings.TrimRight(doc[pos:lineEnd], " \t\r") == "---" {
			var fm map[string]any
			if err := yaml.Unmarshal([]byte(doc[bodyStart:pos]), &fm); err != nil {
				return nil, next, fmt.Errorf("parse frontmatter: %w", err)
			}
			return fm, next, nil
		}
		pos = next
	}
	return nil, 0, nil
}

func buildHeading(node *ast.Heading, src []byte, idx *lineIndex) (Heading, bool) {
	lines := node.Lines()
	if lines.Len() == 0 {
		return Heading{}, false
	}
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		parts = append(parts, strings.TrimSpace(string(seg.Value(src))))
	}

	first := lines.At(0)
	start := lineStartOf(src, first.Start)
	end := lineEndOf(src, lines.At(lines.Len()-1).Start)
	if !bytes.ContainsRune(src[start:first.Start], '#') && end < len(src) {
		// setext underline sits on the following line
		end = lineEndOf(src, end+1)
	}
	return Heading{
		Heading: strings.Join(parts, " "),
		Level:   node.Level,
		Position: Loc{
			Start: idx.point(start),
			End:   idx.point(end),
		},
	}, true
}

func buildListItem(node *ast.ListItem, src []byte, idx *lineIndex, itemLines map[ast.Node]int) (ListItem, bool) {
	first, last := -1, -1
	var visit func(n ast.Node)
	visit = func(n ast.Node) {
		if _, nested := n.(*ast.List); nested {
			return
		}
		if n.Type() == ast.TypeBlock {
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				if first < 0 || seg.Start < first {
					first = seg.Start
				}
				if seg.Stop > last {
					last = seg.Stop
				}
			}
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			visit(c)
		}
	}
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		visit(c)
	}
	if first < 0 {
		return ListItem{}, false
	}

	start := lineStartOf(src, first)
	for start < first && (src[start] == ' ' || src[start] == '\t' || src[start] == '>') {
		start++
	}
	for last > start && (src[last-1] == '\n' || src[last-1] == '\r') {
		last--
	}

	parent := NoParent
	if list := node.Parent(); list != nil {
		if line, ok := itemLines[list.Parent()]; ok {
			parent = line
		}
	}
	return ListItem{
		Parent:   parent,
		Position: Loc{Start: idx.point(start), End: idx.point(last)},
	}, true
}

func buildBlock(n ast.Node, src []byte, idx *lineIndex) (Block, bool) {
	lines := n.Lines()
	if lines.Len() == 0 {
		return Block{}, false
	}
	lastSeg := lines.At(lines.Len() - 1)
	lastLine := strings.TrimRight(string(lastSeg.Value(src)), " \t\r\n")
	match := blockIDRe.FindStringSubmatch(lastLine)
	if match == nil {
		return Block{}, false
	}
	start := lineStartOf(src, lines.At(0).Start)
	end := lineEndOf(src, lastSeg.Start)
	return Block{
		ID:       match[1],
		Position: Loc{Start: idx.point(start), End: idx.point(end)},
	}, true
}

func lineStartOf(src []byte, off int) int {
	for off > 0 && src[off-1] != '\n' {
		off--
	}
	return off
}

func lineEndOf(src []byte, off int) int {
	for off < len(src) && src[off] != '\n' {
		off++
	}
	if off > 0 && src[off-1] == '\r' {
		off--
	}
	return off
}

type lineIndex struct {
	text   string
	starts []int
}

func newLineIndex(s string) *lineIndex {
	starts := []int{0}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{text: s, starts: starts}
}

func (li *lineIndex) point(offset int) Point {
	line := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset }) - 1
	lineText := li.text[li.starts[line]:offset]
	return Point{
		Line:   line,
		Col:    textpos.OffsetToPosition(lineText, len(lineText)).Col,
		Offset: offset,
	}
}
