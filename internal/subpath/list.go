package subpath

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/erykwalder/quoth/internal/metadata"
)

// resolveList resolves a "#-Item#-Child" path, optionally preceded by a
// heading or block subpath that scopes the search. Ancestors named in the
// path must appear in order but need not be direct parents. The first
// matching item in document order wins.
func resolveList(doc string, meta *metadata.Metadata, path string, listIdx int) (Result, error) {
	items := meta.ListItems
	if listIdx > 0 {
		scope, err := resolveHeadingOrBlock(doc, meta, path[:listIdx])
		if err != nil {
			return Result{}, err
		}
		sp := scope.Span()
		var scoped []metadata.ListItem
		for _, li := range items {
			if li.Position.Start.Offset >= sp.Start && li.Position.End.Offset <= sp.End {
				scoped = append(scoped, li)
			}
		}
		items = scoped
	}

	names := strings.Split(path[listIdx:], "#-")[1:]
	target := names[len(names)-1]
	ancestors := names[:len(names)-1]

	for _, li := range items {
		if !listMatches(doc, li, target) || !hasAncestors(doc, items, li, ancestors) {
			continue
		}
		return Result{
			Kind:     KindListItem,
			Start:    li.Position.Start,
			End:      maxEnd(items, li),
			Children: listChildren(items, li),
		}, nil
	}
	return Result{}, fmt.Errorf("%s: %w", path[listIdx:], ErrListItemNotFound)
}

func listMatches(doc string, li metadata.ListItem, text string) bool {
	re, err := regexp.Compile(`^(\d+[.)]|[+*-])\s+` + regexp.QuoteMeta(text) + `$`)
	if err != nil {
		return false
	}
	return re.MatchString(doc[li.Position.Start.Offset:li.Position.End.Offset])
}

// hasAncestors walks up from li, skipping ancestors that do not match, until
// every name in ancestors (outermost first) has been matched innermost first.
func hasAncestors(doc string, items []metadata.ListItem, li metadata.ListItem, ancestors []string) bool {
	for len(ancestors) > 0 {
		parent, ok := findItemAtLine(items, li.Parent)
		if !ok {
			return false
		}
		if listMatches(doc, parent, ancestors[len(ancestors)-1]) {
			ancestors = ancestors[:len(ancestors)-1]
		}
		li = parent
	}
	return true
}

func findItemAtLine(items []metadata.ListItem, line int) (metadata.ListItem, bool) {
	if line < 0 {
		return metadata.ListItem{}, false
	}
	for _, li := range items {
		if li.Position.Start.Line == line {
			return li, true
		}
	}
	return metadata.ListItem{}, false
}

func listChildren(items []metadata.ListItem, parent metadata.ListItem) []metadata.ListItem {
	children := []metadata.ListItem{}
	for _, li := range items {
		if li.Parent == parent.Position.Start.Line {
			children = append(children, li)
		}
	}
	return children
}

// maxEnd follows the last descendant down the tree to find where the item's
// nested content ends.
func maxEnd(items []metadata.ListItem, parent metadata.ListItem) metadata.Point {
	end := parent.Position.End
	children := listChildren(items, parent)
	for len(children) > 0 {
		last := children[0]
		for _, c := range children[1:] {
			if c.Position.End.Offset > last.Position.End.Offset {
				last = c
			}
		}
		if last.Position.End.Offset > end.Offset {
			end = last.Position.End
		}
		children = listChildren(items, last)
	}
	return end
}
