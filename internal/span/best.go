package span

import "github.com/erykwalder/quoth/internal/textpos"

// Best picks the range that will keep addressing a selection after the
// document is edited. Unique text is anchored by string, falling back to
// the literal positions otherwise. A nil range means the selection is the
// whole document.
func Best(doc, selected string, from, to textpos.Position) Range {
	if doc == selected {
		return nil
	}
	if textpos.IsUnique(doc, selected) {
		anchors := textpos.MinimalUniqueAnchors(doc, selected)
		if len(anchors) == 1 {
			return WholeString{Text: anchors[0]}
		}
		return StringRange{Start: anchors[0], End: anchors[1]}
	}
	return PosRange{Start: from, End: to}
}
