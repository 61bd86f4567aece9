package capture

import (
	"sync"

	"github.com/erykwalder/quoth/internal/textpos"
)

// Selection is a range of a document picked by a user, with From never
// after To.
type Selection struct {
	File string           `json:"file"`
	From textpos.Position `json:"from"`
	To   textpos.Position `json:"to"`
}

// NewSelection orders a and b into a selection of file.
func NewSelection(file string, a, b textpos.Position) Selection {
	if b.Before(a) {
		a, b = b, a
	}
	return Selection{File: file, From: a, To: b}
}

// Empty reports whether the selection covers no text.
func (s Selection) Empty() bool {
	return s.From == s.To
}

// Tracker remembers the most recent non-empty selection so a later command
// can act on it after focus has moved elsewhere.
type Tracker struct {
	mu   sync.Mutex
	last Selection
	ok   bool
}

// Update records sel unless it is empty.
func (t *Tracker) Update(sel Selection) {
	if sel.Empty() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last, t.ok = sel, true
}

// Last returns the most recent selection, if any.
func (t *Tracker) Last() (Selection, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.ok
}

// Clear forgets the recorded selection.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last, t.ok = Selection{}, false
}
