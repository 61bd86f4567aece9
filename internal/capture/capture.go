// Package capture turns a selection in a note into a quoth block that will
// find the same text again after the note is edited.
package capture

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/erykwalder/quoth/internal/embed"
	"github.com/erykwalder/quoth/internal/metadata"
	"github.com/erykwalder/quoth/internal/span"
	"github.com/erykwalder/quoth/internal/subpath"
	"github.com/erykwalder/quoth/internal/textpos"
)

// Settings are the defaults applied to new embeds.
type Settings struct {
	DefaultDisplay embed.Display
	DefaultShow    embed.Show
}

// Build returns an embed for sel in doc, linking to the file as linkText.
// meta may be nil for sources without markdown structure.
func Build(settings Settings, linkText, doc string, meta *metadata.Metadata, sel Selection) (embed.Embed, error) {
	start, err := textpos.PositionToOffset(doc, sel.From)
	if err != nil {
		return embed.Embed{}, fmt.Errorf("selection start: %w", err)
	}
	end, err := textpos.PositionToOffset(doc, sel.To)
	if err != nil {
		return embed.Embed{}, fmt.Errorf("selection end: %w", err)
	}
	if end < start {
		return embed.Embed{}, fmt.Errorf("selection ends before it starts: %w", textpos.ErrOutOfBounds)
	}
	selected := doc[start:end]

	e := embed.New()
	e.File = linkText
	e.Show = settings.DefaultShow
	if settings.DefaultDisplay != "" {
		e.Display = settings.DefaultDisplay
	}

	text, from, to := doc, sel.From, sel.To
	if scope := subpath.Scope(meta, sel.From, sel.To); scope != "" {
		res, err := subpath.Resolve(doc, meta, scope)
		if err != nil {
			return embed.Embed{}, fmt.Errorf("scope %s: %w", scope, err)
		}
		// the scope is found by line, so a selection running into a line
		// ending the scope leaves out is quoted from the whole document
		if sp := res.Span(); sp.Start <= start && end <= sp.End {
			text = doc[sp.Start:sp.End]
			from = shift(from, res.Start)
			to = shift(to, res.Start)
			e.Subpath = scope
		}
	}

	if r := span.Best(text, selected, from, to); r != nil {
		e.Ranges = []span.Range{r}
	}
	return e, nil
}

// shift makes p relative to a scope starting at origin.
func shift(p textpos.Position, origin metadata.Point) textpos.Position {
	if p.Line == origin.Line {
		p.Col -= origin.Col
	}
	p.Line -= origin.Line
	return p
}

var (
	blockquoteRunRe = regexp.MustCompile(`(?:(?:^|\n)>[^\n]+)+`)
	quoteMarkerRe   = regexp.MustCompile(`(^|\n)>`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// ReplaceBlockquotes replaces each blockquote in doc whose text appears in
// source with a quoth block referencing it. Whitespace differences between
// the quote and the source are ignored. It returns the new document and the
// number of blockquotes replaced.
func ReplaceBlockquotes(settings Settings, doc, linkText, source string, meta *metadata.Metadata) (string, int) {
	replaced := 0
	out := blockquoteRunRe.ReplaceAllStringFunc(doc, func(match string) string {
		body := strings.TrimSpace(quoteMarkerRe.ReplaceAllString(match, "$1"))
		if body == "" {
			return match
		}
		pattern := whitespaceRe.ReplaceAllString(regexp.QuoteMeta(body), `\s*`)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return match
		}
		loc := re.FindStringIndex(source)
		if loc == nil {
			return match
		}
		sel := Selection{
			From: textpos.OffsetToPosition(source, loc[0]),
			To:   textpos.OffsetToPosition(source, loc[1]),
		}
		e, err := Build(settings, linkText, source, meta, sel)
		if err != nil {
			return match
		}
		replaced++
		lead := ""
		if strings.HasPrefix(match, "\n") {
			lead = "\n"
		}
		return lead + embed.Serialize(e)
	})
	return out, replaced
}
