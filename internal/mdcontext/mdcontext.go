// Package mdcontext carries markdown formatting across the boundaries of an
// extracted span, so that a quote taken from the middle of a bold run or a
// blockquoted list still renders the way it did in its source.
package mdcontext

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/erykwalder/quoth/internal/span"
	"github.com/erykwalder/quoth/internal/textpos"
)

type tokenKind int

const (
	lineStart tokenKind = iota
	surrounding
	plain
)

type tokenDef struct {
	kind tokenKind
	re   *regexp.Regexp
}

type token struct {
	def  *tokenDef
	text string
}

var (
	blockQuoteTok = &tokenDef{lineStart, regexp.MustCompile(`^>( |\t)?`)}
	headingTok    = &tokenDef{lineStart, regexp.MustCompile(`^#{1,6}( |\t)`)}
	// leading space before a bullet is ambiguous with an indented code line
	// without the previous line, so only ordered markers take indentation
	listItemTok = &tokenDef{lineStart, regexp.MustCompile(`^(( |\t)*(\d+[.)])|[+*-])( |\t)`)}
	codeLineTok = &tokenDef{lineStart, regexp.MustCompile(`^( {4}|\t)`)}
	strongTok   = &tokenDef{surrounding, regexp.MustCompile(`^(\*\*|__)`)}
	strikeTok   = &tokenDef{surrounding, regexp.MustCompile(`^~~`)}
	markTok     = &tokenDef{surrounding, regexp.MustCompile(`^==`)}
	emTok       = &tokenDef{surrounding, regexp.MustCompile(`^[*_]`)}
	codeTok     = &tokenDef{surrounding, regexp.MustCompile("^`")}
	textTok     = &tokenDef{plain, nil}
)

// tokenDefs is in matching priority order.
var tokenDefs = []*tokenDef{
	blockQuoteTok,
	headingTok,
	listItemTok,
	codeLineTok,
	strongTok,
	strikeTok,
	markTok,
	emTok,
	codeTok,
}

// ExtractRangeWithContext resolves r in doc and returns its text wrapped in
// the formatting that is open at either end.
func ExtractRangeWithContext(doc string, r span.Range) (string, error) {
	sp, err := r.Resolve(doc)
	if err != nil {
		return "", err
	}
	return ExtractSpanWithContext(doc, sp)
}

// ExtractSpanWithContext is ExtractRangeWithContext for a resolved span.
func ExtractSpanWithContext(doc string, sp textpos.Span) (string, error) {
	if err := sp.Validate(len(doc)); err != nil {
		return "", err
	}
	return Prefix(doc, sp.Start) + doc[sp.Start:sp.End] + Suffix(doc, sp.End), nil
}

// Prefix returns the line-start markers and still-open surrounding markers
// found on the line containing offset, before offset.
func Prefix(doc string, offset int) string {
	toks := tokenize(linePrefix(doc, offset))
	var b strings.Builder
	for _, t := range toks {
		if t.def.kind == lineStart {
			b.WriteString(t.text)
		}
	}
	for _, t := range openTokens(toks) {
		b.WriteString(t.text)
	}
	return b.String()
}

// Suffix returns the closing markers for surrounding formatting still open
// at offset on its line, innermost first.
func Suffix(doc string, offset int) string {
	open := openTokens(tokenize(linePrefix(doc, offset)))
	var b strings.Builder
	for i := len(open) - 1; i >= 0; i-- {
		b.WriteString(open[i].text)
	}
	return b.String()
}

// Normalize strips indentation and blockquote markers shared by every line
// and, for a single line, its list or heading marker. It is idempotent.
func Normalize(text string) string {
	parts := strings.Split(text, "\n")
	for {
		before := strings.Join(parts, "\n")

		for parts[0] != "" {
			for allLines(parts, startsWithBlank) {
				for i, p := range parts {
					parts[i] = p[1:]
				}
			}
			if !allLines(parts, blockQuoteTok.re.MatchString) {
				break
			}
			for i, p := range parts {
				parts[i] = trimToken(p, blockQuoteTok)
			}
		}
		if len(parts) == 1 {
			parts[0] = trimToken(parts[0], listItemTok)
			parts[0] = trimToken(parts[0], headingTok)
		}

		if strings.Join(parts, "\n") == before {
			return before
		}
	}
}

func linePrefix(doc string, offset int) string {
	start := strings.LastIndexByte(doc[:offset], '\n') + 1
	return doc[start:offset]
}

// tokenize splits a single line. Line-start markers are only recognised
// before the first other token.
func tokenize(s string) []token {
	var toks []token
	atLineStart := true
	for len(s) > 0 {
		def, match := textTok, ""
		for _, d := range tokenDefs {
			if d.kind == lineStart && !atLineStart {
				continue
			}
			if m := d.re.FindString(s); m != "" {
				def, match = d, m
				break
			}
		}
		if def == textTok {
			_, size := utf8.DecodeRuneInString(s)
			match = s[:size]
		}
		s = s[len(match):]

		if def == textTok && len(toks) > 0 && toks[len(toks)-1].def == textTok {
			toks[len(toks)-1].text += match
		} else {
			toks = append(toks, token{def: def, text: match})
		}
		if def.kind != lineStart {
			atLineStart = false
		}
	}
	return toks
}

// openTokens pairs surrounding markers and returns the unclosed ones in
// opening order.
func openTokens(toks []token) []token {
	var open []token
	for _, t := range toks {
		if t.def.kind != surrounding {
			continue
		}
		if len(open) > 0 && open[len(open)-1].text == t.text {
			open = open[:len(open)-1]
		} else {
			open = append(open, t)
		}
	}
	return open
}

func trimToken(s string, def *tokenDef) string {
	return s[len(def.re.FindString(s)):]
}

func startsWithBlank(s string) bool {
	return strings.HasPrefix(s, " ") || strings.HasPrefix(s, "\t")
}

func allLines(parts []string, f func(string) bool) bool {
	for _, p := range parts {
		if !f(p) {
			return false
		}
	}
	return true
}
