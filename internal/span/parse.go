package span

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/erykwalder/quoth/internal/textpos"
)

// SyntaxError reports a malformed range list.
type SyntaxError struct {
	Token string
	Msg   string
}

func (e *SyntaxError) Error() string {
	if e.Token == "" {
		return "range syntax: " + e.Msg
	}
	return fmt.Sprintf("range syntax at %q: %s", e.Token, e.Msg)
}

const (
	kwTo    = "to"
	kwAfter = "after"
	comma   = ","
)

// Tokenize splits range syntax into string literals, line:col positions,
// the keywords "to" and "after", and commas. Whitespace separates tokens.
func Tokenize(text string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == ',':
			toks = append(toks, comma)
			i++
		case c == '"':
			end := scanString(text, i)
			if end < 0 {
				return nil, &SyntaxError{Token: text[i:], Msg: "unterminated string"}
			}
			toks = append(toks, text[i:end])
			i = end
		case isDigit(c):
			end := i
			for end < len(text) && (isDigit(text[end]) || text[end] == ':') {
				end++
			}
			tok := text[i:end]
			if _, err := parsePosition(tok); err != nil {
				return nil, &SyntaxError{Token: tok, Msg: "invalid position"}
			}
			toks = append(toks, tok)
			i = end
		case isLetter(c):
			end := i
			for end < len(text) && isLetter(text[end]) {
				end++
			}
			word := text[i:end]
			if word != kwTo && word != kwAfter {
				return nil, &SyntaxError{Token: word, Msg: "unknown keyword"}
			}
			toks = append(toks, word)
			i = end
		default:
			return nil, &SyntaxError{Token: string(c), Msg: "unexpected character"}
		}
	}
	return toks, nil
}

// ParseList parses a comma separated list of ranges. Empty input yields no ranges.
func ParseList(text string) ([]Range, error) {
	toks, err := Tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var ranges []Range
	for !p.done() {
		r, err := p.parseRange()
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
		if p.done() {
			break
		}
		if tok := p.next(); tok != comma {
			return nil, &SyntaxError{Token: tok, Msg: "expected ','"}
		}
		if p.done() {
			return nil, &SyntaxError{Token: comma, Msg: "trailing comma"}
		}
	}
	return ranges, nil
}

// Parse parses exactly one range.
func Parse(text string) (Range, error) {
	ranges, err := ParseList(text)
	if err != nil {
		return nil, err
	}
	if len(ranges) != 1 {
		return nil, &SyntaxError{Token: text, Msg: fmt.Sprintf("expected one range, got %d", len(ranges))}
	}
	return ranges[0], nil
}

type parser struct {
	toks []string
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() string {
	if p.done() {
		return ""
	}
	return p.toks[p.pos]
}

func (p *parser) next() string {
	tok := p.peek()
	p.pos++
	return tok
}

func (p *parser) parseRange() (Range, error) {
	tok := p.next()
	switch {
	case tok == kwAfter:
		if p.done() {
			return nil, &SyntaxError{Token: tok, Msg: "expected string or position after 'after'"}
		}
		arg := p.next()
		if isStringTok(arg) {
			s, err := Unquote(arg)
			if err != nil {
				return nil, &SyntaxError{Token: arg, Msg: "invalid string"}
			}
			return AfterString{Text: s}, nil
		}
		if pos, err := parsePosition(arg); err == nil {
			return AfterPos{Pos: pos}, nil
		}
		return nil, &SyntaxError{Token: arg, Msg: "expected string or position"}

	case isStringTok(tok):
		start, err := Unquote(tok)
		if err != nil {
			return nil, &SyntaxError{Token: tok, Msg: "invalid string"}
		}
		if p.done() || p.peek() == comma {
			return WholeString{Text: start}, nil
		}
		if err := p.expect(kwTo); err != nil {
			return nil, err
		}
		if p.done() {
			return nil, &SyntaxError{Token: kwTo, Msg: "missing range end"}
		}
		endTok := p.next()
		if !isStringTok(endTok) {
			return nil, &SyntaxError{Token: endTok, Msg: "expected string"}
		}
		end, err := Unquote(endTok)
		if err != nil {
			return nil, &SyntaxError{Token: endTok, Msg: "invalid string"}
		}
		return StringRange{Start: start, End: end}, nil

	default:
		start, err := parsePosition(tok)
		if err != nil {
			return nil, &SyntaxError{Token: tok, Msg: "expected range"}
		}
		if err := p.expect(kwTo); err != nil {
			return nil, err
		}
		if p.done() {
			return nil, &SyntaxError{Token: kwTo, Msg: "missing range end"}
		}
		endTok := p.next()
		end, err := parsePosition(endTok)
		if err != nil {
			return nil, &SyntaxError{Token: endTok, Msg: "expected position"}
		}
		return PosRange{Start: start, End: end}, nil
	}
}

func (p *parser) expect(want string) error {
	if p.done() {
		return &SyntaxError{Token: p.toks[len(p.toks)-1], Msg: fmt.Sprintf("missing '%s'", want)}
	}
	if tok := p.next(); tok != want {
		return &SyntaxError{Token: tok, Msg: fmt.Sprintf("expected '%s'", want)}
	}
	return nil
}

func parsePosition(tok string) (textpos.Position, error) {
	line, col, ok := strings.Cut(tok, ":")
	if !ok {
		return textpos.Position{}, fmt.Errorf("position %q: missing ':'", tok)
	}
	l, err := strconv.Atoi(line)
	if err != nil {
		return textpos.Position{}, fmt.Errorf("position %q: %w", tok, err)
	}
	c, err := strconv.Atoi(col)
	if err != nil {
		return textpos.Position{}, fmt.Errorf("position %q: %w", tok, err)
	}
	return textpos.Position{Line: l, Col: c}, nil
}

// scanString returns the index just past the closing quote of the string
// literal starting at text[start], or -1 if it is unterminated.
func scanString(text string, start int) int {
	for i := start + 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return -1
}

func isStringTok(tok string) bool { return strings.HasPrefix(tok, `"`) }
func isDigit(c byte) bool         { return c >= '0' && c <= '9' }
func isLetter(c byte) bool        { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
