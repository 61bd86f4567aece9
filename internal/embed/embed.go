// Package embed parses and serializes quoth blocks, the fenced references
// that a note uses to quote part of another note.
package embed

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/erykwalder/quoth/internal/span"
)

// Display controls whether a quote renders as a block or inline.
type Display string

const (
	DisplayEmbedded Display = "embedded"
	DisplayInline   Display = "inline"
)

const (
	DefaultJoin    = " ... "
	DefaultDisplay = DisplayEmbedded

	// FenceLang is the info string that marks a fenced block as a quote reference.
	FenceLang = "quoth"
)

var (
	errInvalidPath    = errors.New("expected [[file#subpath]]")
	errInvalidFile    = errors.New("expected [[file]]")
	errInvalidHeading = errors.New("expected #heading#subheading")
	errInvalidBlock   = errors.New("expected ^blockid")
	errInvalidJoin    = errors.New("expected a quoted string")
	errInvalidShow    = errors.New("expected title or author")
	errInvalidDisplay = errors.New("expected embedded or inline")
)

// Show toggles extra lines rendered with a quote.
type Show struct {
	Title  bool `json:"title"`
	Author bool `json:"author"`
}

// Embed is one parsed quoth block.
type Embed struct {
	File    string
	Subpath string
	Ranges  []span.Range
	Join    string
	Show    Show
	Display Display
}

// New returns an embed with default settings.
func New() Embed {
	return Embed{Join: DefaultJoin, Display: DefaultDisplay}
}

// SettingError reports a block line whose value is invalid for its setting.
type SettingError struct {
	Setting string
	Value   string
	Err     error
}

func (e *SettingError) Error() string {
	return fmt.Sprintf("invalid %s line %q: %v", e.Setting, e.Value, e.Err)
}

func (e *SettingError) Unwrap() error { return e.Err }

var (
	settingRe = regexp.MustCompile(`(?m)^(\w+):[ \t]*(.+?)[ \t\r]*$`)
	pathRe    = regexp.MustCompile(`^\[\[([^#|\[\]^]+)((?:#[^#]+)*)\]\]$`)
	fileRe    = regexp.MustCompile(`^\[\[(.+?)\]\]$`)
	headingRe = regexp.MustCompile(`^(?:#[^#]+)+$`)
	blockRe   = regexp.MustCompile(`^\^[\w-]+$`)
	joinRe    = regexp.MustCompile(`^"(?:[^"\\]|\\.)*"$`)
)

// parseState collects the subpath parts separately so that heading and
// block lines compose regardless of their order.
type parseState struct {
	embed       Embed
	pathSubpath string
	heading     string
	block       string
}

type lineParser func(value string, st *parseState) error

var lineParsers = map[string]lineParser{
	"path": func(v string, st *parseState) error {
		m := pathRe.FindStringSubmatch(v)
		if m == nil {
			return errInvalidPath
		}
		st.embed.File = m[1]
		st.pathSubpath = m[2]
		return nil
	},
	"file": func(v string, st *parseState) error {
		m := fileRe.FindStringSubmatch(v)
		if m == nil {
			return errInvalidFile
		}
		st.embed.File = m[1]
		return nil
	},
	"heading": func(v string, st *parseState) error {
		if !headingRe.MatchString(v) {
			return errInvalidHeading
		}
		st.heading = v
		return nil
	},
	"block": func(v string, st *parseState) error {
		if !blockRe.MatchString(v) {
			return errInvalidBlock
		}
		st.block = "#" + v
		return nil
	},
	"ranges": func(v string, st *parseState) error {
		ranges, err := span.ParseList(v)
		if err != nil {
			return err
		}
		st.embed.Ranges = ranges
		return nil
	},
	"join": func(v string, st *parseState) error {
		if !joinRe.MatchString(v) {
			return errInvalidJoin
		}
		s, err := span.Unquote(v)
		if err != nil {
			return errInvalidJoin
		}
		st.embed.Join = s
		return nil
	},
	"show": func(v string, st *parseState) error {
		var show Show
		for _, opt := range strings.Split(v, ",") {
			switch strings.TrimSpace(opt) {
			case "title":
				show.Title = true
			case "author":
				show.Author = true
			case "":
			default:
				return errInvalidShow
			}
		}
		st.embed.Show = show
		return nil
	},
	"display": func(v string, st *parseState) error {
		switch d := Display(v); d {
		case DisplayEmbedded, DisplayInline:
			st.embed.Display = d
			return nil
		}
		return errInvalidDisplay
	},
}

// Parse reads the settings lines of a quoth block. The fence lines may be
// included or not. Unknown settings are ignored and a repeated setting
// replaces the earlier one.
func Parse(text string) (Embed, error) {
	st := &parseState{embed: New()}
	for _, m := range settingRe.FindAllStringSubmatch(text, -1) {
		name, value := m[1], m[2]
		parse, ok := lineParsers[name]
		if !ok {
			continue
		}
		if err := parse(value, st); err != nil {
			return Embed{}, &SettingError{Setting: name, Value: value, Err: err}
		}
	}
	st.embed.Subpath = st.pathSubpath + st.heading + st.block
	return st.embed, nil
}

// Serialize renders e as a canonical quoth block, fences included.
func Serialize(e Embed) string {
	var b strings.Builder
	b.WriteString("```" + FenceLang + "\n")
	fmt.Fprintf(&b, "path: [[%s%s]]\n", e.File, e.Subpath)
	if len(e.Ranges) > 0 {
		fmt.Fprintf(&b, "ranges: %s\n", span.Join(e.Ranges))
	}
	if e.Join != DefaultJoin {
		fmt.Fprintf(&b, "join: %s\n", span.Quote(e.Join))
	}
	if e.Display != DefaultDisplay && e.Display != "" {
		fmt.Fprintf(&b, "display: %s\n", e.Display)
	}
	if e.Show.Author || e.Show.Title {
		var show []string
		if e.Show.Author {
			show = append(show, "author")
		}
		if e.Show.Title {
			show = append(show, "title")
		}
		fmt.Fprintf(&b, "show: %s\n", strings.Join(show, ", "))
	}
	b.WriteString("```")
	return b.String()
}
