package parser

import (
	"io"
)

// TextParser handles plain text and source code. The text is kept verbatim
// and quoted inside a code fence.
type TextParser struct {
	Language string
}

func (p *TextParser) Parse(r io.Reader, filename string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &Document{
		Title:    trimExt(filename),
		Text:     string(src),
		Language: p.Language,
	}, nil
}
