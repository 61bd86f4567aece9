package parser

import (
	"io"
)

// MarkdownParser handles Markdown notes. The text is kept verbatim; its
// structure is read by the metadata package.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &Document{
		Title:    trimExt(filename),
		Text:     string(src),
		Markdown: true,
	}, nil
}
