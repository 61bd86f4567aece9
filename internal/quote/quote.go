// Package quote assembles the text a quoth block refers to.
package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erykwalder/quoth/internal/embed"
	"github.com/erykwalder/quoth/internal/mdcontext"
	"github.com/erykwalder/quoth/internal/metadata"
	"github.com/erykwalder/quoth/internal/parser"
	"github.com/erykwalder/quoth/internal/span"
	"github.com/erykwalder/quoth/internal/subpath"
	"github.com/erykwalder/quoth/internal/vault"
)

var (
	ErrNoFile             = errors.New("file must be set in block")
	ErrNestedQuote        = errors.New("can not quote a quoth code block")
	ErrSubpathUnsupported = errors.New("subpaths need a markdown source")
)

// Source reads the files a quote refers to.
type Source interface {
	ResolveLink(ctx context.Context, link, from string) (string, error)
	Read(ctx context.Context, path string) (string, error)
}

// Options adjusts how quotes are assembled.
type Options struct {
	// Normalize strips shared indentation and markers from each range.
	Normalize bool
}

// Quote is the assembled text of an embed.
type Quote struct {
	File     string `json:"file"`
	Subpath  string `json:"subpath"`
	Markdown string `json:"markdown"`
	Title    string `json:"title"`
	Author   string `json:"author,omitempty"`
}

// Assemble resolves e, written in the note at fromPath, against src.
func Assemble(ctx context.Context, src Source, fromPath string, e embed.Embed, opts Options) (*Quote, error) {
	if e.File == "" {
		return nil, ErrNoFile
	}
	p, err := src.ResolveLink(ctx, e.File, fromPath)
	if err != nil {
		return nil, err
	}
	raw, err := src.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	doc, err := parser.Load(p, []byte(raw))
	if err != nil {
		return nil, err
	}

	var meta *metadata.Metadata
	if doc.Markdown {
		meta = metadata.Build(doc.Text)
	}
	text, err := scope(doc.Text, meta, e.Subpath)
	if err != nil {
		return nil, err
	}

	body := text
	if len(e.Ranges) > 0 {
		parts := make([]string, 0, len(e.Ranges))
		for _, r := range e.Ranges {
			part, err := extract(text, r, doc.Markdown)
			if err != nil {
				return nil, fmt.Errorf("range %s: %w", r, err)
			}
			if opts.Normalize {
				part = mdcontext.Normalize(part)
			}
			parts = append(parts, part)
		}
		body = strings.Join(parts, e.Join)
	}

	if !doc.Markdown {
		body = "```" + doc.Language + "\n" + strings.Trim(body, "\n") + "\n```"
	}
	if len(embed.Blocks(body)) > 0 {
		return nil, ErrNestedQuote
	}

	q := &Quote{File: p, Subpath: e.Subpath, Markdown: body, Title: doc.Title}
	if meta != nil {
		q.Author = meta.Author()
	}
	return q, nil
}

func scope(text string, meta *metadata.Metadata, path string) (string, error) {
	if path == "" {
		return text, nil
	}
	if meta == nil {
		return "", fmt.Errorf("%s: %w", path, ErrSubpathUnsupported)
	}
	res, err := subpath.Resolve(text, meta, path)
	if err != nil {
		return "", fmt.Errorf("subpath not found: %w", err)
	}
	sp := res.Span()
	return text[sp.Start:sp.End], nil
}

func extract(text string, r span.Range, markdown bool) (string, error) {
	if markdown {
		return mdcontext.ExtractRangeWithContext(text, r)
	}
	sp, err := r.Resolve(text)
	if err != nil {
		return "", err
	}
	return text[sp.Start:sp.End], nil
}

// Render formats q for display, adding the attribution lines that show asks for.
func Render(q *Quote, display embed.Display, show embed.Show) string {
	body := q.Markdown
	if display == embed.DisplayInline {
		body = strings.Join(strings.Fields(body), " ")
	}

	var attribution []string
	if show.Title && q.Title != "" {
		attribution = append(attribution, q.Title)
	}
	if show.Author && q.Author != "" {
		attribution = append(attribution, q.Author)
	}
	if len(attribution) == 0 {
		return body
	}
	sep := "\n\n"
	if display == embed.DisplayInline {
		sep = " "
	}
	return body + sep + "-- " + strings.Join(attribution, ", ")
}

// UserMessage turns an assembly error into text suitable for showing in place
// of the quote.
func UserMessage(err error) string {
	var settingErr *embed.SettingError
	var notFound *vault.NotFoundError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &settingErr):
		return "Invalid quoth block: " + settingErr.Error()
	case errors.As(err, &notFound):
		return notFound.Error()
	case errors.Is(err, vault.ErrFileNotFound):
		return "File not found."
	case errors.Is(err, span.ErrAnchorNotFound), errors.Is(err, span.ErrOutOfBounds):
		return "Could not locate the quoted text, try re-copying the reference."
	case errors.Is(err, subpath.ErrHeadingNotFound),
		errors.Is(err, subpath.ErrBlockNotFound),
		errors.Is(err, subpath.ErrListItemNotFound):
		return "Could not locate the quoted section, " + err.Error() + "."
	case errors.Is(err, ErrSubpathUnsupported):
		return "Subpaths can only be used with markdown notes."
	case errors.Is(err, ErrNoFile):
		return "File must be set in block."
	case errors.Is(err, ErrNestedQuote):
		return "Can not quote a quoth code block."
	}
	return err.Error()
}
