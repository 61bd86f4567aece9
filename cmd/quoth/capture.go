package main

import (
	"context"
	"fmt"

	"github.com/erykwalder/quoth/internal/capture"
	"github.com/erykwalder/quoth/internal/embed"
	"github.com/erykwalder/quoth/internal/metadata"
	"github.com/erykwalder/quoth/internal/parser"
	"github.com/erykwalder/quoth/internal/textpos"
)

// CaptureCmd prints a quoth block that quotes a selection of a file.
type CaptureCmd struct {
	VaultOption
	File       string   `long:"file" required:"true" description:"file to quote, relative to the vault"`
	From       position `long:"from" required:"true" description:"selection start as LINE:COL"`
	To         position `long:"to" required:"true" description:"selection end as LINE:COL"`
	FromPath   string   `long:"from-path" description:"note the block will be written into"`
	Inline     bool     `long:"inline" description:"render the quote inline"`
	ShowTitle  bool     `long:"show-title" description:"show the source title"`
	ShowAuthor bool     `long:"show-author" description:"show the source author"`

	env *env
}

func (c *CaptureCmd) Execute(_ []string) error {
	ctx, log := context.Background(), c.env.log
	v := c.open(log)

	raw, err := v.Read(ctx, c.File)
	if err != nil {
		return err
	}
	doc, err := parser.Load(c.File, []byte(raw))
	if err != nil {
		return err
	}
	var meta *metadata.Metadata
	if doc.Markdown {
		meta = metadata.Build(doc.Text)
	}
	link, err := v.LinkText(ctx, c.File, c.FromPath)
	if err != nil {
		return err
	}

	settings := capture.Settings{
		DefaultDisplay: embed.Display(c.env.cfg.DefaultDisplay),
		DefaultShow: embed.Show{
			Title:  c.ShowTitle || c.env.cfg.DefaultShowTitle,
			Author: c.ShowAuthor || c.env.cfg.DefaultShowAuthor,
		},
	}
	if c.Inline {
		settings.DefaultDisplay = embed.DisplayInline
	}
	sel := capture.NewSelection(c.File, textpos.Position(c.From), textpos.Position(c.To))
	e, err := capture.Build(settings, link, doc.Text, meta, sel)
	if err != nil {
		return err
	}
	log.Debug("captured", "file", c.File, "subpath", e.Subpath, "ranges", len(e.Ranges))
	_, err = fmt.Fprintln(c.env.out, embed.Serialize(e))
	return err
}
