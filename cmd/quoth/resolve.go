package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/erykwalder/quoth/internal/embed"
	"github.com/erykwalder/quoth/internal/quote"
)

// ResolveCmd reads a quoth block from stdin, or --block, and prints the
// quoted text.
type ResolveCmd struct {
	VaultOption
	FromPath  string `long:"from-path" description:"note the block is written in"`
	Block     string `long:"block" description:"block text; read from stdin when empty"`
	Normalize bool   `long:"normalize" description:"strip shared indentation and list markers"`

	env *env
}

func (c *ResolveCmd) Execute(_ []string) error {
	ctx, log := context.Background(), c.env.log

	block := c.Block
	if block == "" {
		data, err := io.ReadAll(c.env.in)
		if err != nil {
			return fmt.Errorf("read block: %w", err)
		}
		block = string(data)
	}

	e, err := embed.Parse(block)
	if err != nil {
		return errors.New(quote.UserMessage(err))
	}
	opts := quote.Options{Normalize: c.Normalize || c.env.cfg.NormalizeQuotes}
	q, err := quote.Assemble(ctx, c.open(log), c.FromPath, e, opts)
	if err != nil {
		log.Debug("resolve failed", "error", err)
		return errors.New(quote.UserMessage(err))
	}
	_, err = fmt.Fprintln(c.env.out, quote.Render(q, e.Display, e.Show))
	return err
}
