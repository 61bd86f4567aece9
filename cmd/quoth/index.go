package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erykwalder/quoth/internal/refindex"
)

// IndexCmd rebuilds the reference index and reports on it. With --rename-from
// and --rename-to it also moves a file and rewrites the blocks quoting it.
type IndexCmd struct {
	VaultOption
	Source     string `long:"source" description:"list the blocks quoting this file"`
	RenameFrom string `long:"rename-from" description:"file to move"`
	RenameTo   string `long:"rename-to" description:"new path for --rename-from"`

	env *env
}

func (c *IndexCmd) Execute(_ []string) error {
	ctx, log := context.Background(), c.env.log
	if (c.RenameFrom == "") != (c.RenameTo == "") {
		return errors.New("--rename-from and --rename-to must be given together")
	}

	store, closeStore, err := refindex.OpenStore(ctx, c.env.cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	v := c.open(log)
	index := refindex.New(store, v, log, refindex.Options{
		SafeReadAttempts: c.env.cfg.SafeReadAttempts,
		SafeReadWait:     c.env.cfg.SafeReadWait,
	})
	n, err := index.Rebuild(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.env.out, "indexed %d blocks\n", n)

	if c.RenameFrom != "" {
		if err := v.Move(ctx, c.RenameFrom, c.RenameTo); err != nil {
			return err
		}
		if err := index.OnRename(ctx, c.RenameFrom, c.RenameTo); err != nil {
			return err
		}
		fmt.Fprintf(c.env.out, "renamed %s to %s, %d blocks quote it\n", c.RenameFrom, c.RenameTo, len(index.References(c.RenameTo)))
	}

	if c.Source != "" {
		for _, e := range index.References(c.Source) {
			line := fmt.Sprintf("%s#%d", e.RefFile, e.RefIdx)
			if e.SubPath != "" {
				line += " " + e.SubPath
			}
			if len(e.Ranges) > 0 {
				line += " " + strings.Join(e.Ranges, ", ")
			}
			fmt.Fprintln(c.env.out, line)
		}
	}
	return nil
}
