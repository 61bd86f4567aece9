// Command quoth captures, resolves and indexes quoth blocks in a vault from
// the command line.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/viant/afs"

	"github.com/erykwalder/quoth/internal/config"
	"github.com/erykwalder/quoth/internal/textpos"
	"github.com/erykwalder/quoth/internal/vault"
)

// Options is the root command. The struct tags are read by go-flags.
type Options struct {
	Verbose bool `long:"verbose" description:"log debug output to stderr"`

	Capture CaptureCmd `command:"capture" description:"Print a quoth block for a selection"`
	Resolve ResolveCmd `command:"resolve" description:"Print the text a quoth block refers to"`
	Index   IndexCmd   `command:"index" description:"Scan the vault for quoth blocks"`
}

// env is shared by the commands of one invocation.
type env struct {
	cfg config.Config
	log *slog.Logger
	in  io.Reader
	out io.Writer
}

// VaultOption is embedded by commands that read a vault.
type VaultOption struct {
	Vault string `short:"v" long:"vault" required:"true" description:"vault root URL or directory"`
}

func (o VaultOption) open(log *slog.Logger) *vault.Vault {
	root := o.Vault
	if !strings.Contains(root, "://") {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		root = "file://" + filepath.ToSlash(root)
	}
	return vault.New(afs.New(), root, log)
}

// position is a LINE:COL flag value.
type position textpos.Position

func (p *position) UnmarshalFlag(value string) error {
	line, col, ok := strings.Cut(value, ":")
	if !ok {
		return fmt.Errorf("expected LINE:COL, got %q", value)
	}
	l, err := strconv.Atoi(line)
	if err != nil {
		return fmt.Errorf("line: %w", err)
	}
	c, err := strconv.Atoi(col)
	if err != nil {
		return fmt.Errorf("col: %w", err)
	}
	*p = position{Line: l, Col: c}
	return nil
}

// run parses args and executes the selected command.
func run(args []string, in io.Reader, out, errOut io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	opts := &Options{}
	e := &env{cfg: cfg, in: in, out: out}
	opts.Capture.env = e
	opts.Resolve.env = e
	opts.Index.env = e

	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		level := cfg.SlogLevel()
		if opts.Verbose {
			level = slog.LevelDebug
		}
		e.log = slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))
		return cmd.Execute(args)
	}
	_, err = parser.ParseArgs(args)
	return err
}

func main() {
	err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	var flagsErr *flags.Error
	if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
		fmt.Fprintln(os.Stdout, flagsErr.Message)
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
