// Package vault stores notes behind an afs.Service and resolves the wiki
// links that quoth blocks use to name their source files.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/erykwalder/quoth/internal/metadata"
)

// ErrFileNotFound is returned when a path or link names no file in the vault.
var ErrFileNotFound = errors.New("file not found")

// NotFoundError reports an unresolved link along with the closest file names.
type NotFoundError struct {
	Link        string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("file not found: %s", e.Link)
	}
	return fmt.Sprintf("file not found: %s (did you mean %s?)", e.Link, strings.Join(e.Suggestions, ", "))
}

func (e *NotFoundError) Unwrap() error { return ErrFileNotFound }

const maxSuggestions = 3

// Vault is a directory of notes rooted at a base URL (file://, mem://, or any
// scheme afs supports). Paths are slash separated and relative to the root.
type Vault struct {
	fs      afs.Service
	baseURL string
	log     *slog.Logger
}

// New returns a vault rooted at baseURL.
func New(fs afs.Service, baseURL string, log *slog.Logger) *Vault {
	return &Vault{fs: fs, baseURL: strings.TrimRight(baseURL, "/"), log: log}
}

// URL returns the storage URL of the vault path p.
func (v *Vault) URL(p string) string {
	return url.Join(v.baseURL, cleanPath(p))
}

// Read returns the contents of p.
func (v *Vault) Read(ctx context.Context, p string) (string, error) {
	u := v.URL(p)
	ok, err := v.fs.Exists(ctx, u)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", p, err)
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", p, ErrFileNotFound)
	}
	data, err := v.fs.DownloadWithURL(ctx, u)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	return string(data), nil
}

// Write replaces the contents of p, creating it if needed.
func (v *Vault) Write(ctx context.Context, p, content string) error {
	if err := v.fs.Upload(ctx, v.URL(p), file.DefaultFileOsMode, strings.NewReader(content)); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	v.log.Debug("file written", "path", p, "bytes", len(content))
	return nil
}

// Exists reports whether p is a file in the vault.
func (v *Vault) Exists(ctx context.Context, p string) (bool, error) {
	return v.fs.Exists(ctx, v.URL(p))
}

// Delete removes p.
func (v *Vault) Delete(ctx context.Context, p string) error {
	if err := v.fs.Delete(ctx, v.URL(p)); err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	return nil
}

// Move renames oldPath to newPath.
func (v *Vault) Move(ctx context.Context, oldPath, newPath string) error {
	if err := v.fs.Move(ctx, v.URL(oldPath), v.URL(newPath)); err != nil {
		return fmt.Errorf("move %s to %s: %w", oldPath, newPath, err)
	}
	return nil
}

// List returns every file in the vault, sorted.
func (v *Vault) List(ctx context.Context) ([]string, error) {
	var files []string
	err := v.fs.Walk(ctx, v.baseURL, func(ctx context.Context, baseURL, parent string, info os.FileInfo, _ io.Reader) (bool, error) {
		if info == nil || info.IsDir() {
			return true, nil
		}
		files = append(files, cleanPath(path.Join(parent, info.Name())))
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list vault: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// ListMarkdown returns the markdown notes in the vault.
func (v *Vault) ListMarkdown(ctx context.Context) ([]string, error) {
	files, err := v.List(ctx)
	if err != nil {
		return nil, err
	}
	notes := files[:0]
	for _, f := range files {
		if isMarkdown(f) {
			notes = append(notes, f)
		}
	}
	return notes, nil
}

// Metadata reads p and returns a fresh snapshot of its structure.
func (v *Vault) Metadata(ctx context.Context, p string) (*metadata.Metadata, error) {
	doc, err := v.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	return metadata.Build(doc), nil
}

// ResolveLink finds the file a link names when written in the note at from.
// Aliases and subpaths are ignored. An exact path wins, then the path with
// ".md" appended, then files whose name matches; among several matches the
// one in from's directory is chosen, then the shortest path.
func (v *Vault) ResolveLink(ctx context.Context, link, from string) (string, error) {
	target := linkTarget(link)
	if target == "" {
		return "", fmt.Errorf("empty link: %w", ErrFileNotFound)
	}
	files, err := v.List(ctx)
	if err != nil {
		return "", err
	}
	if p, ok := resolveIn(files, target, from); ok {
		return p, nil
	}
	return "", &NotFoundError{Link: target, Suggestions: suggest(files, target, maxSuggestions)}
}

// LinkText returns the shortest link that resolves to target. Notes lose
// their ".md" extension, and a bare name is used when no other file shares it.
func (v *Vault) LinkText(ctx context.Context, target, from string) (string, error) {
	files, err := v.List(ctx)
	if err != nil {
		return "", err
	}
	return linkText(files, target, from), nil
}

// Suggest returns up to n file paths whose names fuzzily match name.
func (v *Vault) Suggest(ctx context.Context, name string, n int) ([]string, error) {
	files, err := v.List(ctx)
	if err != nil {
		return nil, err
	}
	return suggest(files, linkTarget(name), n), nil
}

func resolveIn(files []string, target, from string) (string, bool) {
	target = strings.TrimPrefix(cleanPath(target), "./")
	relative := cleanPath(path.Join(path.Dir(from), target))
	for _, want := range []string{target, target + ".md", relative, relative + ".md"} {
		for _, f := range files {
			if f == want {
				return f, true
			}
		}
	}

	var matches []string
	for _, f := range files {
		if strings.HasSuffix("/"+f, "/"+target) || strings.HasSuffix("/"+f, "/"+target+".md") {
			matches = append(matches, f)
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	dir := path.Dir(from)
	sort.SliceStable(matches, func(i, j int) bool {
		si, sj := path.Dir(matches[i]) == dir, path.Dir(matches[j]) == dir
		if si != sj {
			return si
		}
		if len(matches[i]) != len(matches[j]) {
			return len(matches[i]) < len(matches[j])
		}
		return matches[i] < matches[j]
	})
	return matches[0], true
}

func linkText(files []string, target, from string) string {
	name := linkName(target)
	if p, ok := resolveIn(files, name, from); ok && p == target {
		return name
	}
	if isMarkdown(target) {
		return strings.TrimSuffix(target, path.Ext(target))
	}
	return target
}

func suggest(files []string, target string, n int) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = linkName(f)
	}
	ranks := fuzzy.RankFindFold(linkName(target), names)
	sort.Sort(ranks)
	var out []string
	for _, r := range ranks {
		if len(out) >= n {
			break
		}
		out = append(out, files[r.OriginalIndex])
	}
	return out
}

// linkTarget strips wiki brackets, an alias and a subpath from a link.
func linkTarget(link string) string {
	link = strings.TrimSpace(link)
	link = strings.TrimSuffix(strings.TrimPrefix(link, "[["), "]]")
	if i := strings.IndexByte(link, '|'); i >= 0 {
		link = link[:i]
	}
	if i := strings.IndexByte(link, '#'); i >= 0 {
		link = link[:i]
	}
	return strings.TrimSpace(link)
}

// linkName is the base name of p without a markdown extension.
func linkName(p string) string {
	base := path.Base(p)
	if isMarkdown(base) {
		return strings.TrimSuffix(base, path.Ext(base))
	}
	return base
}

func isMarkdown(p string) bool {
	return strings.EqualFold(path.Ext(p), ".md")
}

func cleanPath(p string) string {
	p = path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimPrefix(p, "/")
}
