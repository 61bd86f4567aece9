// Package refindex tracks which notes quote which files, and rewrites quoth
// blocks when a quoted file is renamed.
package refindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/erykwalder/quoth/internal/embed"
	"github.com/erykwalder/quoth/internal/vault"
)

// Vault is the file access the index needs.
type Vault interface {
	Read(ctx context.Context, path string) (string, error)
	Write(ctx context.Context, path, content string) error
	ListMarkdown(ctx context.Context) ([]string, error)
	ResolveLink(ctx context.Context, link, from string) (string, error)
	LinkText(ctx context.Context, target, from string) (string, error)
}

// Options tunes the index.
type Options struct {
	// SafeReadAttempts bounds how often a referencing file is re-read while
	// it still holds plain links to a renamed file.
	SafeReadAttempts int
	// SafeReadWait is the base delay between those reads. The nth retry
	// waits n times as long.
	SafeReadWait time.Duration
}

func DefaultOptions() Options {
	return Options{SafeReadAttempts: 10, SafeReadWait: 50 * time.Millisecond}
}

// Index is the set of quoth blocks in a vault. Mutations are serialized,
// and a Rebuild excludes every other mutation for its whole scan. Readers
// only wait while a finished mutation is swapped in.
type Index struct {
	store Store
	vault Vault
	log   *slog.Logger
	opts  Options

	// update serializes mutations. refs is only replaced or modified with
	// both update and mu held.
	update sync.Mutex
	mu     sync.RWMutex
	refs   map[string][]Entry
}

func New(store Store, v Vault, log *slog.Logger, opts Options) *Index {
	if opts.SafeReadAttempts <= 0 {
		opts.SafeReadAttempts = 1
	}
	return &Index{store: store, vault: v, log: log, opts: opts, refs: make(map[string][]Entry)}
}

// Load replaces the in-memory index with the store's contents.
func (ix *Index) Load(ctx context.Context) error {
	ix.update.Lock()
	defer ix.update.Unlock()
	refs, err := ix.store.Load(ctx)
	if err != nil {
		return err
	}
	ix.swap(refs)
	return nil
}

// ScanFile returns the entries for every quoth block in content, the text of
// the note at path. Blocks that do not parse, or whose file does not
// resolve, are skipped; their position still counts toward RefIdx.
func (ix *Index) ScanFile(ctx context.Context, path, content string) ([]Entry, error) {
	var entries []Entry
	for idx, sp := range embed.Blocks(content) {
		e, err := embed.Parse(content[sp.Start:sp.End])
		if err != nil {
			ix.log.Debug("skipping unparsable quoth block", "file", path, "block", idx, "error", err)
			continue
		}
		if e.File == "" {
			continue
		}
		source, err := ix.vault.ResolveLink(ctx, e.File, path)
		if errors.Is(err, vault.ErrFileNotFound) {
			ix.log.Debug("skipping quoth block with unknown file", "file", path, "block", idx, "link", e.File)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %s in %s: %w", e.File, path, err)
		}
		ranges := make([]string, len(e.Ranges))
		for i, r := range e.Ranges {
			ranges[i] = r.String()
		}
		entries = append(entries, Entry{
			SourceFile: source,
			SubPath:    e.Subpath,
			Ranges:     ranges,
			RefFile:    path,
			RefIdx:     idx,
		})
	}
	return entries, nil
}

// Rebuild rescans every note in the vault and replaces the index. It
// returns the number of entries found.
func (ix *Index) Rebuild(ctx context.Context) (int, error) {
	ix.update.Lock()
	defer ix.update.Unlock()

	files, err := ix.vault.ListMarkdown(ctx)
	if err != nil {
		return 0, err
	}
	refs := make(map[string][]Entry)
	total := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		content, err := ix.vault.Read(ctx, f)
		if err != nil {
			return 0, err
		}
		entries, err := ix.ScanFile(ctx, f, content)
		if err != nil {
			return 0, err
		}
		if len(entries) > 0 {
			refs[f] = entries
			total += len(entries)
		}
	}

	for f := range ix.refs {
		if _, ok := refs[f]; !ok {
			if err := ix.store.Delete(ctx, f); err != nil {
				return 0, err
			}
		}
	}
	for f, entries := range refs {
		if err := ix.store.Put(ctx, f, entries); err != nil {
			return 0, err
		}
	}
	ix.swap(refs)
	ix.log.Info("reference index rebuilt", "files", len(files), "entries", total)
	return total, nil
}

// OnModify rescans the note at path after its content changed.
func (ix *Index) OnModify(ctx context.Context, path, content string) error {
	ix.update.Lock()
	defer ix.update.Unlock()
	entries, err := ix.ScanFile(ctx, path, content)
	if err != nil {
		return err
	}
	return ix.setLocked(ctx, path, entries)
}

// OnDelete drops the entries for blocks in the deleted note at path.
// Entries quoting path are kept so the blocks report the missing file.
func (ix *Index) OnDelete(ctx context.Context, path string) error {
	ix.update.Lock()
	defer ix.update.Unlock()
	return ix.setLocked(ctx, path, nil)
}

// OnRename updates the index after oldPath was moved to newPath, then
// rewrites the quoth blocks that quote the moved file so their links
// resolve to it again. The rewrite runs after the index is updated and
// without holding it, since it may wait for an editor to finish.
func (ix *Index) OnRename(ctx context.Context, oldPath, newPath string) error {
	dirty, err := ix.rename(ctx, oldPath, newPath)
	if err != nil {
		return err
	}

	var errs []error
	for refFile, entries := range dirty {
		if err := ix.rewrite(ctx, refFile, oldPath, newPath, entries); err != nil {
			ix.log.Warn("rewrite quoth blocks failed", "file", refFile, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// rename moves the index entries of oldPath to newPath and returns the
// entries quoting newPath, grouped by referencing file.
func (ix *Index) rename(ctx context.Context, oldPath, newPath string) (map[string][]Entry, error) {
	ix.update.Lock()
	defer ix.update.Unlock()
	if !ix.mentionsLocked(oldPath) {
		return nil, nil
	}

	// build the renamed index aside so a store failure leaves it untouched
	next := make(map[string][]Entry, len(ix.refs))
	changed := make(map[string]bool)
	for refFile, entries := range ix.refs {
		key := refFile
		if refFile == oldPath {
			key = newPath
		}
		entries = cloneEntries(entries)
		for i := range entries {
			if entries[i].SourceFile == oldPath {
				entries[i].SourceFile = newPath
				changed[key] = true
			}
			if entries[i].RefFile == oldPath {
				entries[i].RefFile = newPath
				changed[key] = true
			}
		}
		next[key] = entries
	}
	if _, ok := ix.refs[oldPath]; ok {
		if err := ix.store.Delete(ctx, oldPath); err != nil {
			return nil, err
		}
	}
	for key := range changed {
		if err := ix.store.Put(ctx, key, next[key]); err != nil {
			return nil, err
		}
	}
	ix.swap(next)
	return ix.dirtyLocked(newPath), nil
}

// References returns the entries that quote sourcePath.
func (ix *Index) References(sourcePath string) []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := []Entry{}
	for _, entries := range ix.refs {
		for _, e := range entries {
			if e.SourceFile == sourcePath {
				out = append(out, e)
			}
		}
	}
	sortEntries(out)
	return out
}

// Entries returns every entry in the index.
func (ix *Index) Entries() []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := []Entry{}
	for _, entries := range ix.refs {
		out = append(out, entries...)
	}
	sortEntries(out)
	return out
}

// swap replaces refs. The caller holds update.
func (ix *Index) swap(refs map[string][]Entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.refs = refs
}

// setLocked stores the entries of one referencing file. The caller holds
// update.
func (ix *Index) setLocked(ctx context.Context, path string, entries []Entry) error {
	if len(entries) == 0 {
		if _, ok := ix.refs[path]; !ok {
			return nil
		}
		if err := ix.store.Delete(ctx, path); err != nil {
			return err
		}
		ix.mu.Lock()
		delete(ix.refs, path)
		ix.mu.Unlock()
		return nil
	}
	if err := ix.store.Put(ctx, path, entries); err != nil {
		return err
	}
	ix.mu.Lock()
	ix.refs[path] = entries
	ix.mu.Unlock()
	return nil
}

func (ix *Index) mentionsLocked(path string) bool {
	if _, ok := ix.refs[path]; ok {
		return true
	}
	for _, entries := range ix.refs {
		for _, e := range entries {
			if e.SourceFile == path {
				return true
			}
		}
	}
	return false
}

// dirtyLocked groups the entries quoting sourcePath by referencing file.
func (ix *Index) dirtyLocked(sourcePath string) map[string][]Entry {
	out := make(map[string][]Entry)
	for refFile, entries := range ix.refs {
		for _, e := range entries {
			if e.SourceFile == sourcePath {
				out[refFile] = append(out[refFile], e)
			}
		}
	}
	return out
}

// rewrite points the listed blocks of refFile at newPath. Blocks are
// replaced from last to first so earlier offsets stay valid.
func (ix *Index) rewrite(ctx context.Context, refFile, oldPath, newPath string, entries []Entry) error {
	content, err := ix.safeRead(ctx, refFile, oldPath)
	if err != nil {
		return err
	}
	link, err := ix.vault.LinkText(ctx, newPath, refFile)
	if err != nil {
		return err
	}

	blocks := embed.Blocks(content)
	sort.Slice(entries, func(i, j int) bool { return entries[i].RefIdx > entries[j].RefIdx })
	updated := content
	for _, ent := range entries {
		if ent.RefIdx >= len(blocks) {
			ix.log.Warn("quoth block moved since indexing", "file", refFile, "block", ent.RefIdx)
			continue
		}
		sp := blocks[ent.RefIdx]
		e, err := embed.Parse(updated[sp.Start:sp.End])
		if err != nil {
			ix.log.Warn("quoth block no longer parses", "file", refFile, "block", ent.RefIdx, "error", err)
			continue
		}
		e.File = link
		updated = updated[:sp.Start] + embed.Serialize(e) + updated[sp.End:]
	}
	if updated == content {
		return nil
	}
	if err := ix.vault.Write(ctx, refFile, updated); err != nil {
		return err
	}
	ix.log.Info("rewrote quoth blocks", "file", refFile, "blocks", len(entries), "link", link)
	return nil
}
