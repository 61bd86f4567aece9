package refindex

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrStoreUnavailable marks store failures that may succeed if retried.
var ErrStoreUnavailable = errors.New("reference store unavailable")

// Entry records one quoth block: the file it quotes and where the block is.
type Entry struct {
	SourceFile string   `json:"source_file"`
	SubPath    string   `json:"sub_path"`
	Ranges     []string `json:"ranges"`
	RefFile    string   `json:"ref_file"`
	RefIdx     int      `json:"ref_idx"`
}

// Store persists entries grouped by the file that contains the blocks.
type Store interface {
	// Load returns every persisted entry keyed by referencing file.
	Load(ctx context.Context) (map[string][]Entry, error)
	// Put replaces the entries recorded for refFile.
	Put(ctx context.Context, refFile string, entries []Entry) error
	// Delete removes the entries recorded for refFile.
	Delete(ctx context.Context, refFile string) error
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	refs map[string][]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{refs: make(map[string][]Entry)}
}

func (s *MemoryStore) Load(_ context.Context) (map[string][]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]Entry, len(s.refs))
	for f, entries := range s.refs {
		out[f] = cloneEntries(entries)
	}
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, refFile string, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[refFile] = cloneEntries(entries)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, refFile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refs, refFile)
	return nil
}

func cloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		e.Ranges = append(make([]string, 0, len(e.Ranges)), e.Ranges...)
		out[i] = e
	}
	return out
}

// sortEntries orders entries by referencing file, then block index.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].RefFile != entries[j].RefFile {
			return entries[i].RefFile < entries[j].RefFile
		}
		return entries[i].RefIdx < entries[j].RefIdx
	})
}
