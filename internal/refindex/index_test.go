package refindex

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"github.com/erykwalder/quoth/internal/vault"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIndex(t *testing.T, files map[string]string) (*Index, *vault.Vault, *MemoryStore) {
	t.Helper()
	root := "mem://localhost/refindex/" + strings.ReplaceAll(t.Name(), "/", "_")
	v := vault.New(afs.New(), root, testLogger())
	for p, content := range files {
		require.NoError(t, v.Write(context.Background(), p, content))
	}
	store := NewMemoryStore()
	opts := Options{SafeReadAttempts: 3, SafeReadWait: time.Millisecond}
	return New(store, v, testLogger(), opts), v, store
}

const refDoc = "Intro\n" +
	"```quoth\npath: [[Moon]]\nranges: \"full\"\n```\n" +
	"middle\n" +
	"```quoth\ndisplay: sideways\n```\n" +
	"```quoth\npath: [[Nowhere]]\n```\n" +
	"```quoth\npath: [[Moon#Phases]]\n```\n"

func TestScanFile(t *testing.T) {
	ix, _, _ := newTestIndex(t, map[string]string{"Moon.md": "# Phases\nfull moon\n"})
	entries, err := ix.ScanFile(context.Background(), "notes/ref.md", refDoc)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{SourceFile: "Moon.md", SubPath: "", Ranges: []string{`"full"`}, RefFile: "notes/ref.md", RefIdx: 0},
		{SourceFile: "Moon.md", SubPath: "#Phases", Ranges: []string{}, RefFile: "notes/ref.md", RefIdx: 3},
	}, entries)
}

func TestRebuildAndReferences(t *testing.T) {
	ctx := context.Background()
	ix, _, store := newTestIndex(t, map[string]string{
		"Moon.md":   "# Phases\nfull moon\n",
		"ref.md":    refDoc,
		"other.md":  "```quoth\npath: [[ref]]\n```\n",
		"plain.md":  "no quotes here",
		"image.png": "binary",
	})

	n, err := ix.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	refs := ix.References("Moon.md")
	require.Len(t, refs, 2)
	assert.Equal(t, []int{0, 3}, []int{refs[0].RefIdx, refs[1].RefIdx})
	assert.Len(t, ix.References("ref.md"), 1)
	assert.Empty(t, ix.References("plain.md"))

	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted, 2)

	// a fresh index sees the same entries after loading the store
	fresh := New(store, nil, testLogger(), DefaultOptions())
	require.NoError(t, fresh.Load(ctx))
	assert.Equal(t, ix.Entries(), fresh.Entries())
}

func TestOnModifyAndDelete(t *testing.T) {
	ctx := context.Background()
	ix, _, store := newTestIndex(t, map[string]string{"Moon.md": "full moon"})

	require.NoError(t, ix.OnModify(ctx, "ref.md", "```quoth\npath: [[Moon]]\n```\n"))
	assert.Len(t, ix.References("Moon.md"), 1)

	require.NoError(t, ix.OnModify(ctx, "ref.md", "quote removed"))
	assert.Empty(t, ix.References("Moon.md"))

	require.NoError(t, ix.OnModify(ctx, "ref.md", "```quoth\npath: [[Moon]]\n```\n"))
	require.NoError(t, ix.OnDelete(ctx, "ref.md"))
	assert.Empty(t, ix.Entries())
	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, persisted)

	require.NoError(t, ix.OnDelete(ctx, "never-indexed.md"))
}

func TestOnRename_RewritesBlocks(t *testing.T) {
	ctx := context.Background()
	ref := "Intro [[Moon]] link\n" +
		"```quoth\npath: [[Moon]]\nranges: \"full\"\n```\n" +
		"text\n" +
		"```quoth\npath: [[Moon#Phases]]\njoin: \", \"\n```\n"
	ix, v, _ := newTestIndex(t, map[string]string{
		"Moon.md": "# Phases\nfull moon\n",
		"ref.md":  ref,
	})
	_, err := ix.Rebuild(ctx)
	require.NoError(t, err)

	require.NoError(t, v.Move(ctx, "Moon.md", "sky/Luna.md"))
	require.NoError(t, ix.OnRename(ctx, "Moon.md", "sky/Luna.md"))

	got, err := v.Read(ctx, "ref.md")
	require.NoError(t, err)
	want := "Intro [[Moon]] link\n" +
		"```quoth\npath: [[Luna]]\nranges: \"full\"\n```\n" +
		"text\n" +
		"```quoth\npath: [[Luna#Phases]]\njoin: \", \"\n```\n"
	assert.Equal(t, want, got)

	refs := ix.References("sky/Luna.md")
	assert.Len(t, refs, 2)
	assert.Empty(t, ix.References("Moon.md"))
}

func TestOnRename_KeepsOtherFences(t *testing.T) {
	ctx := context.Background()
	ref := "~~~quoth\npath: [[Moon]]\n```\nranges: \"full\"\n~~~\n" +
		"```quothx\npath: [[Moon]]\n```\n"
	ix, v, _ := newTestIndex(t, map[string]string{
		"Moon.md": "full moon",
		"ref.md":  ref,
	})
	n, err := ix.Rebuild(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, v.Move(ctx, "Moon.md", "Luna.md"))
	require.NoError(t, ix.OnRename(ctx, "Moon.md", "Luna.md"))

	got, err := v.Read(ctx, "ref.md")
	require.NoError(t, err)
	want := "```quoth\npath: [[Luna]]\nranges: \"full\"\n```\n" +
		"```quothx\npath: [[Moon]]\n```\n"
	assert.Equal(t, want, got)
}

// hookVault runs onRead the first time path is read.
type hookVault struct {
	*vault.Vault
	path   string
	once   sync.Once
	onRead func()
}

func (h *hookVault) Read(ctx context.Context, p string) (string, error) {
	content, err := h.Vault.Read(ctx, p)
	if p == h.path {
		h.once.Do(h.onRead)
	}
	return content, err
}

func TestRebuild_ExcludesConcurrentModify(t *testing.T) {
	ctx := context.Background()
	_, v, store := newTestIndex(t, map[string]string{
		"Moon.md": "full moon",
		"ref.md":  "nothing yet",
	})
	quoting := "```quoth\npath: [[Moon]]\n```\n"

	var ix *Index
	modified := make(chan error, 1)
	hooked := &hookVault{Vault: v, path: "ref.md", onRead: func() {
		// the note changes after the rebuild has read it
		require.NoError(t, v.Write(ctx, "ref.md", quoting))
		go func() { modified <- ix.OnModify(ctx, "ref.md", quoting) }()
		time.Sleep(20 * time.Millisecond)
	}}
	ix = New(store, hooked, testLogger(), Options{SafeReadAttempts: 1})

	_, err := ix.Rebuild(ctx)
	require.NoError(t, err)
	require.NoError(t, <-modified)

	assert.Len(t, ix.References("Moon.md"), 1)
	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted["ref.md"], 1)
}

func TestOnRename_DoesNotBlockWhileWaiting(t *testing.T) {
	ctx := context.Background()
	ix, v, _ := newTestIndex(t, map[string]string{
		"Moon.md": "full moon",
		// the plain link keeps the rename waiting for an editor
		"ref.md": "[[Moon]]\n```quoth\npath: [[Moon]]\n```\n",
	})
	ix.opts = Options{SafeReadAttempts: 4, SafeReadWait: 200 * time.Millisecond}
	_, err := ix.Rebuild(ctx)
	require.NoError(t, err)
	require.NoError(t, v.Move(ctx, "Moon.md", "Luna.md"))

	done := make(chan error, 1)
	go func() { done <- ix.OnRename(ctx, "Moon.md", "Luna.md") }()

	require.Eventually(t, func() bool {
		return len(ix.References("Luna.md")) == 1
	}, time.Second, time.Millisecond)
	require.NoError(t, ix.OnModify(ctx, "other.md", "```quoth\npath: [[Luna]]\n```\n"))
	select {
	case <-done:
		t.Fatal("rename finished before its safe read gave up")
	default:
	}
	assert.Len(t, ix.References("Luna.md"), 2)

	require.NoError(t, <-done)
}

func TestOnRename_ReferencingFile(t *testing.T) {
	ctx := context.Background()
	ix, v, store := newTestIndex(t, map[string]string{
		"Moon.md": "full moon",
		"ref.md":  "```quoth\npath: [[Moon]]\n```\n",
	})
	_, err := ix.Rebuild(ctx)
	require.NoError(t, err)

	require.NoError(t, v.Move(ctx, "ref.md", "archive/ref.md"))
	require.NoError(t, ix.OnRename(ctx, "ref.md", "archive/ref.md"))

	refs := ix.References("Moon.md")
	require.Len(t, refs, 1)
	assert.Equal(t, "archive/ref.md", refs[0].RefFile)

	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, persisted, "archive/ref.md")
	assert.NotContains(t, persisted, "ref.md")

	// nothing indexed under an unrelated path
	require.NoError(t, ix.OnRename(ctx, "unknown.md", "elsewhere.md"))
}

func TestStaleLinks(t *testing.T) {
	re := staleLinkRe("dir/Moon.md")
	tests := []struct {
		content string
		want    bool
	}{
		{"see [[Moon]]", true},
		{"see [[dir/Moon.md|the moon]]", true},
		{"see [[/dir/Moon]]", true},
		{"see [[Sun]]", false},
		{"```quoth\npath: [[Moon]]\n```\n", false},
		{"```quoth\npath: [[Moon]]\n```\nthen [[Moon]]", true},
		{"see [[other/Moon]]", false},
		{"~~~quoth\npath: [[Moon]]\n```\n~~~\n", false},
		{"```quothx\n[[Moon]]\n```\n", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hasStaleLinks(re, tt.content), tt.content)
	}
}

func TestFileRegex(t *testing.T) {
	assert.Equal(t, `(?:(?:/)?dir/)?Moon(?:\.md)?`, fileRegex("dir/Moon.md"))
	assert.Equal(t, `(?:/)?notes(?:\.tar\.gz)?`, fileRegex("notes.tar.gz"))
}

func TestSafeRead_GivesUp(t *testing.T) {
	ix, _, _ := newTestIndex(t, map[string]string{"ref.md": "still [[Moon]]"})
	start := time.Now()
	got, err := ix.safeRead(context.Background(), "ref.md", "Moon.md")
	require.NoError(t, err)
	assert.Equal(t, "still [[Moon]]", got)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSafeRead_Cancelled(t *testing.T) {
	ix, _, _ := newTestIndex(t, map[string]string{"ref.md": "still [[Moon]]"})
	ix.opts = Options{SafeReadAttempts: 5, SafeReadWait: time.Hour}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := ix.safeRead(ctx, "ref.md", "Moon.md")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
