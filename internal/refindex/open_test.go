package refindex

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erykwalder/quoth/internal/config"
	"github.com/erykwalder/quoth/internal/pathstore/pathstoretest"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	srv := pathstoretest.NewServer("k")
	defer srv.Close()

	tests := []struct {
		name string
		cfg  config.Config
		want any
	}{
		{"default", config.Config{}, &MemoryStore{}},
		{"memory", config.Config{IndexBackend: config.BackendMemory}, &MemoryStore{}},
		{"redis", config.Config{IndexBackend: config.BackendRedis, RedisAddr: mr.Addr()}, &RedisStore{}},
		{"pathstore", config.Config{IndexBackend: config.BackendPathstore, PathstoreURL: srv.URL, PathstoreAPIKey: "k"}, &PathstoreStore{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, closeFn, err := OpenStore(ctx, tt.cfg)
			require.NoError(t, err)
			defer closeFn()
			assert.IsType(t, tt.want, store)
			require.NoError(t, store.Put(ctx, "a.md", []Entry{{SourceFile: "b.md", Ranges: []string{}, RefFile: "a.md"}}))
			got, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Len(t, got["a.md"], 1)
		})
	}
}

func TestOpenStore_Errors(t *testing.T) {
	ctx := context.Background()

	_, _, err := OpenStore(ctx, config.Config{IndexBackend: "sqlite"})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, _, err = OpenStore(ctx, config.Config{IndexBackend: config.BackendRedis, RedisAddr: addr})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
