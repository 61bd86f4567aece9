package refindex

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erykwalder/quoth/internal/config"
	"github.com/erykwalder/quoth/internal/pathstore"
)

// OpenStore connects the store named by cfg.IndexBackend. The returned
// func releases its connections.
func OpenStore(ctx context.Context, cfg config.Config) (Store, func(), error) {
	switch cfg.IndexBackend {
	case "", config.BackendMemory:
		return NewMemoryStore(), func() {}, nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w: %w", cfg.RedisAddr, ErrStoreUnavailable, err)
		}
		return NewRedisStore(client, cfg.RedisPrefix), func() { client.Close() }, nil
	case config.BackendPathstore:
		client := pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
		return NewPathstoreStore(client, cfg.PathstorePrefix), client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
}
