package refindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "quoth:"

// RedisStore keeps one JSON value per referencing file plus a set of the
// files that have entries.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns a store that namespaces its keys with prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) filesKey() string             { return s.prefix + "reffiles" }
func (s *RedisStore) refsKey(refFile string) string { return s.prefix + "refs:" + refFile }

func (s *RedisStore) Load(ctx context.Context) (map[string][]Entry, error) {
	files, err := s.client.SMembers(ctx, s.filesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list referencing files: %w: %w", ErrStoreUnavailable, err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(files))
	for i, f := range files {
		cmds[i] = pipe.Get(ctx, s.refsKey(f))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load refs: %w: %w", ErrStoreUnavailable, err)
	}

	out := make(map[string][]Entry, len(files))
	for i, f := range files {
		data, err := cmds[i].Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load refs for %s: %w: %w", f, ErrStoreUnavailable, err)
		}
		var entries []Entry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("decode refs for %s: %w", f, err)
		}
		out[f] = entries
	}
	return out, nil
}

func (s *RedisStore) Put(ctx context.Context, refFile string, entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal refs: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.refsKey(refFile), data, 0)
		pipe.SAdd(ctx, s.filesKey(), refFile)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save refs for %s: %w: %w", refFile, ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, refFile string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.refsKey(refFile))
		pipe.SRem(ctx, s.filesKey(), refFile)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete refs for %s: %w: %w", refFile, ErrStoreUnavailable, err)
	}
	return nil
}
