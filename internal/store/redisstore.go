package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/carlwiddowson/googleadsdashboard/internal/auth"
	goredis "github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "adsauth:"

// RedisStoreConfig configures the Redis backend.
type RedisStoreConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps each entry under its own prefixed key.
type RedisStore struct {
	client *goredis.Client
	prefix string
	owned  bool
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisStoreConfig) (*RedisStore, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redis store: address is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis store: ping: %w", err)
	}
	s := NewRedisStoreWithClient(client, cfg.Prefix)
	s.owned = true
	return s, nil
}

// NewRedisStoreWithClient wraps an existing client. The caller keeps ownership of it.
func NewRedisStoreWithClient(client *goredis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Close releases the client when the store created it.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil || !s.owned {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) keys() []string {
	keys := make([]string, len(entryKeys))
	for i, k := range entryKeys {
		keys[i] = s.prefix + k
	}
	return keys
}

// Get implements auth.Store.
func (s *RedisStore) Get(ctx context.Context) (*auth.TokenSet, error) {
	if s.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	values, err := s.client.MGet(ctx, s.keys()...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis store: read entries: %w", err)
	}
	entries := make(map[string]string, len(entryKeys))
	for i, v := range values {
		if str, ok := v.(string); ok {
			entries[entryKeys[i]] = str
		}
	}
	return auth.TokenSetFromEntries(entries)
}

// Put implements auth.Store. The delete and the write run in one MULTI/EXEC block.
func (s *RedisStore) Put(ctx context.Context, t *auth.TokenSet) error {
	if t == nil {
		return errNilTokenSet
	}
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	values := make([]any, 0, 2*len(entryKeys))
	for k, v := range t.Entries() {
		values = append(values, s.prefix+k, v)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.keys()...)
		pipe.MSet(ctx, values...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis store: write entries: %w", err)
	}
	return nil
}

// Clear implements auth.Store.
func (s *RedisStore) Clear(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := s.client.Del(ctx, s.keys()...).Err(); err != nil {
		return fmt.Errorf("redis store: delete entries: %w", err)
	}
	return nil
}
