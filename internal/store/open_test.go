package store

import (
	"context"
	"testing"

	"github.com/carlwiddowson/googleadsdashboard/internal/config"
)

func TestOpenSelectsBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mr, _ := newMiniRedisClient(t)
	dir := t.TempDir()

	tests := []struct {
		name  string
		store config.StoreConfig
		want  string
	}{
		{"file fallback", config.StoreConfig{}, BackendFile},
		{"sqlite", config.StoreConfig{SQLitePath: dir + "/tokens.db"}, BackendSQLite},
		{"redis", config.StoreConfig{RedisAddr: mr.Addr()}, BackendRedis},
		{"sqlite wins over redis", config.StoreConfig{SQLitePath: dir + "/other.db", RedisAddr: mr.Addr()}, BackendSQLite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{AuthDir: dir}
			cfg.Store = tt.store
			s, name, err := Open(ctx, cfg)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer Close(s)
			if name != tt.want {
				t.Fatalf("backend = %s, want %s", name, tt.want)
			}
			if s == nil {
				t.Fatal("store is nil")
			}
		})
	}
}

func TestOpenReportsBackendErrors(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Store.ObjectEndpoint = "localhost:9000"
	s, name, err := Open(context.Background(), cfg)
	if err == nil {
		t.Fatal("Open with incomplete object config succeeded")
	}
	if name != BackendObject {
		t.Fatalf("backend = %s, want %s", name, BackendObject)
	}
	if s != nil {
		t.Fatalf("store = %v, want nil", s)
	}
}
