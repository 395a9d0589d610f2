package store

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/carlwiddowson/googleadsdashboard/internal/auth"
	"github.com/carlwiddowson/googleadsdashboard/internal/config"
	"github.com/carlwiddowson/googleadsdashboard/internal/util"
	log "github.com/sirupsen/logrus"
)

// Backend names reported by Open.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendObject   = "object"
	BackendGit      = "git"
	BackendFile     = "file"
)

// Open builds the backend selected by cfg. The first configured backend in the
// order postgres, sqlite, redis, object, git wins; the file store is the fallback.
func Open(ctx context.Context, cfg *config.Config) (auth.Store, string, error) {
	var (
		s    auth.Store
		name string
		err  error
	)
	sc := cfg.Store
	switch {
	case strings.TrimSpace(sc.PostgresDSN) != "":
		name = BackendPostgres
		s, err = NewSQLStore(ctx, SQLStoreConfig{Dialect: DialectPostgres, DSN: sc.PostgresDSN, Schema: sc.PostgresSchema})
	case strings.TrimSpace(sc.SQLitePath) != "":
		name = BackendSQLite
		var path string
		if path, err = util.ResolveAuthDir(sc.SQLitePath); err == nil {
			s, err = NewSQLStore(ctx, SQLStoreConfig{Dialect: DialectSQLite, DSN: path})
		}
	case strings.TrimSpace(sc.RedisAddr) != "":
		name = BackendRedis
		s, err = NewRedisStore(ctx, RedisStoreConfig{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
			Prefix:   sc.RedisPrefix,
		})
	case strings.TrimSpace(sc.ObjectEndpoint) != "":
		name = BackendObject
		s, err = NewObjectStore(ObjectStoreConfig{
			Endpoint:  sc.ObjectEndpoint,
			Bucket:    sc.ObjectBucket,
			AccessKey: sc.ObjectAccessKey,
			SecretKey: sc.ObjectSecretKey,
			Region:    sc.ObjectRegion,
			Prefix:    sc.ObjectPrefix,
			UseSSL:    sc.ObjectUseSSL,
		})
	case strings.TrimSpace(sc.GitURL) != "":
		name = BackendGit
		s, err = openGitStore(cfg)
	default:
		return NewFileStore(cfg.AuthDir), BackendFile, nil
	}
	if err != nil {
		return nil, name, err
	}
	return s, name, nil
}

func openGitStore(cfg *config.Config) (*GitStore, error) {
	sc := cfg.Store
	local := strings.TrimSpace(sc.GitLocalPath)
	if local == "" {
		dir, err := util.ResolveAuthDir(cfg.AuthDir)
		if err != nil {
			return nil, err
		}
		local = filepath.Join(dir, "gitstore")
	}
	s, err := NewGitStore(GitStoreConfig{
		Remote:    sc.GitURL,
		Username:  sc.GitUsername,
		Password:  sc.GitToken,
		LocalPath: local,
	})
	if err != nil {
		return nil, err
	}
	if err = s.EnsureRepository(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases backend resources when the store holds any.
func Close(s auth.Store) {
	c, ok := s.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		log.WithError(err).Warn("failed to close token store")
	}
}
