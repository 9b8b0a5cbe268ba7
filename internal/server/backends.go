package server

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/joeblew999/plat-maps/internal/db"
	"github.com/joeblew999/plat-maps/internal/session"
	"github.com/joeblew999/plat-maps/internal/storage"
	"github.com/joeblew999/plat-maps/internal/store"
	"github.com/joeblew999/plat-maps/internal/store/duckstore"
	"github.com/joeblew999/plat-maps/internal/store/pgstore"
)

// Backend names accepted by Config.
const (
	StoreDuckDB   = "duckdb"
	StorePostgres = "postgres"

	SessionsMemory = "memory"
	SessionsRedis  = "redis"

	StorageLocal = "local"
	StorageS3    = "s3"
)

// OpenStore opens and migrates the configured store.
func OpenStore(ctx context.Context, cfg Config) (store.Store, error) {
	switch cfg.Store {
	case "", StoreDuckDB:
		conn, err := db.OpenDuckDB(db.Config{DataDir: cfg.DataDir, DBName: "maps"})
		if err != nil {
			return nil, err
		}
		st, err := duckstore.New(ctx, conn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return st, nil
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("--database-url is required for the postgres store")
		}
		pool, err := db.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return pgstore.New(pool), nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func (s *Server) openSessions(ctx context.Context) (session.Store, error) {
	switch s.cfg.SessionBackend {
	case "", SessionsMemory:
		return session.NewMemory(s.cfg.SessionTTL), nil
	case SessionsRedis:
		if s.cfg.RedisAddr == "" {
			return nil, fmt.Errorf("--redis-addr is required for redis sessions")
		}
		client := redis.NewClient(&redis.Options{Addr: s.cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.closers = append(s.closers, client.Close)
		return session.NewRedis(client, s.cfg.SessionTTL), nil
	}
	return nil, fmt.Errorf("unknown session backend %q", s.cfg.SessionBackend)
}

func (s *Server) openBlobs(ctx context.Context) (storage.Blobs, error) {
	switch s.cfg.Storage {
	case "", StorageLocal:
		return storage.NewLocal(filepath.Join(s.cfg.DataDir, "uploads")), nil
	case StorageS3:
		return storage.NewS3(ctx, s.cfg.S3)
	}
	return nil, fmt.Errorf("unknown storage %q", s.cfg.Storage)
}
