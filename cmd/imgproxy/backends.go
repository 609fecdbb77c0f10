package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"imgproxy/pkg/cache"
	"imgproxy/pkg/config"
	"imgproxy/pkg/storage"
)

// openStore builds the configured object store.
func openStore(cfg config.StoreConfig) (storage.ObjectStore, error) {
	switch cfg.Backend {
	case "localfs":
		return storage.NewLocalFS(cfg.DataDirs)
	case "memory":
		return storage.NewMemoryStore(), nil
	case "s3":
		return storage.NewS3Store(storage.S3Options{
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.S3.Prefix,
			Region:         cfg.S3.Region,
			Endpoint:       cfg.S3.Endpoint,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
	case "minio":
		return storage.NewMinioStore(storage.MinioOptions{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Secure:    cfg.Minio.Secure,
			Bucket:    cfg.Minio.Bucket,
			Prefix:    cfg.Minio.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// openCache builds the configured cache, or returns nil when caching is off.
func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	ttl := cfg.TTLDuration()
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "bigcache":
		return cache.NewBigcache(ctx, cache.BigcacheOptions{
			TTL:           ttl,
			MaxEntryBytes: int(cfg.MaxEntryBytes),
			MaxMemoryMB:   cfg.Bigcache.MaxMemoryMB,
			Shards:        cfg.Bigcache.Shards,
		})
	case "ccache":
		return cache.NewCCache(cfg.CCache.MaxBytes, ttl), nil
	case "memcached":
		m := cache.NewMemcached(ttl, int(cfg.MaxEntryBytes), cfg.Memcached.Servers...)
		if err := m.Ping(); err != nil {
			slog.Warn("memcached ping failed", slog.String("servers", strings.Join(cfg.Memcached.Servers, ",")), slog.String("error", err.Error()))
		}
		return m, nil
	case "redis":
		r := cache.NewRedis(cache.RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       ttl,
		})
		if err := r.Ping(); err != nil {
			slog.Warn("redis ping failed", slog.String("addr", cfg.Redis.Addr), slog.String("error", err.Error()))
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// setupLogging installs the default slog logger.
func setupLogging(cfg config.LogConfig) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}
