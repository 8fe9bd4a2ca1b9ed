package kv

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"taize-events/internal/config"
)

// Open builds the backend named by cfg.Backend. The returned close func is
// never nil.
func Open(cfg config.StorageConfig) (Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), noop, nil
	case "file", "":
		s, err := NewFileStore(cfg.Dir)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case "redis":
		s := NewRedisStore(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB}, cfg.RedisPrefix)
		return s, s.Close, nil
	case "postgres":
		s, err := OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// OpenCache builds the store for short-lived cached values: memory unless
// redis is asked for and configured.
func OpenCache(backend string, cfg config.StorageConfig) (Store, func() error) {
	if backend == "redis" && cfg.RedisAddr != "" {
		s := NewRedisStore(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB}, cfg.RedisPrefix+"cache:")
		return s, s.Close
	}
	return NewMemoryStore(), func() error { return nil }
}
