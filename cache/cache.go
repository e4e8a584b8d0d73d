// Package cache provides the key-value stores used for verification
// results and exchanger lists. Values are opaque bytes with a TTL.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/optimode/emailverify/types"
)

// Store is a types.Cache that owns resources.
type Store interface {
	types.Cache
	Close() error
}

// Config selects and configures a Store.
type Config struct {
	// Type is one of "memory", "redis", "sqlite" or "none". Default: memory
	Type string
	// CleanupInterval is how often expired entries are purged by the
	// memory and sqlite stores. Default: 10m
	CleanupInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SQLitePath string
}

// New creates the Store selected by cfg.Type.
func New(cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}

	switch cfg.Type {
	case "", "memory":
		return NewMemory(logger, cfg.CleanupInterval), nil
	case "redis":
		return NewRedis(RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("cache: sqlite path is required")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("cache: create sqlite directory: %w", err)
		}
		return NewSQLite(cfg.SQLitePath, logger, cfg.CleanupInterval)
	case "none":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("cache: unsupported type %q", cfg.Type)
	}
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, error) { return nil, types.ErrCacheMiss }

func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Noop) Delete(context.Context, string) error { return nil }

func (Noop) Close() error { return nil }
