package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/optimode/emailverify/types"
)

// SQLite is a Store persisted in a local sqlite file.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
	stopCh chan struct{}
	once   sync.Once
}

// NewSQLite opens (or creates) the database at path.
func NewSQLite(path string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite database: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: create table: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_cache_expires_at ON cache_entries(expires_at)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: create index: %w", err)
	}

	c := &SQLite{db: db, logger: logger, stopCh: make(chan struct{})}
	if cleanupFreq > 0 {
		go c.startCleanupTask(cleanupFreq)
	}
	return c, nil
}

func (c *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := c.db.QueryRowContext(ctx, `
		SELECT value FROM cache_entries
		WHERE key = ? AND expires_at > ?
	`, key, time.Now().UnixMilli()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: query %s: %w", key, err)
	}
	return value, nil
}

func (c *SQLite) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cache_entries (key, value, expires_at)
		VALUES (?, ?, ?)
	`, key, value, time.Now().Add(ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("cache: insert %s: %w", key, err)
	}
	return nil
}

func (c *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("cache: delete %s: %w", key, err)
	}
	return nil
}

// Cleanup removes expired entries and returns how many were removed.
func (c *SQLite) Cleanup(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= ?`, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cache: clean up expired entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		c.logger.Warn("failed to get rows affected during cleanup", zap.Error(err))
		return 0, nil
	}
	c.logger.Debug("cleaned up expired cache entries", zap.Int64("expired_count", n))
	return n, nil
}

func (c *SQLite) startCleanupTask(freq time.Duration) {
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("failed to clean up cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Close stops the cleanup task and closes the database.
func (c *SQLite) Close() error {
	var err error
	c.once.Do(func() {
		close(c.stopCh)
		err = c.db.Close()
	})
	return err
}
