package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/optimode/emailverify/types"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Store. Expired entries are invisible to Get and
// removed by a background task.
type Memory struct {
	entries map[string]memoryEntry
	mu      sync.RWMutex
	logger  *zap.Logger
	stopCh  chan struct{}
	once    sync.Once
}

// NewMemory creates a Memory store purging expired entries every cleanupFreq.
func NewMemory(logger *zap.Logger, cleanupFreq time.Duration) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Memory{
		entries: make(map[string]memoryEntry),
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
	if cleanupFreq > 0 {
		go c.startCleanupTask(cleanupFreq)
	}
	return c
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !time.Now().Before(entry.expiresAt) {
		return nil, types.ErrCacheMiss
	}
	return append([]byte(nil), entry.value...), nil
}

func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (c *Memory) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Cleanup removes expired entries.
func (c *Memory) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	expired := 0
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			expired++
		}
	}
	c.logger.Debug("cleaned up expired cache entries", zap.Int("expired_count", expired))
	return expired
}

func (c *Memory) startCleanupTask(freq time.Duration) {
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-c.stopCh:
			return
		}
	}
}

// Close stops the background cleanup task.
func (c *Memory) Close() error {
	c.once.Do(func() { close(c.stopCh) })
	return nil
}
