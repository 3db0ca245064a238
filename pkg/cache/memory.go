package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const defaultMemoryTTL = 7 * 24 * time.Hour

type memoryEntry struct {
	value      interface{}
	expiresAt  time.Time
	lastAccess time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryCache implements Service in process, with LRU eviction at capacity
// and a janitor sweeping expired entries.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	maxSize int
	done    chan struct{}
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	c := &MemoryCache{
		entries: make(map[string]*memoryEntry),
		maxSize: cfg.MaxSize,
		done:    make(chan struct{}),
	}
	go c.janitor(cfg.CleanupInterval)
	return c
}

// Set stores the encoded value so Get can decode into any dest, matching
// the Redis layer. Non-positive expirations fall back to a week.
func (c *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = defaultMemoryTTL
	}

	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[key] = &memoryEntry{
		value:      data,
		expiresAt:  now.Add(expiration),
		lastAccess: now,
	}
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return ErrCacheMiss
	}
	if entry.expired(now) {
		delete(c.entries, key)
		return ErrCacheMiss
	}
	entry.lastAccess = now

	data, ok := entry.value.([]byte)
	if !ok {
		// Counters and locks are not served through Get.
		return ErrCacheMiss
	}
	return decode(data, dest)
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func (c *MemoryCache) Increment(_ context.Context, key string) (int64, error) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || entry.expired(now) {
		c.entries[key] = &memoryEntry{
			value:      int64(1),
			expiresAt:  now.Add(defaultMemoryTTL),
			lastAccess: now,
		}
		return 1, nil
	}

	n, ok := entry.value.(int64)
	if !ok {
		return 0, fmt.Errorf("cache: %q is not a counter", key)
	}
	n++
	entry.value = n
	entry.lastAccess = now
	return n, nil
}

func (c *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok && !entry.expired(now) {
		return false, nil
	}
	c.entries[key] = &memoryEntry{
		value:      "locked",
		expiresAt:  now.Add(ttl),
		lastAccess: now,
	}
	return true, nil
}

func (c *MemoryCache) Unlock(ctx context.Context, key string) error {
	return c.Delete(ctx, key)
}

// Close stops the janitor.
func (c *MemoryCache) Close() error {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	return nil
}

// evictOldestLocked drops the least recently used entry. Callers must hold mu.
func (c *MemoryCache) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.lastAccess.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.lastAccess
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *MemoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, entry := range c.entries {
				if entry.expired(now) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
