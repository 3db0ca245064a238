package cache

import (
	"context"
	"time"
)

// l1BackfillTTL bounds how long an entry promoted from Redis may outlive
// its L2 copy.
const l1BackfillTTL = time.Minute

// LayeredCache fronts Redis with the in-process cache. Reads prefer L1,
// writes go through to both, and everything stateful (counters, locks)
// lives in Redis only.
type LayeredCache struct {
	local  *MemoryCache
	remote *RedisCache
}

func NewLayeredCache(remote *RedisCache) *LayeredCache {
	return &LayeredCache{
		local:  NewMemoryCache(),
		remote: remote,
	}
}

func (l *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := l.remote.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = l.local.Set(ctx, key, value, expiration)
	return nil
}

func (l *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := l.local.Get(ctx, key, dest); err == nil {
		return nil
	}
	if err := l.remote.Get(ctx, key, dest); err != nil {
		return err
	}
	_ = l.local.Set(ctx, key, dest, l1BackfillTTL)
	return nil
}

func (l *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = l.local.Delete(ctx, keys...)
	return l.remote.Delete(ctx, keys...)
}

func (l *LayeredCache) Increment(ctx context.Context, key string) (int64, error) {
	return l.remote.Increment(ctx, key)
}

func (l *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.remote.TryLock(ctx, key, ttl)
}

func (l *LayeredCache) Unlock(ctx context.Context, key string) error {
	return l.remote.Unlock(ctx, key)
}

// Close closes both layers.
func (l *LayeredCache) Close() error {
	_ = l.local.Close()
	return l.remote.Close()
}
