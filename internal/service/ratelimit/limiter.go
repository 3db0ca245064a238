package ratelimit

import (
	"sync"
	"time"
)

const (
	defaultCapacity     = 5
	defaultRefillPerSec = 2
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a per-key token bucket. Simulation runs are expensive, so the
// bucket is small and refills slowly.
type Limiter struct {
	mu           sync.Mutex
	buckets      map[string]*bucket
	capacity     float64
	refillPerSec float64
}

// New creates a limiter; non-positive parameters fall back to defaults.
func New(capacity, refillPerSec float64) *Limiter {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if refillPerSec <= 0 {
		refillPerSec = defaultRefillPerSec
	}

	return &Limiter{
		buckets:      make(map[string]*bucket),
		capacity:     capacity,
		refillPerSec: refillPerSec,
	}
}

// Allow consumes one token for key, returning false when the bucket is empty.
func (l *Limiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * l.refillPerSec
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
