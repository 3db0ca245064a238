package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func TestMemoryCacheRoundTripsStructs(t *testing.T) {
	mc := NewMemoryCache()
	ctx := context.Background()

	in := payload{Name: "median", Score: 1.25}
	require.NoError(t, mc.Set(ctx, "k", in, time.Minute))

	var out payload
	require.NoError(t, mc.Get(ctx, "k", &out))
	assert.Equal(t, in, out)
}

func TestMemoryCacheRoundTripsStrings(t *testing.T) {
	mc := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", "value", time.Minute))

	var out string
	require.NoError(t, mc.Get(ctx, "k", &out))
	assert.Equal(t, "value", out)
}

func TestMemoryCacheMissAndExpiry(t *testing.T) {
	mc := NewMemoryCache()
	ctx := context.Background()

	var out string
	assert.ErrorIs(t, mc.Get(ctx, "absent", &out), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "short", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	assert.ErrorIs(t, mc.Get(ctx, "short", &out), ErrCacheMiss)
}

func TestMemoryCacheEvictsLRU(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", "1", time.Minute))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", "2", time.Minute))
	time.Sleep(2 * time.Millisecond)

	// touch a so b becomes the least recently used
	var out string
	require.NoError(t, mc.Get(ctx, "a", &out))
	time.Sleep(2 * time.Millisecond)

	require.NoError(t, mc.Set(ctx, "c", "3", time.Minute))

	assert.NoError(t, mc.Get(ctx, "a", &out))
	assert.ErrorIs(t, mc.Get(ctx, "b", &out), ErrCacheMiss)
}

func TestMemoryCacheIncrementAndLock(t *testing.T) {
	mc := NewMemoryCache()
	ctx := context.Background()

	n, err := mc.Increment(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = mc.Increment(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err := mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held lock is not reacquired")

	require.NoError(t, mc.Unlock(ctx, "lock"))
	ok, err = mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
