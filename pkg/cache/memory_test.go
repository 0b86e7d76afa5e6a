package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(size int) (*MemoryCache, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	mc := NewMemoryCache(WithMemoryMaxSize(size))
	mc.now = c.now
	return mc, c
}

func TestMemoryCacheEncodesLikeRedis(t *testing.T) {
	mc, _ := newTestCache(10)
	ctx := context.Background()

	type payload struct {
		Tickers []string `json:"tickers"`
	}
	require.NoError(t, mc.Set(ctx, "catalog:ccxt", payload{Tickers: []string{"BTC"}}, time.Hour))
	require.NoError(t, mc.Set(ctx, "raw", "plain", time.Hour))

	var got payload
	require.NoError(t, mc.Get(ctx, "catalog:ccxt", &got))
	assert.Equal(t, []string{"BTC"}, got.Tickers)

	var s string
	require.NoError(t, mc.Get(ctx, "raw", &s))
	assert.Equal(t, "plain", s)

	assert.ErrorIs(t, mc.Get(ctx, "missing", &s), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc, clk := newTestCache(10)
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", "v", time.Minute))
	clk.advance(59 * time.Second)
	var s string
	require.NoError(t, mc.Get(ctx, "k", &s))

	clk.advance(time.Second)
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc, _ := newTestCache(2)
	ctx := context.Background()
	var s string

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	require.NoError(t, mc.Set(ctx, "b", "2", 0))
	require.NoError(t, mc.Get(ctx, "a", &s))
	require.NoError(t, mc.Set(ctx, "c", "3", 0))

	assert.NoError(t, mc.Get(ctx, "a", &s))
	assert.ErrorIs(t, mc.Get(ctx, "b", &s), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "c", &s))
	assert.Equal(t, 2, mc.Len())
}

func TestMemoryCacheLockOwnership(t *testing.T) {
	mc, clk := newTestCache(1)
	ctx := context.Background()

	token, ok, err := mc.TryLock(ctx, "catalog:lock:ccxt", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = mc.TryLock(ctx, "catalog:lock:ccxt", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// values filling the cache do not evict locks
	require.NoError(t, mc.Set(ctx, "x", "1", 0))
	require.NoError(t, mc.Set(ctx, "y", "2", 0))
	_, ok, _ = mc.TryLock(ctx, "catalog:lock:ccxt", time.Minute)
	assert.False(t, ok)

	assert.ErrorIs(t, mc.Unlock(ctx, "catalog:lock:ccxt", "someone-else"), ErrLockLost)

	clk.advance(2 * time.Minute)
	next, ok, err := mc.TryLock(ctx, "catalog:lock:ccxt", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, token, next)
	assert.ErrorIs(t, mc.Unlock(ctx, "catalog:lock:ccxt", token), ErrLockLost, "expired holder cannot release the new lock")
	assert.NoError(t, mc.Unlock(ctx, "catalog:lock:ccxt", next))
}
