package cache

import (
	"context"
	"time"
)

// LayeredCache fronts Redis with a short-lived in-process copy. Writes go
// through to Redis; locks always live in Redis so they hold across
// processes.
type LayeredCache struct {
	local  *MemoryCache
	remote *RedisCache
	maxAge time.Duration
}

func NewLayeredCache(remote *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{MemoryMaxSize: 1000, MemoryTTL: time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		local:  NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		remote: remote,
		maxAge: cfg.MemoryTTL,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.remote.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	return lc.local.Set(ctx, key, value, lc.localTTL(expiration))
}

// Get reads Redis only on a local miss and keeps the raw bytes it found.
func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	var raw []byte
	if err := lc.local.Get(ctx, key, &raw); err == nil {
		return decode(raw, dest)
	}
	if err := lc.remote.Get(ctx, key, &raw); err != nil {
		return err
	}
	_ = lc.local.Set(ctx, key, raw, lc.maxAge)
	return decode(raw, dest)
}

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	return lc.remote.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key, token string) error {
	return lc.remote.Unlock(ctx, key, token)
}

func (lc *LayeredCache) Close() error {
	return lc.remote.Close()
}

func (lc *LayeredCache) localTTL(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < lc.maxAge {
		return expiration
	}
	return lc.maxAge
}
