package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultMemoryTTL = 7 * 24 * time.Hour

type memEntry struct {
	key      string
	value    []byte
	expireAt time.Time
}

type memLock struct {
	token string
	until time.Time
}

// MemoryCache keeps encoded values in process with LRU eviction. Locks are
// tracked apart from values and never evicted.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is most recently used
	locks   map[string]memLock
	maxSize int
	now     func() time.Time
}

// NewMemoryCache creates an in-memory cache. Expired entries are dropped
// lazily when read or when they reach the LRU tail.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{MaxSize: 1000}
	for _, opt := range opts {
		opt(cfg)
	}
	return &MemoryCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		locks:   make(map[string]memLock),
		maxSize: cfg.MaxSize,
		now:     time.Now,
	}
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = defaultMemoryTTL
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	expireAt := mc.now().Add(expiration)
	if el, ok := mc.entries[key]; ok {
		e := el.Value.(*memEntry)
		e.value, e.expireAt = data, expireAt
		mc.order.MoveToFront(el)
		return nil
	}
	for mc.order.Len() >= mc.maxSize {
		mc.remove(mc.order.Back())
	}
	mc.entries[key] = mc.order.PushFront(&memEntry{key: key, value: data, expireAt: expireAt})
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	el, ok := mc.entries[key]
	if !ok {
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	e := el.Value.(*memEntry)
	if !mc.now().Before(e.expireAt) {
		mc.remove(el)
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	mc.order.MoveToFront(el)
	data := e.value
	mc.mu.Unlock()

	return decode(data, dest)
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()
	if l, ok := mc.locks[key]; ok && now.Before(l.until) {
		return "", false, nil
	}
	token := uuid.NewString()
	mc.locks[key] = memLock{token: token, until: now.Add(ttl)}
	return token, true, nil
}

func (mc *MemoryCache) Unlock(_ context.Context, key, token string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	l, ok := mc.locks[key]
	if !ok || l.token != token || !mc.now().Before(l.until) {
		return ErrLockLost
	}
	delete(mc.locks, key)
	return nil
}

// Len reports the number of stored values, expired ones included.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.order.Len()
}

// Close is a no-op kept so every backend can be closed the same way.
func (mc *MemoryCache) Close() error { return nil }

func (mc *MemoryCache) remove(el *list.Element) {
	if el == nil {
		return
	}
	mc.order.Remove(el)
	delete(mc.entries, el.Value.(*memEntry).key)
}
