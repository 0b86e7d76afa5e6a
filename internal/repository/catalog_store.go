package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"DataPull/internal/domain/models"
	"DataPull/pkg/cache"
)

// CacheCatalogStore keeps capability catalogs in a cache.Service so that
// other processes start warm. Entries live under catalog:{vendor}.
type CacheCatalogStore struct {
	cache   cache.Service
	ttl     time.Duration
	lockTTL time.Duration
}

func NewCacheCatalogStore(c cache.Service, ttl, lockTTL time.Duration) *CacheCatalogStore {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &CacheCatalogStore{cache: c, ttl: ttl, lockTTL: lockTTL}
}

func catalogKey(v models.Vendor) string { return cache.Key("catalog", string(v)) }

func lockKey(v models.Vendor) string { return cache.Key("catalog", "lock", string(v)) }

func (s *CacheCatalogStore) Load(ctx context.Context, vendor models.Vendor) (*models.Catalog, error) {
	var cat models.Catalog
	if err := s.cache.Get(ctx, catalogKey(vendor), &cat); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("load catalog %s: %w", vendor, err)
	}
	return &cat, nil
}

func (s *CacheCatalogStore) Save(ctx context.Context, cat *models.Catalog) error {
	if err := s.cache.Set(ctx, catalogKey(cat.Vendor), cat, s.ttl); err != nil {
		return fmt.Errorf("save catalog %s: %w", cat.Vendor, err)
	}
	return nil
}

func (s *CacheCatalogStore) Lock(ctx context.Context, vendor models.Vendor) (bool, func(), error) {
	key := lockKey(vendor)
	token, ok, err := s.cache.TryLock(ctx, key, s.lockTTL)
	if err != nil || !ok {
		return false, func() {}, err
	}
	release := func() {
		// the caller's ctx may already be done
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// ErrLockLost means the TTL ran out first; nothing to release.
		_ = s.cache.Unlock(ctx, key, token)
	}
	return true, release, nil
}
