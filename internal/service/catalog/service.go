package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"DataPull/internal/domain/models"
	"DataPull/internal/domain/repository"
	"DataPull/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// Service owns one vendor's capability catalog. The first Get populates
// it, concurrent callers wait for that single population, and the
// published catalog is never mutated afterwards. Refresh swaps in a new
// catalog atomically.
type Service struct {
	vendor  models.Vendor
	source  repository.CapabilitySource
	store   repository.CatalogStore
	logger  *logger.Logger
	metrics repository.Metrics
	now     func() time.Time

	mu    sync.RWMutex
	cat   *models.Catalog
	group singleflight.Group
}

type Option func(*Service)

// WithStore persists catalogs so restarts and other replicas skip the
// vendor round trip.
func WithStore(store repository.CatalogStore) Option {
	return func(s *Service) { s.store = store }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m repository.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(vendor models.Vendor, source repository.CapabilitySource, opts ...Option) *Service {
	s := &Service{
		vendor:  vendor,
		source:  source,
		logger:  logger.Nop(),
		metrics: repository.NopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cached returns the published catalog without populating it.
func (s *Service) Cached() (*models.Catalog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cat, s.cat != nil
}

// Get returns the catalog, populating it on first use.
func (s *Service) Get(ctx context.Context) (*models.Catalog, error) {
	if cat, ok := s.Cached(); ok {
		return cat, nil
	}

	// population runs detached so one caller giving up does not fail the others
	ch := s.group.DoChan("populate", func() (any, error) {
		if cat, ok := s.Cached(); ok {
			return cat, nil
		}
		return s.populate(context.WithoutCancel(ctx), true)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Catalog), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Refresh refetches the catalog from the vendor and publishes it. When
// another process holds the refresh lock the current catalog is returned.
func (s *Service) Refresh(ctx context.Context) (*models.Catalog, error) {
	if s.store != nil {
		ok, release, err := s.store.Lock(ctx, s.vendor)
		if err != nil {
			s.logger.Warn("catalog refresh lock failed", logger.String("vendor", s.vendor.String()), logger.Error(err))
		} else if !ok {
			s.logger.Info("catalog refresh already running elsewhere", logger.String("vendor", s.vendor.String()))
			return s.Get(ctx)
		} else {
			defer release()
		}
	}

	v, err, _ := s.group.Do("refresh", func() (any, error) {
		return s.populate(ctx, false)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Catalog), nil
}

func (s *Service) populate(ctx context.Context, useStore bool) (*models.Catalog, error) {
	start := s.now()
	defer func() {
		s.metrics.RecordLatency("catalog_populate", s.now().Sub(start).Seconds())
	}()

	if useStore && s.store != nil {
		cat, err := s.store.Load(ctx, s.vendor)
		switch {
		case err == nil && cat != nil:
			s.publish(cat)
			s.logger.Info("catalog loaded from store",
				logger.String("vendor", s.vendor.String()),
				logger.Int("tickers", len(cat.Tickers)),
			)
			return cat, nil
		case err != nil:
			s.logger.Warn("catalog store load failed", logger.String("vendor", s.vendor.String()), logger.Error(err))
		}
	}

	cat, err := s.source.FetchCatalog(ctx)
	if err != nil {
		s.metrics.RecordError("catalog")
		return nil, fmt.Errorf("fetch %s catalog: %w", s.vendor, err)
	}
	if cat == nil {
		return nil, fmt.Errorf("fetch %s catalog: empty response", s.vendor)
	}
	cat.Vendor = s.vendor
	if cat.FetchedAt.IsZero() {
		cat.FetchedAt = s.now().UTC()
	}
	if len(cat.Tickers) == 0 {
		s.logger.Warn("catalog has no tickers", logger.String("vendor", s.vendor.String()))
	}

	if s.store != nil {
		if err := s.store.Save(ctx, cat); err != nil {
			s.logger.Warn("catalog store save failed", logger.String("vendor", s.vendor.String()), logger.Error(err))
		}
	}
	s.publish(cat)
	s.logger.Info("catalog populated",
		logger.String("vendor", s.vendor.String()),
		logger.Int("tickers", len(cat.Tickers)),
		logger.Int("markets", len(cat.Markets)),
		logger.Duration("duration_ms", s.now().Sub(start)),
	)
	return cat, nil
}

func (s *Service) publish(cat *models.Catalog) {
	s.mu.Lock()
	s.cat = cat
	s.mu.Unlock()
}
