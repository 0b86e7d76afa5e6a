package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"DataPull/internal/domain/models"
	"DataPull/internal/domain/repository"
	"DataPull/internal/service/catalog"
	"DataPull/internal/service/fetcher"
	"DataPull/internal/service/normalizer"
	"DataPull/internal/service/ratelimit"
	"DataPull/internal/vendor"
	"DataPull/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// DataService runs the retrieval pipeline: convert, fetch concurrently,
// normalize and merge. It owns one catalog and one rate gate per vendor.
type DataService struct {
	registry       *vendor.Registry
	catalogs       map[models.Vendor]*catalog.Service
	gates          map[models.Vendor]ratelimit.Gate
	fetcher        *fetcher.Fetcher
	normalizer     *normalizer.Normalizer
	store          repository.CatalogStore
	limiter        *ratelimit.Limiter
	logger         *logger.Logger
	metrics        repository.Metrics
	maxConcurrency int
	maxBackoff     time.Duration
	newRunID       func() string
}

type Option func(*DataService)

func WithLogger(l *logger.Logger) Option {
	return func(s *DataService) { s.logger = l }
}

func WithMetrics(m repository.Metrics) Option {
	return func(s *DataService) { s.metrics = m }
}

// WithMaxConcurrency caps the sub-requests fetched at once per GetData call.
func WithMaxConcurrency(n int) Option {
	return func(s *DataService) {
		if n > 0 {
			s.maxConcurrency = n
		}
	}
}

// WithMaxBackoff caps a single retry delay.
func WithMaxBackoff(d time.Duration) Option {
	return func(s *DataService) { s.maxBackoff = d }
}

// WithCatalogStore shares populated catalogs through a cache.
func WithCatalogStore(store repository.CatalogStore) Option {
	return func(s *DataService) { s.store = store }
}

// WithLimiter sets the token buckets shared by every vendor gate.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *DataService) { s.limiter = l }
}

func WithFetcher(f *fetcher.Fetcher) Option {
	return func(s *DataService) { s.fetcher = f }
}

func WithNormalizer(n *normalizer.Normalizer) Option {
	return func(s *DataService) { s.normalizer = n }
}

func NewDataService(registry *vendor.Registry, opts ...Option) *DataService {
	s := &DataService{
		registry:       registry,
		catalogs:       make(map[models.Vendor]*catalog.Service),
		gates:          make(map[models.Vendor]ratelimit.Gate),
		logger:         logger.Nop(),
		metrics:        repository.NopMetrics{},
		maxConcurrency: 4,
		maxBackoff:     30 * time.Second,
		newRunID:       func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.New()
	}
	if s.fetcher == nil {
		s.fetcher = fetcher.New(fetcher.WithLogger(s.logger), fetcher.WithMetrics(s.metrics))
	}
	if s.normalizer == nil {
		s.normalizer = normalizer.New(normalizer.WithLogger(s.logger), normalizer.WithMetrics(s.metrics))
	}
	for _, v := range registry.Vendors() {
		p, _ := registry.Get(v)
		copts := []catalog.Option{catalog.WithLogger(s.logger), catalog.WithMetrics(s.metrics)}
		if s.store != nil {
			copts = append(copts, catalog.WithStore(s.store))
		}
		s.catalogs[v] = catalog.New(v, p.CapabilitySource(), copts...)
		s.gates[v] = ratelimit.NewVendorGate(s.limiter, v, p.Policy())
	}
	return s
}

// Vendors lists the vendors this service can query.
func (s *DataService) Vendors() []models.Vendor { return s.registry.Vendors() }

// Query validates p and runs GetData. An invalid query never reaches a vendor.
func (s *DataService) Query(ctx context.Context, p models.QueryParams) (*models.Result, error) {
	q, err := models.NewQuery(p)
	if err != nil {
		s.metrics.RecordError("validation")
		return nil, err
	}
	return s.GetData(ctx, q)
}

// Catalog returns a vendor's capability catalog, populating it on first use.
func (s *DataService) Catalog(ctx context.Context, v models.Vendor) (*models.Catalog, error) {
	cs, ok := s.catalogs[v]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownVendor, v)
	}
	return cs.Get(ctx)
}

// RefreshCatalog refetches a vendor's catalog.
func (s *DataService) RefreshCatalog(ctx context.Context, v models.Vendor) (*models.Catalog, error) {
	cs, ok := s.catalogs[v]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownVendor, v)
	}
	return cs.Refresh(ctx)
}

// outcome is what one sub-request contributed to a run.
type outcome struct {
	table     *models.Table
	coercion  int
	truncated bool
	err       error
}

// GetData runs q against its vendor. A run where some sub-requests failed
// returns a Result whose Complete is false. A run without a single row
// returns *models.EmptyResultError. When ctx is cancelled the rows fetched
// so far are returned with Cancelled set.
func (s *DataService) GetData(ctx context.Context, q *models.Query) (*models.Result, error) {
	start := time.Now()
	v := q.Source()
	plugin, err := s.registry.Get(v)
	if err != nil {
		return nil, err
	}
	cat, err := s.catalogs[v].Get(ctx)
	if err != nil {
		s.metrics.RecordError("catalog")
		return nil, fmt.Errorf("load %s catalog: %w", v, err)
	}
	plan, err := plugin.Converter().Convert(q, cat)
	if err != nil {
		s.metrics.RecordError(models.ErrorKind(err))
		return nil, err
	}

	res := &models.Result{
		RunID:   s.newRunID(),
		Vendor:  v,
		Table:   models.NewTable(),
		Dropped: plan.Dropped,
	}
	log := s.logger.With(logger.String("run_id", res.RunID), logger.String("vendor", v.String()))
	for _, d := range plan.Dropped {
		log.Warn("capability dropped",
			logger.String("kind", string(d.Kind)),
			logger.String("value", d.Value),
			logger.String("reason", d.Reason),
		)
	}
	if plan.Empty() {
		log.Error("query produced no sub-requests", logger.Int("dropped", len(plan.Dropped)))
		s.metrics.RecordError("empty")
		return nil, &models.EmptyResultError{Dropped: plan.Dropped}
	}

	outcomes := s.fanOut(ctx, plugin, q, plan.SubRequests, log)

	for i, sub := range plan.SubRequests {
		o := outcomes[i]
		if o.table != nil {
			res.Table.Merge(o.table)
		}
		res.CoercionFailures += o.coercion
		if o.truncated {
			res.Truncated = append(res.Truncated, sub.ID)
		}
		if o.err != nil {
			f := failureOf(sub, o.err, ctx.Err() != nil)
			if f.Kind == "cancelled" {
				res.Cancelled = true
			}
			res.Failures = append(res.Failures, f)
			log.Warn("sub-request failed",
				logger.String("request", sub.ID),
				logger.String("kind", f.Kind),
				logger.Error(o.err),
			)
		}
	}
	res.Table.Restrict(q.Fields())
	res.Table.Sort()

	s.metrics.RecordLatency("get_data", time.Since(start).Seconds())
	if res.Table.Len() == 0 {
		log.Error("no data returned",
			logger.Int("failures", len(res.Failures)),
			logger.Int("dropped", len(res.Dropped)),
		)
		s.metrics.RecordError("empty")
		return nil, &models.EmptyResultError{Failures: res.Failures, Dropped: res.Dropped, Err: ctx.Err()}
	}
	s.metrics.RecordRows(v.String(), res.Table.Len())
	log.Info("data run finished",
		logger.Int("rows", res.Table.Len()),
		logger.Int("sub_requests", len(plan.SubRequests)),
		logger.Int("failures", len(res.Failures)),
		logger.Int("dropped", len(res.Dropped)),
		logger.Bool("complete", res.Complete()),
		logger.Duration("duration_ms", time.Since(start)),
	)
	return res, nil
}

// fanOut runs every sub-request on a bounded set of goroutines. Slots are
// not handed out once ctx is done; those sub-requests report the ctx error.
func (s *DataService) fanOut(ctx context.Context, plugin repository.VendorPlugin, q *models.Query, subs []*models.SubRequest, log *logger.Logger) []outcome {
	outcomes := make([]outcome, len(subs))
	sem := semaphore.NewWeighted(int64(s.maxConcurrency))
	policy := fetcher.PolicyFor(q, plugin.Policy(), s.maxBackoff)
	gate := s.gates[plugin.Vendor()]

	var wg sync.WaitGroup
	for i, sub := range subs {
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(subs); j++ {
				outcomes[j] = outcome{err: err}
			}
			break
		}
		wg.Add(1)
		go func(i int, sub *models.SubRequest) {
			defer wg.Done()
			defer sem.Release(1)
			outcomes[i] = s.runOne(ctx, plugin, q, sub, gate, policy, log)
		}(i, sub)
	}
	wg.Wait()
	return outcomes
}

// runOne fetches and normalizes one sub-request. Records fetched before a
// cancellation are still normalized.
func (s *DataService) runOne(ctx context.Context, plugin repository.VendorPlugin, q *models.Query, sub *models.SubRequest, gate ratelimit.Gate, policy fetcher.Policy, log *logger.Logger) outcome {
	batch, fetchErr := s.fetcher.Fetch(ctx, sub, plugin.Codec(), plugin.Transport(), gate, policy)
	o := outcome{err: fetchErr}
	if batch != nil {
		o.truncated = batch.Truncated
	}
	cancelled := ctx.Err() != nil && isCancel(fetchErr)
	if fetchErr != nil && (!cancelled || batch == nil || len(batch.Records) == 0) {
		return o
	}

	schema, err := plugin.Schema(sub.Endpoint)
	if err != nil {
		o.err = err
		return o
	}
	out, err := s.normalizer.Normalize(q, batch, schema)
	if err != nil {
		if o.err == nil {
			o.err = err
		}
		return o
	}
	o.table = out.Table
	o.coercion = out.CoercionFailures
	log.Debug("sub-request done",
		logger.String("request", sub.ID),
		logger.Int("rows", out.Table.Len()),
		logger.Int("pages", batch.Pages),
	)
	return o
}

func failureOf(sub *models.SubRequest, err error, runCancelled bool) models.Failure {
	kind := models.ErrorKind(err)
	if runCancelled && isCancel(err) {
		kind = "cancelled"
	}
	return models.Failure{
		RequestID: sub.ID,
		Endpoint:  sub.Endpoint,
		Tickers:   sub.Tickers,
		Fields:    sub.Fields,
		Kind:      kind,
		Reason:    err.Error(),
		Err:       err,
	}
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
