package fetcher

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"DataPull/internal/domain/models"
	"DataPull/internal/domain/repository"
	"DataPull/internal/service/ratelimit"
	"DataPull/pkg/logger"
)

type state int

const (
	stateInit state = iota
	stateRequesting
	stateRetryWait
	statePageOK
	statePageEmpty
	stateDone
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateRequesting:
		return "requesting"
	case stateRetryWait:
		return "retry_wait"
	case statePageOK:
		return "page_ok"
	case statePageEmpty:
		return "page_empty"
	case stateDone:
		return "done"
	default:
		return "failed"
	}
}

// Fetcher runs the pagination state machine for sub-requests. It is safe
// for concurrent use; per-fetch state lives on the stack.
type Fetcher struct {
	logger         *logger.Logger
	metrics        repository.Metrics
	maxPages       int
	requestTimeout time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	jitter         func(n int64) int64
}

type Option func(*Fetcher)

func WithLogger(l *logger.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

func WithMetrics(m repository.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// WithMaxPages sets the default page bound for policies that leave it open.
func WithMaxPages(n int) Option {
	return func(f *Fetcher) { f.maxPages = n }
}

// WithRequestTimeout bounds each individual vendor call.
func WithRequestTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.requestTimeout = d }
}

// WithSleep replaces the backoff sleep (tests record delays instead).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) { f.sleep = fn }
}

func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		logger:   logger.Nop(),
		metrics:  repository.NopMetrics{},
		maxPages: 1000,
		sleep:    sleepCtx,
		jitter:   rand.Int64N,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type run struct {
	sub    *models.SubRequest
	codec  repository.PageCodec
	tr     repository.Transport
	gate   ratelimit.Gate
	cursor models.Cursor
	batch  *models.RawBatch
}

// Fetch pages through sub until the vendor runs dry, the end boundary is
// crossed or the page bound is hit. Transient failures are retried with
// exponential backoff and jitter up to policy.Attempts per page.
//
// On failure or cancellation the records fetched so far are returned along
// with the error.
func (f *Fetcher) Fetch(ctx context.Context, sub *models.SubRequest, codec repository.PageCodec, tr repository.Transport, gate ratelimit.Gate, policy Policy) (*models.RawBatch, error) {
	p := policy.normalized(f.maxPages)
	if gate == nil {
		gate = ratelimit.Unlimited{}
	}
	r := &run{
		sub:   sub,
		codec: codec,
		tr:    tr,
		gate:  gate,
		batch: &models.RawBatch{Request: sub},
	}
	log := f.logger.With(logger.String("request", sub.ID))
	vendor := string(sub.Vendor)

	var (
		page    *models.Page
		lastErr error
		attempt int
	)
	st := stateInit
	for {
		switch st {
		case stateInit:
			r.cursor = models.Cursor{Position: sub.Seed}
			st = stateRequesting

		case stateRequesting:
			if err := ctx.Err(); err != nil {
				return r.batch, f.cancelled(sub, attempt, err)
			}
			attempt++
			r.batch.Attempts++
			page, lastErr = f.request(ctx, r)
			switch {
			case lastErr == nil && len(page.Records) == 0:
				st = statePageEmpty
			case lastErr == nil:
				st = statePageOK
			case ctx.Err() != nil:
				return r.batch, f.cancelled(sub, attempt, ctx.Err())
			case !retryable(lastErr), attempt >= p.Attempts:
				st = stateFailed
			default:
				st = stateRetryWait
			}

		case stateRetryWait:
			delay := f.backoff(p, attempt)
			f.metrics.RecordRetry(vendor)
			log.Warn("vendor call failed, retrying",
				logger.String("endpoint", string(sub.Endpoint)),
				logger.Int("attempt", attempt),
				logger.Int("max_attempts", p.Attempts),
				logger.Duration("backoff_ms", delay),
				logger.Error(lastErr),
			)
			if err := f.sleep(ctx, delay); err != nil {
				return r.batch, f.cancelled(sub, attempt, err)
			}
			st = stateRequesting

		case statePageOK:
			attempt = 0
			r.batch.Pages++
			r.batch.Records = append(r.batch.Records, page.Records...)
			f.metrics.RecordPage(vendor, string(sub.Endpoint))

			next, more := r.advance(page)
			switch {
			case !more:
				st = stateDone
			case r.batch.Pages >= p.MaxPages:
				r.batch.Truncated = true
				log.Warn("page bound reached, stopping pagination",
					logger.Int("pages", r.batch.Pages),
					logger.Int("records", len(r.batch.Records)),
				)
				st = stateDone
			default:
				r.cursor = next
				st = stateRequesting
			}

		case statePageEmpty:
			st = stateDone

		case stateDone:
			log.Debug("fetch done",
				logger.Int("pages", r.batch.Pages),
				logger.Int("records", len(r.batch.Records)),
				logger.Int("attempts", r.batch.Attempts),
			)
			return r.batch, nil

		case stateFailed:
			f.metrics.RecordError("fetch")
			return r.batch, &models.FetchError{
				Vendor:   sub.Vendor,
				Endpoint: sub.Endpoint,
				Request:  sub.ID,
				Attempts: attempt,
				Status:   statusOf(lastErr),
				Fatal:    true,
				Err:      lastErr,
			}
		}
	}
}

// request performs one gated call and decodes it.
func (f *Fetcher) request(ctx context.Context, r *run) (*models.Page, error) {
	if err := r.gate.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := r.codec.Request(r.sub, r.cursor)
	if err != nil {
		return nil, &permanentError{err: err}
	}

	callCtx := ctx
	if f.requestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, f.requestTimeout)
		defer cancel()
	}
	resp, err := r.tr.Send(callCtx, req)
	if err != nil {
		var te *models.TransportError
		if errors.As(err, &te) {
			f.metrics.RecordError("transport_" + string(te.Kind))
		}
		return nil, err
	}
	page, err := r.codec.Decode(r.sub, resp)
	if err != nil {
		f.metrics.RecordError("decode")
		return nil, &permanentError{err: err}
	}
	return page, nil
}

// advance decides whether another page follows and where it starts.
func (r *run) advance(page *models.Page) (models.Cursor, bool) {
	switch {
	case page.Exhausted:
		return r.cursor, false
	case page.NextToken != "":
		if page.NextToken == r.cursor.Position {
			return r.cursor, false
		}
		return models.Cursor{Position: page.NextToken}, true
	case page.PastEnd:
		return r.cursor, false
	case r.sub.PageSize > 0 && len(page.Records) < r.sub.PageSize:
		return r.cursor, false
	case page.NextOffset == "" || page.NextOffset == r.cursor.Position:
		return r.cursor, false
	}
	return models.Cursor{Position: page.NextOffset}, true
}

func (f *Fetcher) cancelled(sub *models.SubRequest, attempts int, err error) error {
	return &models.FetchError{
		Vendor:   sub.Vendor,
		Endpoint: sub.Endpoint,
		Request:  sub.ID,
		Attempts: attempts,
		Err:      err,
	}
}

// backoff returns the delay before retry number attempt: the doubled base
// delay capped at MaxDelay, of which the upper half is random.
func (f *Fetcher) backoff(p Policy, attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.MaxDelay
	if attempt-1 < 32 {
		if shifted := p.BaseDelay << (attempt - 1); shifted > 0 && shifted < p.MaxDelay {
			d = shifted
		}
	}
	half := d / 2
	return half + time.Duration(f.jitter(int64(d-half)+1))
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var pe *permanentError
	if errors.As(err, &pe) {
		return false
	}
	var te *models.TransportError
	if errors.As(err, &te) {
		return te.Retryable()
	}
	// unclassified errors (dropped connections, per-call timeouts) are transient
	return true
}

func statusOf(err error) int {
	var te *models.TransportError
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
