// Package normalizer turns raw vendor batches into canonical tables.
package normalizer

import (
	"time"

	"DataPull/internal/domain/models"
	"DataPull/internal/domain/repository"
	"DataPull/pkg/logger"
)

const (
	ReasonEmptyBatch     = "empty batch"
	ReasonSchemaMismatch = "schema mismatch"
	ReasonBadTimestamp   = "unparseable timestamp"
)

// Output is one normalized sub-request.
type Output struct {
	Table            *models.Table
	CoercionFailures int
}

type Normalizer struct {
	logger  *logger.Logger
	metrics repository.Metrics
}

type Option func(*Normalizer)

func WithLogger(l *logger.Logger) Option {
	return func(n *Normalizer) { n.logger = l }
}

func WithMetrics(m repository.Metrics) Option {
	return func(n *Normalizer) { n.metrics = m }
}

func New(opts ...Option) *Normalizer {
	n := &Normalizer{logger: logger.Nop(), metrics: repository.NopMetrics{}}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize maps, parses, resolves, resamples, cleans and coerces batch
// into a table keyed by (timestamp, ticker). The batch is only read, so
// normalizing the same batch twice yields identical tables.
func (n *Normalizer) Normalize(q *models.Query, batch *models.RawBatch, schema models.Schema) (*Output, error) {
	sub := batch.Request
	if len(batch.Records) == 0 {
		return nil, &models.NormalizeError{Request: sub.ID, Reason: ReasonEmptyBatch}
	}

	rows, err := mapFields(batch.Records, sub, schema)
	if err != nil {
		return nil, &models.NormalizeError{Request: sub.ID, Reason: ReasonSchemaMismatch, Err: err}
	}
	obs, err := parseTimestamps(rows, schema)
	if err != nil {
		return nil, &models.NormalizeError{Request: sub.ID, Reason: ReasonBadTimestamp, Err: err}
	}
	obs = resolveTickers(obs, sub, schema)
	obs = clip(obs, sub.Start, endOfDay(sub.End))

	freq := sub.Frequency
	if freq == "" {
		freq = q.Frequency()
	}
	obs = resample(obs, freq, schema.Aggregate)

	fields := requestedFields(q, sub)
	obs = removeBadData(obs, fields, schema.ZeroIsMissing)

	table, failures := coerce(obs, fields, schema)
	table.Sort()

	if failures > 0 {
		n.metrics.RecordCoercionFailures(string(sub.Vendor), failures)
		n.logger.Warn("values failed type coercion",
			logger.String("request", sub.ID),
			logger.Int("count", failures),
		)
	}
	n.logger.Debug("batch normalized",
		logger.String("request", sub.ID),
		logger.Int("records", len(batch.Records)),
		logger.Int("rows", table.Len()),
	)
	return &Output{Table: table, CoercionFailures: failures}, nil
}

// requestedFields is the sub-request's field list, or every canonical
// field its mapping produces.
func requestedFields(q *models.Query, sub *models.SubRequest) []string {
	if len(sub.Fields) > 0 {
		return sub.Fields
	}
	seen := models.NewStringSet()
	for _, canon := range sub.FieldMap {
		seen.Add(canon)
	}
	if len(seen) == 0 {
		return q.Fields()
	}
	return seen.Sorted()
}

// endOfDay widens a midnight end bound to cover that whole day.
func endOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	if t.Equal(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)) {
		return t.Add(24*time.Hour - time.Nanosecond)
	}
	return t
}
