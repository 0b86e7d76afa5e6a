package models

import "time"

// Observation is a record after field mapping, timestamp parsing and ticker
// resolution. Values are still raw vendor values.
type Observation struct {
	Timestamp time.Time
	Ticker    string
	Values    map[string]any
}

// TimeParser converts a raw vendor timestamp into a UTC time.
type TimeParser func(raw any) (time.Time, error)

// Aggregator replaces the default last-per-bucket resampling for an
// endpoint. It receives the observations of one ticker in time order.
type Aggregator func(obs []Observation, freq Frequency) []Observation

// Schema tells the normalizer how to read a vendor endpoint's records.
type Schema struct {
	// TimestampKey is the record key holding the observation time.
	TimestampKey string
	// TickerKey is the record key holding the vendor identifier. Empty
	// means every record belongs to the sub-request's single ticker.
	TickerKey string
	// ParseTime overrides the default timestamp parser.
	ParseTime TimeParser
	// ResolveTicker maps a vendor identifier not present in the
	// sub-request's TickerByID to a canonical ticker.
	ResolveTicker func(id string) string
	// Types declares non-numeric canonical fields. Unlisted fields are numeric.
	Types map[string]Kind
	// ZeroIsMissing treats 0 as the vendor's missing-data sentinel.
	ZeroIsMissing bool
	// Aggregate overrides resampling, nil means last per bucket.
	Aggregate Aggregator
}

// KindOf returns the declared kind of a canonical field.
func (s Schema) KindOf(field string) Kind {
	if k, ok := s.Types[field]; ok {
		return k
	}
	return KindNumber
}
