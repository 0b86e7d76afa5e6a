package models

import (
	"strconv"
	"time"

	"DataPull/pkg/util"
)

// Requests and responses for the data HTTP endpoints.

type DataRequest struct {
	Source     string   `query:"source" json:"source" default:"coinmetrics" validate:"oneof=coinmetrics ccxt warehouse"`
	Tickers    []string `query:"tickers" json:"tickers" validate:"required,min=1"`
	Fields     []string `query:"fields" json:"fields"`
	Freq       string   `query:"freq" json:"freq" default:"d"`
	Start      string   `query:"start" json:"start"`
	End        string   `query:"end" json:"end"`
	Category   string   `query:"category" json:"category" default:"crypto"`
	MarketType string   `query:"market_type" json:"market_type" default:"spot"`
	Exchange   string   `query:"exchange" json:"exchange"`
	QuoteCcy   string   `query:"quote_ccy" json:"quote_ccy"`
	RetryCount string   `query:"retry_count" json:"retry_count"`
	RetryPause string   `query:"retry_pause" json:"retry_pause"`

	SourceTickers []string `query:"source_tickers" json:"source_tickers"`
	SourceFields  []string `query:"source_fields" json:"source_fields"`
	SourceFreq    string   `query:"source_freq" json:"source_freq"`
	SourceStart   string   `query:"source_start" json:"source_start"`
	SourceEnd     string   `query:"source_end" json:"source_end"`
}

// Params converts the HTTP request into QueryParams. Dates accept RFC3339,
// YYYY-MM-DD or unix seconds/milliseconds.
func (r *DataRequest) Params() (QueryParams, error) {
	p := QueryParams{
		Source:        r.Source,
		Tickers:       r.Tickers,
		Fields:        r.Fields,
		Frequency:     r.Freq,
		Category:      r.Category,
		MarketType:    r.MarketType,
		Exchange:      r.Exchange,
		QuoteCcy:      r.QuoteCcy,
		SourceTickers: r.SourceTickers,
		SourceFields:  r.SourceFields,
		SourceFreq:    r.SourceFreq,
		SourceStart:   r.SourceStart,
		SourceEnd:     r.SourceEnd,
	}
	if r.Start != "" {
		t, ok := util.ParseTime(r.Start)
		if !ok {
			return p, &ValidationError{Field: "start", Value: r.Start, Reason: "unparseable date"}
		}
		p.Start = &t
	}
	if r.End != "" {
		t, ok := util.ParseTime(r.End)
		if !ok {
			return p, &ValidationError{Field: "end", Value: r.End, Reason: "unparseable date"}
		}
		p.End = &t
	}
	if r.RetryCount != "" {
		n, err := strconv.Atoi(r.RetryCount)
		if err != nil || n > 20 {
			return p, &ValidationError{Field: "retry_count", Value: r.RetryCount, Reason: "must be an integer between 0 and 20"}
		}
		p.RetryCount = &n
	}
	if r.RetryPause != "" {
		d, err := time.ParseDuration(r.RetryPause)
		if err != nil {
			return p, &ValidationError{Field: "retry_pause", Value: r.RetryPause, Reason: "not a duration"}
		}
		p.RetryPause = &d
	}
	return p, nil
}

// DataResponse is the JSON shape of a GetData result.
type DataResponse struct {
	RunID            string                        `json:"run_id"`
	Vendor           Vendor                        `json:"vendor"`
	Complete         bool                          `json:"complete"`
	RowCount         int                           `json:"row_count"`
	Columns          []string                      `json:"columns"`
	Rows             *Table                        `json:"rows"`
	Failures         []Failure                     `json:"failures,omitempty"`
	Dropped          []*UnsupportedCapabilityError `json:"dropped,omitempty"`
	CoercionFailures int                           `json:"coercion_failures"`
	Truncated        []string                      `json:"truncated,omitempty"`
	Cancelled        bool                          `json:"cancelled,omitempty"`
}

// NewDataResponse flattens a Result for the wire.
func NewDataResponse(r *Result) DataResponse {
	return DataResponse{
		RunID:            r.RunID,
		Vendor:           r.Vendor,
		Complete:         r.Complete(),
		RowCount:         r.Table.Len(),
		Columns:          r.Table.Columns(),
		Rows:             r.Table,
		Failures:         r.Failures,
		Dropped:          r.Dropped,
		CoercionFailures: r.CoercionFailures,
		Truncated:        r.Truncated,
		Cancelled:        r.Cancelled,
	}
}
