package models

import (
	"sort"
	"strings"
	"time"
)

// Record is one raw vendor record before normalization.
type Record map[string]any

// SubRequest is one vendor call sequence produced by a ParamConverter. It
// is a pure description: the fetcher turns it into pages through the
// vendor's PageCodec.
type SubRequest struct {
	ID       string
	Vendor   Vendor
	Endpoint Endpoint
	// Path is the vendor resource: URL path, SDK method or table.
	Path string
	// Tickers are the canonical tickers this request answers for.
	Tickers []string
	// TickerByID maps vendor identifiers (market, asset, symbol) back to tickers.
	TickerByID map[string]string
	// Fields are the canonical fields this request answers for.
	Fields []string
	// FieldMap maps vendor field names to canonical field names.
	FieldMap map[string]string
	// Frequency is the canonical frequency the rows are resampled to.
	Frequency Frequency
	// Params are the static vendor parameters sent with every page.
	Params map[string]string
	// Start and End bound the request; End is zero when open.
	Start time.Time
	End   time.Time
	// Seed is the vendor-encoded cursor of the first page.
	Seed string
	// PageSize is the vendor page size, zero when the vendor decides.
	PageSize int
}

// Ticker returns the single ticker of a per-ticker request, or "".
func (s *SubRequest) Ticker() string {
	if len(s.Tickers) == 1 {
		return s.Tickers[0]
	}
	return ""
}

// Param returns a copy of Params with extra merged over it.
func (s *SubRequest) Param(extra map[string]string) map[string]string {
	out := make(map[string]string, len(s.Params)+len(extra))
	for k, v := range s.Params {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Describe is a short human-readable label for logs.
func (s *SubRequest) Describe() string {
	return string(s.Vendor) + "/" + string(s.Endpoint) + "[" + strings.Join(s.Tickers, ",") + "]"
}

// Cursor is the paginator position. Position is vendor encoded: a page
// token, a URL or a timestamp.
type Cursor struct {
	Position  string
	Exhausted bool
}

// TransportRequest is one vendor call.
type TransportRequest struct {
	Endpoint Endpoint
	Path     string
	// URL, when set, replaces Path and Params (vendor-issued next page URLs).
	URL     string
	Params  map[string]string
	Headers map[string]string
}

// RawResponse is what a Transport returns for a successful call. HTTP
// transports fill Body; SDK-style transports fill Records directly.
type RawResponse struct {
	Status  int
	Body    []byte
	Records []Record
}

// Page is one decoded vendor response.
type Page struct {
	Records []Record
	// NextToken is an explicit continuation given by the vendor.
	NextToken string
	// NextOffset is the time-offset continuation (last record plus one unit).
	NextOffset string
	// PastEnd is set when the newest record reached the end boundary.
	PastEnd bool
	// Exhausted is set when the vendor said there is no more data.
	Exhausted bool
}

// RawBatch is every record fetched for one sub-request.
type RawBatch struct {
	Request   *SubRequest
	Records   []Record
	Pages     int
	Attempts  int
	Truncated bool
}

// Plan is a ParamConverter's output: the sub-requests to run and the
// capabilities that were dropped while building them.
type Plan struct {
	SubRequests []*SubRequest
	Dropped     []*UnsupportedCapabilityError
}

// Drop records an unsupported capability once.
func (p *Plan) Drop(vendor Vendor, kind CapabilityKind, value, reason string) {
	for _, d := range p.Dropped {
		if d.Kind == kind && d.Value == value {
			return
		}
	}
	p.Dropped = append(p.Dropped, &UnsupportedCapabilityError{Kind: kind, Value: value, Vendor: vendor, Reason: reason})
}

// Add appends a sub-request.
func (p *Plan) Add(s *SubRequest) {
	p.SubRequests = append(p.SubRequests, s)
}

// Empty reports whether nothing can be fetched.
func (p *Plan) Empty() bool { return len(p.SubRequests) == 0 }

// SortedKeys returns the keys of m in order. Converters use it to keep
// their output deterministic.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
