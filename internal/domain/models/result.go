package models

// Failure records a sub-request that produced no rows.
type Failure struct {
	RequestID string   `json:"request_id"`
	Endpoint  Endpoint `json:"endpoint"`
	Tickers   []string `json:"tickers"`
	Fields    []string `json:"fields"`
	Kind      string   `json:"kind"`
	Reason    string   `json:"reason"`
	Err       error    `json:"-"`
}

// Result is the outcome of a GetData call. A result with failures, dropped
// capabilities or a cancelled run is partial; check Complete.
type Result struct {
	RunID            string                        `json:"run_id"`
	Vendor           Vendor                        `json:"vendor"`
	Table            *Table                        `json:"rows"`
	Failures         []Failure                     `json:"failures,omitempty"`
	Dropped          []*UnsupportedCapabilityError `json:"dropped,omitempty"`
	CoercionFailures int                           `json:"coercion_failures"`
	Truncated        []string                      `json:"truncated,omitempty"`
	Cancelled        bool                          `json:"cancelled,omitempty"`
}

// Complete reports whether every requested piece of data was fetched.
func (r *Result) Complete() bool {
	return len(r.Failures) == 0 && len(r.Dropped) == 0 && len(r.Truncated) == 0 && !r.Cancelled
}
