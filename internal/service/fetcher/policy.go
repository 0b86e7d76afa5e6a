package fetcher

import (
	"time"

	"DataPull/internal/domain/models"
)

// Policy bounds one sub-request's fetch.
type Policy struct {
	// Attempts is the total number of tries per page, first try included.
	// Zero is treated as one.
	Attempts int
	// BaseDelay is the first backoff; each retry doubles it.
	BaseDelay time.Duration
	// MaxDelay caps a single backoff, jitter included.
	MaxDelay time.Duration
	// MaxPages stops pagination of runaway cursors. Zero means the
	// fetcher default.
	MaxPages int
}

// PolicyFor derives the fetch policy from a query and the vendor's limits.
func PolicyFor(q *models.Query, vp models.VendorPolicy, maxDelay time.Duration) Policy {
	return Policy{
		Attempts:  q.RetryCount(),
		BaseDelay: q.RetryPause(),
		MaxDelay:  maxDelay,
		MaxPages:  vp.MaxPages,
	}
}

func (p Policy) normalized(defaultMaxPages int) Policy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.BaseDelay > p.MaxDelay {
		p.BaseDelay = p.MaxDelay
	}
	if p.MaxPages <= 0 {
		p.MaxPages = defaultMaxPages
	}
	return p
}
