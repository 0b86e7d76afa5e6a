package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter is a set of token buckets keyed by vendor. Buckets are created on
// first use with the capacity and rate passed by the caller.
type Limiter struct {
	mu  sync.Mutex
	m   map[string]*bucket
	now func() time.Time
}

func New() *Limiter { return &Limiter{m: make(map[string]*bucket), now: time.Now} }

// Wait consumes one token for key, blocking until it is available or ctx is
// done. A cancelled wait returns its token.
func (l *Limiter) Wait(ctx context.Context, key string, capacity, refillPerSec float64) error {
	if refillPerSec <= 0 {
		return ctx.Err()
	}
	delay := l.reserve(key, capacity, refillPerSec)
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		if b, ok := l.m[key]; ok {
			b.tokens++
		}
		l.mu.Unlock()
		return ctx.Err()
	}
}

// reserve takes a token, possibly going into debt, and returns how long the
// caller has to wait for the debt to be repaid.
func (l *Limiter) reserve(key string, capacity, refillPerSec float64) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.refill(key, capacity, refillPerSec)
	b.tokens--
	if b.tokens >= 0 {
		return 0
	}
	return time.Duration(-b.tokens / b.refillRate * float64(time.Second))
}

func (l *Limiter) refill(key string, capacity, refillPerSec float64) *bucket {
	now := l.now()
	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.m[key] = b
		return b
	}
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	return b
}
