package ratelimit

import (
	"context"

	"DataPull/internal/domain/models"

	"golang.org/x/time/rate"
)

// Gate is waited on before every vendor call, retries included.
type Gate interface {
	Wait(ctx context.Context) error
}

// VendorGate combines the vendor's shared token bucket with a pacer that
// spaces consecutive calls by at least the vendor's minimum interval.
type VendorGate struct {
	limiter  *Limiter
	key      string
	capacity float64
	refill   float64
	pacer    *rate.Limiter
}

// NewVendorGate builds the gate for one vendor. All workers of that vendor
// must share the returned gate.
func NewVendorGate(l *Limiter, vendor models.Vendor, p models.VendorPolicy) *VendorGate {
	g := &VendorGate{
		limiter:  l,
		key:      string(vendor),
		capacity: float64(p.Burst),
		refill:   p.PerSecond,
	}
	if g.capacity < 1 {
		g.capacity = 1
	}
	if p.MinInterval > 0 {
		g.pacer = rate.NewLimiter(rate.Every(p.MinInterval), 1)
	}
	return g
}

func (g *VendorGate) Wait(ctx context.Context) error {
	if g.limiter != nil && g.refill > 0 {
		if err := g.limiter.Wait(ctx, g.key, g.capacity, g.refill); err != nil {
			return err
		}
	}
	if g.pacer != nil {
		return g.pacer.Wait(ctx)
	}
	return ctx.Err()
}

// Unlimited is a gate that never blocks.
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
