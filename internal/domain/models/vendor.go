package models

import (
	"strings"
	"time"
)

// Vendor identifies a data vendor adapter. The set is closed: adding a
// vendor means adding a constant here and a plugin in internal/vendor.
type Vendor string

const (
	VendorCoinMetrics Vendor = "coinmetrics"
	VendorCCXT        Vendor = "ccxt"
	VendorWarehouse   Vendor = "warehouse"
)

var vendors = []Vendor{VendorCoinMetrics, VendorCCXT, VendorWarehouse}

// Vendors lists every known vendor.
func Vendors() []Vendor {
	out := make([]Vendor, len(vendors))
	copy(out, vendors)
	return out
}

// ParseVendor resolves a vendor name case-insensitively.
func ParseVendor(s string) (Vendor, error) {
	v := Vendor(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range vendors {
		if v == known {
			return v, nil
		}
	}
	return "", &ValidationError{Field: "source", Value: s, Reason: "unknown vendor"}
}

func (v Vendor) String() string { return string(v) }

// VendorPolicy carries the per-vendor fetch limits a plugin declares.
type VendorPolicy struct {
	// MinInterval is the minimum delay between two calls to the vendor.
	MinInterval time.Duration
	// PerSecond and Burst size the token bucket shared by all workers.
	PerSecond float64
	Burst     int
	// MaxPageSize is the largest page the vendor returns.
	MaxPageSize int
	// MaxPages bounds pagination per sub-request. Zero means the pipeline default.
	MaxPages int
}
