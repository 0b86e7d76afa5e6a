// Package repository declares the ports the pipeline depends on.
package repository

//go:generate mockgen -destination=mocks/mock_transport.go -package=mocks DataPull/internal/domain/repository Transport,CapabilitySource

import (
	"context"

	"DataPull/internal/domain/models"
)

// Transport performs one vendor call. Implementations return a
// *models.TransportError for failed calls so the fetcher can classify them.
type Transport interface {
	Send(ctx context.Context, req models.TransportRequest) (*models.RawResponse, error)
}

// CapabilitySource fetches what a vendor can serve.
type CapabilitySource interface {
	FetchCatalog(ctx context.Context) (*models.Catalog, error)
}

// CatalogStore persists catalogs between processes.
type CatalogStore interface {
	// Load returns (nil, nil) when nothing is stored for vendor.
	Load(ctx context.Context, vendor models.Vendor) (*models.Catalog, error)
	Save(ctx context.Context, cat *models.Catalog) error
	// Lock takes a short-lived refresh lock. ok is false when another
	// holder has it.
	Lock(ctx context.Context, vendor models.Vendor) (ok bool, release func(), err error)
}

// ParamConverter translates a canonical query into vendor sub-requests.
// It must be pure: no I/O, same output for the same inputs.
type ParamConverter interface {
	Convert(q *models.Query, cat *models.Catalog) (*models.Plan, error)
}

// PageCodec builds the request for a cursor position and decodes the
// response into a page.
type PageCodec interface {
	Request(sub *models.SubRequest, cur models.Cursor) (models.TransportRequest, error)
	Decode(sub *models.SubRequest, resp *models.RawResponse) (*models.Page, error)
}

// VendorPlugin bundles everything the pipeline needs from one vendor.
type VendorPlugin interface {
	Vendor() models.Vendor
	Converter() ParamConverter
	Codec() PageCodec
	Transport() Transport
	CapabilitySource() CapabilitySource
	Schema(endpoint models.Endpoint) (models.Schema, error)
	Policy() models.VendorPolicy
}

// Metrics is implemented by pkg/metrics.Recorder.
type Metrics interface {
	RecordPage(vendor, endpoint string)
	RecordRetry(vendor string)
	RecordError(kind string)
	RecordCoercionFailures(vendor string, n int)
	RecordRows(vendor string, n int)
	RecordLatency(op string, seconds float64)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) RecordPage(string, string)          {}
func (NopMetrics) RecordRetry(string)                 {}
func (NopMetrics) RecordError(string)                 {}
func (NopMetrics) RecordCoercionFailures(string, int) {}
func (NopMetrics) RecordRows(string, int)             {}
func (NopMetrics) RecordLatency(string, float64)      {}
