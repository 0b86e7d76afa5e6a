package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is checks across the pipeline.
var (
	ErrValidation     = errors.New("validation failed")
	ErrUnsupported    = errors.New("unsupported capability")
	ErrTransientFetch = errors.New("transient fetch failure")
	ErrFatalFetch     = errors.New("fatal fetch failure")
	ErrNormalize      = errors.New("normalize failed")
	ErrEmptyResult    = errors.New("empty result")
	ErrUnknownVendor  = errors.New("vendor not configured")
)

// ValidationError reports a query that was rejected at construction.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UnsupportedCapabilityError reports a ticker, field, frequency or market
// the vendor cannot serve. Converters record these instead of failing.
type UnsupportedCapabilityError struct {
	Kind   CapabilityKind `json:"kind"`
	Value  string         `json:"value"`
	Vendor Vendor         `json:"vendor"`
	Reason string         `json:"reason,omitempty"`
}

func (e *UnsupportedCapabilityError) Error() string {
	msg := fmt.Sprintf("%s does not support %s %q", e.Vendor, e.Kind, e.Value)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *UnsupportedCapabilityError) Is(target error) bool { return target == ErrUnsupported }

// TransportErrorKind classifies a failed vendor call.
type TransportErrorKind string

const (
	TransportTimeout     TransportErrorKind = "timeout"
	TransportNetwork     TransportErrorKind = "network"
	TransportRateLimited TransportErrorKind = "rate_limited"
	TransportServer      TransportErrorKind = "server"
	TransportClient      TransportErrorKind = "client"
	TransportNotFound    TransportErrorKind = "not_found"
	TransportAuth        TransportErrorKind = "auth"
	TransportMalformed   TransportErrorKind = "malformed"
)

// TransportError is what Transport implementations return for a failed call.
type TransportError struct {
	Kind   TransportErrorKind
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("transport %s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether the same call may succeed if repeated.
func (e *TransportError) Retryable() bool {
	switch e.Kind {
	case TransportTimeout, TransportNetwork, TransportRateLimited, TransportServer:
		return true
	}
	return false
}

// ClassifyStatus maps an HTTP status to a transport error kind.
func ClassifyStatus(status int) TransportErrorKind {
	switch {
	case status == 429:
		return TransportRateLimited
	case status == 401 || status == 403:
		return TransportAuth
	case status == 404:
		return TransportNotFound
	case status == 408:
		return TransportTimeout
	case status >= 500:
		return TransportServer
	default:
		return TransportClient
	}
}

// FetchError reports a sub-request that could not be fetched. Fatal errors
// are final; transient ones were still retryable when the fetch stopped.
type FetchError struct {
	Vendor   Vendor
	Endpoint Endpoint
	Request  string
	Attempts int
	Status   int
	Fatal    bool
	Err      error
}

func (e *FetchError) Error() string {
	kind := "transient"
	if e.Fatal {
		kind = "fatal"
	}
	return fmt.Sprintf("%s fetch %s/%s failed after %d attempt(s): %v", kind, e.Vendor, e.Endpoint, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool {
	if e.Fatal {
		return target == ErrFatalFetch
	}
	return target == ErrTransientFetch
}

// NormalizeError reports a raw batch that could not be turned into rows.
type NormalizeError struct {
	Request string
	Reason  string
	Err     error
}

func (e *NormalizeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("normalize %s: %s: %v", e.Request, e.Reason, e.Err)
	}
	return fmt.Sprintf("normalize %s: %s", e.Request, e.Reason)
}

func (e *NormalizeError) Unwrap() error { return e.Err }

func (e *NormalizeError) Is(target error) bool { return target == ErrNormalize }

// EmptyResultError is returned when no sub-request produced a row.
type EmptyResultError struct {
	Failures []Failure
	Dropped  []*UnsupportedCapabilityError
	Err      error
}

func (e *EmptyResultError) Error() string {
	reasons := make([]string, 0, len(e.Failures)+len(e.Dropped)+1)
	for _, f := range e.Failures {
		reasons = append(reasons, f.Reason)
	}
	for _, d := range e.Dropped {
		reasons = append(reasons, d.Error())
	}
	if e.Err != nil {
		reasons = append(reasons, e.Err.Error())
	}
	if len(reasons) == 0 {
		return "no data returned"
	}
	return "no data returned: " + strings.Join(reasons, "; ")
}

func (e *EmptyResultError) Unwrap() error { return e.Err }

func (e *EmptyResultError) Is(target error) bool { return target == ErrEmptyResult }

// ErrorKind returns a short label for err used in metrics and responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	case errors.Is(err, ErrFatalFetch):
		return "fetch_fatal"
	case errors.Is(err, ErrTransientFetch):
		return "fetch_transient"
	case errors.Is(err, ErrNormalize):
		return "normalize"
	case errors.Is(err, ErrEmptyResult):
		return "empty"
	default:
		return "internal"
	}
}
