package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"DataPull/internal/domain/models"
	pkghttp "DataPull/pkg/http"
	applogger "DataPull/pkg/logger"
)

// HTTPTransport sends vendor GET calls over pkg/http and classifies failures
// into *models.TransportError.
type HTTPTransport struct {
	client  *pkghttp.Client
	baseURL string
	headers map[string]string
	l       *applogger.Logger
}

func NewHTTPTransport(client *pkghttp.Client, baseURL string, headers map[string]string) *HTTPTransport {
	return &HTTPTransport{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: headers,
		l:       applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (t *HTTPTransport) SetLogger(l *applogger.Logger) { t.l = l }

func (t *HTTPTransport) Send(ctx context.Context, req models.TransportRequest) (*models.RawResponse, error) {
	// vendor supplied page urls carry our credential headers, so they must
	// stay on the configured origin
	if req.URL != "" && !sameOrigin(t.baseURL, req.URL) {
		return nil, &models.TransportError{
			Kind: models.TransportMalformed,
			Err:  fmt.Errorf("page url %s is outside %s", redact(req.URL), t.baseURL),
		}
	}
	opts := &pkghttp.RequestOptions{
		Method:  pkghttp.MethodGet,
		URL:     req.URL,
		Headers: t.mergeHeaders(req.Headers),
	}
	if opts.URL == "" {
		opts.URL = t.baseURL + "/" + strings.TrimLeft(req.Path, "/")
		opts.QueryParams = make(map[string][]string, len(req.Params))
		for k, v := range req.Params {
			opts.QueryParams[k] = []string{v}
		}
	}

	resp, err := t.client.Do(ctx, opts)
	if err != nil {
		te := classify(ctx, err)
		t.l.Debug("vendor call failed",
			applogger.String("endpoint", string(req.Endpoint)),
			applogger.String("url", redact(opts.URL)),
			applogger.String("kind", string(te.Kind)),
			applogger.Int("status", te.Status),
		)
		return nil, te
	}
	return &models.RawResponse{Status: resp.StatusCode, Body: resp.Body}, nil
}

func (t *HTTPTransport) mergeHeaders(extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return t.headers
	}
	out := make(map[string]string, len(t.headers)+len(extra))
	for k, v := range t.headers {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func sameOrigin(base, raw string) bool {
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(b.Scheme, u.Scheme) && strings.EqualFold(b.Host, u.Host)
}

// classify maps a pkg/http error onto the transport error taxonomy.
func classify(ctx context.Context, err error) *models.TransportError {
	var se *pkghttp.StatusError
	if errors.As(err, &se) {
		return &models.TransportError{Kind: models.ClassifyStatus(se.StatusCode), Status: se.StatusCode, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &models.TransportError{Kind: models.TransportTimeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &models.TransportError{Kind: models.TransportTimeout, Err: err}
	}
	if ctx.Err() != nil {
		return &models.TransportError{Kind: models.TransportNetwork, Err: ctx.Err()}
	}
	return &models.TransportError{Kind: models.TransportNetwork, Err: err}
}

// redact strips query parameters that carry credentials.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	for _, k := range []string{"api_key", "apikey", "token"} {
		if q.Has(k) {
			q.Set(k, "***")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
