package repository

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"DataPull/internal/domain/models"
	pkghttp "DataPull/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransportSendsPathAndParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/timeseries/market-candles", r.URL.Path)
		assert.Equal(t, "binance-btc-usdt-spot", r.URL.Query().Get("markets"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(pkghttp.NewClient(), srv.URL+"/v4/", map[string]string{"X-Api-Key": "secret"})
	resp, err := tr.Send(context.Background(), models.TransportRequest{
		Path:   "/timeseries/market-candles",
		Params: map[string]string{"markets": "binance-btc-usdt-spot"},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.JSONEq(t, `{"data":[]}`, string(resp.Body))
}

func TestHTTPTransportFollowsVendorURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("next_page_token"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(pkghttp.NewClient(), srv.URL+"/v4/", nil)
	_, err := tr.Send(context.Background(), models.TransportRequest{
		URL:    srv.URL + "/page?next_page_token=tok",
		Params: map[string]string{"ignored": "1"},
	})
	require.NoError(t, err)
}

func TestHTTPTransportRejectsForeignPageURL(t *testing.T) {
	var foreignHits atomic.Int32
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		foreignHits.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer foreign.Close()
	home := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer home.Close()

	tr := NewHTTPTransport(pkghttp.NewClient(), home.URL, map[string]string{"X-Api-Key": "secret"})
	tests := []struct {
		name string
		url  string
	}{
		{name: "other host", url: foreign.URL + "/page?next_page_token=tok"},
		{name: "other scheme", url: strings.Replace(home.URL, "http://", "https://", 1) + "/page"},
		{name: "relative", url: "/page?next_page_token=tok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Send(context.Background(), models.TransportRequest{URL: tt.url})
			var te *models.TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, models.TransportMalformed, te.Kind)
			assert.False(t, te.Retryable())
		})
	}
	assert.Zero(t, foreignHits.Load(), "credentials never reach another host")
}

func TestHTTPTransportClassifiesStatus(t *testing.T) {
	tests := []struct {
		status    int
		kind      models.TransportErrorKind
		retryable bool
	}{
		{http.StatusTooManyRequests, models.TransportRateLimited, true},
		{http.StatusServiceUnavailable, models.TransportServer, true},
		{http.StatusNotFound, models.TransportNotFound, false},
		{http.StatusUnauthorized, models.TransportAuth, false},
		{http.StatusBadRequest, models.TransportClient, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			tr := NewHTTPTransport(pkghttp.NewClient(), srv.URL, nil)
			_, err := tr.Send(context.Background(), models.TransportRequest{Path: "x"})

			var te *models.TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.kind, te.Kind)
			assert.Equal(t, tt.status, te.Status)
			assert.Equal(t, tt.retryable, te.Retryable())
		})
	}
}

func TestHTTPTransportClassifiesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(pkghttp.NewClient(pkghttp.WithTimeout(20*time.Millisecond)), srv.URL, nil)
	_, err := tr.Send(context.Background(), models.TransportRequest{Path: "slow"})

	var te *models.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, models.TransportTimeout, te.Kind)
	assert.True(t, te.Retryable())
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "https://x/y?api_key=%2A%2A%2A&b=1", redact("https://x/y?api_key=abc&b=1"))
	assert.Equal(t, "https://x/y", redact("https://x/y"))
}
