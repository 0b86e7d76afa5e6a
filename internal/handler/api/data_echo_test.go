package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"DataPull/internal/domain/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeData struct {
	params    models.QueryParams
	result    *models.Result
	err       error
	refreshed models.Vendor
	deadline  bool
}

func (f *fakeData) Query(ctx context.Context, p models.QueryParams) (*models.Result, error) {
	f.params = p
	_, f.deadline = ctx.Deadline()
	return f.result, f.err
}

func (f *fakeData) Catalog(_ context.Context, v models.Vendor) (*models.Catalog, error) {
	if v == models.VendorWarehouse {
		return nil, errors.New("vendor not configured: warehouse")
	}
	cat := models.NewCatalog(v)
	cat.Tickers.Add("BTC", "ETH")
	return cat, nil
}

func (f *fakeData) RefreshCatalog(ctx context.Context, v models.Vendor) (*models.Catalog, error) {
	f.refreshed = v
	return f.Catalog(ctx, v)
}

func (f *fakeData) Vendors() []models.Vendor { return []models.Vendor{models.VendorCoinMetrics} }

func serve(t *testing.T, data DataUsecase, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	NewDataEchoHandler(nil, data, time.Minute).RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func sampleResult() *models.Result {
	tbl := models.NewTable()
	tbl.Insert(models.Row{
		Timestamp: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Ticker:    "BTC",
		Values:    map[string]models.Value{"close": models.Number(7200)},
	})
	return &models.Result{RunID: "run-1", Vendor: models.VendorCoinMetrics, Table: tbl}
}

func TestDataBindsQueryParams(t *testing.T) {
	data := &fakeData{result: sampleResult()}
	rec, body := serve(t, data, http.MethodGet,
		"/api/data?tickers=btc,eth&fields=close&freq=d&start=2020-01-01&end=2020-01-03&retry_count=2&retry_pause=50ms")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "coinmetrics", data.params.Source)
	assert.Equal(t, []string{"btc,eth"}, data.params.Tickers)
	require.NotNil(t, data.params.Start)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), *data.params.Start)
	require.NotNil(t, data.params.RetryCount)
	assert.Equal(t, 2, *data.params.RetryCount)
	require.NotNil(t, data.params.RetryPause)
	assert.Equal(t, 50*time.Millisecond, *data.params.RetryPause)
	assert.True(t, data.deadline)

	payload := body["data"].(map[string]any)
	assert.Equal(t, "run-1", payload["run_id"])
	assert.Equal(t, true, payload["complete"])
	assert.EqualValues(t, 1, payload["row_count"])
}

func TestDataRejectsBadRequests(t *testing.T) {
	cases := []struct {
		name   string
		target string
	}{
		{"missing tickers", "/api/data?fields=close"},
		{"unknown source", "/api/data?tickers=btc&source=bloomberg"},
		{"bad date", "/api/data?tickers=btc&start=yesterday"},
		{"bad retry count", "/api/data?tickers=btc&retry_count=many"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := &fakeData{}
			rec, _ := serve(t, data, http.MethodGet, tc.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, data.params.Tickers)
		})
	}
}

func TestDataMapsPipelineErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &models.ValidationError{Field: "freq", Value: "x", Reason: "not a known frequency"}, http.StatusBadRequest},
		{"unsupported", &models.UnsupportedCapabilityError{Kind: models.CapabilityFrequency, Value: "tick", Vendor: models.VendorCCXT}, http.StatusBadRequest},
		{"unknown vendor", models.ErrUnknownVendor, http.StatusNotFound},
		{"empty", &models.EmptyResultError{Failures: []models.Failure{{RequestID: "a", Reason: "boom"}}}, http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := serve(t, &fakeData{err: tc.err}, http.MethodGet, "/api/data?tickers=btc")
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestPartialResultIsOK(t *testing.T) {
	res := sampleResult()
	res.Failures = []models.Failure{{RequestID: "coinmetrics:funding:btc", Kind: "fetch_fatal", Reason: "400"}}
	rec, body := serve(t, &fakeData{result: res}, http.MethodGet, "/api/data?tickers=btc")

	require.Equal(t, http.StatusOK, rec.Code)
	payload := body["data"].(map[string]any)
	assert.Equal(t, false, payload["complete"])
	assert.Len(t, payload["failures"], 1)
}

func TestCatalogEndpoints(t *testing.T) {
	data := &fakeData{}
	rec, body := serve(t, data, http.MethodGet, "/api/catalog/coinmetrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["data"].(map[string]any)["tickers"])

	rec, _ = serve(t, data, http.MethodPost, "/api/catalog/ccxt/refresh")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.VendorCCXT, data.refreshed)

	rec, _ = serve(t, data, http.MethodGet, "/api/catalog/bloomberg")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(t, data, http.MethodGet, "/api/catalog/warehouse")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
