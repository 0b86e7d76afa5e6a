package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"DataPull/pkg/config"
	applogger "DataPull/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
}

func TestAppServesHandlerHealthAndMetrics(t *testing.T) {
	app := New(config.Default(), applogger.Nop(), pingHandler{}, prometheus.NewRegistry())
	e := app.Server().Echo()

	for _, path := range []string{"/api/ping", "/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestShutdownClosesInReverseOrder(t *testing.T) {
	var order []string
	closer := func(name string, err error) Closer {
		return Closer{Name: name, Close: func() error {
			order = append(order, name)
			return err
		}}
	}
	app := New(config.Default(), applogger.Nop(), nil, prometheus.NewRegistry(),
		closer("kafka", nil),
		closer("clickhouse", errors.New("already closed")),
		closer("cache", nil),
	)

	assert.NoError(t, app.Shutdown(context.Background()))
	assert.Equal(t, []string{"cache", "clickhouse", "kafka"}, order)
}
