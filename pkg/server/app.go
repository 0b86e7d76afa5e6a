package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"DataPull/pkg/config"
	xhttp "DataPull/pkg/http"
	applogger "DataPull/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

// Closer releases an infrastructure client on shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// App encapsulates the service lifecycle: HTTP server up, wait for a
// signal, then shut everything down in reverse order.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	handler    xhttp.Handler
	registry   *prometheus.Registry
	closers    []Closer
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, handler xhttp.Handler, reg *prometheus.Registry, closers ...Closer) *App {
	return &App{
		cfg:      cfg,
		logger:   l,
		handler:  handler,
		registry: reg,
		closers:  closers,
	}
}

// Server builds the HTTP server on first use. Tests drive it through Echo().
func (a *App) Server() *xhttp.Server {
	if a.httpServer == nil {
		a.httpServer = xhttp.NewServer(a.handler,
			xhttp.WithHost(a.cfg.Server.Host),
			xhttp.WithPort(a.cfg.Server.Port),
			xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
			xhttp.WithSlowThreshold(a.cfg.Server.SlowThreshold),
			xhttp.WithLogger(a.logger),
			xhttp.WithRegistry(a.registry),
		)
	}
	return a.httpServer
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	if err := a.Server().Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Shutdown stops the HTTP server, then closes clients last-opened first.
func (a *App) Shutdown(ctx context.Context) error {
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.logger.Error("http shutdown error", applogger.Error(err))
		}
	}
	// flush collected logs while the producer is still open
	a.logger.RemoveCollector()
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.Close(); err != nil {
			a.logger.Warn("close error", applogger.String("client", c.Name), applogger.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	return nil
}
