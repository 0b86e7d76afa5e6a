//go:build wireinject
// +build wireinject

package di

import (
	"DataPull/pkg/config"
	"DataPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideKafkaProducer,
		ProvideLogger,
		ProvidePrometheusRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideCatalogStore,
		ProvideClickHouseClient,

		// Vendors and use cases
		ProvideVendorRegistry,
		ProvideDataService,

		// Application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
