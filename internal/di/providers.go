package di

import (
	"fmt"

	"DataPull/internal/domain/models"
	"DataPull/internal/domain/repository"
	"DataPull/internal/handler/api"
	internalrepo "DataPull/internal/repository"
	"DataPull/internal/usecase"
	"DataPull/internal/vendor"
	"DataPull/internal/vendor/ccxt"
	"DataPull/internal/vendor/coinmetrics"
	"DataPull/internal/vendor/warehouse"
	"DataPull/pkg/cache"
	pkgch "DataPull/pkg/clickhouse"
	"DataPull/pkg/config"
	pkghttp "DataPull/pkg/http"
	pkgkafka "DataPull/pkg/kafka"
	applogger "DataPull/pkg/logger"
	"DataPull/pkg/metrics"
	"DataPull/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

// ProvideKafkaProducer creates the producer that ships aggregated logs.
// It is nil when the log collector is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Log.Collector.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithAsync(true),
		pkgkafka.WithRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger creates the application logger and attaches the Kafka log
// collector when a producer is configured.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.Threshold,
			Topic:          cfg.Log.Collector.Topic,
			Publisher:      internalrepo.NewKafkaLogPublisher(producer),
		})
	}
	return l, nil
}

// ProvidePrometheusRegistry creates the registry served on /metrics.
func ProvidePrometheusRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvideMetrics creates the pipeline recorder, or a no-op when disabled.
func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return repository.NopMetrics{}
	}
	return metrics.NewWithRegistry(reg)
}

// ProvideCache creates the catalog cache backend.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if cfg.Catalog.Backend == "memory" {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Catalog.MemoryMaxSize)), nil
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	if cfg.Catalog.Backend == "layered" {
		return cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(cfg.Catalog.MemoryMaxSize),
			cache.WithLayeredMemoryTTL(cfg.Catalog.TTL),
		), nil
	}
	return rc, nil
}

// ProvideCatalogStore shares populated catalogs through the cache.
func ProvideCatalogStore(c cache.Service, cfg *config.Config) repository.CatalogStore {
	return internalrepo.NewCacheCatalogStore(c, cfg.Catalog.TTL, cfg.Catalog.RefreshLockTTL)
}

// ProvideClickHouseClient connects to the tick warehouse. It is nil when
// the warehouse vendor is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.Vendors.Warehouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideVendorRegistry builds a plugin for every enabled vendor.
func ProvideVendorRegistry(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (*vendor.Registry, error) {
	var plugins []repository.VendorPlugin
	v := cfg.Vendors
	maxPages := cfg.Pipeline.MaxPages

	if v.CoinMetrics.Enabled {
		cm := v.CoinMetrics
		tr := internalrepo.NewHTTPTransport(pkghttp.NewClient(pkghttp.WithTimeout(cm.Timeout)), cm.BaseURL, nil)
		tr.SetLogger(l)
		plugins = append(plugins, coinmetrics.New(coinmetrics.Config{
			APIKey:   cm.APIKey,
			PageSize: cm.PageSize,
			Policy: models.VendorPolicy{
				MinInterval: cm.MinInterval,
				PerSecond:   cm.PerSecond,
				Burst:       cm.Burst,
				MaxPageSize: cm.PageSize,
				MaxPages:    maxPages,
			},
		}, tr))
	}

	if v.CCXT.Enabled {
		cx := v.CCXT
		client := pkghttp.NewClient(pkghttp.WithTimeout(cx.Timeout))
		spot := internalrepo.NewHTTPTransport(client, cx.SpotURL, nil)
		spot.SetLogger(l)
		futures := internalrepo.NewHTTPTransport(client, cx.FuturesURL, nil)
		futures.SetLogger(l)
		plugins = append(plugins, ccxt.New(models.VendorPolicy{
			MinInterval: cx.MinInterval,
			PerSecond:   cx.PerSecond,
			Burst:       cx.Burst,
			MaxPageSize: cx.PageSize,
			MaxPages:    maxPages,
		}, ccxt.NewBinance(spot), ccxt.NewBinanceUSDM(futures)))
	}

	if v.Warehouse.Enabled {
		if ch == nil {
			return nil, fmt.Errorf("warehouse vendor needs a clickhouse client")
		}
		reader, err := internalrepo.NewCHTickReader(ch, v.Warehouse.Table)
		if err != nil {
			return nil, fmt.Errorf("warehouse reader: %w", err)
		}
		reader.SetLogger(l)
		plugins = append(plugins, warehouse.New(warehouse.Config{
			PageSize: v.Warehouse.PageSize,
			Policy:   models.VendorPolicy{MaxPages: maxPages},
		}, reader))
	}

	return vendor.NewRegistry(plugins...), nil
}

// ProvideDataService creates the retrieval pipeline.
func ProvideDataService(
	registry *vendor.Registry,
	store repository.CatalogStore,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.DataService {
	return usecase.NewDataService(registry,
		usecase.WithLogger(l),
		usecase.WithMetrics(m),
		usecase.WithCatalogStore(store),
		usecase.WithMaxConcurrency(cfg.Pipeline.MaxConcurrency),
		usecase.WithMaxBackoff(cfg.Pipeline.BackoffMax),
	)
}

// ProvideHTTPHandler creates the HTTP routes.
func ProvideHTTPHandler(l *applogger.Logger, svc *usecase.DataService, cfg *config.Config) pkghttp.Handler {
	return api.NewDataEchoHandler(l, svc, cfg.Pipeline.QueryTimeout)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler pkghttp.Handler,
	reg *prometheus.Registry,
	c cache.Service,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
) *server.App {
	closers := []server.Closer{}
	if producer != nil {
		closers = append(closers, server.Closer{Name: "kafka", Close: producer.Close})
	}
	if ch != nil {
		closers = append(closers, server.Closer{Name: "clickhouse", Close: ch.Close})
	}
	if cl, ok := c.(interface{ Close() error }); ok {
		closers = append(closers, server.Closer{Name: "cache", Close: cl.Close})
	}
	return server.New(cfg, l, handler, reg, closers...)
}
