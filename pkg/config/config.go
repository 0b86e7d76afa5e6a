package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"5s"`
	} `yaml:"server"`
	Log struct {
		Level     string `yaml:"level" default:"info"`
		Format    string `yaml:"format" default:"json"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled   bool          `yaml:"enabled"`
			Topic     string        `yaml:"topic" default:"datapull.logs"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
	Pipeline struct {
		MaxConcurrency int           `yaml:"max_concurrency" default:"4"`
		MaxPages       int           `yaml:"max_pages" default:"1000"`
		QueryTimeout   time.Duration `yaml:"query_timeout" default:"10m"`
		BackoffMax     time.Duration `yaml:"backoff_max" default:"30s"`
	} `yaml:"pipeline"`
	Catalog struct {
		Backend        string        `yaml:"backend" default:"memory"`
		TTL            time.Duration `yaml:"ttl" default:"24h"`
		RefreshLockTTL time.Duration `yaml:"refresh_lock_ttl" default:"2m"`
		MemoryMaxSize  int           `yaml:"memory_max_size" default:"64"`
	} `yaml:"catalog"`
	Redis struct {
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"datapull"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		RequiredAcks int           `yaml:"required_acks" default:"1"`
		Compression  string        `yaml:"compression" default:"snappy"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"500ms"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"default"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Vendors struct {
		CoinMetrics struct {
			Enabled     bool          `yaml:"enabled"`
			BaseURL     string        `yaml:"base_url" default:"https://community-api.coinmetrics.io/v4"`
			APIKey      string        `yaml:"api_key"`
			Timeout     time.Duration `yaml:"timeout" default:"30s"`
			MinInterval time.Duration `yaml:"min_interval" default:"600ms"`
			Burst       int           `yaml:"burst" default:"10"`
			PerSecond   float64       `yaml:"per_second" default:"1.6"`
			PageSize    int           `yaml:"page_size" default:"10000"`
		} `yaml:"coinmetrics"`
		CCXT struct {
			Enabled     bool          `yaml:"enabled"`
			SpotURL     string        `yaml:"spot_url" default:"https://api.binance.com"`
			FuturesURL  string        `yaml:"futures_url" default:"https://fapi.binance.com"`
			Timeout     time.Duration `yaml:"timeout" default:"30s"`
			MinInterval time.Duration `yaml:"min_interval" default:"50ms"`
			Burst       int           `yaml:"burst" default:"20"`
			PerSecond   float64       `yaml:"per_second" default:"20"`
			PageSize    int           `yaml:"page_size" default:"1000"`
		} `yaml:"ccxt"`
		Warehouse struct {
			Enabled  bool   `yaml:"enabled"`
			Table    string `yaml:"table" default:"ticks"`
			PageSize int    `yaml:"page_size" default:"5000"`
		} `yaml:"warehouse"`
	} `yaml:"vendors"`
}

// Default returns a configuration holding only default values.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults for omitted keys and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("COINMETRICS_API_KEY"); v != "" {
		c.Vendors.CoinMetrics.APIKey = v
	}
	if v := getenv("COINMETRICS_BASE_URL"); v != "" {
		c.Vendors.CoinMetrics.BaseURL = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, err := net.SplitHostPort(v)
		if err != nil {
			return fmt.Errorf("REDIS_ADDR: %w", err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("REDIS_ADDR port: %w", err)
		}
		c.Redis.Host, c.Redis.Port = host, p
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Pipeline.MaxConcurrency < 1 {
		return fmt.Errorf("pipeline.max_concurrency must be at least 1")
	}
	if c.Pipeline.MaxPages < 1 {
		return fmt.Errorf("pipeline.max_pages must be at least 1")
	}
	switch c.Catalog.Backend {
	case "memory":
	case "redis", "layered":
		if c.Redis.Host == "" {
			return fmt.Errorf("redis.host is required for catalog.backend '%s'", c.Catalog.Backend)
		}
	default:
		return fmt.Errorf("catalog.backend must be 'memory', 'redis' or 'layered', got '%s'", c.Catalog.Backend)
	}
	if c.Log.Collector.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when log.collector is enabled")
	}

	v := c.Vendors
	if !v.CoinMetrics.Enabled && !v.CCXT.Enabled && !v.Warehouse.Enabled {
		return fmt.Errorf("at least one vendor must be enabled")
	}
	if v.CoinMetrics.Enabled && v.CoinMetrics.BaseURL == "" {
		return fmt.Errorf("vendors.coinmetrics.base_url is required")
	}
	if v.CCXT.Enabled && (v.CCXT.SpotURL == "" || v.CCXT.FuturesURL == "") {
		return fmt.Errorf("vendors.ccxt spot_url and futures_url are required")
	}
	if v.Warehouse.Enabled {
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required when vendors.warehouse is enabled")
		}
		if v.Warehouse.Table == "" {
			return fmt.Errorf("vendors.warehouse.table is required")
		}
	}
	return nil
}
