package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFillsDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: test
vendors:
  coinmetrics:
    enabled: true
`))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "memory", c.Catalog.Backend)
	assert.Equal(t, 4, c.Pipeline.MaxConcurrency)
	assert.Equal(t, 600*time.Millisecond, c.Vendors.CoinMetrics.MinInterval)
	assert.Equal(t, 10000, c.Vendors.CoinMetrics.PageSize)
	assert.False(t, c.Vendors.CCXT.Enabled)
}

func TestParseKeepsExplicitValues(t *testing.T) {
	c, err := Parse([]byte(`
environment: prod
pipeline:
  max_concurrency: 16
vendors:
  ccxt:
    enabled: true
    page_size: 500
`))
	require.NoError(t, err)
	assert.Equal(t, 16, c.Pipeline.MaxConcurrency)
	assert.Equal(t, 500, c.Vendors.CCXT.PageSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"no vendor", func(c *Config) {}, "at least one vendor"},
		{"bad backend", func(c *Config) {
			c.Vendors.CCXT.Enabled = true
			c.Catalog.Backend = "disk"
		}, "catalog.backend"},
		{"warehouse without clickhouse", func(c *Config) {
			c.Vendors.Warehouse.Enabled = true
		}, "clickhouse.host"},
		{"collector without brokers", func(c *Config) {
			c.Vendors.CCXT.Enabled = true
			c.Log.Collector.Enabled = true
		}, "kafka.brokers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	env := map[string]string{
		"COINMETRICS_API_KEY": "secret",
		"REDIS_ADDR":          "cache:6380",
		"KAFKA_BROKERS":       "k1:9092,k2:9092",
		"LOG_LEVEL":           "debug",
	}
	require.NoError(t, c.applyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "secret", c.Vendors.CoinMetrics.APIKey)
	assert.Equal(t, "cache", c.Redis.Host)
	assert.Equal(t, 6380, c.Redis.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestApplyEnvBadRedisAddr(t *testing.T) {
	c := Default()
	err := c.applyEnv(func(k string) string {
		if k == "REDIS_ADDR" {
			return "no-port"
		}
		return ""
	})
	require.Error(t, err)
}
