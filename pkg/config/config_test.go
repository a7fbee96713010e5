package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"FinFuse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
environment: test
providers:
  - name: alphavantage
    base_url: https://www.alphavantage.co
    capabilities: [quote]
    priority: 2
    calls_per_minute: 5
    calls_per_day: 500
    requires_credential: true
  - name: yahoo
    base_url: https://query1.finance.yahoo.com
    capabilities: [quote]
    priority: 1
    burst: 20
    calls_per_minute: 2000
kafka:
  brokers: [a:9092]
`

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestParse_AppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "info", c.Logger.Level)
	assert.Equal(t, 5*time.Minute, c.Cache.TTL)
	assert.Equal(t, time.Minute, c.RateLimit.UpstreamCooldown)
	assert.Equal(t, 4, c.Aggregator.MaxParallel)
	assert.Equal(t, 1, c.Fusion.MinSignals)
	assert.Equal(t, 7*24*time.Hour, c.Fusion.DefaultExpiry)
	assert.Equal(t, 0.10, c.Fusion.HighValueBonus[models.SignalInsiderBuying])
	assert.Equal(t, "finfuse.signals", c.Kafka.SignalsTopic)
	assert.Equal(t, "gzip", c.Kafka.Producer.Compression)
	assert.Equal(t, 1, c.Providers[0].Burst)
	assert.Equal(t, 20, c.Providers[1].Burst)
	assert.Empty(t, c.Providers[0].APIKey)
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	c.ApplyEnv(lookupFrom(map[string]string{
		"ALPHAVANTAGE_API_KEY": " demo ",
		"HTTP_PORT":            "9090",
		"KAFKA_BROKERS":        "k1:9092, k2:9092",
		"LOG_LEVEL":            "debug",
	}))
	assert.Equal(t, "demo", c.Providers[0].APIKey)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "debug", c.Logger.Level)
	assert.NoError(t, c.Validate())
	assert.Empty(t, c.MissingCredentials())
}

func TestValidate(t *testing.T) {
	t.Run("missing credential is tolerated outside production", func(t *testing.T) {
		c, err := Parse([]byte(sample))
		require.NoError(t, err)
		require.NoError(t, c.Validate())
		assert.Equal(t, []string{"ALPHAVANTAGE_API_KEY"}, c.MissingCredentials())
	})

	t.Run("missing credential fails in production", func(t *testing.T) {
		c, err := Parse([]byte(sample))
		require.NoError(t, err)
		c.Environment = "production"
		assert.ErrorContains(t, c.Validate(), "ALPHAVANTAGE_API_KEY")
	})

	t.Run("no usable quote provider", func(t *testing.T) {
		c, err := Parse([]byte(sample))
		require.NoError(t, err)
		c.Providers = c.Providers[:1]
		assert.True(t, errors.Is(c.Validate(), ErrNoProviders))
	})

	t.Run("duplicate provider", func(t *testing.T) {
		c, err := Parse([]byte(sample))
		require.NoError(t, err)
		c.Providers = append(c.Providers, c.Providers[1])
		assert.ErrorContains(t, c.Validate(), "defined twice")
	})

	t.Run("struct rules", func(t *testing.T) {
		c, err := Parse([]byte(sample))
		require.NoError(t, err)
		c.Providers[1].BaseURL = "not a url"
		assert.Error(t, c.Validate())
	})

	t.Run("enabled adapters need their settings", func(t *testing.T) {
		c, err := Parse([]byte(sample))
		require.NoError(t, err)
		c.Kafka.Enabled = true
		c.Kafka.Brokers = nil
		assert.ErrorContains(t, c.Validate(), "kafka.brokers")

		c.Kafka.Enabled = false
		c.ClickHouse.Enabled = true
		assert.ErrorContains(t, c.Validate(), "clickhouse.host")
	})
}

func TestLoadWithEnv_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(cfgPath, []byte(sample), 0o600))
	require.NoError(t, os.WriteFile(envPath, []byte("ALPHAVANTAGE_API_KEY=from-dotenv\n"), 0o600))
	t.Setenv("ALPHAVANTAGE_API_KEY", "")
	os.Unsetenv("ALPHAVANTAGE_API_KEY")

	c, err := LoadWithEnv(cfgPath, envPath, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", c.Providers[0].APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
