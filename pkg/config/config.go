package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"FinFuse/internal/domain/models"
	"FinFuse/internal/services/fusion"
	pkgcache "FinFuse/pkg/cache"
	pkgch "FinFuse/pkg/clickhouse"
	xhttp "FinFuse/pkg/http"
	pkgkafka "FinFuse/pkg/kafka"
	"FinFuse/pkg/logger"
	"FinFuse/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrNoProviders is returned when no usable provider serves quotes.
var ErrNoProviders = errors.New("config: no usable quote provider")

type Config struct {
	Environment string             `yaml:"environment" default:"development" validate:"oneof=development test staging production"`
	Server      xhttp.ServerConfig `yaml:"server"`
	Logger      logger.Config      `yaml:"logger"`

	Providers []models.ProviderConfig `yaml:"providers" validate:"required,min=1,dive"`

	RateLimit struct {
		NoDailyLimitBonus float64       `yaml:"no_daily_limit_bonus" default:"10"`
		DailyCooldown     time.Duration `yaml:"daily_cooldown" default:"1h"`
		MonthlyCooldown   time.Duration `yaml:"monthly_cooldown" default:"24h"`
		UpstreamCooldown  time.Duration `yaml:"upstream_cooldown" default:"1m"`
		MaxWait           time.Duration `yaml:"max_wait" default:"5s"`
	} `yaml:"rate_limit"`

	// API throttles inbound requests per client IP.
	API struct {
		ClientBurst int     `yaml:"client_burst" default:"20" validate:"gte=1"`
		ClientRPS   float64 `yaml:"client_rps" default:"10" validate:"gt=0"`
	} `yaml:"api"`

	Quotes struct {
		CallTimeout time.Duration `yaml:"call_timeout" default:"10s"`
		// PriceTTL is how long a price used for fused entry levels is reused.
		PriceTTL time.Duration `yaml:"price_ttl" default:"15s"`
	} `yaml:"quotes"`

	Cache struct {
		TTL           time.Duration `yaml:"ttl" default:"5m"`
		MemoryMaxSize int           `yaml:"memory_max_size" default:"1000" validate:"gte=1"`
		Redis         struct {
			Enabled              bool `yaml:"enabled"`
			pkgcache.RedisConfig `yaml:",inline"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Aggregator struct {
		MaxParallel     int           `yaml:"max_parallel" default:"4" validate:"gte=1"`
		SourceTimeout   time.Duration `yaml:"source_timeout" default:"15s"`
		QuotesPriority  int           `yaml:"quotes_priority" default:"10"`
		SignalsPriority int           `yaml:"signals_priority" default:"5"`
	} `yaml:"aggregator"`

	Fusion fusion.Config `yaml:"fusion"`

	Kafka struct {
		Enabled      bool                    `yaml:"enabled"`
		Brokers      []string                `yaml:"brokers"`
		SignalsTopic string                  `yaml:"signals_topic" default:"finfuse.signals"`
		FusedTopic   string                  `yaml:"fused_topic" default:"finfuse.fused"`
		Producer     pkgkafka.ProducerConfig `yaml:"producer"`
		Consumer     pkgkafka.ConsumerConfig `yaml:"consumer"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Enabled            bool `yaml:"enabled"`
		pkgch.ClientConfig `yaml:",inline"`
	} `yaml:"clickhouse"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads a YAML file, applies `default` tags and validates the result.
// Credentials are not read here; see LoadWithEnv.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse is Load for an in-memory document.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if c.Fusion.HighValueBonus == nil {
		c.Fusion.HighValueBonus = fusion.DefaultHighValueBonus()
	}
	return &c, nil
}

// LoadWithEnv loads path, reads `.env` files when present, overrides
// selected fields from the environment, fills provider credentials from
// <NAME>_API_KEY and validates.
func LoadWithEnv(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.LookupEnv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from lookup, which is os.LookupEnv outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("FINFUSE_ENV", &c.Environment)
	str("LOG_LEVEL", &c.Logger.Level)
	str("REDIS_ADDR", &c.Cache.Redis.Addr)
	str("REDIS_PASSWORD", &c.Cache.Redis.Password)
	str("CLICKHOUSE_HOST", &c.ClickHouse.Host)
	str("CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)
	if v, ok := lookup("HTTP_PORT"); ok {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = util.SplitList(v)
	}
	for i := range c.Providers {
		if v, ok := lookup(c.Providers[i].CredentialEnv()); ok {
			c.Providers[i].APIKey = strings.TrimSpace(v)
		}
	}
}

// Validate runs struct validation and the cross-field rules: unique provider
// names, at least one usable quote provider, and the dependencies of every
// enabled adapter. In production a provider missing its credential is fatal;
// elsewhere it is skipped at wiring time.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.Providers))
	usableQuotes := 0
	var missing []string
	for _, p := range c.Providers {
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("provider %q defined twice", p.Name)
		}
		seen[p.Name] = struct{}{}
		if !p.Usable() {
			missing = append(missing, p.CredentialEnv())
			continue
		}
		if p.Has(models.CapabilityQuote) {
			usableQuotes++
		}
	}
	if len(missing) > 0 && c.Environment == "production" {
		return fmt.Errorf("missing provider credentials: %s", strings.Join(missing, ", "))
	}
	if usableQuotes == 0 {
		return ErrNoProviders
	}

	if c.Cache.Redis.Enabled && c.Cache.Redis.Addr == "" {
		return errors.New("cache.redis.addr is required when redis is enabled")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka.brokers is required when kafka is enabled")
		}
		if c.Kafka.SignalsTopic == "" || c.Kafka.FusedTopic == "" {
			return errors.New("kafka.signals_topic and kafka.fused_topic are required")
		}
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return errors.New("clickhouse.host is required when clickhouse is enabled")
	}
	return nil
}

// MissingCredentials lists the env vars of providers that cannot be used.
func (c *Config) MissingCredentials() []string {
	var out []string
	for _, p := range c.Providers {
		if !p.Usable() {
			out = append(out, p.CredentialEnv())
		}
	}
	return out
}
