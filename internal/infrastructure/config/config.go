package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/servipro/booking-api/internal/core/workflow"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Supabase SupabaseConfig
	Catalog  CatalogConfig
	Search   SearchConfig
	Wizard   WizardConfig
	Redis    RedisConfig
	Mongo    MongoConfig
	Tracing  TracingConfig
}

type SupabaseConfig struct {
	URL             string        `env:"SUPABASE_URL"`
	ServiceKey      string        `env:"SUPABASE_SERVICE_KEY"`
	Schema          string        `env:"SUPABASE_SCHEMA,          default=public"`
	BreakerFailures uint32        `env:"GATEWAY_BREAKER_FAILURES, default=3"`
	BreakerTimeout  time.Duration `env:"GATEWAY_BREAKER_TIMEOUT,  default=10s"`
}

type CatalogConfig struct {
	CacheTTL    time.Duration `env:"CATALOG_CACHE_TTL, default=5m"`
	DefaultCity string        `env:"DEFAULT_CITY,      default=Buenos Aires"`
}

type SearchConfig struct {
	DefaultLimit int `env:"SEARCH_DEFAULT_LIMIT, default=20"`
}

type WizardConfig struct {
	SessionTTL     time.Duration `env:"WIZARD_SESSION_TTL,            default=30m"`
	DismissAfter   time.Duration `env:"WIZARD_DISMISS_AFTER,          default=3s"`
	DuplicateEmail string        `env:"WIZARD_DUPLICATE_EMAIL_POLICY, default=reuse"`
	DefaultTime    string        `env:"WIZARD_DEFAULT_TIME,           default=09:00"`
	Timezone       string        `env:"TIMEZONE,                      default=UTC"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

type MongoConfig struct {
	URI          string `env:"MONGO_URI"`
	Database     string `env:"MONGO_DB,      default=servipro"`
	AuditWorkers int    `env:"AUDIT_WORKERS, default=4"`
}

type TracingConfig struct {
	JaegerEndpoint string `env:"JAEGER_ENDPOINT"`
}

// Load reads configuration from environment variables using go-envconfig and
// checks the values that have no usable default.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Supabase.URL == "" || c.Supabase.ServiceKey == "" {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}
	if _, err := workflow.ParsePolicy(c.Wizard.DuplicateEmail); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := time.Parse("15:04", c.Wizard.DefaultTime); err != nil {
		return fmt.Errorf("WIZARD_DEFAULT_TIME %q: want HH:MM", c.Wizard.DefaultTime)
	}
	return nil
}

// Location resolves TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Wizard.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Wizard.Timezone, err)
	}
	return loc, nil
}

// Pretty reports whether logs should use the console writer.
func (c *Config) Pretty() bool { return c.Env == "development" }
