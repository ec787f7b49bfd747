package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rpggio/supportbill/internal/validate"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every configuration validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Transport TransportConfig `yaml:"transport"`
	Auth      AuthConfig      `yaml:"auth"`
	Billing   BillingConfig   `yaml:"billing"`
	Cache     CacheConfig     `yaml:"cache"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
}

type DBConfig struct {
	Path string `yaml:"path" validate:"required"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
}

type TransportConfig struct {
	Mode string `yaml:"mode" validate:"oneof=http stdio"`
}

// AuthConfig controls api-key tenant resolution on the HTTP transport.
// DefaultTenant is used whenever auth is disabled.
type AuthConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DefaultTenant string `yaml:"default_tenant" validate:"required"`
}

// BillingConfig holds generation defaults. FallbackRates maps tenant IDs to a
// flat last-resort hourly rate and is seeded into tenant settings at startup.
// ExpenseCodes extends the built-in expense category to item code mapping.
type BillingConfig struct {
	DefaultRegion     string            `yaml:"default_region"`
	DefaultTier       string            `yaml:"default_tier" validate:"oneof=standard high_intensity"`
	BatchSize         int               `yaml:"batch_size" validate:"min=1,max=50"`
	CatalogueDefaults bool              `yaml:"catalogue_defaults"`
	FallbackRates     map[string]string `yaml:"fallback_rates"`
	ExpenseCodes      map[string]string `yaml:"expense_codes"`
}

// CacheConfig configures the optional Redis catalogue cache. An empty Addr
// disables it.
type CacheConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"min=0"`
	TTL      time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used before any file or environment
// overrides are applied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "supportbill.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Transport: TransportConfig{
			Mode: "http",
		},
		Auth: AuthConfig{
			DefaultTenant: "default",
		},
		Billing: BillingConfig{
			DefaultTier: "standard",
			BatchSize:   10,
		},
		Cache: CacheConfig{
			TTL: 10 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads an optional .env file, then an optional YAML file, then
// environment variables. Values already set in the environment win over .env.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path := os.Getenv("SUPPORTBILL_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("SUPPORTBILL_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if err := envInt("SUPPORTBILL_SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if dbPath := os.Getenv("SUPPORTBILL_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("SUPPORTBILL_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if mode := os.Getenv("SUPPORTBILL_TRANSPORT"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if err := envBool("SUPPORTBILL_AUTH_ENABLED", &cfg.Auth.Enabled); err != nil {
		return err
	}
	if tenant := os.Getenv("SUPPORTBILL_DEFAULT_TENANT"); tenant != "" {
		cfg.Auth.DefaultTenant = tenant
	}
	if region := os.Getenv("SUPPORTBILL_DEFAULT_REGION"); region != "" {
		cfg.Billing.DefaultRegion = region
	}
	if tier := os.Getenv("SUPPORTBILL_DEFAULT_TIER"); tier != "" {
		cfg.Billing.DefaultTier = tier
	}
	if err := envInt("SUPPORTBILL_BATCH_SIZE", &cfg.Billing.BatchSize); err != nil {
		return err
	}
	if err := envBool("SUPPORTBILL_CATALOGUE_DEFAULTS", &cfg.Billing.CatalogueDefaults); err != nil {
		return err
	}
	if addr := os.Getenv("SUPPORTBILL_REDIS_ADDR"); addr != "" {
		cfg.Cache.Addr = addr
	}
	if password := os.Getenv("SUPPORTBILL_REDIS_PASSWORD"); password != "" {
		cfg.Cache.Password = password
	}
	if err := envInt("SUPPORTBILL_REDIS_DB", &cfg.Cache.DB); err != nil {
		return err
	}
	if ttl := os.Getenv("SUPPORTBILL_CACHE_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return fmt.Errorf("invalid SUPPORTBILL_CACHE_TTL: %w", err)
		}
		cfg.Cache.TTL = d
	}
	if err := envBool("SUPPORTBILL_METRICS_ENABLED", &cfg.Metrics.Enabled); err != nil {
		return err
	}
	return nil
}

func envInt(name string, dst *int) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = v
	return nil
}

func envBool(name string, dst *bool) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = v
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate checks field ranges and that every fallback rate is a
// non-negative decimal.
func (c Config) Validate() error {
	if err := validate.Struct(c, ErrInvalid); err != nil {
		return err
	}
	if _, err := c.Billing.Rates(); err != nil {
		return err
	}
	return nil
}

// Rates parses FallbackRates.
func (b BillingConfig) Rates() (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal, len(b.FallbackRates))
	for tenantID, raw := range b.FallbackRates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: fallback rate for %s: %v", ErrInvalid, tenantID, err)
		}
		if rate.IsNegative() {
			return nil, fmt.Errorf("%w: negative fallback rate for %s", ErrInvalid, tenantID)
		}
		rates[tenantID] = rate
	}
	return rates, nil
}

// Addr is the HTTP listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
