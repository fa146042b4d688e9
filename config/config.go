package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Log         LogConfig         `mapstructure:"log"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Storage drivers.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"` // apply the embedded schema on start-up
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Rate sources.
const (
	RateSourceConfig   = "config"
	RateSourceDatabase = "database"
)

// LedgerConfig describes the supported currencies and the exchange-rate table
// loaded once at start-up.
type LedgerConfig struct {
	Currencies      []CurrencyConfig `mapstructure:"currencies"`
	Rates           []RateConfig     `mapstructure:"rates"`
	RateSource      string           `mapstructure:"rate_source"` // config, database
	GenerateRates   bool             `mapstructure:"generate_rates"`
	Seed            int64            `mapstructure:"seed"`
	RequireComplete bool             `mapstructure:"require_complete"`
}

type CurrencyConfig struct {
	Code       string `mapstructure:"code"`
	MinorUnits int32  `mapstructure:"minor_units"`
}

// RateConfig is one directed rate. Rate is a decimal string so no precision
// is lost to float parsing.
type RateConfig struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
	Rate string `mapstructure:"rate"`
}

type EngineConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
}

type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

func defaultCurrencies() []map[string]interface{} {
	return []map[string]interface{}{
		{"code": "USD", "minor_units": 2},
		{"code": "EUR", "minor_units": 2},
		{"code": "GBP", "minor_units": 2},
		{"code": "JPY", "minor_units": 0},
	}
}

func defaultRates() []map[string]interface{} {
	return []map[string]interface{}{
		{"from": "USD", "to": "EUR", "rate": "0.92"},
		{"from": "USD", "to": "GBP", "rate": "0.79"},
		{"from": "USD", "to": "JPY", "rate": "151.37"},
		{"from": "EUR", "to": "GBP", "rate": "0.86"},
		{"from": "EUR", "to": "JPY", "rate": "164.53"},
		{"from": "GBP", "to": "JPY", "rate": "191.61"},
	}
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: AGB_ (Agile Bank).
// Nested keys use underscore: AGB_DATABASE_HOST, AGB_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("storage.driver", StorageDriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "agile_bank")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "agile-bank")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("ledger.currencies", defaultCurrencies())
	v.SetDefault("ledger.rates", defaultRates())
	v.SetDefault("ledger.rate_source", RateSourceConfig)
	v.SetDefault("ledger.generate_rates", false)
	v.SetDefault("ledger.seed", 47)
	v.SetDefault("ledger.require_complete", true)
	v.SetDefault("engine.max_retries", 3)
	v.SetDefault("engine.retry_base_delay", "5ms")
	v.SetDefault("idempotency.ttl", "24h")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "agile_bank")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// AGB_DATABASE_HOST -> database.host
	v.SetEnvPrefix("AGB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The file is optional; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Ledger.RateSource {
	case RateSourceConfig, RateSourceDatabase:
	default:
		return fmt.Errorf("unknown ledger rate source %q", c.Ledger.RateSource)
	}
	if c.Ledger.RateSource == RateSourceDatabase && c.Storage.Driver != StorageDriverPostgres {
		return fmt.Errorf("ledger rate source %q requires the %q storage driver", RateSourceDatabase, StorageDriverPostgres)
	}
	if len(c.Ledger.Currencies) == 0 {
		return fmt.Errorf("ledger: at least one currency must be configured")
	}
	seen := make(map[string]struct{}, len(c.Ledger.Currencies))
	for _, cur := range c.Ledger.Currencies {
		code := strings.ToUpper(strings.TrimSpace(cur.Code))
		if _, dup := seen[code]; dup {
			return fmt.Errorf("ledger: currency %q configured twice", code)
		}
		seen[code] = struct{}{}
	}
	if c.Engine.MaxRetries < 0 {
		return fmt.Errorf("engine.max_retries must not be negative")
	}
	return nil
}
