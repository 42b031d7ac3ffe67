package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP
	Server ServerConfig `mapstructure:"server"`

	// Backing store selection
	Store StoreConfig `mapstructure:"store"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	Shortener ShortenerConfig `mapstructure:"shortener"`
	Clicks    ClicksConfig    `mapstructure:"clicks"`
	Stats     StatsConfig     `mapstructure:"stats"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	URLPrefix string `mapstructure:"url_prefix"`
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

type StoreConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Port     int    `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	CacheEnabled bool          `mapstructure:"cache_enabled"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

type NATSConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
}

type PrometheusConfig struct {
	Port int `mapstructure:"port"`
}

// ShortenerConfig tunes code generation and the uniqueness retry loop.
type ShortenerConfig struct {
	CodeLength   int    `mapstructure:"code_length"`
	Alphabet     string `mapstructure:"alphabet"`
	MaxAttempts  int    `mapstructure:"max_attempts"`
	SecureRandom bool   `mapstructure:"secure_random"`
}

const (
	ClickTransportDirect = "direct"
	ClickTransportNATS   = "nats"

	DropOldest = "drop_oldest"
	RejectNew  = "reject_new"
)

// ClicksConfig drives the background click recorder.
type ClicksConfig struct {
	Transport    string        `mapstructure:"transport"`
	QueueSize    int           `mapstructure:"queue_size"`
	Workers      int           `mapstructure:"workers"`
	DropPolicy   string        `mapstructure:"drop_policy"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type StatsConfig struct {
	Workers int `mapstructure:"workers"`
}

type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres:
	case StoreDriverSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("config: store.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}

	if c.Shortener.CodeLength <= 0 {
		return fmt.Errorf("config: shortener.code_length must be positive, got %d", c.Shortener.CodeLength)
	}
	if c.Shortener.MaxAttempts <= 0 {
		return fmt.Errorf("config: shortener.max_attempts must be positive, got %d", c.Shortener.MaxAttempts)
	}

	switch c.Clicks.Transport {
	case ClickTransportDirect, ClickTransportNATS:
	default:
		return fmt.Errorf("config: unknown clicks.transport %q", c.Clicks.Transport)
	}
	switch c.Clicks.DropPolicy {
	case DropOldest, RejectNew:
	default:
		return fmt.Errorf("config: unknown clicks.drop_policy %q", c.Clicks.DropPolicy)
	}
	if c.Clicks.QueueSize <= 0 || c.Clicks.Workers <= 0 {
		return errors.New("config: clicks.queue_size and clicks.workers must be positive")
	}

	if c.Stats.Workers <= 0 {
		return fmt.Errorf("config: stats.workers must be positive, got %d", c.Stats.Workers)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.url_prefix", "http://tinyurl.com/")

	v.SetDefault("store.driver", StoreDriverPostgres)
	v.SetDefault("store.sqlite_path", "tinyurl.db")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("redis.cache_enabled", true)
	v.SetDefault("redis.cache_ttl", time.Hour)

	v.SetDefault("prometheus.port", 9090)

	v.SetDefault("shortener.code_length", 8)
	v.SetDefault("shortener.alphabet", "23456789abcdefghijkmnpqrstuvwxyz")
	v.SetDefault("shortener.max_attempts", 5)
	v.SetDefault("shortener.secure_random", false)

	v.SetDefault("clicks.transport", ClickTransportDirect)
	v.SetDefault("clicks.queue_size", 10000)
	v.SetDefault("clicks.workers", 4)
	v.SetDefault("clicks.drop_policy", DropOldest)
	v.SetDefault("clicks.write_timeout", 5*time.Second)

	v.SetDefault("stats.workers", 10)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.max_requests", 100)
	v.SetDefault("rate_limit.window", time.Minute)
}

func bindEnvVars(v *viper.Viper) {
	// HTTP
	v.BindEnv("server.addr", "HTTP_ADDR")
	v.BindEnv("server.url_prefix", "URL_PREFIX")

	// Store
	v.BindEnv("store.driver", "STORE_DRIVER")
	v.BindEnv("store.sqlite_path", "SQLITE_PATH")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")
}
