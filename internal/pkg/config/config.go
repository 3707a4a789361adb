package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Query     QueryConfig     `mapstructure:"query"`
	Viewport  ViewportConfig  `mapstructure:"viewport"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
}

type ServerConfig struct {
	Port           int    `mapstructure:"port"`
	ReadTimeout    int    `mapstructure:"read_timeout"`
	WriteTimeout   int    `mapstructure:"write_timeout"`
	RequestTimeout int    `mapstructure:"request_timeout"`
	RateLimit      int    `mapstructure:"rate_limit"` // requests per minute per IP
	CORSOrigins    string `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// QueryConfig bounds the feature queries.
type QueryConfig struct {
	DefaultRadius float64 `mapstructure:"default_radius"` // meters
	MaxRadius     float64 `mapstructure:"max_radius"`
	DefaultLimit  int     `mapstructure:"default_limit"`
	MaxLimit      int     `mapstructure:"max_limit"`
	CacheTTL      int     `mapstructure:"cache_ttl"` // seconds
}

// ViewportConfig tunes WebSocket viewport sessions.
type ViewportConfig struct {
	DebounceMS    int     `mapstructure:"debounce_ms"`
	PadMeters     float64 `mapstructure:"pad_meters"`
	MaxSpanMeters float64 `mapstructure:"max_span_meters"`
	MaxLayers     int     `mapstructure:"max_layers"`
	FitPadRatio   float64 `mapstructure:"fit_pad_ratio"`
	FitMinSpanDeg float64 `mapstructure:"fit_min_span_deg"`
}

func (v ViewportConfig) Debounce() time.Duration {
	return time.Duration(v.DebounceMS) * time.Millisecond
}

// FeedConfig points at the upstream water beta feed.
type FeedConfig struct {
	URL            string `mapstructure:"url"`
	Timeout        int    `mapstructure:"timeout"` // seconds
	MaxFailures    int    `mapstructure:"max_failures"`
	BreakerTimeout int    `mapstructure:"breaker_timeout"` // seconds the breaker stays open
}

type TemporalConfig struct {
	HostPort     string `mapstructure:"host_port"`
	Namespace    string `mapstructure:"namespace"`
	TaskQueue    string `mapstructure:"task_queue"`
	SyncInterval int    `mapstructure:"sync_interval"` // minutes
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: HOWITT_DATABASE_HOST → database.host
	v.SetEnvPrefix("HOWITT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.request_timeout", 15)
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.cors_origins", "http://localhost:3000, http://localhost:5173")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "howitt")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "howitt")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("query.default_radius", 10000)
	v.SetDefault("query.max_radius", 100000)
	v.SetDefault("query.default_limit", 50)
	v.SetDefault("query.max_limit", 200)
	v.SetDefault("query.cache_ttl", 300)
	v.SetDefault("viewport.debounce_ms", 250)
	v.SetDefault("viewport.pad_meters", 2000)
	v.SetDefault("viewport.max_span_meters", 500000)
	v.SetDefault("viewport.max_layers", 500)
	v.SetDefault("viewport.fit_pad_ratio", 0.1)
	v.SetDefault("viewport.fit_min_span_deg", 0.01)
	v.SetDefault("feed.url", "")
	v.SetDefault("feed.timeout", 30)
	v.SetDefault("feed.max_failures", 3)
	v.SetDefault("feed.breaker_timeout", 60)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "howitt-sync")
	v.SetDefault("temporal.sync_interval", 30)
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "server.request_timeout must be positive")
	}
	if c.Server.RateLimit <= 0 {
		errs = append(errs, "server.rate_limit must be positive")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Query.MaxRadius <= 0 {
		errs = append(errs, "query.max_radius must be positive")
	}
	if c.Query.DefaultRadius <= 0 || c.Query.DefaultRadius > c.Query.MaxRadius {
		errs = append(errs, fmt.Sprintf("query.default_radius must be in (0, %g], got %g", c.Query.MaxRadius, c.Query.DefaultRadius))
	}
	if c.Query.MaxLimit <= 0 {
		errs = append(errs, "query.max_limit must be positive")
	}
	if c.Query.DefaultLimit <= 0 || c.Query.DefaultLimit > c.Query.MaxLimit {
		errs = append(errs, fmt.Sprintf("query.default_limit must be in (0, %d], got %d", c.Query.MaxLimit, c.Query.DefaultLimit))
	}
	if c.Query.CacheTTL < 0 {
		errs = append(errs, "query.cache_ttl must not be negative")
	}
	if c.Viewport.DebounceMS < 0 {
		errs = append(errs, "viewport.debounce_ms must not be negative")
	}
	if c.Viewport.MaxLayers <= 0 {
		errs = append(errs, "viewport.max_layers must be positive")
	}
	if c.Feed.Timeout <= 0 {
		errs = append(errs, "feed.timeout must be positive")
	}
	if c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required")
	}
	if c.Temporal.SyncInterval <= 0 {
		errs = append(errs, "temporal.sync_interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
