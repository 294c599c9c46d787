// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

type Config struct {
	App        AppConfig       `koanf:"app"`
	Server     ServerConfig    `koanf:"server"`
	API        APIConfig       `koanf:"api"`
	Storage    StorageConfig   `koanf:"storage"`
	Database   DatabaseConfig  `koanf:"database"`
	Redis      RedisConfig     `koanf:"redis"`
	Session    SessionConfig   `koanf:"session"`
	Badges     BadgesConfig    `koanf:"badges"`
	Navigation []NavItemConfig `koanf:"navigation"`
	RateLimit  RateLimitConfig `koanf:"rate_limit"`
	CORS       CORSConfig      `koanf:"cors"`
	Log        LogConfig       `koanf:"log"`
	Otel       OtelConfig      `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// APIConfig points at the remote clinic API that issues tokens and
// answers whoami.
type APIConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type StorageConfig struct {
	Driver     string `koanf:"driver"`
	Namespace  string `koanf:"namespace"`
	InstanceID string `koanf:"instance_id"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type SessionConfig struct {
	RevalidateTimeout time.Duration `koanf:"revalidate_timeout"`
	LogoutTimeout     time.Duration `koanf:"logout_timeout"`
	ClaimsCacheSize   int           `koanf:"claims_cache_size"`
	ClaimsCacheTTL    time.Duration `koanf:"claims_cache_ttl"`
	SyncEnabled       bool          `koanf:"sync_enabled"`
}

type BadgesConfig struct {
	Interval time.Duration       `koanf:"interval"`
	Sources  []BadgeSourceConfig `koanf:"sources"`
}

type BadgeSourceConfig struct {
	Module string `koanf:"module"`
	Path   string `koanf:"path"`
}

type NavItemConfig struct {
	Key      string          `koanf:"key"`
	Label    string          `koanf:"label"`
	Path     string          `koanf:"path"`
	Module   string          `koanf:"module"`
	Requires string          `koanf:"requires"`
	Children []NavItemConfig `koanf:"children"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Load builds the configuration from defaults, the optional YAML file at
// configPath, a .env file in the working directory and the process
// environment, in that order of precedence.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "clinicd",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "127.0.0.1",
		"server.port":             7420,
		"server.read_timeout":     "15s",
		"server.write_timeout":    "15s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",

		"api.timeout": "10s",

		"storage.driver":    StorageMemory,
		"storage.namespace": "default",

		"database.max_open_conns":     5,
		"database.max_idle_conns":     2,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",

		"redis.pool_size":      5,
		"redis.min_idle_conns": 1,

		"session.revalidate_timeout": "10s",
		"session.logout_timeout":     "3s",
		"session.claims_cache_size":  64,
		"session.claims_cache_ttl":   "15m",
		"session.sync_enabled":       true,

		"badges.interval": "60s",

		"rate_limit.requests": 10,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    5,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "clinicd",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"CLINIC_API_URL":              "api.base_url",
	"CLINIC_API_TIMEOUT":          "api.timeout",
	"STORAGE_DRIVER":              "storage.driver",
	"STORAGE_NAMESPACE":           "storage.namespace",
	"INSTANCE_ID":                 "storage.instance_id",
	"DATABASE_URL":                "database.url",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"SESSION_REVALIDATE_TIMEOUT":  "session.revalidate_timeout",
	"SESSION_LOGOUT_TIMEOUT":      "session.logout_timeout",
	"SESSION_SYNC_ENABLED":        "session.sync_enabled",
	"BADGES_INTERVAL":             "badges.interval",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("CLINIC_API_URL is required")
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StorageRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis storage driver")
		}
	case StoragePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres storage driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Storage.Namespace == "" {
		return fmt.Errorf("storage.namespace must not be empty")
	}

	if c.Badges.Interval <= 0 {
		return fmt.Errorf("badges.interval must be positive")
	}

	for _, src := range c.Badges.Sources {
		if src.Module == "" || src.Path == "" {
			return fmt.Errorf("badge sources need both module and path")
		}
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
