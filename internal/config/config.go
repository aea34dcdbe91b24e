package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ErrServerMisconfigured is returned when a required credential or DSN is
// absent. Handlers map it to a 500 with a stable error code instead of
// letting the process crash on first use.
var ErrServerMisconfigured = errors.New("server misconfigured")

// EnvPrefix namespaces all environment overrides, e.g. ROOMCAST_HTTP_ADDR.
const EnvPrefix = "ROOMCAST_"

type Config struct {
	Environment string `koanf:"environment"`

	HTTP          HTTPConfig          `koanf:"http"`
	Database      DatabaseConfig      `koanf:"database"`
	Redis         RedisConfig         `koanf:"redis"`
	Auth          AuthConfig          `koanf:"auth"`
	Cleanup       CleanupConfig       `koanf:"cleanup"`
	Observability ObservabilityConfig `koanf:"observability"`
}

type HTTPConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	LoginRateLimitRPM int           `koanf:"login_rate_limit_rpm"`
	ResetRateLimitRPM int           `koanf:"reset_rate_limit_rpm"`
	APIRateLimitRPM   int           `koanf:"api_rate_limit_rpm"`
}

type DatabaseConfig struct {
	DSN string `koanf:"dsn"`
}

type RedisConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
	Prefix  string `koanf:"prefix"`
}

type AuthConfig struct {
	SessionTTL     time.Duration `koanf:"session_ttl"`
	ResetTTL       time.Duration `koanf:"reset_ttl"`
	DeviceTokenTTL time.Duration `koanf:"device_token_ttl"`
	DeviceSecret   string        `koanf:"device_secret"`
	TokenIssuer    string        `koanf:"token_issuer"`
	TokenAudience  string        `koanf:"token_audience"`
	CookieSecure   bool          `koanf:"cookie_secure"`
}

type CleanupConfig struct {
	Interval time.Duration `koanf:"interval"`
}

type ObservabilityConfig struct {
	ServiceName           string        `koanf:"service_name"`
	OTLPEndpoint          string        `koanf:"otlp_endpoint"`
	OTLPInsecure          bool          `koanf:"otlp_insecure"`
	MetricsEnabled        bool          `koanf:"metrics_enabled"`
	TracingEnabled        bool          `koanf:"tracing_enabled"`
	LogsEnabled           bool          `koanf:"logs_enabled"`
	MetricsExportInterval time.Duration `koanf:"metrics_export_interval"`
	ShutdownTimeout       time.Duration `koanf:"shutdown_timeout"`
}

func defaultConfig() *Config {
	return &Config{
		Environment: "development",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			LoginRateLimitRPM: 20,
			ResetRateLimitRPM: 5,
			APIRateLimitRPM:   600,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			Prefix:  "roomcast",
		},
		Auth: AuthConfig{
			SessionTTL:     24 * time.Hour,
			ResetTTL:       30 * time.Minute,
			DeviceTokenTTL: 24 * time.Hour,
			TokenIssuer:    "roomcast-backend",
			TokenAudience:  "roomcast-app",
			CookieSecure:   true,
		},
		Cleanup: CleanupConfig{
			Interval: time.Hour,
		},
		Observability: ObservabilityConfig{
			ServiceName:           "roomcast-backend",
			OTLPEndpoint:          "localhost:4317",
			OTLPInsecure:          true,
			MetricsEnabled:        false,
			TracingEnabled:        false,
			LogsEnabled:           false,
			MetricsExportInterval: 30 * time.Second,
			ShutdownTimeout:       5 * time.Second,
		},
	}
}

// Load builds the runtime configuration from three layers: struct defaults,
// an optional YAML file, and ROOMCAST_* environment variables (highest
// priority). ROOMCAST_DATABASE_DSN maps to database.dsn and so on.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(
			strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load config environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		recordConfigValidationEvent(context.Background(), cfg.Environment, "failure", classifyConfigError(err))
		return nil, err
	}
	recordConfigValidationEvent(context.Background(), cfg.Environment, "success", "none")
	return cfg, nil
}

// Validate checks the invariants that cannot be defaulted. A missing
// database DSN or device token secret is a deployment error, reported as
// ErrServerMisconfigured rather than discovered as a crash mid-request.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Database.DSN) == "" {
		problems = append(problems, "database.dsn is required")
	}
	if strings.TrimSpace(c.Auth.DeviceSecret) == "" {
		problems = append(problems, "auth.device_secret is required")
	}
	if c.Auth.SessionTTL <= 0 {
		problems = append(problems, "auth.session_ttl must be positive")
	}
	if c.Auth.ResetTTL <= 0 {
		problems = append(problems, "auth.reset_ttl must be positive")
	}
	if c.Cleanup.Interval <= 0 {
		problems = append(problems, "cleanup.interval must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("validate config: %s: %w", strings.Join(problems, "; "), ErrServerMisconfigured)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func classifyConfigError(err error) string {
	if err == nil {
		return "none"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "validate config:"):
		return "validation"
	case strings.Contains(msg, "parse "):
		return "parse"
	default:
		return "load"
	}
}
