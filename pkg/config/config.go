// Package config loads kbclient configuration from layered sources:
// built-in defaults, an optional YAML file, and WIKIAI_* environment
// variables (highest priority).
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"kbclient.yaml",
	"kbclient.yml",
	"/etc/wikiai/kbclient.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "WIKIAI_CONFIG_PATH"

// Config is the full client configuration.
type Config struct {
	// APIURL is the HTTP base URL of the backend.
	APIURL string `koanf:"api_url" validate:"required,url"`

	// WSURL is the WebSocket base URL. Derived from APIURL when empty.
	WSURL string `koanf:"ws_url" validate:"omitempty,url"`

	// CMSPrefix is the path prefix for CMS endpoints.
	CMSPrefix string `koanf:"cms_prefix"`

	// Timeout bounds each HTTP attempt.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// ConnectTimeout bounds the WebSocket handshake.
	ConnectTimeout time.Duration `koanf:"connect_timeout" validate:"gt=0"`

	// Debug enables verbose diagnostic logging.
	Debug bool `koanf:"debug"`

	Retry     RetryConfig     `koanf:"retry"`
	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// RetryConfig tunes the exponential backoff retry loop.
type RetryConfig struct {
	MaxAttempts  int           `koanf:"max_attempts" validate:"gte=1"`
	InitialDelay time.Duration `koanf:"initial_delay" validate:"gt=0"`
	MaxDelay     time.Duration `koanf:"max_delay" validate:"gt=0"`
	Multiplier   float64       `koanf:"multiplier" validate:"gte=1"`
}

// CacheConfig tunes the response cache.
type CacheConfig struct {
	TTL           time.Duration `koanf:"ttl" validate:"gt=0"`
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gt=0"`
}

// RateLimitConfig tunes the optional client-side request limiter.
// RPM 0 disables limiting.
type RateLimitConfig struct {
	RPM   int `koanf:"rpm" validate:"gte=0"`
	Burst int `koanf:"burst" validate:"gte=0"`
}

// LoggingConfig tunes log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		APIURL:         "http://localhost:9001",
		WSURL:          "",
		CMSPrefix:      "/api/cms",
		Timeout:        30 * time.Second,
		ConnectTimeout: 5 * time.Second,
		Debug:          false,
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
		Cache: CacheConfig{
			TTL:           5 * time.Minute,
			SweepInterval: time.Minute,
		},
		RateLimit: RateLimitConfig{
			RPM:   0,
			Burst: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds configuration from defaults, an optional YAML file, and
// WIKIAI_* environment variables, in increasing priority, then validates
// the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("WIKIAI_", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and URL consistency.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// WebSocketURL returns the WebSocket base URL: WSURL when set, otherwise
// APIURL with its scheme switched to ws/wss.
func (c *Config) WebSocketURL() string {
	if c.WSURL != "" {
		return c.WSURL
	}
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps WIKIAI_* environment variables to koanf config paths.
// Unknown variables are dropped so unrelated environment noise cannot
// pollute the config.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "WIKIAI_"))

	mappings := map[string]string{
		"api_url":         "api_url",
		"ws_url":          "ws_url",
		"cms_prefix":      "cms_prefix",
		"api_timeout":     "timeout",
		"connect_timeout": "connect_timeout",
		"debug":           "debug",

		"retry_max_attempts":  "retry.max_attempts",
		"retry_initial_delay": "retry.initial_delay",
		"retry_max_delay":     "retry.max_delay",
		"retry_multiplier":    "retry.multiplier",

		"cache_ttl":            "cache.ttl",
		"cache_sweep_interval": "cache.sweep_interval",

		"rate_limit_rpm":   "rate_limit.rpm",
		"rate_limit_burst": "rate_limit.burst",

		"log_level":  "logging.level",
		"log_format": "logging.format",
	}

	if mapped, ok := mappings[key]; ok {
		return mapped
	}
	return ""
}
