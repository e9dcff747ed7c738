// Package config builds the process configuration once at startup from the
// environment, optionally seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/localrivet/calcmcp/auth"
)

// Defaults for optional settings.
const (
	DefaultPort            = "8000"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultFetchTimeout    = 10 * time.Second
	DefaultMaxBodyBytes    = int64(1 << 20)
	DefaultShutdownTimeout = 10 * time.Second
)

// Config is the complete server configuration.
type Config struct {
	// Addr is the listen address.
	Addr string
	// APIKey is the shared secret required on the tool routes. Empty means
	// the tool routes answer with a misconfiguration error.
	APIKey string
	// AllowedOrigins restricts the Origin header on the tool routes. Nil
	// disables the check.
	AllowedOrigins auth.OriginPolicy
	LogLevel       string
	LogFormat      string
	// FetchTimeout bounds the retrieval of a json_url payload.
	FetchTimeout time.Duration
	// MaxBodyBytes caps request bodies and fetched payloads.
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
	// HealthRequireAuth moves the health routes behind the API key check.
	HealthRequireAuth bool
}

// LookupFunc looks up an environment variable.
type LookupFunc func(key string) (string, bool)

// Load reads .env files (when present, never overriding the real
// environment) and builds a Config from the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup.
func FromLookup(lookup LookupFunc) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		LogLevel:  strings.ToLower(get("LOG_LEVEL", DefaultLogLevel)),
		LogFormat: strings.ToLower(get("LOG_FORMAT", DefaultLogFormat)),
	}
	if v, ok := lookup("API_KEY"); ok {
		cfg.APIKey = v
	}
	if v, ok := lookup("ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = auth.ParseOrigins(v)
	}

	cfg.Addr = get("ADDR", "")
	if cfg.Addr == "" {
		cfg.Addr = ":" + get("PORT", DefaultPort)
	}

	var err error
	if cfg.FetchTimeout, err = parseDuration("FETCH_TIMEOUT", get("FETCH_TIMEOUT", ""), DefaultFetchTimeout); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = parseDuration("SHUTDOWN_TIMEOUT", get("SHUTDOWN_TIMEOUT", ""), DefaultShutdownTimeout); err != nil {
		return nil, err
	}

	cfg.MaxBodyBytes = DefaultMaxBodyBytes
	if v := get("MAX_BODY_BYTES", ""); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("MAX_BODY_BYTES must be a positive integer, got %q", v)
		}
		cfg.MaxBodyBytes = n
	}

	if v := get("HEALTH_REQUIRE_AUTH", ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("HEALTH_REQUIRE_AUTH must be a boolean, got %q", v)
		}
		cfg.HealthRequireAuth = b
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func parseDuration(key, v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}
