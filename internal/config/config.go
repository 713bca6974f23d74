package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Database connection.
	DatabaseURL  string
	QueryTimeout time.Duration

	// Rules.
	RulesFile string // path to the rules YAML

	// Logging.
	LogLevel slog.Level

	// Transport.
	Transport       string // "stdio" (default) or "http"
	HTTPAddr        string // listen address for HTTP transport (default ":8080")
	HTTPBearerToken string // required when transport=http

	// Connection pool.
	PoolMaxConns        int32         // default: 5
	PoolMinConns        int32         // default: 1
	PoolMaxConnLifetime time.Duration // default: 30m

	// Observability.
	OTelEnabled bool
	AuditLog    string // path to NDJSON audit log file, empty disables
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	DatabaseURL     *string
	RulesFile       *string
	LogLevel        *string
	QueryTimeout    *time.Duration
	Transport       *string
	HTTPAddr        *string
	HTTPBearerToken *string
	AuditLog        *string
	OTelEnabled     bool

	PoolMaxConns        *int32
	PoolMinConns        *int32
	PoolMaxConnLifetime *time.Duration
}

// Load builds a Config from environment variables, then applies CLI overrides,
// then validates the result.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		QueryTimeout:        5 * time.Second,
		RulesFile:           "tollgate.yaml",
		Transport:           "stdio",
		HTTPAddr:            ":8080",
		PoolMaxConns:        5,
		PoolMinConns:        1,
		PoolMaxConnLifetime: 30 * time.Minute,
	}
}

func loadEnvVars(cfg *Config) error {
	envString("DATABASE_URL", &cfg.DatabaseURL)
	envString("RULES_FILE", &cfg.RulesFile)
	envString("TRANSPORT", &cfg.Transport)
	envString("HTTP_ADDR", &cfg.HTTPAddr)
	envString("HTTP_BEARER_TOKEN", &cfg.HTTPBearerToken)
	envString("AUDIT_LOG", &cfg.AuditLog)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	return errors.Join(
		envDuration("QUERY_TIMEOUT", &cfg.QueryTimeout),
		envBool("OTEL_ENABLED", &cfg.OTelEnabled),
		envInt32("POOL_MAX_CONNS", 1, &cfg.PoolMaxConns),
		envInt32("POOL_MIN_CONNS", 0, &cfg.PoolMinConns),
		envDuration("POOL_MAX_CONN_LIFETIME", &cfg.PoolMaxConnLifetime),
	)
}

// The env helpers leave dst untouched when the variable is unset or empty.

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envDuration(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", name, v, err)
	}
	*dst = d
	return nil
}

func envBool(name string, dst *bool) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", name, v, err)
	}
	*dst = b
	return nil
}

func envInt32(name string, minimum int64, dst *int32) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n < minimum {
		return fmt.Errorf("invalid %s value %q: must be an integer >= %d", name, v, minimum)
	}
	*dst = int32(n)
	return nil
}

func applyOverrides(cfg *Config, o Overrides) error {
	override(&cfg.DatabaseURL, o.DatabaseURL)
	override(&cfg.RulesFile, o.RulesFile)
	override(&cfg.QueryTimeout, o.QueryTimeout)
	override(&cfg.Transport, o.Transport)
	override(&cfg.HTTPAddr, o.HTTPAddr)
	override(&cfg.HTTPBearerToken, o.HTTPBearerToken)
	override(&cfg.AuditLog, o.AuditLog)
	override(&cfg.PoolMaxConnLifetime, o.PoolMaxConnLifetime)
	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled

	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if o.PoolMaxConns != nil {
		if *o.PoolMaxConns <= 0 {
			return fmt.Errorf("invalid --pool-max-conns value: must be a positive integer")
		}
		cfg.PoolMaxConns = *o.PoolMaxConns
	}
	if o.PoolMinConns != nil {
		if *o.PoolMinConns < 0 {
			return fmt.Errorf("invalid --pool-min-conns value: must be a non-negative integer")
		}
		cfg.PoolMinConns = *o.PoolMinConns
	}
	return nil
}

func override[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required (set via env var or --database-url flag)")
	}
	if cfg.RulesFile == "" {
		return fmt.Errorf("RULES_FILE must not be empty")
	}
	if cfg.QueryTimeout <= 0 {
		return fmt.Errorf("QUERY_TIMEOUT must be positive, got %s", cfg.QueryTimeout)
	}

	switch cfg.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid TRANSPORT value %q: must be \"stdio\" or \"http\"", cfg.Transport)
	}

	if cfg.Transport == "http" && cfg.HTTPBearerToken == "" {
		return fmt.Errorf("HTTP_BEARER_TOKEN is required when transport is \"http\" (set via env var or --http-bearer-token flag)")
	}

	if cfg.PoolMinConns > cfg.PoolMaxConns {
		return fmt.Errorf("POOL_MIN_CONNS (%d) must not exceed POOL_MAX_CONNS (%d)", cfg.PoolMinConns, cfg.PoolMaxConns)
	}

	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
