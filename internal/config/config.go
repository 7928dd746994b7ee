// Package config loads jsonmapper settings from a YAML file with
// JSONMAPPER_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "JSONMAPPER_"

// Config holds all settings.
type Config struct {
	// Database is a SQLite path or a postgres:// URL. Empty keeps records
	// in memory.
	Database string `yaml:"database"`

	// Listen is the HTTP listen address for serve.
	Listen string `yaml:"listen"`

	Lookup   LookupConfig   `yaml:"lookup"`
	Function FunctionConfig `yaml:"function"`
	Batch    BatchConfig    `yaml:"batch"`
	Log      LogConfig      `yaml:"log"`
	Event    EventConfig    `yaml:"event"`
}

// LookupConfig configures sub-child fetches.
type LookupConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
	Burst     int           `yaml:"burst"`
	Retries   int           `yaml:"retries"`
}

// FunctionConfig configures the custom function sandbox.
type FunctionConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// EventConfig configures change events.
type EventConfig struct {
	Source string `yaml:"source"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Lookup: LookupConfig{
			Timeout:   5 * time.Second,
			RateLimit: 10,
			Burst:     5,
			Retries:   2,
		},
		Function: FunctionConfig{Timeout: 2 * time.Second},
		Batch:    BatchConfig{Concurrency: 4},
		Log:      LogConfig{Level: "info"},
		Event:    EventConfig{Source: "jsonmapper"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Lookup.Timeout <= 0 {
		errs = append(errs, errors.New("lookup.timeout must be positive"))
	}
	if c.Lookup.RateLimit <= 0 {
		errs = append(errs, errors.New("lookup.rate_limit must be positive"))
	}
	if c.Lookup.Burst <= 0 {
		errs = append(errs, errors.New("lookup.burst must be positive"))
	}
	if c.Lookup.Retries < 0 {
		errs = append(errs, errors.New("lookup.retries must not be negative"))
	}
	if c.Function.Timeout <= 0 {
		errs = append(errs, errors.New("function.timeout must be positive"))
	}
	if c.Batch.Concurrency <= 0 {
		errs = append(errs, errors.New("batch.concurrency must be positive"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// applyEnv overrides settings from JSONMAPPER_DATABASE,
// JSONMAPPER_LOOKUP_TIMEOUT and so on: the key path upper-cased with dots
// as underscores.
func (c *Config) applyEnv() error {
	var errs []error
	c.Database = getEnv("DATABASE", c.Database)
	c.Listen = getEnv("LISTEN", c.Listen)
	c.Lookup.Timeout = getEnvDur("LOOKUP_TIMEOUT", c.Lookup.Timeout, &errs)
	c.Lookup.RateLimit = getEnvFloat("LOOKUP_RATE_LIMIT", c.Lookup.RateLimit, &errs)
	c.Lookup.Burst = getEnvInt("LOOKUP_BURST", c.Lookup.Burst, &errs)
	c.Lookup.Retries = getEnvInt("LOOKUP_RETRIES", c.Lookup.Retries, &errs)
	c.Function.Timeout = getEnvDur("FUNCTION_TIMEOUT", c.Function.Timeout, &errs)
	c.Batch.Concurrency = getEnvInt("BATCH_CONCURRENCY", c.Batch.Concurrency, &errs)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Event.Source = getEnv("EVENT_SOURCE", c.Event.Source)
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

func getEnv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(EnvPrefix + key))
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int, errs *[]error) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		return def
	}
	return i
}

func getEnvFloat(key string, def float64, errs *[]error) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		return def
	}
	return f
}

func getEnvDur(key string, def time.Duration, errs *[]error) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		return def
	}
	return d
}
