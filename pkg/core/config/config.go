// Package config loads the CLI configuration file and element-ID
// allow-list files.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	hjson "github.com/hjson/hjson-go/v4"
	"gopkg.in/yaml.v2"
)

// Configuration validation errors.
var (
	ErrMissingSubscriptionKey = errors.New("subscription key is required (config file or EDINET_API_KEY)")
	ErrInvalidRetryAttempts   = errors.New("retry.attempts must be at least 1")
	ErrInvalidRetryBudget     = errors.New("retry.budget_sec must be at least 1")
	ErrInvalidRequestTimeout  = errors.New("request_timeout_sec must be at least 1")
	ErrInvalidFetchInterval   = errors.New("fetch_interval_ms must be non-negative")
	ErrInvalidLogLevel        = errors.New("logging.level must be one of: debug, info, warn, error")
)

// Config is the complete CLI configuration.
type Config struct {
	SubscriptionKey   string        `yaml:"subscription_key"`
	RequestTimeoutSec int           `yaml:"request_timeout_sec"`
	FetchIntervalMs   int           `yaml:"fetch_interval_ms"`
	Translation       bool          `yaml:"translation"`
	Retry             RetryConfig   `yaml:"retry"`
	Logging           LoggingConfig `yaml:"logging"`
}

// RetryConfig bounds the retry sequence per API call.
type RetryConfig struct {
	Attempts  int `yaml:"attempts"`
	BudgetSec int `yaml:"budget_sec"`
}

// LoggingConfig selects the log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the configuration used when no file is supplied. The
// subscription key still has to come from the environment.
func Default() Config {
	return Config{
		SubscriptionKey:   os.Getenv("EDINET_API_KEY"),
		RequestTimeoutSec: 30,
		FetchIntervalMs:   1000,
		Translation:       true,
		Retry:             RetryConfig{Attempts: 3, BudgetSec: 45},
		Logging:           LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML config file over the defaults and validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.SubscriptionKey == "" {
		cfg.SubscriptionKey = os.Getenv("EDINET_API_KEY")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.SubscriptionKey == "" {
		return ErrMissingSubscriptionKey
	}
	if c.Retry.Attempts < 1 {
		return ErrInvalidRetryAttempts
	}
	if c.Retry.BudgetSec < 1 {
		return ErrInvalidRetryBudget
	}
	if c.RequestTimeoutSec < 1 {
		return ErrInvalidRequestTimeout
	}
	if c.FetchIntervalMs < 0 {
		return ErrInvalidFetchInterval
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	return nil
}

// RequestTimeout returns the per-request timeout as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// FetchInterval returns the inter-request pacing delay as a duration.
func (c Config) FetchInterval() time.Duration {
	return time.Duration(c.FetchIntervalMs) * time.Millisecond
}

// RetryBudget returns the total retry time budget as a duration.
func (c Config) RetryBudget() time.Duration {
	return time.Duration(c.Retry.BudgetSec) * time.Second
}

// LoadFields reads an element-ID allow-list from an HJSON file, so field
// lists can carry comments. The file holds either a bare array of IDs or
// an object with a "fields" array.
func LoadFields(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fields file %s: %w", path, err)
	}

	var bare []string
	if err := hjson.Unmarshal(data, &bare); err == nil {
		return bare, nil
	}

	var wrapped struct {
		Fields []string `json:"fields"`
	}
	if err := hjson.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse fields file %s: %w", path, err)
	}
	if wrapped.Fields == nil {
		return nil, fmt.Errorf("fields file %s has no field list", path)
	}
	return wrapped.Fields, nil
}
