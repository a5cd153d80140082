package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds ingest run configuration.
type Config struct {
	EntryPoints       []string
	WorkerCount       int
	BatchSize         int
	MaxPagesPerSource int
	RunTimeout        time.Duration
	RetryCount        int
	RetryBackoff      time.Duration
	RetryBackoffMax   time.Duration
	FetchTimeout      time.Duration
	RequestsPerSecond float64
	MaxBodySize       int64
	DedupeMaxSize     int
	UserAgent         string
	MetricsAddr       string
	StoreDSN          string
	StoreSchema       string
	Verbose           bool
}

// DefaultConfig returns conservative defaults for the demo catalog.
func DefaultConfig() *Config {
	return &Config{
		EntryPoints:       []string{"https://books.toscrape.com/catalogue/page-1.html"},
		WorkerCount:       5,
		BatchSize:         25,
		MaxPagesPerSource: 50,
		RunTimeout:        5 * time.Minute,
		RetryCount:        3,
		RetryBackoff:      200 * time.Millisecond,
		RetryBackoffMax:   2 * time.Second,
		FetchTimeout:      10 * time.Second,
		RequestsPerSecond: 0,
		MaxBodySize:       2 << 20,
		DedupeMaxSize:     100000,
		UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		MetricsAddr:       "",
		StoreDSN:          "",
		StoreSchema:       "public",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if len(c.EntryPoints) == 0 {
		return fmt.Errorf("at least one entry point is required")
	}
	for _, ep := range c.EntryPoints {
		parsed, err := url.Parse(ep)
		if err != nil {
			return fmt.Errorf("invalid entry point %q: %w", ep, err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("entry point %q must include a host", ep)
		}
	}

	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker count must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.MaxPagesPerSource <= 0 {
		return fmt.Errorf("max pages per source must be positive")
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("run timeout must be positive")
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("retry count cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative")
	}
	if c.MaxBodySize <= 0 {
		return fmt.Errorf("max body size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	return nil
}

// EnvString reads a string from the environment. The second return value
// reports whether the variable was set and non-empty.
func EnvString(key string) (string, bool) {
	value := os.Getenv(key)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer from the environment.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, true, nil
}

// EnvDuration reads a duration (e.g. "30s", "5m") from the environment.
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return parsed, true, nil
}
