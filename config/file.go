package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config with pointer fields so an absent key leaves the
// existing value untouched.
type fileConfig struct {
	EntryPoints       []string `yaml:"entry_points"`
	WorkerCount       *int     `yaml:"worker_count"`
	BatchSize         *int     `yaml:"batch_size"`
	MaxPagesPerSource *int     `yaml:"max_pages_per_source"`
	RunTimeout        *string  `yaml:"run_timeout"`
	RetryCount        *int     `yaml:"retry_count"`
	RetryBackoff      *string  `yaml:"retry_backoff"`
	RetryBackoffMax   *string  `yaml:"retry_backoff_max"`
	FetchTimeout      *string  `yaml:"fetch_timeout"`
	RequestsPerSecond *float64 `yaml:"requests_per_second"`
	UserAgent         *string  `yaml:"user_agent"`
	MetricsAddr       *string  `yaml:"metrics_addr"`
	StoreDSN          *string  `yaml:"store_dsn"`
	StoreSchema       *string  `yaml:"store_schema"`
}

func parseFileDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config file: %s: %w", key, err)
	}
	return d, nil
}

// ApplyFile overlays values from a YAML file onto c. Keys absent from the
// file keep their current values.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}

	if len(fc.EntryPoints) > 0 {
		c.EntryPoints = fc.EntryPoints
	}
	if fc.WorkerCount != nil {
		c.WorkerCount = *fc.WorkerCount
	}
	if fc.BatchSize != nil {
		c.BatchSize = *fc.BatchSize
	}
	if fc.MaxPagesPerSource != nil {
		c.MaxPagesPerSource = *fc.MaxPagesPerSource
	}
	if fc.RunTimeout != nil {
		d, err := parseFileDuration("run_timeout", *fc.RunTimeout)
		if err != nil {
			return err
		}
		c.RunTimeout = d
	}
	if fc.RetryCount != nil {
		c.RetryCount = *fc.RetryCount
	}
	if fc.RetryBackoff != nil {
		d, err := parseFileDuration("retry_backoff", *fc.RetryBackoff)
		if err != nil {
			return err
		}
		c.RetryBackoff = d
	}
	if fc.RetryBackoffMax != nil {
		d, err := parseFileDuration("retry_backoff_max", *fc.RetryBackoffMax)
		if err != nil {
			return err
		}
		c.RetryBackoffMax = d
	}
	if fc.FetchTimeout != nil {
		d, err := parseFileDuration("fetch_timeout", *fc.FetchTimeout)
		if err != nil {
			return err
		}
		c.FetchTimeout = d
	}
	if fc.RequestsPerSecond != nil {
		c.RequestsPerSecond = *fc.RequestsPerSecond
	}
	if fc.UserAgent != nil {
		c.UserAgent = *fc.UserAgent
	}
	if fc.MetricsAddr != nil {
		c.MetricsAddr = *fc.MetricsAddr
	}
	if fc.StoreDSN != nil {
		c.StoreDSN = *fc.StoreDSN
	}
	if fc.StoreSchema != nil {
		c.StoreSchema = *fc.StoreSchema
	}
	return nil
}
