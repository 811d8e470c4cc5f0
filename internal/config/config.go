// Package config provides unified, environment-overridable configuration
// for the event store and its surrounding cmd/ entry points.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// ArchiverKind selects the cold-tier export boundary used by the pruner.
type ArchiverKind string

const (
	ArchiverNone  ArchiverKind = "none"
	ArchiverLocal ArchiverKind = "local"
	ArchiverS3    ArchiverKind = "s3"
)

// Config holds every option spec.md §6 recognizes at start-up, plus the
// ambient options SPEC_FULL.md §6.3 adds (shard count, archiver, metrics
// namespace).
type Config struct {
	// MaxEvents is the hard cap triggering a capacity prune.
	MaxEvents int64 `json:"max_events" yaml:"max_events" env:"MAX_EVENTS" envDefault:"1000000"`

	// MaxAgeMs is the age-based prune cutoff in milliseconds. Zero means
	// no age-based pruning.
	MaxAgeMs int64 `json:"max_age_ms" yaml:"max_age_ms" env:"MAX_AGE_MS" envDefault:"0"`

	// CleanupIntervalMs is the periodic prune cadence.
	CleanupIntervalMs int64 `json:"cleanup_interval_ms" yaml:"cleanup_interval_ms" env:"CLEANUP_INTERVAL_MS" envDefault:"60000"`

	// LowWaterRatio is the capacity-prune target: after a capacity prune,
	// total_events <= max_events * low_water_ratio.
	LowWaterRatio float64 `json:"low_water_ratio" yaml:"low_water_ratio" env:"LOW_WATER_RATIO" envDefault:"0.9"`

	// QueryDefaultLimit is used when a query supplies no limit.
	QueryDefaultLimit int `json:"query_default_limit" yaml:"query_default_limit" env:"QUERY_DEFAULT_LIMIT" envDefault:"1000"`

	// ShardCount is the number of shards for each sharded secondary index.
	ShardCount int `json:"shard_count" yaml:"shard_count" env:"SHARD_COUNT" envDefault:"32"`

	// Archiver selects the cold-tier export boundary offered pruned events.
	Archiver ArchiverKind `json:"archiver" yaml:"archiver" env:"ARCHIVER" envDefault:"none"`

	Local LocalArchiverConfig `json:"local" yaml:"local"`
	S3    S3ArchiverConfig    `json:"s3" yaml:"s3"`

	// MetricsNamespace prefixes every Prometheus metric this store emits.
	MetricsNamespace string `json:"metrics_namespace" yaml:"metrics_namespace" env:"METRICS_NAMESPACE" envDefault:"tracestore"`
}

// LocalArchiverConfig configures the filesystem-backed Archiver.
type LocalArchiverConfig struct {
	Path string `json:"path" yaml:"path" env:"ARCHIVER_LOCAL_PATH" envDefault:"./data/archive.ndjson.snappy"`
}

// S3ArchiverConfig configures the S3-backed Archiver.
type S3ArchiverConfig struct {
	Bucket string `json:"bucket" yaml:"bucket" env:"ARCHIVER_S3_BUCKET"`
	Prefix string `json:"prefix" yaml:"prefix" env:"ARCHIVER_S3_PREFIX" envDefault:"tracestore/"`
	Region string `json:"region" yaml:"region" env:"ARCHIVER_S3_REGION"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		MaxEvents:         1_000_000,
		CleanupIntervalMs: 60_000,
		LowWaterRatio:     0.9,
		QueryDefaultLimit: 1_000,
		ShardCount:        32,
		Archiver:          ArchiverNone,
		Local:             LocalArchiverConfig{Path: "./data/archive.ndjson.snappy"},
		S3:                S3ArchiverConfig{Prefix: "tracestore/"},
		MetricsNamespace:  "tracestore",
	}
}

// FromEnv loads configuration from environment variables using struct
// tags, starting from Default().
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads a YAML or JSON override file on top of Default().
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read file: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(strings.TrimPrefix(pathExt(path), ".")); ext {
	case "yaml", "yml", "json": // yaml.Unmarshal also accepts JSON (a YAML superset)
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config: unsupported config file extension %q", ext)
	}
	return cfg, nil
}

func pathExt(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return path[idx:]
}

// Validate checks internal coherence of the configuration.
func (c *Config) Validate() error {
	if c.MaxEvents < 0 {
		return fmt.Errorf("config: max_events must be >= 0")
	}
	if c.LowWaterRatio <= 0 || c.LowWaterRatio > 1 {
		return fmt.Errorf("config: low_water_ratio must be in (0, 1], got %f", c.LowWaterRatio)
	}
	if c.QueryDefaultLimit <= 0 {
		return fmt.Errorf("config: query_default_limit must be > 0")
	}
	if c.ShardCount <= 0 {
		return fmt.Errorf("config: shard_count must be > 0")
	}
	switch c.Archiver {
	case ArchiverNone, ArchiverLocal, ArchiverS3:
	default:
		return fmt.Errorf("config: invalid archiver %q (must be none, local, or s3)", c.Archiver)
	}
	if c.Archiver == ArchiverS3 && c.S3.Bucket == "" {
		return fmt.Errorf("config: s3.bucket is required when archiver is s3")
	}
	return nil
}

// CleanupInterval returns CleanupIntervalMs as a time.Duration.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMs) * time.Millisecond
}

// MaxAge returns MaxAgeMs as a time.Duration, or 0 if unset.
func (c *Config) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeMs) * time.Millisecond
}

// HasMaxAge reports whether age-based pruning is configured.
func (c *Config) HasMaxAge() bool {
	return c.MaxAgeMs > 0
}
