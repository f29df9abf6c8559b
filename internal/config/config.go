// Package config loads router configuration from YAML or JSON files with
// environment variable overrides under the IROUTER_ prefix.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/irouter/irouter/internal/errors"
	"github.com/irouter/irouter/pkg/types"
)

// Config is the full router configuration.
type Config struct {
	// DataDir holds one subdirectory per table with Hive-style partitions.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Schema maps table names to column types. Usually loaded from the
	// config file; queries against unlisted tables still run, but without
	// typed predicate coercion.
	Schema types.Schema `yaml:"schema" json:"schema"`

	Cache    CacheConfig    `yaml:"cache" json:"cache"`
	Backends BackendsConfig `yaml:"backends" json:"backends"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
}

// CacheConfig sizes the result cache.
type CacheConfig struct {
	Capacity int           `yaml:"capacity" json:"capacity"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
	Disabled bool          `yaml:"disabled" json:"disabled"`
}

// BackendsConfig enables and configures the execution backends.
type BackendsConfig struct {
	DuckDB DuckDBConfig `yaml:"duckdb" json:"duckdb"`
	SQLite SQLiteConfig `yaml:"sqlite" json:"sqlite"`
	Remote RemoteConfig `yaml:"remote" json:"remote"`
}

// DuckDBConfig configures the embedded DuckDB backend.
type DuckDBConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// SQLiteConfig configures the embedded SQLite backend.
type SQLiteConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// RemoteConfig configures the remote HTTP execution backend.
type RemoteConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// StorageConfig selects where table data lives.
type StorageConfig struct {
	// Mode is "local" or "s3".
	Mode string `yaml:"mode" json:"mode"`
	// CacheDir receives mirrored S3 objects in s3 mode.
	CacheDir string   `yaml:"cache_dir" json:"cache_dir"`
	S3       S3Config `yaml:"s3" json:"s3"`
}

// S3Config points at the bucket holding table data.
type S3Config struct {
	Bucket       string `yaml:"bucket" json:"bucket"`
	Region       string `yaml:"region" json:"region"`
	Endpoint     string `yaml:"endpoint" json:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style" json:"use_path_style"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level" json:"level"`
	// Format is "json" or "console".
	Format string `yaml:"format" json:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// DefaultConfig returns a configuration that works out of the box against
// a local ./data directory.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Cache: CacheConfig{
			Capacity: 256,
			TTL:      5 * time.Minute,
		},
		Backends: BackendsConfig{
			DuckDB: DuckDBConfig{Enabled: true},
			SQLite: SQLiteConfig{Enabled: true},
			Remote: RemoteConfig{Timeout: 60 * time.Second},
		},
		Storage: StorageConfig{
			Mode:     "local",
			CacheDir: "./cache",
			S3:       S3Config{Region: "us-east-1"},
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Metrics: MetricsConfig{Addr: ":9090"},
	}
}

// Load reads a config file (YAML or JSON by extension), applies environment
// overrides, and validates. An empty path returns the defaults with
// environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.NewConfigError("cannot read config file: " + err.Error())
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			err = json.Unmarshal(data, cfg)
		default:
			err = yaml.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, errors.NewConfigError("cannot parse config file: " + err.Error())
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from IROUTER_* environment variables.
func (c *Config) applyEnv() {
	setString(&c.DataDir, "IROUTER_DATA_DIR")
	setInt(&c.Cache.Capacity, "IROUTER_CACHE_CAPACITY")
	setDuration(&c.Cache.TTL, "IROUTER_CACHE_TTL")
	setBool(&c.Cache.Disabled, "IROUTER_CACHE_DISABLED")
	setBool(&c.Backends.DuckDB.Enabled, "IROUTER_DUCKDB_ENABLED")
	setBool(&c.Backends.SQLite.Enabled, "IROUTER_SQLITE_ENABLED")
	setBool(&c.Backends.Remote.Enabled, "IROUTER_REMOTE_ENABLED")
	setString(&c.Backends.Remote.Endpoint, "IROUTER_REMOTE_ENDPOINT")
	setDuration(&c.Backends.Remote.Timeout, "IROUTER_REMOTE_TIMEOUT")
	setString(&c.Storage.Mode, "IROUTER_STORAGE_MODE")
	setString(&c.Storage.CacheDir, "IROUTER_STORAGE_CACHE_DIR")
	setString(&c.Storage.S3.Bucket, "IROUTER_S3_BUCKET")
	setString(&c.Storage.S3.Region, "IROUTER_S3_REGION")
	setString(&c.Storage.S3.Endpoint, "IROUTER_S3_ENDPOINT")
	setBool(&c.Storage.S3.UsePathStyle, "IROUTER_S3_PATH_STYLE")
	setString(&c.Logging.Level, "IROUTER_LOG_LEVEL")
	setString(&c.Logging.Format, "IROUTER_LOG_FORMAT")
	setBool(&c.Metrics.Enabled, "IROUTER_METRICS_ENABLED")
	setString(&c.Metrics.Addr, "IROUTER_METRICS_ADDR")
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.DataDir == "" && c.Storage.Mode == "local" {
		return errors.NewConfigError("data_dir is required in local storage mode")
	}
	if c.Cache.Capacity < 0 {
		return errors.NewConfigError("cache.capacity cannot be negative")
	}
	if c.Cache.TTL < 0 {
		return errors.NewConfigError("cache.ttl cannot be negative")
	}
	switch c.Storage.Mode {
	case "local", "s3":
	default:
		return errors.NewConfigError("storage.mode must be local or s3")
	}
	if c.Storage.Mode == "s3" {
		if c.Storage.S3.Bucket == "" {
			return errors.NewConfigError("storage.s3.bucket is required in s3 mode")
		}
		if c.Storage.CacheDir == "" {
			return errors.NewConfigError("storage.cache_dir is required in s3 mode")
		}
	}
	if c.Backends.Remote.Enabled && c.Backends.Remote.Endpoint == "" {
		return errors.NewConfigError("backends.remote.endpoint is required when the remote backend is enabled")
	}
	if !c.Backends.DuckDB.Enabled && !c.Backends.SQLite.Enabled && !c.Backends.Remote.Enabled {
		return errors.NewConfigError("at least one backend must be enabled")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.NewConfigError("logging.level must be debug, info, warn, or error")
	}
	return nil
}

// EffectiveCacheCapacity returns the capacity with the disable flag folded
// in.
func (c *Config) EffectiveCacheCapacity() int {
	if c.Cache.Disabled {
		return 0
	}
	return c.Cache.Capacity
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
