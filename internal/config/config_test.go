package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	routererrors "github.com/irouter/irouter/internal/errors"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Cache.Capacity != 256 || cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("unexpected cache defaults: %+v", cfg.Cache)
	}
	if !cfg.Backends.DuckDB.Enabled {
		t.Error("duckdb must be enabled by default")
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data_dir: /var/lib/irouter
cache:
  capacity: 64
  ttl: 30s
backends:
  duckdb:
    enabled: true
  remote:
    enabled: true
    endpoint: http://exec.internal:8080/query
schema:
  sales:
    year: INT
    region: VARCHAR
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDir != "/var/lib/irouter" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Cache.Capacity != 64 || cfg.Cache.TTL != 30*time.Second {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Backends.Remote.Endpoint != "http://exec.internal:8080/query" {
		t.Errorf("remote endpoint = %q", cfg.Backends.Remote.Endpoint)
	}
	if cfg.Schema["sales"]["year"] != "INT" {
		t.Errorf("schema = %+v", cfg.Schema)
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"data_dir": "/data", "cache": {"capacity": 8}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDir != "/data" || cfg.Cache.Capacity != 8 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("IROUTER_DATA_DIR", "/env/data")
	t.Setenv("IROUTER_CACHE_CAPACITY", "11")
	t.Setenv("IROUTER_CACHE_TTL", "90s")
	t.Setenv("IROUTER_SQLITE_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDir != "/env/data" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Cache.Capacity != 11 || cfg.Cache.TTL != 90*time.Second {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Backends.SQLite.Enabled {
		t.Error("env must disable sqlite")
	}
}

func TestValidateFailures(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Cache.Capacity = -1 },
		func(c *Config) { c.Storage.Mode = "ftp" },
		func(c *Config) { c.Storage.Mode = "s3"; c.Storage.S3.Bucket = "" },
		func(c *Config) { c.Backends.Remote.Enabled = true; c.Backends.Remote.Endpoint = "" },
		func(c *Config) {
			c.Backends.DuckDB.Enabled = false
			c.Backends.SQLite.Enabled = false
			c.Backends.Remote.Enabled = false
		},
		func(c *Config) { c.Logging.Level = "verbose" },
	}
	for i, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("case %d: expected validation error", i)
			continue
		}
		if routererrors.GetCode(err) != routererrors.CodeInvalidConfig {
			t.Errorf("case %d: expected INVALID_CONFIG, got %v", i, err)
		}
	}
}

func TestEffectiveCacheCapacity(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.EffectiveCacheCapacity() != 256 {
		t.Errorf("got %d", cfg.EffectiveCacheCapacity())
	}
	cfg.Cache.Disabled = true
	if cfg.EffectiveCacheCapacity() != 0 {
		t.Error("disabled cache must report zero capacity")
	}
}
