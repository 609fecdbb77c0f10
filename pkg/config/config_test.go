package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Address != ":8080" || cfg.Store.Backend != "localfs" || cfg.Cache.Backend != "none" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
address: ":9000"
store:
  backend: s3
  s3:
    bucket: images
    endpoint: https://example.r2.cloudflarestorage.com
    forcePathStyle: true
cache:
  backend: memcached
  ttl: 5m
  memcached:
    servers: ["127.0.0.1:11211"]
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IMGPROXY_ADDR", ":9100")
	t.Setenv("IMGPROXY_S3_PREFIX", "public/")
	t.Setenv("IMGPROXY_TRACING_KEY_HASH", "yes")
	t.Setenv("IMGPROXY_CACHE_MAX_ENTRY_BYTES", "2048")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Address != ":9100" {
		t.Fatalf("env should override address, got %q", cfg.Address)
	}
	if cfg.Store.S3.Bucket != "images" || cfg.Store.S3.Prefix != "public/" || !cfg.Store.S3.ForcePathStyle {
		t.Fatalf("unexpected s3 config: %+v", cfg.Store.S3)
	}
	if cfg.Store.S3.Region != "us-east-1" {
		t.Fatalf("default region should survive YAML, got %q", cfg.Store.S3.Region)
	}
	if !cfg.Tracing.KeyHashEnabled {
		t.Fatal("expected key hash enabled from env")
	}
	if cfg.Cache.TTLDuration() != 5*time.Minute || cfg.Cache.MaxEntryBytes != 2048 {
		t.Fatalf("unexpected cache config: %+v", cfg.Cache)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown store":     func(c *Config) { c.Store.Backend = "ftp" },
		"s3 without bucket": func(c *Config) { c.Store.Backend = "s3" },
		"minio without endpoint": func(c *Config) {
			c.Store.Backend = "minio"
			c.Store.Minio.Bucket = "b"
		},
		"unknown cache":        func(c *Config) { c.Cache.Backend = "disk" },
		"redis without addr":   func(c *Config) { c.Cache.Backend = "redis" },
		"zero max entry bytes": func(c *Config) { c.Cache.Backend = "ccache"; c.Cache.MaxEntryBytes = 0 },
		"bad ttl":              func(c *Config) { c.Cache.TTL = "soon" },
		"bad log format":       func(c *Config) { c.Log.Format = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEnvBooleans(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "on"} {
		t.Setenv("IMGPROXY_LOG_CONSOLE", v)
		if !applyEnvOverrides(Default()).Log.Console {
			t.Fatalf("%q should be truthy", v)
		}
	}
	t.Setenv("IMGPROXY_LOG_CONSOLE", "maybe")
	cfg := Default()
	cfg.Log.Console = true
	if !applyEnvOverrides(cfg).Log.Console {
		t.Fatal("unparseable value should keep existing setting")
	}
}

func TestServerDurations(t *testing.T) {
	r, w, i := ServerConfig{ReadTimeout: "3s", IdleTimeout: "bogus"}.Durations()
	if r != 3*time.Second || w != 15*time.Second || i != 60*time.Second {
		t.Fatalf("got %v %v %v", r, w, i)
	}
}

func TestEnsureDirs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	cfg := Default()
	cfg.Store.DataDirs = []string{dir}
	if err := EnsureDirs(cfg); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		t.Fatalf("expected %s to exist", dir)
	}
}

func TestAdminAddress(t *testing.T) {
	if Default().AdminAddress != ":9090" {
		t.Fatalf("admin listener should default to :9090")
	}
	t.Setenv("IMGPROXY_ADMIN_ADDR", "off")
	if got := applyEnvOverrides(Default()).AdminAddress; got != "" {
		t.Fatalf("expected admin disabled, got %q", got)
	}
}
