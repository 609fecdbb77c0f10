package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for imgproxy.
//
// YAML example:
//   address: ":8080"
//   adminAddress: ":9090"
//   log:
//     format: "json"          # "text" or "json"
//     level: "info"
//   store:
//     backend: "s3"           # "localfs", "memory", "s3" or "minio"
//     s3:
//       bucket: "images"
//       endpoint: "https://<account>.r2.cloudflarestorage.com"
//       forcePathStyle: true
//   cache:
//     backend: "ccache"       # "none", "bigcache", "ccache", "memcached" or "redis"
//     ttl: "10m"
//     maxEntryBytes: 1048576
//
// Environment overrides:
//   IMGPROXY_ADDR, IMGPROXY_ADMIN_ADDR
//   IMGPROXY_LOG_FORMAT, IMGPROXY_LOG_LEVEL, IMGPROXY_LOG_CONSOLE
//   IMGPROXY_STORE_BACKEND, IMGPROXY_DATA_DIRS (comma-separated)
//   IMGPROXY_S3_BUCKET, IMGPROXY_S3_PREFIX, IMGPROXY_S3_REGION, IMGPROXY_S3_ENDPOINT,
//   IMGPROXY_S3_ACCESS_KEY, IMGPROXY_S3_SECRET_KEY, IMGPROXY_S3_FORCE_PATH_STYLE
//   IMGPROXY_MINIO_ENDPOINT, IMGPROXY_MINIO_BUCKET, IMGPROXY_MINIO_PREFIX,
//   IMGPROXY_MINIO_ACCESS_KEY, IMGPROXY_MINIO_SECRET_KEY, IMGPROXY_MINIO_SECURE
//   IMGPROXY_CACHE_BACKEND, IMGPROXY_CACHE_TTL, IMGPROXY_CACHE_MAX_ENTRY_BYTES,
//   IMGPROXY_MEMCACHED_SERVERS (comma-separated), IMGPROXY_REDIS_ADDR, IMGPROXY_REDIS_PASSWORD, IMGPROXY_REDIS_DB
//   IMGPROXY_TRACING_* as for the tracing section
//   IMGPROXY_CONFIG path to YAML config file; if empty, loader tries ./config.yaml then defaults.
//
// Add new fields with sensible defaults; existing defaults should not change silently.
type Config struct {
	Address      string        `yaml:"address"`
	AdminAddress string        `yaml:"adminAddress"` // admin endpoints and /metrics; empty disables
	Log          LogConfig     `yaml:"log"`
	Store        StoreConfig   `yaml:"store"`
	Cache        CacheConfig   `yaml:"cache"`
	Tracing      TracingConfig `yaml:"tracing"`
	Server       ServerConfig  `yaml:"server"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Format  string `yaml:"format"`            // "text" (default) or "json"
	Level   string `yaml:"level"`             // debug, info, warn, error
	Console bool   `yaml:"console,omitempty"` // colored access lines on stdout
}

// StoreConfig selects and configures the object store.
type StoreConfig struct {
	Backend  string      `yaml:"backend"`
	DataDirs []string    `yaml:"dataDirs"` // localfs
	S3       S3Config    `yaml:"s3"`
	Minio    MinioConfig `yaml:"minio"`
}

type S3Config struct {
	Bucket         string `yaml:"bucket"`
	Prefix         string `yaml:"prefix,omitempty"`
	Region         string `yaml:"region,omitempty"`
	Endpoint       string `yaml:"endpoint,omitempty"` // R2 and other S3-compatible services
	AccessKey      string `yaml:"accessKey,omitempty"`
	SecretKey      string `yaml:"secretKey,omitempty"`
	ForcePathStyle bool   `yaml:"forcePathStyle,omitempty"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"` // host:port
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix,omitempty"`
	AccessKey string `yaml:"accessKey,omitempty"`
	SecretKey string `yaml:"secretKey,omitempty"`
	Secure    bool   `yaml:"secure,omitempty"`
}

// CacheConfig controls the optional read-through cache.
type CacheConfig struct {
	Backend       string          `yaml:"backend"`
	TTL           string          `yaml:"ttl,omitempty"`           // e.g. "10m"
	MaxEntryBytes int64           `yaml:"maxEntryBytes,omitempty"` // larger objects bypass the cache
	Bigcache      BigcacheConfig  `yaml:"bigcache"`
	CCache        CCacheConfig    `yaml:"ccache"`
	Memcached     MemcachedConfig `yaml:"memcached"`
	Redis         RedisConfig     `yaml:"redis"`
}

type BigcacheConfig struct {
	MaxMemoryMB int `yaml:"maxMemoryMB,omitempty"`
	Shards      int `yaml:"shards,omitempty"` // power of two
}

type CCacheConfig struct {
	MaxBytes int64 `yaml:"maxBytes,omitempty"`
}

type MemcachedConfig struct {
	Servers []string `yaml:"servers"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Endpoint       string  `yaml:"endpoint"`                 // OTLP collector endpoint (host:port or URL)
	Protocol       string  `yaml:"protocol,omitempty"`       // "grpc" (default) or "http"
	SampleRatio    float64 `yaml:"sampleRatio,omitempty"`    // 0.0 - 1.0
	ServiceName    string  `yaml:"serviceName,omitempty"`    // default "imgproxy"
	KeyHashEnabled bool    `yaml:"keyHashEnabled,omitempty"` // emit img.key_hash (sha256(key) first 8 bytes hex)
}

// ServerConfig holds http.Server timeouts as Go durations.
type ServerConfig struct {
	ReadTimeout  string `yaml:"readTimeout,omitempty"`
	WriteTimeout string `yaml:"writeTimeout,omitempty"`
	IdleTimeout  string `yaml:"idleTimeout,omitempty"`
}

// Default returns a Config with safe, local defaults.
func Default() Config {
	return Config{
		Address:      ":8080",
		AdminAddress: ":9090",
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Store: StoreConfig{
			Backend:  "localfs",
			DataDirs: []string{"./data"},
			S3:       S3Config{Region: "us-east-1"},
		},
		Cache: CacheConfig{
			Backend:       "none",
			TTL:           "10m",
			MaxEntryBytes: 1 << 20, // 1 MiB
			Bigcache:      BigcacheConfig{MaxMemoryMB: 256, Shards: 1024},
			CCache:        CCacheConfig{MaxBytes: 256 << 20},
		},
		Tracing: TracingConfig{
			Protocol:    "grpc",
			ServiceName: "imgproxy",
		},
		Server: ServerConfig{
			ReadTimeout:  "15s",
			WriteTimeout: "15s",
			IdleTimeout:  "60s",
		},
	}
}

// Load reads configuration from path. If path is empty, it attempts to read
// ./config.yaml; if not found, returns Default(). Environment overrides apply last.
func Load(path string) (Config, error) {
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path == "" {
		return applyEnvOverrides(Default()), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return applyEnvOverrides(Default()), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return applyEnvOverrides(cfg), nil
}

// Validate rejects configurations that cannot start.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case "localfs":
		if len(c.Store.DataDirs) == 0 {
			return fmt.Errorf("store.dataDirs is required for localfs")
		}
	case "memory":
	case "s3":
		if c.Store.S3.Bucket == "" {
			return fmt.Errorf("store.s3.bucket is required")
		}
	case "minio":
		if c.Store.Minio.Endpoint == "" || c.Store.Minio.Bucket == "" {
			return fmt.Errorf("store.minio.endpoint and store.minio.bucket are required")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Cache.Backend {
	case "", "none", "bigcache", "ccache":
	case "memcached":
		if len(c.Cache.Memcached.Servers) == 0 {
			return fmt.Errorf("cache.memcached.servers is required")
		}
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Enabled() && c.Cache.MaxEntryBytes <= 0 {
		return fmt.Errorf("cache.maxEntryBytes must be positive")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	for name, v := range map[string]string{
		"cache.ttl":           c.Cache.TTL,
		"server.readTimeout":  c.Server.ReadTimeout,
		"server.writeTimeout": c.Server.WriteTimeout,
		"server.idleTimeout":  c.Server.IdleTimeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Enabled reports whether a cache backend is selected.
func (c CacheConfig) Enabled() bool { return c.Backend != "" && c.Backend != "none" }

// TTLDuration parses TTL; an empty or invalid value means no expiry.
func (c CacheConfig) TTLDuration() time.Duration {
	return durationOr(c.TTL, 0)
}

// Durations returns the read, write and idle timeouts with fallbacks.
func (s ServerConfig) Durations() (read, write, idle time.Duration) {
	return durationOr(s.ReadTimeout, 15*time.Second),
		durationOr(s.WriteTimeout, 15*time.Second),
		durationOr(s.IdleTimeout, 60*time.Second)
}

func durationOr(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d < 0 {
		return def
	}
	return d
}

// EnsureDirs creates localfs data directories with 0700 if they don't exist.
func EnsureDirs(cfg Config) error {
	if cfg.Store.Backend != "localfs" {
		return nil
	}
	for _, d := range cfg.Store.DataDirs {
		if d == "" {
			continue
		}
		abs, err := filepath.Abs(d)
		if err != nil {
			return fmt.Errorf("abs path %q: %w", d, err)
		}
		if err := os.MkdirAll(abs, 0o700); err != nil {
			return fmt.Errorf("mkdir %q: %w", abs, err)
		}
	}
	return nil
}

func applyEnvOverrides(cfg Config) Config {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	flag := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			if b, ok := parseBool(v); ok {
				*dst = b
			}
		}
	}

	str("IMGPROXY_ADDR", &cfg.Address)
	str("IMGPROXY_ADMIN_ADDR", &cfg.AdminAddress)
	if v := strings.ToLower(cfg.AdminAddress); v == "off" || v == "none" {
		cfg.AdminAddress = ""
	}

	if v := os.Getenv("IMGPROXY_LOG_FORMAT"); v != "" {
		f := strings.ToLower(strings.TrimSpace(v))
		if f == "text" || f == "json" {
			cfg.Log.Format = f
		}
	}
	str("IMGPROXY_LOG_LEVEL", &cfg.Log.Level)
	flag("IMGPROXY_LOG_CONSOLE", &cfg.Log.Console)

	// Store overrides
	if v := os.Getenv("IMGPROXY_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("IMGPROXY_DATA_DIRS"); v != "" {
		cfg.Store.DataDirs = splitAndTrim(v)
	}
	str("IMGPROXY_S3_BUCKET", &cfg.Store.S3.Bucket)
	str("IMGPROXY_S3_PREFIX", &cfg.Store.S3.Prefix)
	str("IMGPROXY_S3_REGION", &cfg.Store.S3.Region)
	str("IMGPROXY_S3_ENDPOINT", &cfg.Store.S3.Endpoint)
	str("IMGPROXY_S3_ACCESS_KEY", &cfg.Store.S3.AccessKey)
	str("IMGPROXY_S3_SECRET_KEY", &cfg.Store.S3.SecretKey)
	flag("IMGPROXY_S3_FORCE_PATH_STYLE", &cfg.Store.S3.ForcePathStyle)
	str("IMGPROXY_MINIO_ENDPOINT", &cfg.Store.Minio.Endpoint)
	str("IMGPROXY_MINIO_BUCKET", &cfg.Store.Minio.Bucket)
	str("IMGPROXY_MINIO_PREFIX", &cfg.Store.Minio.Prefix)
	str("IMGPROXY_MINIO_ACCESS_KEY", &cfg.Store.Minio.AccessKey)
	str("IMGPROXY_MINIO_SECRET_KEY", &cfg.Store.Minio.SecretKey)
	flag("IMGPROXY_MINIO_SECURE", &cfg.Store.Minio.Secure)

	// Cache overrides
	if v := os.Getenv("IMGPROXY_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	str("IMGPROXY_CACHE_TTL", &cfg.Cache.TTL)
	if v := os.Getenv("IMGPROXY_CACHE_MAX_ENTRY_BYTES"); v != "" {
		if x, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && x > 0 {
			cfg.Cache.MaxEntryBytes = x
		}
	}
	if v := os.Getenv("IMGPROXY_MEMCACHED_SERVERS"); v != "" {
		cfg.Cache.Memcached.Servers = splitAndTrim(v)
	}
	str("IMGPROXY_REDIS_ADDR", &cfg.Cache.Redis.Addr)
	str("IMGPROXY_REDIS_PASSWORD", &cfg.Cache.Redis.Password)
	if v := os.Getenv("IMGPROXY_REDIS_DB"); v != "" {
		if x, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && x >= 0 {
			cfg.Cache.Redis.DB = x
		}
	}

	// Tracing overrides
	flag("IMGPROXY_TRACING_ENABLED", &cfg.Tracing.Enabled)
	str("IMGPROXY_TRACING_ENDPOINT", &cfg.Tracing.Endpoint)
	if v := os.Getenv("IMGPROXY_TRACING_PROTOCOL"); v != "" {
		p := strings.ToLower(strings.TrimSpace(v))
		if p == "grpc" || p == "http" {
			cfg.Tracing.Protocol = p
		}
	}
	if v := os.Getenv("IMGPROXY_TRACING_SAMPLE"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			if f < 0 {
				f = 0
			}
			if f > 1 {
				f = 1
			}
			cfg.Tracing.SampleRatio = f
		}
	}
	str("IMGPROXY_TRACING_SERVICE", &cfg.Tracing.ServiceName)
	flag("IMGPROXY_TRACING_KEY_HASH", &cfg.Tracing.KeyHashEnabled)

	return cfg
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	}
	return false, false
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
