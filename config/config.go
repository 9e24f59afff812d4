package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ekartashov/knowsync/core"
)

// Config drives the construction of a synchronization engine. All fields
// have working defaults; a zero Config builds a fully in-memory engine.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Sync    SyncConfig    `yaml:"sync"`
	Storage StorageConfig `yaml:"storage"`
}

// LogConfig selects the logging output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// SyncConfig holds the engine-wide synchronization defaults.
type SyncConfig struct {
	// Transfer is the default transfer mode: incremental or full.
	Transfer string `yaml:"transfer"`
	// Algorithm is the default conflict detection algorithm.
	Algorithm string `yaml:"algorithm"`
	// SimilarityThreshold is the semantic detection cutoff in (0, 1].
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	// CounterpartTimeout bounds the work against one counterpart during
	// fan-out, e.g. "30s". Empty means unbounded.
	CounterpartTimeout time.Duration `yaml:"counterpart_timeout"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is one of memory, sqlite, redis.
	Backend string       `yaml:"backend"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
	Redis   RedisConfig  `yaml:"redis"`
}

// SQLiteConfig locates the sqlite database file.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig holds the redis connection settings for the knowledge store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	KeyPrefix string `yaml:"key_prefix"`
}

// Default returns the configuration used when no file or overrides are
// given: in-memory storage, incremental transfer, default detection.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Sync: SyncConfig{
			Transfer:            string(core.TransferIncremental),
			Algorithm:           string(core.AlgorithmDefault),
			SimilarityThreshold: 0.8,
		},
		Storage: StorageConfig{
			Backend: "memory",
			SQLite:  SQLiteConfig{Path: "knowsync.db"},
			Redis:   RedisConfig{Addr: "localhost:6379"},
		},
	}
}

// Load reads a YAML configuration file, layers it over the defaults,
// applies KNOWSYNC_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
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

// applyEnv layers KNOWSYNC_* variables over the file values. Only settings
// that commonly differ between deployments are exposed this way.
func (c *Config) applyEnv() error {
	if v := os.Getenv("KNOWSYNC_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("KNOWSYNC_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("KNOWSYNC_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("KNOWSYNC_SQLITE_PATH"); v != "" {
		c.Storage.SQLite.Path = v
	}
	if v := os.Getenv("KNOWSYNC_REDIS_ADDR"); v != "" {
		c.Storage.Redis.Addr = v
	}
	if v := os.Getenv("KNOWSYNC_REDIS_PASSWORD"); v != "" {
		c.Storage.Redis.Password = v
	}
	if v := os.Getenv("KNOWSYNC_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: KNOWSYNC_REDIS_DB %q is not an integer", core.ErrInvalidInput, v)
		}
		c.Storage.Redis.DB = db
	}
	if v := os.Getenv("KNOWSYNC_SYNC_TRANSFER"); v != "" {
		c.Sync.Transfer = v
	}
	if v := os.Getenv("KNOWSYNC_SYNC_ALGORITHM"); v != "" {
		c.Sync.Algorithm = v
	}
	return nil
}

// Validate checks the configuration for semantic correctness. All failures
// are reported at once.
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}

	switch core.TransferMode(c.Sync.Transfer) {
	case core.TransferIncremental, core.TransferFull:
	default:
		errs = append(errs, fmt.Sprintf("unknown transfer mode %q", c.Sync.Transfer))
	}
	switch core.DetectionAlgorithm(c.Sync.Algorithm) {
	case core.AlgorithmDefault, core.AlgorithmChecksum, core.AlgorithmSemantic, core.AlgorithmStructural:
	default:
		errs = append(errs, fmt.Sprintf("unknown detection algorithm %q", c.Sync.Algorithm))
	}
	if c.Sync.SimilarityThreshold <= 0 || c.Sync.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Sprintf("similarity threshold %v is not in (0, 1]", c.Sync.SimilarityThreshold))
	}

	switch c.Storage.Backend {
	case "memory":
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			errs = append(errs, "sqlite backend requires a path")
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, "redis backend requires an addr")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown storage backend %q", c.Storage.Backend))
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// ValidationError holds every validation failure found in one pass.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}
