// Package config loads and validates clipgrep configuration.
// Precedence: built-in defaults < YAML config file < CLIPGREP_* env vars
// < command-line flags (applied by the cmd layer).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	clierrors "github.com/clipgrep/clipgrep/internal/errors"
)

// Config represents the complete clipgrep configuration.
type Config struct {
	// DataDir holds the index database, logs and the writer lock.
	DataDir string `yaml:"data_dir"`

	Index   IndexConfig   `yaml:"index"`
	Encoder EncoderConfig `yaml:"encoder"`
	Search  SearchConfig  `yaml:"search"`
	Log     LogConfig     `yaml:"log"`
}

// IndexConfig configures the synchronization sweep.
type IndexConfig struct {
	// BatchSize is the number of changed files encoded per batch.
	BatchSize int `yaml:"batch_size"`

	// CommitInterval is the number of scanned entries between
	// intermediate commits, bounding WAL growth on large trees.
	CommitInterval int `yaml:"commit_interval"`

	// ExcludeDirs are directory names skipped anywhere in the tree.
	ExcludeDirs []string `yaml:"exclude_dirs"`

	// Extensions are the image file extensions that get indexed.
	Extensions []string `yaml:"extensions"`
}

// EncoderConfig configures the CLIP encoder service.
type EncoderConfig struct {
	// Endpoint is the base URL of the encoder sidecar.
	Endpoint string `yaml:"endpoint"`

	// Model is the model identifier requested from the service.
	Model string `yaml:"model"`

	// Timeout is the per-request timeout.
	Timeout time.Duration `yaml:"timeout"`

	// CacheSize is the number of query encodings kept in the LRU cache.
	CacheSize int `yaml:"cache_size"`

	// Offline uses the deterministic hash encoder instead of the service.
	Offline bool `yaml:"offline"`
}

// SearchConfig configures query behavior.
type SearchConfig struct {
	// TopK is the default number of results returned.
	TopK int `yaml:"top_k"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultExcludeDirs are skipped anywhere in the tree unless overridden.
// The set comes from common photo-library noise: Synology thumbnail
// dirs, dependency trees and VCS metadata.
var DefaultExcludeDirs = []string{"@eaDir", "node_modules", ".git"}

// DefaultExtensions are the image formats the index covers.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Index: IndexConfig{
			BatchSize:      8,
			CommitInterval: 10_000,
			ExcludeDirs:    append([]string(nil), DefaultExcludeDirs...),
			Extensions:     append([]string(nil), DefaultExtensions...),
		},
		Encoder: EncoderConfig{
			Endpoint:  "http://localhost:9787",
			Model:     "clip-vit-base-patch32",
			Timeout:   60 * time.Second,
			CacheSize: 256,
		},
		Search: SearchConfig{
			TopK: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration, layering the YAML file at path (if it
// exists) and env overrides on top of defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// No config file is fine, defaults apply.
		case err != nil:
			return nil, clierrors.Wrap(clierrors.ErrCodeConfigNotFound, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, clierrors.New(clierrors.ErrCodeConfigInvalid,
					fmt.Sprintf("invalid config %s: %v", path, err), err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads configuration from the standard location
// (~/.config/clipgrep/config.yaml, honoring XDG_CONFIG_HOME).
func LoadDefault() (*Config, error) {
	return Load(DefaultConfigPath())
}

// DefaultConfigPath returns the standard config file location.
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "clipgrep", "config.yaml")
}

// defaultDataDir returns the standard data directory, honoring
// XDG_DATA_HOME.
func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ".clipgrep"
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "clipgrep")
}

// applyEnv applies CLIPGREP_* environment overrides.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CLIPGREP_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CLIPGREP_ENCODER_ENDPOINT"); v != "" {
		cfg.Encoder.Endpoint = v
	}
	if v := os.Getenv("CLIPGREP_ENCODER_MODEL"); v != "" {
		cfg.Encoder.Model = v
	}
	if v := os.Getenv("CLIPGREP_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.BatchSize = n
		}
	}
	if v := os.Getenv("CLIPGREP_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return clierrors.New(clierrors.ErrCodeConfigInvalid, "data_dir must not be empty", nil)
	}
	if c.Index.BatchSize < 1 {
		return clierrors.New(clierrors.ErrCodeConfigInvalid,
			fmt.Sprintf("index.batch_size must be >= 1, got %d", c.Index.BatchSize), nil)
	}
	if c.Index.CommitInterval < 1 {
		return clierrors.New(clierrors.ErrCodeConfigInvalid,
			fmt.Sprintf("index.commit_interval must be >= 1, got %d", c.Index.CommitInterval), nil)
	}
	if c.Search.TopK < 1 {
		return clierrors.New(clierrors.ErrCodeConfigInvalid,
			fmt.Sprintf("search.top_k must be >= 1, got %d", c.Search.TopK), nil)
	}
	return nil
}

// DatabasePath returns the SQLite database location under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "index.db")
}
