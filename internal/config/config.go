// Package config loads and validates codescout configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. Project config (.codescout.yaml in the project root)
//  3. Environment variables (CODESCOUT_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete codescout configuration.
type Config struct {
	Version     int              `yaml:"version" json:"version"`
	Paths       PathsConfig      `yaml:"paths" json:"paths"`
	Embeddings  EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Chunking    ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Performance PerfConfig       `yaml:"performance" json:"performance"`
	LogLevel    string           `yaml:"log_level" json:"log_level"`

	// DataRoot is the directory holding per-project index data.
	// Defaults to ~/.codescout.
	DataRoot string `yaml:"data_root" json:"data_root"`
}

// PathsConfig configures which paths to exclude beyond the built-in
// defaults and ignore files.
type PathsConfig struct {
	Exclude []string `yaml:"exclude" json:"exclude"`

	// MaxFileSize is the per-file size cutoff in bytes. Files at or
	// above this size are skipped. Default 1MB.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Endpoint is the embedding service base URL.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// Model is the embedding model identifier. A change of model
	// invalidates the existing index and forces a full rebuild.
	Model string `yaml:"model" json:"model"`
	// Dimensions is the embedding vector size. 0 means detect from
	// the first response.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// BatchSize is the number of texts per embedding request.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// APIKey authenticates requests. Usually set via CODESCOUT_API_KEY.
	APIKey string `yaml:"api_key" json:"api_key"`
	// RequestTimeout is the per-request timeout (e.g. "60s").
	RequestTimeout string `yaml:"request_timeout" json:"request_timeout"`
	// CacheSize is the number of query embeddings kept in the LRU
	// cache. 0 disables caching.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// ChunkingConfig configures chunk size bounds.
type ChunkingConfig struct {
	// MinChunkSize is the minimum chunk length in characters.
	MinChunkSize int `yaml:"min_chunk_size" json:"min_chunk_size"`
	// MaxChunkSize is the maximum chunk length in characters.
	MaxChunkSize int `yaml:"max_chunk_size" json:"max_chunk_size"`
}

// PerfConfig configures performance tuning options.
type PerfConfig struct {
	// HashWorkers is the number of concurrent file-hashing workers.
	// 0 means use the number of CPUs.
	HashWorkers int `yaml:"hash_workers" json:"hash_workers"`
}

// New creates a Config with sensible defaults.
func New() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Exclude:     nil,
			MaxFileSize: 1 << 20,
		},
		Embeddings: EmbeddingsConfig{
			Endpoint:       "http://localhost:11434",
			Model:          "nomic-embed-text",
			Dimensions:     0,
			BatchSize:      32,
			RequestTimeout: "60s",
			CacheSize:      256,
		},
		Chunking: ChunkingConfig{
			MinChunkSize: 50,
			MaxChunkSize: 8000,
		},
		Performance: PerfConfig{
			HashWorkers: 0,
		},
		LogLevel: "info",
		DataRoot: DefaultDataRoot(),
	}
}

// DefaultDataRoot returns the default data directory (~/.codescout),
// falling back to the temp directory when home is unavailable.
func DefaultDataRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".codescout")
	}
	return filepath.Join(home, ".codescout")
}

// Load loads configuration for the project rooted at dir.
func Load(dir string) (*Config, error) {
	cfg := New()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile attempts to load .codescout.yaml or .codescout.yml.
// A missing config file is fine, defaults apply.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".codescout.yaml", ".codescout.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}
	if other.Paths.MaxFileSize != 0 {
		c.Paths.MaxFileSize = other.Paths.MaxFileSize
	}

	if other.Embeddings.Endpoint != "" {
		c.Embeddings.Endpoint = other.Embeddings.Endpoint
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.APIKey != "" {
		c.Embeddings.APIKey = other.Embeddings.APIKey
	}
	if other.Embeddings.RequestTimeout != "" {
		c.Embeddings.RequestTimeout = other.Embeddings.RequestTimeout
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Chunking.MinChunkSize != 0 {
		c.Chunking.MinChunkSize = other.Chunking.MinChunkSize
	}
	if other.Chunking.MaxChunkSize != 0 {
		c.Chunking.MaxChunkSize = other.Chunking.MaxChunkSize
	}

	if other.Performance.HashWorkers != 0 {
		c.Performance.HashWorkers = other.Performance.HashWorkers
	}

	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DataRoot != "" {
		c.DataRoot = other.DataRoot
	}
}

// applyEnvOverrides applies CODESCOUT_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODESCOUT_ENDPOINT"); v != "" {
		c.Embeddings.Endpoint = v
	}
	if v := os.Getenv("CODESCOUT_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("CODESCOUT_API_KEY"); v != "" {
		c.Embeddings.APIKey = v
	}
	if v := os.Getenv("CODESCOUT_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embeddings.BatchSize = n
		}
	}
	if v := os.Getenv("CODESCOUT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("CODESCOUT_DATA_ROOT"); v != "" {
		c.DataRoot = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Embeddings.Endpoint == "" {
		return fmt.Errorf("embeddings.endpoint must not be empty")
	}
	if c.Embeddings.Model == "" {
		return fmt.Errorf("embeddings.model must not be empty")
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	if c.Chunking.MinChunkSize < 0 {
		return fmt.Errorf("chunking.min_chunk_size must be non-negative, got %d", c.Chunking.MinChunkSize)
	}
	if c.Chunking.MaxChunkSize <= c.Chunking.MinChunkSize {
		return fmt.Errorf("chunking.max_chunk_size must exceed min_chunk_size, got %d <= %d",
			c.Chunking.MaxChunkSize, c.Chunking.MinChunkSize)
	}
	if c.Paths.MaxFileSize <= 0 {
		return fmt.Errorf("paths.max_file_size must be positive, got %d", c.Paths.MaxFileSize)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// FindProjectRoot finds the project root by walking up from startDir
// looking for a .git directory or a .codescout.yaml file. When neither
// is found, the starting directory itself is returned.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}

	current := absDir
	for {
		if dirExists(filepath.Join(current, ".git")) {
			return current, nil
		}
		if fileExists(filepath.Join(current, ".codescout.yaml")) ||
			fileExists(filepath.Join(current, ".codescout.yml")) {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return absDir, nil
		}
		current = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
