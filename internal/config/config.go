// Package config provides configuration loading and structs for the osusume server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	Recommend RecommendConfig `yaml:"recommend"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the fitted model database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// CatalogConfig holds the book catalog source settings.
type CatalogConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// SentimentConfig holds sentiment scorer settings. When ModelPath is empty or
// the ONNX runtime is unavailable, the lexicon scorer is used.
type SentimentConfig struct {
	ModelPath string `yaml:"model_path"`
	Enabled   *bool  `yaml:"enabled"`
}

// EnabledOrDefault returns whether sentiment scoring is enabled; defaults to true.
func (s *SentimentConfig) EnabledOrDefault() bool {
	if s.Enabled != nil {
		return *s.Enabled
	}
	return true
}

// RecommendConfig holds recommendation query settings.
type RecommendConfig struct {
	DefaultK      int     `yaml:"default_k"`
	MaxK          int     `yaml:"max_k"`
	MinSimilarity float64 `yaml:"min_similarity"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Catalog.Path = expandPath(cfg.Catalog.Path, configDir)
	if cfg.Sentiment.ModelPath != "" {
		cfg.Sentiment.ModelPath = expandPath(cfg.Sentiment.ModelPath, configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
