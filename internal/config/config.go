// Package config provides configuration loading and structs for the seek server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Search  SearchConfig  `yaml:"search"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the database path for recent queries, preferences and snapshots.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	// MaxRecentQueries caps the recent-queries table; oldest entries are trimmed.
	MaxRecentQueries int `yaml:"max_recent_queries"`
	// PersistSnapshots saves a session snapshot to the database when the session is disposed.
	PersistSnapshots *bool `yaml:"persist_snapshots"`
}

// PersistSnapshotsOrDefault returns whether snapshots are persisted; defaults to true when unset.
func (s *StorageConfig) PersistSnapshotsOrDefault() bool {
	if s.PersistSnapshots != nil {
		return *s.PersistSnapshots
	}
	return true
}

// SearchConfig holds search execution settings.
type SearchConfig struct {
	// RootDirectory is searched when a request names no directory.
	RootDirectory string `yaml:"root_directory"`
	// MinTermLength is the shortest term that runs without confirmation.
	MinTermLength int `yaml:"min_term_length"`
	// BatchSize is the number of matches collected before a partial result is emitted.
	BatchSize int `yaml:"batch_size"`
	// FlushInterval emits a partial batch even when it is not full.
	FlushInterval time.Duration `yaml:"flush_interval"`
	IncludeHidden bool          `yaml:"include_hidden"`
	// MaxSessions caps the number of live sessions kept by the server.
	MaxSessions int `yaml:"max_sessions"`
}

// WatchConfig holds staleness watcher settings.
type WatchConfig struct {
	Enabled  *bool         `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// EnabledOrDefault returns whether finished sessions are watched; defaults to true when unset.
func (w *WatchConfig) EnabledOrDefault() bool {
	if w.Enabled != nil {
		return *w.Enabled
	}
	return true
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
	cfg.Search.RootDirectory = expandPath(cfg.Search.RootDirectory, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
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
