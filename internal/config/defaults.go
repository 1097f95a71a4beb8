package config

import (
	"time"

	"github.com/hyperjump/seek/internal/models"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/seek/data/seek.db"
	}
	if cfg.Storage.MaxRecentQueries == 0 {
		cfg.Storage.MaxRecentQueries = 100
	}
	if cfg.Search.RootDirectory == "" {
		cfg.Search.RootDirectory = "/"
	}
	if cfg.Search.MinTermLength == 0 {
		cfg.Search.MinTermLength = models.DefaultMinTermLength
	}
	if cfg.Search.BatchSize == 0 {
		cfg.Search.BatchSize = 64
	}
	if cfg.Search.FlushInterval == 0 {
		cfg.Search.FlushInterval = 250 * time.Millisecond
	}
	if cfg.Search.MaxSessions == 0 {
		cfg.Search.MaxSessions = 32
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 400 * time.Millisecond
	}
}
