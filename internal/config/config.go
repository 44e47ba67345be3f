// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

// Package config loads Shelfwise configuration from defaults, an optional
// YAML file and environment variables (Koanf v2).
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Recommend RecommendConfig `koanf:"recommend"`
	Import    ImportConfig    `koanf:"import"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()

	// SeedSynthetic fills an empty catalog with generated books, users
	// and ratings when no CSV import is configured.
	SeedSynthetic bool  `koanf:"seed_synthetic"`
	SeedValue     int64 `koanf:"seed_value"`
}

// RecommendConfig controls both recommendation engines and the training
// service.
type RecommendConfig struct {
	// ModelPath is the directory holding the rating model checkpoint.
	// Default: /data/recommend
	ModelPath string `koanf:"model_path"`

	// TrainOnStartup loads or trains the model when the service starts.
	TrainOnStartup bool `koanf:"train_on_startup"`

	// TrainInterval is how often the service checks for a stale model.
	// Default: 24h
	TrainInterval time.Duration `koanf:"train_interval"`

	// RetrainDebounce is the minimum gap between retrains triggered by
	// new ratings.
	// Default: 5m
	RetrainDebounce time.Duration `koanf:"retrain_debounce"`

	// TrainTimeout bounds one training cycle.
	// Default: 30m
	TrainTimeout time.Duration `koanf:"train_timeout"`

	// MinRatings is the smallest ratings snapshot the model trains on.
	// Default: 2
	MinRatings int `koanf:"min_ratings"`

	EmbeddingDim int     `koanf:"embedding_dim"`
	Hidden1      int     `koanf:"hidden1"`
	Hidden2      int     `koanf:"hidden2"`
	Dropout      float64 `koanf:"dropout"`
	LearningRate float64 `koanf:"learning_rate"`
	BatchSize    int     `koanf:"batch_size"`
	Epochs       int     `koanf:"epochs"`
	Seed         int64   `koanf:"seed"`

	// DeterministicCalibration pins the display range to [0.80, 0.99]
	// instead of drawing it per call.
	DeterministicCalibration bool `koanf:"deterministic_calibration"`

	// CacheTTL bounds how long trending and stats responses are cached.
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// ImportConfig points at CSV files loaded into an empty catalog.
type ImportConfig struct {
	Enabled     bool   `koanf:"enabled"`
	BooksPath   string `koanf:"books_path"`
	RatingsPath string `koanf:"ratings_path"`

	// MappingPath is an optional YAML column mapping for CSV layouts that
	// are neither Book-Crossing nor Goodreads.
	MappingPath string `koanf:"mapping_path"`

	// ProgressPath is the BadgerDB directory recording finished imports.
	ProgressPath string `koanf:"progress_path"`
	BatchSize    int    `koanf:"batch_size"`
}

// SecurityConfig holds CORS and rate limiting settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`

	Caller bool `koanf:"caller"`
}

// Validate checks the configuration for values the rest of the program
// cannot work with.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.Path == "" {
		problems = append(problems, "database.path is required")
	}
	if c.Recommend.ModelPath == "" {
		problems = append(problems, "recommend.model_path is required")
	}
	if c.Recommend.MinRatings < 2 {
		problems = append(problems, "recommend.min_ratings must be at least 2")
	}
	if c.Recommend.EmbeddingDim <= 0 || c.Recommend.Hidden1 <= 0 || c.Recommend.Hidden2 <= 0 {
		problems = append(problems, "recommend layer sizes must be positive")
	}
	if c.Recommend.Dropout < 0 || c.Recommend.Dropout >= 1 {
		problems = append(problems, "recommend.dropout must be in [0, 1)")
	}
	if c.Recommend.LearningRate <= 0 {
		problems = append(problems, "recommend.learning_rate must be positive")
	}
	if c.Recommend.BatchSize <= 0 || c.Recommend.Epochs <= 0 {
		problems = append(problems, "recommend.batch_size and recommend.epochs must be positive")
	}
	if c.Import.Enabled && c.Import.BooksPath == "" {
		problems = append(problems, "import.books_path is required when import is enabled")
	}
	if !c.Security.RateLimitDisabled && c.Security.RateLimitReqs <= 0 {
		problems = append(problems, "security.rate_limit_reqs must be positive")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be json or console", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
