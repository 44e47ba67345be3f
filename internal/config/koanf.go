// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations, first match wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/shelfwise/config.yaml",
	"/etc/shelfwise/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8501,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:          "/data/shelfwise.duckdb",
			MaxMemory:     "1GB",
			Threads:       0,
			SeedSynthetic: false,
			SeedValue:     42,
		},
		Recommend: RecommendConfig{
			ModelPath:       "/data/recommend",
			TrainOnStartup:  true,
			TrainInterval:   24 * time.Hour,
			RetrainDebounce: 5 * time.Minute,
			TrainTimeout:    30 * time.Minute,
			MinRatings:      2,
			EmbeddingDim:    50,
			Hidden1:         64,
			Hidden2:         32,
			Dropout:         0.2,
			LearningRate:    0.001,
			BatchSize:       32,
			Epochs:          5,
			Seed:            42,
			CacheTTL:        time.Minute,
		},
		Import: ImportConfig{
			Enabled:      false,
			BooksPath:    "/data/books.csv",
			RatingsPath:  "/data/ratings.csv",
			ProgressPath: "/data/import-progress",
			BatchSize:    5000,
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load is the entry point used by main.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// LoadWithKoanf layers defaults, the config file and environment variables
// (highest priority), then validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so the process environment cannot leak
// into the config tree.
var envMappings = map[string]string{
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",
	"seed_synthetic":    "database.seed_synthetic",
	"seed_value":        "database.seed_value",

	"recommend_model_path":                "recommend.model_path",
	"recommend_train_on_startup":          "recommend.train_on_startup",
	"recommend_train_interval":            "recommend.train_interval",
	"recommend_retrain_debounce":          "recommend.retrain_debounce",
	"recommend_train_timeout":             "recommend.train_timeout",
	"recommend_min_ratings":               "recommend.min_ratings",
	"recommend_embedding_dim":             "recommend.embedding_dim",
	"recommend_epochs":                    "recommend.epochs",
	"recommend_batch_size":                "recommend.batch_size",
	"recommend_learning_rate":             "recommend.learning_rate",
	"recommend_dropout":                   "recommend.dropout",
	"recommend_seed":                      "recommend.seed",
	"recommend_deterministic_calibration": "recommend.deterministic_calibration",
	"recommend_cache_ttl":                 "recommend.cache_ttl",

	"import_enabled":       "import.enabled",
	"import_books_path":    "import.books_path",
	"import_ratings_path":  "import.ratings_path",
	"import_mapping_path":  "import.mapping_path",
	"import_progress_path": "import.progress_path",
	"import_batch_size":    "import.batch_size",

	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps DUCKDB_PATH -> database.path and so on.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
