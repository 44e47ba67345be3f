// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package recommend

import (
	"fmt"

	"github.com/tomtom215/shelfwise/internal/recommend/algorithms"
	"github.com/tomtom215/shelfwise/internal/recommend/reranking"
)

// Config contains all configuration for the recommendation engine.
type Config struct {
	// Neural contains the rating model shape and training schedule.
	Neural algorithms.NeuralConfig `json:"neural"`

	// Calibration controls the display range of similarity scores.
	Calibration reranking.CalibrationConfig `json:"calibration"`

	// CalibrationSeed seeds the calibration jitter source.
	CalibrationSeed int64 `json:"calibration_seed"`

	// MinRatings is the smallest ratings snapshot the model trains on.
	// Smaller snapshots yield ErrInsufficientData.
	MinRatings int `json:"min_ratings"`

	// ModelName is the checkpoint file stem.
	ModelName string `json:"model_name"`

	// DefaultK and MaxK bound personalized result sizes.
	DefaultK int `json:"default_k"`
	MaxK     int `json:"max_k"`

	// DefaultTopN and MaxTopN bound similarity result sizes.
	DefaultTopN int `json:"default_top_n"`
	MaxTopN     int `json:"max_top_n"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		Neural:          algorithms.DefaultNeuralConfig(),
		Calibration:     reranking.DefaultCalibrationConfig(),
		CalibrationSeed: 42,
		MinRatings:      2,
		ModelName:       "rating_model",
		DefaultK:        10,
		MaxK:            100,
		DefaultTopN:     5,
		MaxTopN:         50,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.MinRatings < 2 {
		return fmt.Errorf("min_ratings must be at least 2, got %d", c.MinRatings)
	}
	if c.Neural.EmbeddingDim < 1 || c.Neural.Hidden1 < 1 || c.Neural.Hidden2 < 1 {
		return fmt.Errorf("layer sizes must be positive, got %d/%d/%d",
			c.Neural.EmbeddingDim, c.Neural.Hidden1, c.Neural.Hidden2)
	}
	if c.Neural.Dropout < 0 || c.Neural.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0, 1), got %f", c.Neural.Dropout)
	}
	if c.Neural.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %f", c.Neural.LearningRate)
	}
	if c.Neural.BatchSize < 1 || c.Neural.Epochs < 1 {
		return fmt.Errorf("batch_size and epochs must be positive, got %d/%d", c.Neural.BatchSize, c.Neural.Epochs)
	}
	if c.ModelName == "" {
		return fmt.Errorf("model_name is required")
	}
	if c.DefaultK < 1 || c.MaxK < c.DefaultK {
		return fmt.Errorf("max_k must be >= default_k >= 1, got %d/%d", c.MaxK, c.DefaultK)
	}
	if c.DefaultTopN < 1 || c.MaxTopN < c.DefaultTopN {
		return fmt.Errorf("max_top_n must be >= default_top_n >= 1, got %d/%d", c.MaxTopN, c.DefaultTopN)
	}
	return nil
}

// ClampK applies the default and maximum to a requested result size.
func (c *Config) ClampK(k int) int {
	return clamp(k, c.DefaultK, c.MaxK)
}

// ClampTopN applies the default and maximum to a requested similarity list size.
func (c *Config) ClampTopN(n int) int {
	return clamp(n, c.DefaultTopN, c.MaxTopN)
}

func clamp(v, def, maxV int) int {
	if v <= 0 {
		return def
	}
	if v > maxV {
		return maxV
	}
	return v
}
