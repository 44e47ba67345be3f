// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

// Package reranking post-processes ranked similarity lists before they are
// shown to users.
package reranking

import (
	"math/rand"
	"sync"
)

// CalibrationConfig contains the display range for calibrated scores.
type CalibrationConfig struct {
	// Upper bound of the display range is drawn from [MaxHigh-MaxJitter, MaxHigh].
	MaxHigh   float64
	MaxJitter float64

	// Lower bound of the display range is drawn from [MinLow, MinLow+MinJitter].
	MinLow    float64
	MinJitter float64

	// Flat is the score given to every item when all raw scores are equal.
	Flat float64

	// Deterministic pins the range to [MinLow, MaxHigh].
	Deterministic bool
}

// DefaultCalibrationConfig returns the range [0.80..0.85, 0.92..0.99].
func DefaultCalibrationConfig() CalibrationConfig {
	return CalibrationConfig{
		MaxHigh:   0.99,
		MaxJitter: 0.07,
		MinLow:    0.80,
		MinJitter: 0.05,
		Flat:      0.95,
	}
}

// Calibration linearly remaps the raw scores of one result set onto a
// display range. The remap is monotonic, so result order never changes.
// Absolute values carry no meaning beyond presentation.
type Calibration struct {
	config CalibrationConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewCalibration creates a calibrator. A nil rng gets a fixed-seed source.
func NewCalibration(cfg CalibrationConfig, rng *rand.Rand) *Calibration {
	if cfg.MaxHigh == 0 && cfg.MinLow == 0 {
		def := DefaultCalibrationConfig()
		def.Deterministic = cfg.Deterministic
		cfg = def
	}
	if cfg.Flat == 0 {
		cfg.Flat = 0.95
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1)) //nolint:gosec // presentation jitter only
	}
	return &Calibration{config: cfg, rng: rng}
}

// Name returns the reranker identifier.
func (c *Calibration) Name() string {
	return "calibration"
}

// drawRange returns the display range for one call.
func (c *Calibration) drawRange() (lo, hi float64) {
	if c.config.Deterministic {
		return c.config.MinLow, c.config.MaxHigh
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	hi = c.config.MaxHigh - c.rng.Float64()*c.config.MaxJitter
	lo = c.config.MinLow + c.rng.Float64()*c.config.MinJitter
	return lo, hi
}

// Apply returns calibrated copies of raw. When every raw score is equal
// (including a single score) all outputs are the flat score.
func (c *Calibration) Apply(raw []float64) []float64 {
	out := make([]float64, len(raw))
	if len(raw) == 0 {
		return out
	}

	minScore, maxScore := raw[0], raw[0]
	for _, s := range raw[1:] {
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}

	if maxScore == minScore {
		for i := range out {
			out[i] = c.config.Flat
		}
		return out
	}

	lo, hi := c.drawRange()
	span := maxScore - minScore
	for i, s := range raw {
		out[i] = lo + (s-minScore)/span*(hi-lo)
	}
	return out
}
