// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package algorithms

import "math"

// AdamConfig holds the optimizer hyperparameters.
type AdamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
}

// DefaultAdamConfig returns lr 0.001, betas (0.9, 0.999), eps 1e-8.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

// Adam keeps first and second moment estimates for a set of parameter
// slices registered by name. The step counter is shared, so bias
// correction uses the global step even for rows that are updated sparsely.
type Adam struct {
	cfg  AdamConfig
	step int

	m map[string][]float64
	v map[string][]float64

	// bias correction terms for the current step
	c1, c2 float64
}

// NewAdam creates an optimizer. Zero fields in cfg fall back to defaults.
func NewAdam(cfg AdamConfig) *Adam {
	def := DefaultAdamConfig()
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.Beta1 <= 0 {
		cfg.Beta1 = def.Beta1
	}
	if cfg.Beta2 <= 0 {
		cfg.Beta2 = def.Beta2
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = def.Epsilon
	}
	return &Adam{
		cfg: cfg,
		m:   make(map[string][]float64),
		v:   make(map[string][]float64),
	}
}

// Register allocates moment buffers for a parameter slice of size n.
func (a *Adam) Register(name string, n int) {
	a.m[name] = make([]float64, n)
	a.v[name] = make([]float64, n)
}

// Step advances the global step counter. Call once per mini-batch before
// any Update or UpdateRange call for that batch.
func (a *Adam) Step() {
	a.step++
	a.c1 = 1 - math.Pow(a.cfg.Beta1, float64(a.step))
	a.c2 = 1 - math.Pow(a.cfg.Beta2, float64(a.step))
}

// Steps returns the number of optimizer steps taken.
func (a *Adam) Steps() int {
	return a.step
}

// Update applies one Adam update to every element of param.
func (a *Adam) Update(name string, param, grad []float64) {
	a.UpdateRange(name, param, grad, 0, len(param))
}

// UpdateRange applies an Adam update to param[off:off+len(grad)] using the
// moment buffers at the same offset. Used for embedding rows.
func (a *Adam) UpdateRange(name string, param, grad []float64, off, n int) {
	m, v := a.m[name], a.v[name]
	b1, b2 := a.cfg.Beta1, a.cfg.Beta2
	lr, eps := a.cfg.LearningRate, a.cfg.Epsilon

	for i := 0; i < n; i++ {
		g := grad[i]
		j := off + i
		m[j] = b1*m[j] + (1-b1)*g
		v[j] = b2*v[j] + (1-b2)*g*g
		mHat := m[j] / a.c1
		vHat := v[j] / a.c2
		param[j] -= lr * mHat / (math.Sqrt(vHat) + eps)
	}
}
