// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package algorithms

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrEmptyTrainingSet is returned when TrainNeural gets no samples.
var ErrEmptyTrainingSet = errors.New("empty training set")

// NeuralConfig contains configuration for the embedding rating model.
type NeuralConfig struct {
	EmbeddingDim int
	Hidden1      int
	Hidden2      int

	// Dropout is applied after the first hidden layer during training only.
	Dropout float64

	LearningRate float64
	BatchSize    int
	Epochs       int
	Seed         int64
}

// DefaultNeuralConfig returns the default model shape and training schedule.
func DefaultNeuralConfig() NeuralConfig {
	return NeuralConfig{
		EmbeddingDim: 50,
		Hidden1:      64,
		Hidden2:      32,
		Dropout:      0.2,
		LearningRate: 0.001,
		BatchSize:    32,
		Epochs:       5,
		Seed:         42,
	}
}

func (c *NeuralConfig) applyDefaults() {
	def := DefaultNeuralConfig()
	if c.EmbeddingDim <= 0 {
		c.EmbeddingDim = def.EmbeddingDim
	}
	if c.Hidden1 <= 0 {
		c.Hidden1 = def.Hidden1
	}
	if c.Hidden2 <= 0 {
		c.Hidden2 = def.Hidden2
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		c.Dropout = def.Dropout
	}
	if c.LearningRate <= 0 {
		c.LearningRate = def.LearningRate
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.Epochs <= 0 {
		c.Epochs = def.Epochs
	}
}

// Sample is one rating expressed in dense index space.
type Sample struct {
	User   int
	Book   int
	Rating float64
}

// EpochObserver is called synchronously after every training epoch with
// the 1-based epoch number, the epoch count and the epoch's mean squared error.
type EpochObserver func(epoch, total int, loss float64)

// ModelParams is the full learnable state of the rating model. Matrices are
// stored row-major in flat slices. The struct is gob-encoded as the
// checkpoint payload, so fields stay exported.
type ModelParams struct {
	NumUsers int
	NumBooks int
	Dim      int
	Hidden1  int
	Hidden2  int

	UserEmbedding []float64 // NumUsers x Dim
	BookEmbedding []float64 // NumBooks x Dim

	W1 []float64 // Hidden1 x 2*Dim
	B1 []float64
	W2 []float64 // Hidden2 x Hidden1
	B2 []float64
	W3 []float64 // Hidden2
	B3 []float64 // 1
}

// Validate checks that every slice matches the declared shape.
func (p *ModelParams) Validate() error {
	if p.NumUsers <= 0 || p.NumBooks <= 0 || p.Dim <= 0 || p.Hidden1 <= 0 || p.Hidden2 <= 0 {
		return fmt.Errorf("invalid model shape users=%d books=%d dim=%d hidden=%d/%d",
			p.NumUsers, p.NumBooks, p.Dim, p.Hidden1, p.Hidden2)
	}
	checks := []struct {
		name string
		got  int
		want int
	}{
		{"user_embedding", len(p.UserEmbedding), p.NumUsers * p.Dim},
		{"book_embedding", len(p.BookEmbedding), p.NumBooks * p.Dim},
		{"w1", len(p.W1), p.Hidden1 * 2 * p.Dim},
		{"b1", len(p.B1), p.Hidden1},
		{"w2", len(p.W2), p.Hidden2 * p.Hidden1},
		{"b2", len(p.B2), p.Hidden2},
		{"w3", len(p.W3), p.Hidden2},
		{"b3", len(p.B3), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			return fmt.Errorf("%s has %d values, want %d", c.name, c.got, c.want)
		}
	}
	return nil
}

// newModelParams draws embeddings from N(0,1) and linear layers from
// U(-1/sqrt(fan_in), 1/sqrt(fan_in)).
func newModelParams(numUsers, numBooks int, cfg NeuralConfig, rng *rand.Rand) *ModelParams {
	d, h1, h2 := cfg.EmbeddingDim, cfg.Hidden1, cfg.Hidden2
	p := &ModelParams{
		NumUsers:      numUsers,
		NumBooks:      numBooks,
		Dim:           d,
		Hidden1:       h1,
		Hidden2:       h2,
		UserEmbedding: make([]float64, numUsers*d),
		BookEmbedding: make([]float64, numBooks*d),
		W1:            make([]float64, h1*2*d),
		B1:            make([]float64, h1),
		W2:            make([]float64, h2*h1),
		B2:            make([]float64, h2),
		W3:            make([]float64, h2),
		B3:            make([]float64, 1),
	}

	for i := range p.UserEmbedding {
		p.UserEmbedding[i] = rng.NormFloat64()
	}
	for i := range p.BookEmbedding {
		p.BookEmbedding[i] = rng.NormFloat64()
	}
	uniform(rng, p.W1, 2*d)
	uniform(rng, p.B1, 2*d)
	uniform(rng, p.W2, h1)
	uniform(rng, p.B2, h1)
	uniform(rng, p.W3, h2)
	uniform(rng, p.B3, h2)
	return p
}

func uniform(rng *rand.Rand, dst []float64, fanIn int) {
	bound := 1 / math.Sqrt(float64(fanIn))
	for i := range dst {
		dst[i] = (rng.Float64()*2 - 1) * bound
	}
}

// NeuralRecommender predicts ratings from learned user and book embeddings.
// It is read-only after construction and safe for concurrent Predict calls.
type NeuralRecommender struct {
	params *ModelParams
}

// NewNeuralRecommender wraps trained or loaded parameters.
func NewNeuralRecommender(params *ModelParams) (*NeuralRecommender, error) {
	if params == nil {
		return nil, errors.New("nil model params")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model params: %w", err)
	}
	return &NeuralRecommender{params: params}, nil
}

// Params returns the underlying parameters. Callers must not modify them.
func (n *NeuralRecommender) Params() *ModelParams {
	return n.params
}

// NumUsers returns the size of the user index space.
func (n *NeuralRecommender) NumUsers() int { return n.params.NumUsers }

// NumBooks returns the size of the book index space.
func (n *NeuralRecommender) NumBooks() int { return n.params.NumBooks }

// Predict returns one predicted rating per entry of books for the given
// user index. Out-of-range indices yield NaN. Output is unbounded.
func (n *NeuralRecommender) Predict(user int, books []int) []float64 {
	p := n.params
	out := make([]float64, len(books))
	if user < 0 || user >= p.NumUsers {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	d, h1, h2 := p.Dim, p.Hidden1, p.Hidden2
	u := p.UserEmbedding[user*d : (user+1)*d]

	// The user half of the first layer is the same for every book.
	userPart := make([]float64, h1)
	for j := 0; j < h1; j++ {
		row := p.W1[j*2*d : j*2*d+d]
		s := p.B1[j]
		for i, w := range row {
			s += w * u[i]
		}
		userPart[j] = s
	}

	a1 := make([]float64, h1)
	a2 := make([]float64, h2)
	for k, book := range books {
		if book < 0 || book >= p.NumBooks {
			out[k] = math.NaN()
			continue
		}
		b := p.BookEmbedding[book*d : (book+1)*d]
		for j := 0; j < h1; j++ {
			row := p.W1[j*2*d+d : (j+1)*2*d]
			s := userPart[j]
			for i, w := range row {
				s += w * b[i]
			}
			a1[j] = relu(s)
		}
		out[k] = p.head(a1, a2)
	}
	return out
}

// head runs the second hidden layer and the output layer on a1.
func (p *ModelParams) head(a1, a2 []float64) float64 {
	for k := 0; k < p.Hidden2; k++ {
		row := p.W2[k*p.Hidden1 : (k+1)*p.Hidden1]
		s := p.B2[k]
		for j, w := range row {
			s += w * a1[j]
		}
		a2[k] = relu(s)
	}
	out := p.B3[0]
	for k, w := range p.W3 {
		out += w * a2[k]
	}
	return out
}

func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// TrainNeural fits a fresh model on samples by mini-batch Adam on the mean
// squared error. Embedding rows are only updated when they occur in a batch.
// The context is checked between batches.
func TrainNeural(ctx context.Context, samples []Sample, numUsers, numBooks int, cfg NeuralConfig, observer EpochObserver) (*NeuralRecommender, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if numUsers <= 0 || numBooks <= 0 {
		return nil, fmt.Errorf("invalid index space users=%d books=%d", numUsers, numBooks)
	}
	for i, s := range samples {
		if s.User < 0 || s.User >= numUsers || s.Book < 0 || s.Book >= numBooks {
			return nil, fmt.Errorf("sample %d out of range (user=%d book=%d)", i, s.User, s.Book)
		}
	}
	cfg.applyDefaults()

	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // reproducible training, not security sensitive
	t := newTrainer(newModelParams(numUsers, numBooks, cfg, rng), cfg, rng)

	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var sse float64
		for start := 0; start < len(order); start += cfg.BatchSize {
			if ContextCancelled(ctx) {
				return nil, ctx.Err()
			}
			end := start + cfg.BatchSize
			if end > len(order) {
				end = len(order)
			}
			sse += t.trainBatch(samples, order[start:end])
		}

		if observer != nil {
			observer(epoch+1, cfg.Epochs, sse/float64(len(samples)))
		}
	}

	return &NeuralRecommender{params: t.p}, nil
}

// trainer holds gradient accumulators and scratch buffers for one run.
type trainer struct {
	p   *ModelParams
	cfg NeuralConfig
	rng *rand.Rand
	opt *Adam

	gW1, gB1, gW2, gB2, gW3, gB3 []float64

	x, z1, mask, d1, z2, a2, gz2, gz1, gx []float64
}

func newTrainer(p *ModelParams, cfg NeuralConfig, rng *rand.Rand) *trainer {
	opt := NewAdam(AdamConfig{LearningRate: cfg.LearningRate})
	opt.Register("user", len(p.UserEmbedding))
	opt.Register("book", len(p.BookEmbedding))
	opt.Register("w1", len(p.W1))
	opt.Register("b1", len(p.B1))
	opt.Register("w2", len(p.W2))
	opt.Register("b2", len(p.B2))
	opt.Register("w3", len(p.W3))
	opt.Register("b3", len(p.B3))

	d2, h1, h2 := 2*p.Dim, p.Hidden1, p.Hidden2
	return &trainer{
		p:    p,
		cfg:  cfg,
		rng:  rng,
		opt:  opt,
		gW1:  make([]float64, len(p.W1)),
		gB1:  make([]float64, h1),
		gW2:  make([]float64, len(p.W2)),
		gB2:  make([]float64, h2),
		gW3:  make([]float64, h2),
		gB3:  make([]float64, 1),
		x:    make([]float64, d2),
		z1:   make([]float64, h1),
		mask: make([]float64, h1),
		d1:   make([]float64, h1),
		z2:   make([]float64, h2),
		a2:   make([]float64, h2),
		gz2:  make([]float64, h2),
		gz1:  make([]float64, h1),
		gx:   make([]float64, d2),
	}
}

// trainBatch runs forward and backward passes over one batch, applies an
// optimizer step and returns the batch's summed squared error.
func (t *trainer) trainBatch(samples []Sample, batch []int) float64 {
	p := t.p
	d := p.Dim
	n := float64(len(batch))

	zero(t.gW1, t.gB1, t.gW2, t.gB2, t.gW3, t.gB3)
	userGrads := make(map[int][]float64)
	bookGrads := make(map[int][]float64)

	var sse float64
	for _, idx := range batch {
		s := samples[idx]
		out := t.forward(s.User, s.Book)
		diff := out - s.Rating
		sse += diff * diff

		t.backward(2 * diff / n)

		ug, ok := userGrads[s.User]
		if !ok {
			ug = make([]float64, d)
			userGrads[s.User] = ug
		}
		bg, ok := bookGrads[s.Book]
		if !ok {
			bg = make([]float64, d)
			bookGrads[s.Book] = bg
		}
		for i := 0; i < d; i++ {
			ug[i] += t.gx[i]
			bg[i] += t.gx[d+i]
		}
	}

	t.opt.Step()
	t.opt.Update("w1", p.W1, t.gW1)
	t.opt.Update("b1", p.B1, t.gB1)
	t.opt.Update("w2", p.W2, t.gW2)
	t.opt.Update("b2", p.B2, t.gB2)
	t.opt.Update("w3", p.W3, t.gW3)
	t.opt.Update("b3", p.B3, t.gB3)
	for u, g := range userGrads {
		t.opt.UpdateRange("user", p.UserEmbedding, g, u*d, d)
	}
	for b, g := range bookGrads {
		t.opt.UpdateRange("book", p.BookEmbedding, g, b*d, d)
	}
	return sse
}

// forward computes the training-mode output, leaving activations in the
// trainer's scratch buffers for backward.
func (t *trainer) forward(user, book int) float64 {
	p := t.p
	d, h1, h2 := p.Dim, p.Hidden1, p.Hidden2
	copy(t.x[:d], p.UserEmbedding[user*d:(user+1)*d])
	copy(t.x[d:], p.BookEmbedding[book*d:(book+1)*d])

	keep := 1 - t.cfg.Dropout
	for j := 0; j < h1; j++ {
		row := p.W1[j*2*d : (j+1)*2*d]
		s := p.B1[j]
		for i, w := range row {
			s += w * t.x[i]
		}
		t.z1[j] = s

		t.mask[j] = 1
		if t.cfg.Dropout > 0 {
			if t.rng.Float64() < t.cfg.Dropout {
				t.mask[j] = 0
			} else {
				t.mask[j] = 1 / keep
			}
		}
		t.d1[j] = relu(s) * t.mask[j]
	}

	for k := 0; k < h2; k++ {
		row := p.W2[k*h1 : (k+1)*h1]
		s := p.B2[k]
		for j, w := range row {
			s += w * t.d1[j]
		}
		t.z2[k] = s
		t.a2[k] = relu(s)
	}

	out := p.B3[0]
	for k, w := range p.W3 {
		out += w * t.a2[k]
	}
	return out
}

// backward accumulates parameter gradients for dLoss/dOut = g and leaves
// the gradient with respect to the concatenated embedding input in t.gx.
func (t *trainer) backward(g float64) {
	p := t.p
	d2, h1, h2 := 2*p.Dim, p.Hidden1, p.Hidden2

	t.gB3[0] += g
	for k := 0; k < h2; k++ {
		t.gW3[k] += g * t.a2[k]
		if t.z2[k] > 0 {
			t.gz2[k] = g * p.W3[k]
		} else {
			t.gz2[k] = 0
		}
	}

	for j := 0; j < h1; j++ {
		t.gz1[j] = 0
	}
	for k := 0; k < h2; k++ {
		gk := t.gz2[k]
		if gk == 0 {
			continue
		}
		t.gB2[k] += gk
		row := p.W2[k*h1 : (k+1)*h1]
		grow := t.gW2[k*h1 : (k+1)*h1]
		for j := 0; j < h1; j++ {
			grow[j] += gk * t.d1[j]
			t.gz1[j] += row[j] * gk
		}
	}
	for j := 0; j < h1; j++ {
		if t.z1[j] <= 0 {
			t.gz1[j] = 0
			continue
		}
		t.gz1[j] *= t.mask[j]
	}

	for i := 0; i < d2; i++ {
		t.gx[i] = 0
	}
	for j := 0; j < h1; j++ {
		gj := t.gz1[j]
		if gj == 0 {
			continue
		}
		t.gB1[j] += gj
		row := p.W1[j*d2 : (j+1)*d2]
		grow := t.gW1[j*d2 : (j+1)*d2]
		for i := 0; i < d2; i++ {
			grow[i] += gj * t.x[i]
			t.gx[i] += row[i] * gj
		}
	}
}

func zero(slices ...[]float64) {
	for _, s := range slices {
		for i := range s {
			s[i] = 0
		}
	}
}
