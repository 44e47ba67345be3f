// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package algorithms

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
)

// structuredSamples builds ratings where even users like even books.
func structuredSamples(users, books int) []Sample {
	samples := make([]Sample, 0, users*books)
	for u := 0; u < users; u++ {
		for b := 0; b < books; b++ {
			if (u+b)%3 == 0 {
				continue
			}
			rating := 2.0
			if u%2 == b%2 {
				rating = 5.0
			}
			samples = append(samples, Sample{User: u, Book: b, Rating: rating})
		}
	}
	return samples
}

func smallConfig() NeuralConfig {
	return NeuralConfig{
		EmbeddingDim: 8,
		Hidden1:      16,
		Hidden2:      8,
		Dropout:      0.2,
		LearningRate: 0.01,
		BatchSize:    16,
		Epochs:       30,
		Seed:         7,
	}
}

func TestTrainNeural_EmptyTrainingSet(t *testing.T) {
	t.Parallel()

	_, err := TrainNeural(context.Background(), nil, 1, 1, DefaultNeuralConfig(), nil)
	if !errors.Is(err, ErrEmptyTrainingSet) {
		t.Errorf("TrainNeural(nil) error = %v, want ErrEmptyTrainingSet", err)
	}
}

func TestTrainNeural_RejectsOutOfRangeSamples(t *testing.T) {
	t.Parallel()

	samples := []Sample{{User: 0, Book: 3, Rating: 4}}
	if _, err := TrainNeural(context.Background(), samples, 1, 2, smallConfig(), nil); err == nil {
		t.Error("expected error for out-of-range book index")
	}
}

func TestTrainNeural_SingleSample(t *testing.T) {
	t.Parallel()

	model, err := TrainNeural(context.Background(), []Sample{{User: 0, Book: 0, Rating: 4}}, 1, 1, smallConfig(), nil)
	if err != nil {
		t.Fatalf("TrainNeural() error = %v", err)
	}
	if got := model.Predict(0, []int{0}); math.IsNaN(got[0]) {
		t.Error("prediction should be finite")
	}
}

func TestTrainNeural_ObserverAndLoss(t *testing.T) {
	t.Parallel()

	cfg := smallConfig()
	var epochs []int
	var losses []float64
	observer := func(epoch, total int, loss float64) {
		if total != cfg.Epochs {
			t.Errorf("observer total = %d, want %d", total, cfg.Epochs)
		}
		epochs = append(epochs, epoch)
		losses = append(losses, loss)
	}

	model, err := TrainNeural(context.Background(), structuredSamples(12, 12), 12, 12, cfg, observer)
	if err != nil {
		t.Fatalf("TrainNeural() error = %v", err)
	}

	if len(epochs) != cfg.Epochs {
		t.Fatalf("observer called %d times, want %d", len(epochs), cfg.Epochs)
	}
	for i, e := range epochs {
		if e != i+1 {
			t.Errorf("epoch[%d] = %d, want %d", i, e, i+1)
		}
	}
	if losses[len(losses)-1] >= losses[0] {
		t.Errorf("loss did not decrease: first %v, last %v", losses[0], losses[len(losses)-1])
	}
	if err := model.Params().Validate(); err != nil {
		t.Errorf("trained params invalid: %v", err)
	}
}

func TestTrainNeural_Deterministic(t *testing.T) {
	t.Parallel()

	samples := structuredSamples(6, 6)
	cfg := smallConfig()
	cfg.Epochs = 3

	a, err := TrainNeural(context.Background(), samples, 6, 6, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := TrainNeural(context.Background(), samples, 6, 6, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	books := []int{0, 1, 2, 3, 4, 5}
	pa, pb := a.Predict(2, books), b.Predict(2, books)
	for i := range pa {
		if pa[i] != pb[i] {
			t.Fatalf("prediction %d differs: %v vs %v", i, pa[i], pb[i])
		}
	}
}

func TestTrainNeural_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := TrainNeural(ctx, structuredSamples(4, 4), 4, 4, smallConfig(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestNeuralRecommender_Predict(t *testing.T) {
	t.Parallel()

	model, err := TrainNeural(context.Background(), structuredSamples(4, 4), 4, 4, smallConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}

	got := model.Predict(1, []int{0, 3, 9, -1})
	if math.IsNaN(got[0]) || math.IsNaN(got[1]) {
		t.Errorf("known books should score, got %v", got)
	}
	if !math.IsNaN(got[2]) || !math.IsNaN(got[3]) {
		t.Errorf("unknown books should be NaN, got %v", got)
	}
	for _, v := range model.Predict(42, []int{0, 1}) {
		if !math.IsNaN(v) {
			t.Errorf("unknown user should be NaN, got %v", v)
		}
	}

	// The inference path must agree with the training forward pass without dropout.
	cfg := smallConfig()
	cfg.Dropout = 0
	tr := newTrainer(model.Params(), cfg, rand.New(rand.NewSource(1)))
	if want := tr.forward(1, 3); math.Abs(got[1]-want) > 1e-9 {
		t.Errorf("Predict = %v, forward = %v", got[1], want)
	}
}

func TestNewNeuralRecommender_Validates(t *testing.T) {
	t.Parallel()

	if _, err := NewNeuralRecommender(nil); err == nil {
		t.Error("expected error for nil params")
	}

	cfg := smallConfig()
	p := newModelParams(3, 2, cfg, rand.New(rand.NewSource(1)))
	if _, err := NewNeuralRecommender(p); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}
	p.W2 = p.W2[:len(p.W2)-1]
	if _, err := NewNeuralRecommender(p); err == nil {
		t.Error("expected error for truncated W2")
	}
}

// TestBackward_MatchesFiniteDifferences checks analytic gradients of the
// output with respect to weights and inputs.
func TestBackward_MatchesFiniteDifferences(t *testing.T) {
	t.Parallel()

	cfg := smallConfig()
	cfg.Dropout = 0
	rng := rand.New(rand.NewSource(3))
	p := newModelParams(2, 2, cfg, rng)
	tr := newTrainer(p, cfg, rng)

	tr.forward(1, 0)
	tr.backward(1)

	const eps = 1e-6
	numeric := func(param []float64, i int) float64 {
		orig := param[i]
		param[i] = orig + eps
		up := tr.forward(1, 0)
		param[i] = orig - eps
		down := tr.forward(1, 0)
		param[i] = orig
		return (up - down) / (2 * eps)
	}

	check := func(name string, param, grad []float64, idx []int) {
		for _, i := range idx {
			want := numeric(param, i)
			if math.Abs(grad[i]-want) > 1e-5*math.Max(1, math.Abs(want)) {
				t.Errorf("%s[%d]: analytic %v, numeric %v", name, i, grad[i], want)
			}
		}
	}

	gW1 := append([]float64(nil), tr.gW1...)
	gW2 := append([]float64(nil), tr.gW2...)
	gW3 := append([]float64(nil), tr.gW3...)
	gx := append([]float64(nil), tr.gx...)

	check("w1", p.W1, gW1, []int{0, 5, 17, 100})
	check("w2", p.W2, gW2, []int{0, 3, 40})
	check("w3", p.W3, gW3, []int{0, 7})

	d := p.Dim
	userRow := p.UserEmbedding[1*d : 2*d]
	bookRow := p.BookEmbedding[0:d]
	check("user", userRow, gx[:d], []int{0, 3})
	check("book", bookRow, gx[d:], []int{1, 6})
}
