// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package recommend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/metrics"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/recommend/algorithms"
	"github.com/tomtom215/shelfwise/internal/recommend/storage"
)

// fakeProvider serves fixed feeds from memory.
type fakeProvider struct {
	mu      sync.Mutex
	books   []models.Book
	ratings []models.Rating
	err     error
	calls   int
}

func (f *fakeProvider) FetchBooks(_ context.Context) ([]models.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Book(nil), f.books...), nil
}

func (f *fakeProvider) FetchRatings(_ context.Context) ([]models.Rating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Rating(nil), f.ratings...), nil
}

func (f *fakeProvider) FetchUserRatings(_ context.Context, userID int64) ([]models.Rating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Rating
	for _, r := range f.ratings {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Neural = algorithms.NeuralConfig{
		EmbeddingDim: 4,
		Hidden1:      8,
		Hidden2:      4,
		Dropout:      0.2,
		LearningRate: 0.01,
		BatchSize:    4,
		Epochs:       3,
		Seed:         7,
	}
	cfg.Calibration.Deterministic = true
	return cfg
}

// testRatings returns a deterministic snapshot over users 1..6 and books 1..8.
func testRatings() []models.Rating {
	var out []models.Rating
	for u := int64(1); u <= 6; u++ {
		for b := int64(1); b <= 8; b++ {
			if (u+b)%3 == 0 {
				continue
			}
			out = append(out, models.Rating{UserID: u, BookID: b, Score: int(1 + (u*b)%5)})
		}
	}
	return out
}

func testBooks() []models.Book {
	return []models.Book{
		{ID: 1, Title: "A", Author: "Ann", Description: "space opera about robots"},
		{ID: 2, Title: "B", Author: "Bob", Description: "space opera about robots and AI"},
		{ID: 3, Title: "C", Author: "Cat", Description: "a romance novel about cooking"},
	}
}

func newTestEngine(t *testing.T, store *storage.Store, dp DataProvider) *Engine {
	t.Helper()
	e, err := NewEngine(testConfig(), logging.Nop(), store)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if dp != nil {
		e.SetDataProvider(dp)
	}
	return e
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MinRatings = 0
	if _, err := NewEngine(cfg, logging.Nop(), nil); err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestTrainOrLoadModel_InsufficientData(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	for _, ratings := range [][]models.Rating{nil, {{UserID: 1, BookID: 1, Score: 4}}} {
		_, err := e.TrainOrLoadModel(context.Background(), ratings, false, nil)
		if !errors.Is(err, ErrInsufficientData) {
			t.Errorf("TrainOrLoadModel(%d ratings) error = %v, want ErrInsufficientData", len(ratings), err)
		}
	}
	if e.Model() != nil {
		t.Error("no model should be served after insufficient data")
	}
	if e.Status().LastError == "" {
		t.Error("status should carry the last error")
	}
}

func TestTrainOrLoadModel_ReportsProgress(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	var epochs []int
	m, err := e.TrainOrLoadModel(context.Background(), testRatings(), false, func(epoch, total int) {
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		epochs = append(epochs, epoch)
	})
	if err != nil {
		t.Fatalf("TrainOrLoadModel() error = %v", err)
	}
	if m.Source != "trained" {
		t.Errorf("Source = %q, want trained", m.Source)
	}
	if len(epochs) != 3 || epochs[0] != 1 || epochs[2] != 3 {
		t.Errorf("observer epochs = %v, want [1 2 3]", epochs)
	}

	status := e.Status()
	if status.IsTraining || !status.ModelLoaded || status.Progress != 100 {
		t.Errorf("unexpected status after training: %+v", status)
	}
	if status.RatingsCount != len(testRatings()) {
		t.Errorf("RatingsCount = %d, want %d", status.RatingsCount, len(testRatings()))
	}
}

func TestTrainOrLoadModel_CachedByFingerprint(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	ctx := context.Background()

	first, err := e.TrainOrLoadModel(ctx, testRatings(), false, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.TrainOrLoadModel(ctx, testRatings(), false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("unchanged snapshot should reuse the cached model")
	}

	forced, err := e.TrainOrLoadModel(ctx, testRatings(), true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if forced == first {
		t.Error("forceRetrain should produce a new model")
	}

	e.Invalidate()
	after, err := e.TrainOrLoadModel(ctx, testRatings(), false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if after == forced {
		t.Error("Invalidate should bypass the in-memory model")
	}
}

func TestTrainOrLoadModel_Staleness(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ratings := testRatings()

	m, err := newTestEngine(t, store, nil).TrainOrLoadModel(ctx, ratings, false, nil)
	if err != nil {
		t.Fatalf("initial training error = %v", err)
	}
	if m.Source != "trained" {
		t.Fatalf("Source = %q, want trained", m.Source)
	}

	// Same count: the checkpoint is reused without training.
	trained := false
	reused, err := newTestEngine(t, store, nil).TrainOrLoadModel(ctx, ratings, false, func(int, int) { trained = true })
	if err != nil {
		t.Fatal(err)
	}
	if reused.Source != "checkpoint" || trained {
		t.Errorf("same count: Source = %q, trained = %v; want checkpoint without training", reused.Source, trained)
	}
	if reused.TrainedRatingsCount != len(ratings) {
		t.Errorf("TrainedRatingsCount = %d, want %d", reused.TrainedRatingsCount, len(ratings))
	}

	// Different count: retrain.
	grown := append(append([]models.Rating(nil), ratings...), models.Rating{UserID: 1, BookID: 2, Score: 5})
	retrained, err := newTestEngine(t, store, nil).TrainOrLoadModel(ctx, grown, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if retrained.Source != "trained" {
		t.Errorf("different count: Source = %q, want trained", retrained.Source)
	}

	meta, err := store.LoadMetadata(ctx, "rating_model")
	if err != nil {
		t.Fatal(err)
	}
	if meta.TrainedRatingsCount != len(grown) {
		t.Errorf("metadata count = %d, want %d", meta.TrainedRatingsCount, len(grown))
	}
}

func TestTrainOrLoadModel_ShapeMismatchRetrains(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ratings := testRatings()

	if _, err := newTestEngine(t, store, nil).TrainOrLoadModel(ctx, ratings, false, nil); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.Neural.EmbeddingDim = 6
	e, err := NewEngine(cfg, logging.Nop(), store)
	if err != nil {
		t.Fatal(err)
	}
	m, err := e.TrainOrLoadModel(ctx, ratings, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.Source != "trained" {
		t.Errorf("Source = %q, want trained after dimension change", m.Source)
	}
}

func TestTrainOrLoadModel_CorruptCheckpoint(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := storage.NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ratings := testRatings()

	if _, err := newTestEngine(t, store, nil).TrainOrLoadModel(ctx, ratings, false, nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "rating_model.ckpt.gz"), []byte("not a checkpoint"), 0o600); err != nil {
		t.Fatal(err)
	}

	before := testutil.ToFloat64(metrics.CheckpointLoadFailures)
	m, err := newTestEngine(t, store, nil).TrainOrLoadModel(ctx, ratings, false, nil)
	if err != nil {
		t.Fatalf("corrupt checkpoint must not fail the call: %v", err)
	}
	if m.Source != "trained" {
		t.Errorf("Source = %q, want trained", m.Source)
	}
	if got := testutil.ToFloat64(metrics.CheckpointLoadFailures) - before; got != 1 {
		t.Errorf("CheckpointLoadFailures delta = %v, want 1", got)
	}
}

func TestTrainOrLoadModel_TrainingInProgress(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	e.trainMu.Lock()
	_, err := e.TrainOrLoadModel(context.Background(), testRatings(), true, nil)
	e.trainMu.Unlock()

	if !errors.Is(err, ErrTrainingInProgress) {
		t.Errorf("error = %v, want ErrTrainingInProgress", err)
	}
}

func TestPredict(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	m, err := e.TrainOrLoadModel(context.Background(), testRatings(), false, nil)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("cold start", func(t *testing.T) {
		scores, personalized := e.Predict(m, 999, nil)
		if personalized || len(scores) != 0 {
			t.Errorf("Predict(unknown user) = %v, %v; want empty, false", scores, personalized)
		}
	})

	t.Run("nil model", func(t *testing.T) {
		scores, personalized := e.Predict(nil, 1, nil)
		if personalized || scores == nil || len(scores) != 0 {
			t.Errorf("Predict(nil model) = %v, %v", scores, personalized)
		}
	})

	t.Run("all books sorted", func(t *testing.T) {
		scores, personalized := e.Predict(m, 1, nil)
		if !personalized {
			t.Fatal("known user should be personalized")
		}
		if len(scores) != m.Mapper().NumBooks() {
			t.Fatalf("got %d scores, want %d", len(scores), m.Mapper().NumBooks())
		}
		for i := 1; i < len(scores); i++ {
			if scores[i].Score > scores[i-1].Score {
				t.Fatalf("scores not descending at %d: %v", i, scores)
			}
		}
	})

	t.Run("unknown candidates skipped", func(t *testing.T) {
		scores, _ := e.Predict(m, 1, []int64{2, 4242, 3})
		if len(scores) != 2 {
			t.Fatalf("got %d scores, want 2", len(scores))
		}
		for _, s := range scores {
			if s.BookID == 4242 {
				t.Error("unknown book must not be scored")
			}
		}
	})
}

func TestRecommendForUser(t *testing.T) {
	ctx := context.Background()
	dp := &fakeProvider{books: testBooks(), ratings: testRatings()}
	e := newTestEngine(t, nil, dp)

	if _, err := e.RecommendForUser(ctx, 1, 5, false); !errors.Is(err, ErrModelNotTrained) {
		t.Fatalf("before training error = %v, want ErrModelNotTrained", err)
	}

	if _, err := e.Refresh(ctx, false); err != nil {
		t.Fatal(err)
	}

	recs, err := e.RecommendForUser(ctx, 1, 3, true)
	if err != nil {
		t.Fatal(err)
	}
	if !recs.Personalized {
		t.Error("user 1 should be personalized")
	}
	rated := make(map[int64]bool)
	for _, r := range testRatings() {
		if r.UserID == 1 {
			rated[r.BookID] = true
		}
	}
	if len(recs.Items) == 0 || len(recs.Items) > 3 {
		t.Fatalf("got %d items, want 1..3", len(recs.Items))
	}
	for _, item := range recs.Items {
		if rated[item.BookID] {
			t.Errorf("rated book %d recommended with exclude_rated", item.BookID)
		}
	}

	cold, err := e.RecommendForUser(ctx, 777, 3, true)
	if err != nil {
		t.Fatal(err)
	}
	if cold.Personalized || len(cold.Items) != 0 {
		t.Errorf("cold user got %+v", cold)
	}
}

func TestSimilarToText_RobotsQuery(t *testing.T) {
	e := newTestEngine(t, nil, &fakeProvider{books: testBooks()})

	results, err := e.SimilarToText(context.Background(), "robots in space", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[2].Title != "C" {
		t.Errorf("C should rank last, got order %s %s %s", results[0].Title, results[1].Title, results[2].Title)
	}
	if results[0].RawScore <= results[2].RawScore || results[1].RawScore <= results[2].RawScore {
		t.Errorf("A and B must score strictly above C: %+v", results)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("calibrated scores not monotonic: %+v", results)
		}
	}
}

func TestSimilarToBook(t *testing.T) {
	ctx := context.Background()

	t.Run("excludes itself", func(t *testing.T) {
		e := newTestEngine(t, nil, &fakeProvider{books: testBooks()})
		for _, n := range []int{1, 2, 10} {
			results, err := e.SimilarToBook(ctx, "A", n)
			if err != nil {
				t.Fatal(err)
			}
			for _, r := range results {
				if r.Title == "A" {
					t.Errorf("n=%d: result contains the query book", n)
				}
			}
		}
		results, _ := e.SimilarToBook(ctx, "A", 10)
		if len(results) != 2 || results[0].Title != "B" {
			t.Errorf("SimilarToBook(A) = %+v, want B first of 2", results)
		}
	})

	t.Run("unknown title", func(t *testing.T) {
		e := newTestEngine(t, nil, &fakeProvider{books: testBooks()})
		results, err := e.SimilarToBook(ctx, "Missing", 5)
		if err != nil {
			t.Fatal(err)
		}
		if results == nil || len(results) != 0 {
			t.Errorf("unknown title = %v, want empty slice", results)
		}
	})

	t.Run("degenerate calibration", func(t *testing.T) {
		books := []models.Book{
			{ID: 1, Title: "Twin One", Author: "Same", Description: "identical words here"},
			{ID: 2, Title: "Twin Two", Author: "Same", Description: "identical words here"},
		}
		e := newTestEngine(t, nil, &fakeProvider{books: books})
		results, err := e.SimilarToBook(ctx, "Twin One", 5)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 1 || results[0].Score != 0.95 {
			t.Errorf("results = %+v, want one result scored 0.95", results)
		}
	})

	t.Run("by id", func(t *testing.T) {
		e := newTestEngine(t, nil, &fakeProvider{books: testBooks()})
		results, err := e.SimilarToBookID(ctx, 2, 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 1 || results[0].BookID != 1 {
			t.Errorf("SimilarToBookID(2) = %+v, want book 1", results)
		}
	})
}

func TestContentIndexRebuildsOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	dp := &fakeProvider{books: testBooks()}
	e := newTestEngine(t, nil, dp)

	first, err := e.RebuildContentIndex(ctx)
	if err != nil {
		t.Fatal(err)
	}
	e.Invalidate()
	second, err := e.contentIndex(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("unchanged catalog should keep the existing index")
	}

	dp.mu.Lock()
	dp.books = append(dp.books, models.Book{ID: 4, Title: "D", Author: "Dee", Description: "robots again"})
	dp.mu.Unlock()
	e.Invalidate()
	third, err := e.contentIndex(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if third == first || third.Len() != 4 {
		t.Errorf("changed catalog should rebuild, got %d rows", third.Len())
	}
}

func TestContentMatchesForUser(t *testing.T) {
	ctx := context.Background()
	dp := &fakeProvider{
		books: testBooks(),
		ratings: []models.Rating{
			{UserID: 1, BookID: 3, Score: 2},
			{UserID: 1, BookID: 1, Score: 5},
		},
	}
	e := newTestEngine(t, nil, dp)

	matches, err := e.ContentMatchesForUser(ctx, 1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if matches.SeedBook != 1 || matches.SeedTitle != "A" {
		t.Errorf("seed = %d/%q, want 1/A", matches.SeedBook, matches.SeedTitle)
	}
	if len(matches.Items) != 2 || matches.Items[0].Title != "B" {
		t.Errorf("items = %+v", matches.Items)
	}

	empty, err := e.ContentMatchesForUser(ctx, 2, 5)
	if err != nil {
		t.Fatal(err)
	}
	if empty.SeedBook != 0 || len(empty.Items) != 0 {
		t.Errorf("user without ratings got %+v", empty)
	}
}

func TestExplain(t *testing.T) {
	ctx := context.Background()
	dp := &fakeProvider{
		books: testBooks(),
		ratings: []models.Rating{
			{UserID: 1, BookID: 2, Score: 5},
			{UserID: 1, BookID: 3, Score: 1},
		},
	}
	e := newTestEngine(t, nil, dp)

	got, err := e.Explain(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != "Matches your interest in Bob" {
		t.Errorf("Explain(1) = %q", got)
	}

	got, err = e.Explain(ctx, 9)
	if err != nil {
		t.Fatal(err)
	}
	if got != "Trending among similar users" {
		t.Errorf("Explain(9) = %q", got)
	}
}

func TestWarmup(t *testing.T) {
	ctx := context.Background()

	t.Run("builds both", func(t *testing.T) {
		e := newTestEngine(t, newTestStore(t), &fakeProvider{books: testBooks(), ratings: testRatings()})
		if err := e.Warmup(ctx); err != nil {
			t.Fatalf("Warmup() error = %v", err)
		}
		if e.Model() == nil {
			t.Error("model should be loaded after warmup")
		}
		if !e.Status().ModelLoaded {
			t.Error("status should report a loaded model")
		}
	})

	t.Run("too few ratings", func(t *testing.T) {
		e := newTestEngine(t, nil, &fakeProvider{books: testBooks(), ratings: testRatings()[:1]})
		if err := e.Warmup(ctx); err != nil {
			t.Fatalf("Warmup() error = %v, want nil", err)
		}
		if e.Model() != nil {
			t.Error("no model expected")
		}
	})

	t.Run("store failure", func(t *testing.T) {
		e := newTestEngine(t, nil, &fakeProvider{err: errors.New("disk gone")})
		if err := e.Warmup(ctx); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestNoDataProvider(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	ctx := context.Background()

	if _, err := e.Refresh(ctx, false); !errors.Is(err, ErrNoDataProvider) {
		t.Errorf("Refresh error = %v", err)
	}
	if _, err := e.SimilarToText(ctx, "robots", 3); !errors.Is(err, ErrNoDataProvider) {
		t.Errorf("SimilarToText error = %v", err)
	}
	if _, err := e.ContentMatchesForUser(ctx, 1, 3); !errors.Is(err, ErrNoDataProvider) {
		t.Errorf("ContentMatchesForUser error = %v", err)
	}
}
