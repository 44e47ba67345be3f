// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package recommend

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/shelfwise/internal/metrics"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/recommend/algorithms"
	"github.com/tomtom215/shelfwise/internal/recommend/reranking"
	"github.com/tomtom215/shelfwise/internal/recommend/storage"
)

// Engine owns the process-wide rating model and content index. Both are
// built once per dataset fingerprint and then shared read-only by every
// request. It is safe for concurrent use.
type Engine struct {
	config      *Config
	logger      zerolog.Logger
	store       *storage.Store
	calibration *reranking.Calibration
	provider    DataProvider

	// trainMu serializes training runs; it is only ever TryLock'ed.
	trainMu sync.Mutex

	statusMu sync.RWMutex
	status   TrainingStatus

	mu         sync.RWMutex
	model      *Model
	modelValid bool
	content    *algorithms.ContentIndex
	contentFP  Fingerprint

	// contentStale forces the next query to re-check the catalog fingerprint.
	contentStale bool
	books        map[int64]models.Book
}

// NewEngine creates an engine. store may be nil, in which case models are
// never checkpointed.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, logger zerolog.Logger, store *storage.Store) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	rng := rand.New(rand.NewSource(cfg.CalibrationSeed)) //nolint:gosec // presentation jitter only

	return &Engine{
		config:      cfg,
		logger:      logger.With().Str("component", "recommend").Logger(),
		store:       store,
		calibration: reranking.NewCalibration(cfg.Calibration, rng),
		status:      TrainingStatus{TotalEpochs: cfg.Neural.Epochs},
	}, nil
}

// SetDataProvider sets the store the engine reads feeds from.
func (e *Engine) SetDataProvider(dp DataProvider) {
	e.provider = dp
}

// Config returns the engine configuration.
func (e *Engine) Config() *Config {
	return e.config
}

// Model returns the model currently serving predictions, or nil.
func (e *Engine) Model() *Model {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model
}

// Status returns a snapshot of the training status.
func (e *Engine) Status() TrainingStatus {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

// Invalidate marks both cached structures as out of date. The current
// model keeps serving until the next TrainOrLoadModel replaces it.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.modelValid = false
	e.contentStale = true
	e.logger.Debug().Msg("engine caches invalidated")
}

// TrainOrLoadModel returns a model for the given ratings snapshot.
//
// Unless forceRetrain is set it reuses, in order: the in-memory model if the
// snapshot fingerprint is unchanged, then the checkpoint if its recorded
// ratings count equals len(ratings). Otherwise it trains from scratch and
// checkpoints the result. A corrupt checkpoint is logged and retrained.
// observer, if not nil, is called after every epoch.
func (e *Engine) TrainOrLoadModel(ctx context.Context, ratings []models.Rating, forceRetrain bool, observer ProgressObserver) (*Model, error) {
	start := time.Now()

	if len(ratings) < e.config.MinRatings {
		metrics.RecordTraining("insufficient_data", 0)
		e.setLastError(ErrInsufficientData)
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, len(ratings), e.config.MinRatings)
	}

	fp := RatingsFingerprint(ratings)
	if !forceRetrain {
		if m := e.cachedModel(fp); m != nil {
			metrics.RecordTraining("cached", time.Since(start))
			return m, nil
		}
	}

	if !e.trainMu.TryLock() {
		return nil, ErrTrainingInProgress
	}
	defer e.trainMu.Unlock()

	mapper := BuildIndex(ratings)

	if !forceRetrain && e.store != nil {
		if m := e.loadCheckpoint(ctx, mapper, len(ratings), fp); m != nil {
			e.setModel(m)
			metrics.RecordTraining("loaded", time.Since(start))
			e.logger.Info().
				Int("ratings", len(ratings)).
				Int("users", mapper.NumUsers()).
				Int("books", mapper.NumBooks()).
				Msg("rating model loaded from checkpoint")
			return m, nil
		}
	}

	m, err := e.train(ctx, ratings, mapper, fp, observer)
	if err != nil {
		metrics.RecordTraining("failed", time.Since(start))
		return nil, err
	}
	e.setModel(m)
	metrics.RecordTraining("trained", time.Since(start))
	return m, nil
}

// Refresh reads the current ratings from the data provider and calls
// TrainOrLoadModel.
func (e *Engine) Refresh(ctx context.Context, forceRetrain bool) (*Model, error) {
	if e.provider == nil {
		return nil, ErrNoDataProvider
	}
	ratings, err := e.provider.FetchRatings(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch ratings: %w", err)
	}
	return e.TrainOrLoadModel(ctx, ratings, forceRetrain, nil)
}

// Warmup builds the content index and loads or trains the rating model
// concurrently. Too few ratings is not an error here.
func (e *Engine) Warmup(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		_, err := e.RebuildContentIndex(gctx)
		return err
	})
	g.Go(func() error {
		_, err := e.Refresh(gctx, false)
		if errors.Is(err, ErrInsufficientData) {
			e.logger.Warn().Err(err).Msg("rating model unavailable")
			return nil
		}
		return err
	})

	return g.Wait()
}

func (e *Engine) cachedModel(fp Fingerprint) *Model {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.model != nil && e.modelValid && e.model.Fingerprint == fp {
		return e.model
	}
	return nil
}

// loadCheckpoint returns the stored model when it is fresh for this
// snapshot, or nil when training is needed.
func (e *Engine) loadCheckpoint(ctx context.Context, mapper *IndexMapper, count int, fp Fingerprint) *Model {
	var params algorithms.ModelParams
	meta, err := e.store.LoadCheckpoint(ctx, e.config.ModelName, &params)
	switch {
	case errors.Is(err, storage.ErrCheckpointNotFound):
		e.logger.Debug().Msg("no checkpoint found")
		return nil
	case err != nil:
		metrics.CheckpointLoadFailures.Inc()
		e.logger.Warn().Err(err).Msg("checkpoint unreadable, retraining")
		return nil
	}

	if meta.TrainedRatingsCount != count {
		e.logger.Info().
			Int("checkpoint_ratings", meta.TrainedRatingsCount).
			Int("current_ratings", count).
			Msg("checkpoint stale, retraining")
		return nil
	}

	nc := e.config.Neural
	if params.NumUsers != mapper.NumUsers() || params.NumBooks != mapper.NumBooks() ||
		params.Dim != nc.EmbeddingDim || params.Hidden1 != nc.Hidden1 || params.Hidden2 != nc.Hidden2 {
		e.logger.Info().
			Int("checkpoint_users", params.NumUsers).
			Int("checkpoint_books", params.NumBooks).
			Int("current_users", mapper.NumUsers()).
			Int("current_books", mapper.NumBooks()).
			Msg("checkpoint shape does not match current data, retraining")
		return nil
	}

	rec, err := algorithms.NewNeuralRecommender(&params)
	if err != nil {
		metrics.CheckpointLoadFailures.Inc()
		e.logger.Warn().Err(err).Msg("checkpoint invalid, retraining")
		return nil
	}

	return &Model{
		recommender:         rec,
		mapper:              mapper,
		TrainedRatingsCount: count,
		Fingerprint:         fp,
		TrainedAt:           meta.TrainedAt,
		Source:              "checkpoint",
	}
}

func (e *Engine) train(ctx context.Context, ratings []models.Rating, mapper *IndexMapper, fp Fingerprint, observer ProgressObserver) (*Model, error) {
	start := time.Now()
	e.beginTraining(len(ratings), mapper)
	e.logger.Info().
		Int("ratings", len(ratings)).
		Int("users", mapper.NumUsers()).
		Int("books", mapper.NumBooks()).
		Int("epochs", e.config.Neural.Epochs).
		Msg("starting rating model training")

	var lastLoss float64
	rec, err := algorithms.TrainNeural(ctx, mapper.Encode(ratings), mapper.NumUsers(), mapper.NumBooks(), e.config.Neural,
		func(epoch, total int, loss float64) {
			lastLoss = loss
			e.updateProgress(epoch, total, loss)
			metrics.RecordEpoch(epoch, total, loss)
			e.logger.Debug().Int("epoch", epoch).Int("total", total).Float64("loss", loss).Msg("epoch complete")
			if observer != nil {
				observer(epoch, total)
			}
		})
	duration := time.Since(start)
	e.finishTraining(err, duration)
	if err != nil {
		e.logger.Error().Err(err).Msg("rating model training failed")
		return nil, fmt.Errorf("train rating model: %w", err)
	}

	now := time.Now().UTC()
	m := &Model{
		recommender:         rec,
		mapper:              mapper,
		TrainedRatingsCount: len(ratings),
		Fingerprint:         fp,
		TrainedAt:           now,
		Source:              "trained",
	}

	if e.store != nil {
		meta := storage.CheckpointMetadata{
			TrainedRatingsCount: len(ratings),
			NumUsers:            mapper.NumUsers(),
			NumBooks:            mapper.NumBooks(),
			EmbeddingDim:        e.config.Neural.EmbeddingDim,
			FinalLoss:           lastLoss,
			TrainedAt:           now,
			TrainingDurationMS:  duration.Milliseconds(),
		}
		if _, err := e.store.SaveCheckpoint(ctx, e.config.ModelName, rec.Params(), meta); err != nil {
			e.logger.Warn().Err(err).Msg("failed to save checkpoint")
		}
	}

	e.logger.Info().
		Float64("loss", lastLoss).
		Int64("duration_ms", duration.Milliseconds()).
		Msg("rating model training complete")
	return m, nil
}

func (e *Engine) setModel(m *Model) {
	e.mu.Lock()
	e.model = m
	e.modelValid = true
	e.mu.Unlock()

	metrics.ModelTrainedRatings.Set(float64(m.TrainedRatingsCount))

	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.status.ModelLoaded = true
	e.status.ModelSource = m.Source
	e.status.LastTrainedAt = m.TrainedAt
	e.status.RatingsCount = m.TrainedRatingsCount
	e.status.UserCount = m.mapper.NumUsers()
	e.status.BookCount = m.mapper.NumBooks()
	e.status.LastError = ""
}

func (e *Engine) beginTraining(count int, mapper *IndexMapper) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.status.IsTraining = true
	e.status.Epoch = 0
	e.status.TotalEpochs = e.config.Neural.Epochs
	e.status.Progress = 0
	e.status.LastError = ""
	e.status.RatingsCount = count
	e.status.UserCount = mapper.NumUsers()
	e.status.BookCount = mapper.NumBooks()
}

func (e *Engine) updateProgress(epoch, total int, loss float64) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.status.Epoch = epoch
	e.status.TotalEpochs = total
	e.status.Progress = epoch * 100 / total
	e.status.LastLoss = loss
}

func (e *Engine) finishTraining(err error, duration time.Duration) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.status.IsTraining = false
	e.status.LastTrainingDurationMS = duration.Milliseconds()
	if err != nil {
		e.status.LastError = err.Error()
	}
}

func (e *Engine) setLastError(err error) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.status.LastError = err.Error()
}

// Predict scores candidate books for a user, highest first. Ties keep
// candidate order. A nil candidates slice means every book the model knows.
// Candidates the model has never seen are skipped. personalized is false
// when there is no model or the user has no ratings in the model's snapshot.
func (e *Engine) Predict(model *Model, userID int64, candidates []int64) (scores []BookScore, personalized bool) {
	if model == nil {
		metrics.RecordPrediction(false)
		return []BookScore{}, false
	}
	userIdx, ok := model.mapper.UserIndex(userID)
	if !ok {
		metrics.RecordPrediction(false)
		return []BookScore{}, false
	}

	if candidates == nil {
		candidates = model.mapper.BookIDs()
	}
	ids := make([]int64, 0, len(candidates))
	idxs := make([]int, 0, len(candidates))
	for _, id := range candidates {
		if bi, ok := model.mapper.BookIndex(id); ok {
			ids = append(ids, id)
			idxs = append(idxs, bi)
		}
	}

	preds := model.recommender.Predict(userIdx, idxs)
	scores = make([]BookScore, len(ids))
	for i, id := range ids {
		scores[i] = BookScore{BookID: id, Score: preds[i]}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })

	metrics.RecordPrediction(true)
	return scores, true
}

// RecommendForUser returns the user's top k predictions from the serving
// model. With excludeRated the user's already rated books are left out.
func (e *Engine) RecommendForUser(ctx context.Context, userID int64, k int, excludeRated bool) (*UserRecommendations, error) {
	model := e.Model()
	if model == nil {
		return nil, ErrModelNotTrained
	}

	var candidates []int64
	if excludeRated {
		if e.provider == nil {
			return nil, ErrNoDataProvider
		}
		rated, err := e.provider.FetchUserRatings(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("fetch user ratings: %w", err)
		}
		seen := make(map[int64]struct{}, len(rated))
		for _, r := range rated {
			seen[r.BookID] = struct{}{}
		}
		all := model.mapper.BookIDs()
		candidates = make([]int64, 0, len(all))
		for _, id := range all {
			if _, ok := seen[id]; !ok {
				candidates = append(candidates, id)
			}
		}
	}

	scores, personalized := e.Predict(model, userID, candidates)
	if k = e.config.ClampK(k); len(scores) > k {
		scores = scores[:k]
	}
	return &UserRecommendations{UserID: userID, Personalized: personalized, Items: scores}, nil
}

// Explain returns the reason shown with a user's personalized picks.
func (e *Engine) Explain(ctx context.Context, userID int64) (string, error) {
	if e.provider == nil {
		return "", ErrNoDataProvider
	}
	rated, err := e.provider.FetchUserRatings(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("fetch user ratings: %w", err)
	}
	if _, err := e.contentIndex(ctx); err != nil {
		return "", err
	}

	e.mu.RLock()
	author, ok := FavoriteAuthor(rated, e.books)
	e.mu.RUnlock()
	return Explanation(author, ok), nil
}

// RebuildContentIndex fetches the catalog and refits the TF-IDF index if
// the catalog changed since the last build.
func (e *Engine) RebuildContentIndex(ctx context.Context) (*algorithms.ContentIndex, error) {
	if e.provider == nil {
		return nil, ErrNoDataProvider
	}
	books, err := e.provider.FetchBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch books: %w", err)
	}
	fp := BooksFingerprint(books)

	e.mu.RLock()
	current, currentFP := e.content, e.contentFP
	e.mu.RUnlock()
	if current != nil && currentFP == fp {
		e.mu.Lock()
		e.contentStale = false
		e.mu.Unlock()
		return current, nil
	}

	start := time.Now()
	docs := make([]algorithms.ContentDocument, len(books))
	byID := make(map[int64]models.Book, len(books))
	for i := range books {
		b := &books[i]
		docs[i] = algorithms.ContentDocument{BookID: b.ID, Title: b.Title, Author: b.Author, Description: b.Description}
		byID[b.ID] = *b
	}
	idx := algorithms.NewContentIndex(docs)

	if dup := idx.DuplicateTitles(); dup > 0 {
		e.logger.Warn().Int("duplicates", dup).Msg("duplicate titles in catalog, title lookups resolve to the last one")
	}
	metrics.ContentIndexSize.Set(float64(idx.Len()))
	e.logger.Info().
		Int("books", idx.Len()).
		Int("vocabulary", idx.VocabularySize()).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("content index built")

	e.mu.Lock()
	e.content = idx
	e.contentFP = fp
	e.contentStale = false
	e.books = byID
	e.mu.Unlock()
	return idx, nil
}

func (e *Engine) contentIndex(ctx context.Context) (*algorithms.ContentIndex, error) {
	e.mu.RLock()
	idx, stale := e.content, e.contentStale
	e.mu.RUnlock()
	if idx != nil && !stale {
		return idx, nil
	}
	return e.RebuildContentIndex(ctx)
}

// SimilarToBook returns the books most similar to the one titled title,
// never including it. An unknown title yields an empty list.
func (e *Engine) SimilarToBook(ctx context.Context, title string, topN int) ([]TitleScore, error) {
	start := time.Now()
	defer func() { metrics.RecordSimilarityQuery("book", time.Since(start)) }()

	idx, err := e.contentIndex(ctx)
	if err != nil {
		return nil, err
	}
	row, ok := idx.RowForTitle(title)
	if !ok {
		return []TitleScore{}, nil
	}
	return e.titleScores(idx, idx.SimilarToRow(row, e.config.ClampTopN(topN))), nil
}

// SimilarToBookID is SimilarToBook keyed by book id.
func (e *Engine) SimilarToBookID(ctx context.Context, bookID int64, topN int) ([]TitleScore, error) {
	start := time.Now()
	defer func() { metrics.RecordSimilarityQuery("book", time.Since(start)) }()

	idx, err := e.contentIndex(ctx)
	if err != nil {
		return nil, err
	}
	row, ok := idx.RowForBookID(bookID)
	if !ok {
		return []TitleScore{}, nil
	}
	return e.titleScores(idx, idx.SimilarToRow(row, e.config.ClampTopN(topN))), nil
}

// SimilarToText ranks the catalog against a free-text query.
func (e *Engine) SimilarToText(ctx context.Context, query string, topN int) ([]TitleScore, error) {
	start := time.Now()
	defer func() { metrics.RecordSimilarityQuery("text", time.Since(start)) }()

	idx, err := e.contentIndex(ctx)
	if err != nil {
		return nil, err
	}
	return e.titleScores(idx, idx.SimilarToText(query, e.config.ClampTopN(topN))), nil
}

// ContentMatchesForUser returns books similar to the user's highest rated one.
func (e *Engine) ContentMatchesForUser(ctx context.Context, userID int64, topN int) (*ContentMatches, error) {
	if e.provider == nil {
		return nil, ErrNoDataProvider
	}
	rated, err := e.provider.FetchUserRatings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch user ratings: %w", err)
	}

	result := &ContentMatches{UserID: userID, Items: []TitleScore{}}
	seed, ok := ContentSeed(rated)
	if !ok {
		return result, nil
	}

	idx, err := e.contentIndex(ctx)
	if err != nil {
		return nil, err
	}
	row, ok := idx.RowForBookID(seed)
	if !ok {
		return result, nil
	}
	result.SeedBook = seed
	result.SeedTitle = idx.Title(row)
	result.Items = e.titleScores(idx, idx.SimilarToRow(row, e.config.ClampTopN(topN)))
	return result, nil
}

func (e *Engine) titleScores(idx *algorithms.ContentIndex, ranked []algorithms.Scored) []TitleScore {
	raw := make([]float64, len(ranked))
	for i, s := range ranked {
		raw[i] = s.Score
	}
	calibrated := e.calibration.Apply(raw)

	out := make([]TitleScore, len(ranked))
	for i, s := range ranked {
		out[i] = TitleScore{
			BookID:   idx.BookID(s.Row),
			Title:    idx.Title(s.Row),
			Score:    calibrated[i],
			RawScore: s.Score,
		}
	}
	return out
}
