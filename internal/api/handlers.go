// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package api

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/shelfwise/internal/cache"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/recommend"
)

// Store is the part of the database layer the handlers read and write.
// *database.DB implements it.
type Store interface {
	Ping(ctx context.Context) error

	ListBooks(ctx context.Context, limit, offset int) ([]models.Book, error)
	SearchBooks(ctx context.Context, q string) ([]models.Book, error)
	GetBook(ctx context.Context, bookID int64) (models.Book, error)
	BookAverageRating(ctx context.Context, bookID int64) (float64, bool, error)
	TrendingBooks(ctx context.Context) ([]models.TrendingBook, error)

	UpsertRating(ctx context.Context, userID, bookID int64, score int) error
	UserRatingsMap(ctx context.Context, userID int64) (map[int64]int, error)

	CreateUser(ctx context.Context, username string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	Stats(ctx context.Context) (*models.SystemStats, error)
}

// Recommender is the engine surface used by the handlers.
// *recommend.Engine implements it.
type Recommender interface {
	Status() recommend.TrainingStatus
	Invalidate()
	Refresh(ctx context.Context, forceRetrain bool) (*recommend.Model, error)

	RecommendForUser(ctx context.Context, userID int64, k int, excludeRated bool) (*recommend.UserRecommendations, error)
	Explain(ctx context.Context, userID int64) (string, error)
	ContentMatchesForUser(ctx context.Context, userID int64, topN int) (*recommend.ContentMatches, error)

	SimilarToBookID(ctx context.Context, bookID int64, topN int) ([]recommend.TitleScore, error)
	SimilarToText(ctx context.Context, query string, topN int) ([]recommend.TitleScore, error)
}

// Retrainer schedules a debounced model refresh after ratings change.
type Retrainer interface {
	RequestRetrain()
}

// Handler contains dependencies for API handlers.
//
// Methods are split across files:
//   - handlers_health.go: probes
//   - handlers_books.go: catalog and content search
//   - handlers_users.go: users, ratings and per-user recommendations
//   - handlers_recommend.go: model status and training
type Handler struct {
	store     Store
	engine    Recommender
	retrainer Retrainer
	cache     *cache.Cache

	trainTimeout time.Duration
	startTime    time.Time

	// background tracks training runs started by TriggerTraining.
	// Shutdown cancels bgCtx before waiting on them.
	background sync.WaitGroup
	bgCtx      context.Context
	bgCancel   context.CancelFunc
}

// HandlerOptions configures NewHandler. Retrainer and Cache are optional.
type HandlerOptions struct {
	Store     Store
	Engine    Recommender
	Retrainer Retrainer
	Cache     *cache.Cache

	// TrainTimeout bounds a training run started over HTTP. Defaults to 30m.
	TrainTimeout time.Duration
}

// NewHandler creates the API handler.
func NewHandler(opts HandlerOptions) *Handler {
	if opts.TrainTimeout <= 0 {
		opts.TrainTimeout = 30 * time.Minute
	}
	bgCtx, bgCancel := context.WithCancel(context.Background())
	return &Handler{
		bgCtx:        bgCtx,
		bgCancel:     bgCancel,
		store:        opts.Store,
		engine:       opts.Engine,
		retrainer:    opts.Retrainer,
		cache:        opts.Cache,
		trainTimeout: opts.TrainTimeout,
		startTime:    time.Now(),
	}
}

// Wait blocks until training runs started over HTTP have returned.
func (h *Handler) Wait() {
	h.background.Wait()
}

// Shutdown cancels training runs started over HTTP and waits for them.
func (h *Handler) Shutdown() {
	h.bgCancel()
	h.background.Wait()
}

// onRatingsChanged drops everything derived from the ratings snapshot.
func (h *Handler) onRatingsChanged() {
	h.engine.Invalidate()
	h.ClearCache()
	if h.retrainer != nil {
		h.retrainer.RequestRetrain()
	}
}

// ClearCache empties the response cache.
func (h *Handler) ClearCache() {
	if h.cache != nil {
		h.cache.Clear()
	}
}

// cached returns the cached value for key or computes and stores it.
func cached[T any](h *Handler, key string, compute func() (T, error)) (T, error) {
	if h.cache != nil {
		if v, ok := h.cache.Get(key); ok {
			if typed, ok := v.(T); ok {
				return typed, nil
			}
		}
	}
	v, err := compute()
	if err != nil {
		return v, err
	}
	if h.cache != nil {
		h.cache.Set(key, v)
	}
	return v, nil
}
