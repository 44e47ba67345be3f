// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/shelfwise/internal/recommend"
)

// RecommendEngine is the part of *recommend.Engine the service drives.
type RecommendEngine interface {
	// Warmup builds the content index and loads or trains the rating model.
	Warmup(ctx context.Context) error

	// Refresh retrains against the current ratings snapshot. Without force
	// an unchanged snapshot or a matching checkpoint is reused.
	Refresh(ctx context.Context, forceRetrain bool) (*recommend.Model, error)
}

// RecommendServiceConfig holds configuration for the recommendation service.
type RecommendServiceConfig struct {
	// TrainOnStartup runs Warmup when the service starts.
	TrainOnStartup bool

	// TrainInterval is how often the model is refreshed.
	// Default: 24h
	TrainInterval time.Duration

	// RetrainDebounce is the minimum gap between retrains requested
	// through RequestRetrain. Requests inside the gap collapse into one
	// run at its end.
	// Default: 5m
	RetrainDebounce time.Duration

	// TrainTimeout bounds one training cycle.
	// Default: 30m
	TrainTimeout time.Duration
}

// RecommendService owns the rating model lifecycle: warmup on start,
// periodic refresh, and debounced retrains after rating writes.
type RecommendService struct {
	engine  RecommendEngine
	config  RecommendServiceConfig
	logger  zerolog.Logger
	name    string
	limiter *rate.Limiter
	trigger chan struct{}
}

// NewRecommendService creates a new recommendation service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRecommendService(engine RecommendEngine, cfg RecommendServiceConfig, logger zerolog.Logger) *RecommendService {
	if cfg.TrainInterval <= 0 {
		cfg.TrainInterval = 24 * time.Hour
	}
	if cfg.RetrainDebounce <= 0 {
		cfg.RetrainDebounce = 5 * time.Minute
	}
	if cfg.TrainTimeout <= 0 {
		cfg.TrainTimeout = 30 * time.Minute
	}
	return &RecommendService{
		engine:  engine,
		config:  cfg,
		logger:  logger.With().Str("service", "recommend").Logger(),
		name:    "recommend-service",
		limiter: rate.NewLimiter(rate.Every(cfg.RetrainDebounce), 1),
		trigger: make(chan struct{}, 1),
	}
}

// RequestRetrain asks for a model refresh. It never blocks; repeated
// requests before the service picks one up are merged.
func (s *RecommendService) RequestRetrain() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Serve implements suture.Service.
func (s *RecommendService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("train_on_startup", s.config.TrainOnStartup).
		Dur("train_interval", s.config.TrainInterval).
		Dur("retrain_debounce", s.config.RetrainDebounce).
		Msg("recommendation service starting")

	if s.config.TrainOnStartup {
		if err := s.warmup(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn().Err(err).Msg("initial training failed (will retry on schedule)")
		}
	}

	ticker := time.NewTicker(s.config.TrainInterval)
	defer ticker.Stop()

	// pending fires once the debounce window of a deferred request closes
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("recommendation service shutting down")
			return ctx.Err()

		case <-ticker.C:
			s.logger.Debug().Msg("scheduled refresh triggered")
			if s.refresh(ctx, "scheduled") && pending == nil {
				pending = time.After(s.config.RetrainDebounce)
			}

		case <-s.trigger:
			if pending != nil {
				// already scheduled; this request rides along
				continue
			}
			r := s.limiter.Reserve()
			if delay := r.Delay(); delay > 0 {
				s.logger.Debug().Dur("delay", delay).Msg("retrain deferred")
				pending = time.After(delay)
				continue
			}
			if s.refresh(ctx, "ratings changed") {
				pending = time.After(s.config.RetrainDebounce)
			}

		case <-pending:
			pending = nil
			if s.refresh(ctx, "ratings changed") {
				pending = time.After(s.config.RetrainDebounce)
			}
		}
	}
}

func (s *RecommendService) warmup(ctx context.Context) error {
	trainCtx, cancel := context.WithTimeout(ctx, s.config.TrainTimeout)
	defer cancel()

	start := time.Now()
	if err := s.engine.Warmup(trainCtx); err != nil {
		return err
	}
	s.logger.Info().Dur("duration", time.Since(start)).Msg("recommendation engine warmed up")
	return nil
}

// refresh reports true when another training run held the engine, in
// which case the caller schedules a retry so the request is not lost.
func (s *RecommendService) refresh(ctx context.Context, reason string) (busy bool) {
	trainCtx, cancel := context.WithTimeout(ctx, s.config.TrainTimeout)
	defer cancel()

	start := time.Now()
	m, err := s.engine.Refresh(trainCtx, false)
	switch {
	case errors.Is(err, recommend.ErrTrainingInProgress):
		s.logger.Debug().Str("reason", reason).Msg("refresh deferred, training already running")
		return true
	case errors.Is(err, recommend.ErrInsufficientData):
		s.logger.Info().Str("reason", reason).Msg("refresh skipped, not enough ratings")
	case err != nil:
		s.logger.Warn().Err(err).Str("reason", reason).Msg("model refresh failed")
	default:
		ev := s.logger.Info().Str("reason", reason).Dur("duration", time.Since(start))
		if m != nil {
			ev = ev.Str("source", m.Source).Int("ratings", m.TrainedRatingsCount)
		}
		ev.Msg("model refreshed")
	}
	return false
}

// String returns the service name for logging.
func (s *RecommendService) String() string {
	return s.name
}
