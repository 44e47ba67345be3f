// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/shelfwise/internal/config"
	"github.com/tomtom215/shelfwise/internal/database"
	"github.com/tomtom215/shelfwise/internal/recommend"
	"github.com/tomtom215/shelfwise/internal/recommend/storage"
	"github.com/tomtom215/shelfwise/internal/supervisor"
	"github.com/tomtom215/shelfwise/internal/supervisor/services"
)

// RecommendComponents holds all recommendation-related components.
type RecommendComponents struct {
	Engine  *recommend.Engine
	Service *services.RecommendService
}

// initRecommend creates the engine over the database and adds its
// training service to the recommend layer of the tree.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func initRecommend(cfg *config.Config, db *database.DB, logger zerolog.Logger, tree *supervisor.SupervisorTree) (*RecommendComponents, error) {
	logger.Info().
		Str("model_path", cfg.Recommend.ModelPath).
		Dur("train_interval", cfg.Recommend.TrainInterval).
		Bool("train_on_startup", cfg.Recommend.TrainOnStartup).
		Int("min_ratings", cfg.Recommend.MinRatings).
		Msg("initializing recommendation engine")

	store, err := storage.NewStore(cfg.Recommend.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}

	engine, err := recommend.NewEngine(buildEngineConfig(cfg), logger, store)
	if err != nil {
		return nil, fmt.Errorf("create recommendation engine: %w", err)
	}
	engine.SetDataProvider(recommend.NewResilientProvider(db, "store"))

	service := services.NewRecommendService(engine, services.RecommendServiceConfig{
		TrainOnStartup:  cfg.Recommend.TrainOnStartup,
		TrainInterval:   cfg.Recommend.TrainInterval,
		RetrainDebounce: cfg.Recommend.RetrainDebounce,
		TrainTimeout:    cfg.Recommend.TrainTimeout,
	}, logger)
	tree.AddRecommendService(service)
	logger.Info().Msg("recommendation service added to supervisor tree")

	return &RecommendComponents{
		Engine:  engine,
		Service: service,
	}, nil
}

// buildEngineConfig creates the engine configuration from app config.
// Zero values in the recommend section keep the engine defaults, except
// Dropout, which is copied as configured.
func buildEngineConfig(cfg *config.Config) *recommend.Config {
	rc := recommend.DefaultConfig()
	r := cfg.Recommend

	if r.MinRatings > 0 {
		rc.MinRatings = r.MinRatings
	}
	if r.EmbeddingDim > 0 {
		rc.Neural.EmbeddingDim = r.EmbeddingDim
	}
	if r.Hidden1 > 0 {
		rc.Neural.Hidden1 = r.Hidden1
	}
	if r.Hidden2 > 0 {
		rc.Neural.Hidden2 = r.Hidden2
	}
	// 0 is a valid setting that turns dropout off; the config defaults
	// carry 0.2 and Validate rejects values outside [0, 1).
	rc.Neural.Dropout = r.Dropout
	if r.LearningRate > 0 {
		rc.Neural.LearningRate = r.LearningRate
	}
	if r.BatchSize > 0 {
		rc.Neural.BatchSize = r.BatchSize
	}
	if r.Epochs > 0 {
		rc.Neural.Epochs = r.Epochs
	}
	if r.Seed != 0 {
		rc.Neural.Seed = r.Seed
		rc.CalibrationSeed = r.Seed
	}
	rc.Calibration.Deterministic = r.DeterministicCalibration
	return rc
}
