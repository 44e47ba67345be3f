// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/recommend"
)

// ModelSummary describes the model a synchronous training run produced.
type ModelSummary struct {
	Source       string    `json:"source"`
	TrainedAt    time.Time `json:"trained_at"`
	RatingsCount int       `json:"ratings_count"`
}

// RecommendationStatus handles GET /api/v1/recommendations/status.
func (h *Handler) RecommendationStatus(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.engine.Status())
}

// TriggerTraining handles POST /api/v1/recommendations/train.
//
// Query parameters:
//   - force: retrain even when the checkpoint matches the ratings snapshot
//   - wait: run synchronously and return the resulting model instead of 202
func (h *Handler) TriggerTraining(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	force := getBoolParam(r, "force", false)

	if h.engine.Status().IsTraining {
		rw.Conflict(ErrCodeTrainingInProgress, "Training is already in progress")
		return
	}

	if getBoolParam(r, "wait", false) {
		ctx, cancel := context.WithTimeout(r.Context(), h.trainTimeout)
		defer cancel()
		model, err := h.engine.Refresh(ctx, force)
		if err != nil {
			rw.ServiceError(err)
			return
		}
		h.ClearCache()
		rw.Success(ModelSummary{
			Source:       model.Source,
			TrainedAt:    model.TrainedAt,
			RatingsCount: model.TrainedRatingsCount,
		})
		return
	}

	logger := logging.Ctx(r.Context()).With().Bool("force", force).Logger()
	h.background.Add(1)
	go func() {
		defer h.background.Done()
		ctx, cancel := context.WithTimeout(h.bgCtx, h.trainTimeout)
		defer cancel()

		model, err := h.engine.Refresh(ctx, force)
		switch {
		case errors.Is(err, recommend.ErrTrainingInProgress):
			logger.Info().Msg("training already running, request dropped")
		case err != nil:
			logger.Error().Err(err).Msg("recommendation training failed")
		default:
			h.ClearCache()
			logger.Info().Str("source", model.Source).Int("ratings", model.TrainedRatingsCount).Msg("recommendation training completed")
		}
	}()

	rw.Accepted(map[string]interface{}{
		"message": "Training started",
		"force":   force,
	})
}
