// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package recommend

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/recommend/algorithms"
)

var (
	// ErrInsufficientData means the ratings snapshot is too small to train on.
	// The rating model is unavailable until more ratings arrive.
	ErrInsufficientData = errors.New("insufficient ratings to train model")

	// ErrTrainingInProgress is returned when a training run is already active.
	ErrTrainingInProgress = errors.New("training already in progress")

	// ErrModelNotTrained is returned when a personalized query arrives before
	// any model was trained or loaded.
	ErrModelNotTrained = errors.New("rating model not trained")

	// ErrNoDataProvider is returned by operations that read the store when
	// no DataProvider is configured.
	ErrNoDataProvider = errors.New("data provider not set")
)

// DataProvider supplies the catalog and ratings feeds.
// It is implemented by the database layer.
type DataProvider interface {
	// FetchBooks returns the whole catalog in a stable order.
	FetchBooks(ctx context.Context) ([]models.Book, error)

	// FetchRatings returns the full ratings snapshot in a stable order.
	FetchRatings(ctx context.Context) ([]models.Rating, error)

	// FetchUserRatings returns one user's ratings in the snapshot order.
	FetchUserRatings(ctx context.Context, userID int64) ([]models.Rating, error)
}

// ProgressObserver is called synchronously after each training epoch.
type ProgressObserver func(epoch, total int)

// BookScore is one predicted rating.
type BookScore struct {
	BookID int64   `json:"book_id"`
	Score  float64 `json:"score"`
}

// TitleScore is one content similarity result. Score is calibrated for
// display; RawScore is the cosine similarity.
type TitleScore struct {
	BookID   int64   `json:"book_id"`
	Title    string  `json:"title"`
	Score    float64 `json:"score"`
	RawScore float64 `json:"raw_score"`
}

// Model is a trained or loaded rating model together with the index mapping
// it was fit against. It is immutable and safe to share between goroutines.
type Model struct {
	recommender *algorithms.NeuralRecommender
	mapper      *IndexMapper

	// TrainedRatingsCount is the snapshot size the weights were fit on.
	TrainedRatingsCount int

	// Fingerprint identifies the ratings snapshot this model serves.
	Fingerprint Fingerprint

	TrainedAt time.Time

	// Source is "trained" or "checkpoint".
	Source string
}

// Mapper returns the model's index mapping.
func (m *Model) Mapper() *IndexMapper {
	return m.mapper
}

// TrainingStatus represents the current training state.
type TrainingStatus struct {
	// IsTraining indicates whether training is currently in progress.
	IsTraining bool `json:"is_training"`

	Epoch       int `json:"epoch"`
	TotalEpochs int `json:"total_epochs"`

	// Progress is the training progress (0-100).
	Progress int `json:"progress"`

	// LastLoss is the mean squared error of the latest completed epoch.
	LastLoss float64 `json:"last_loss"`

	// ModelLoaded reports whether a model is available for predictions.
	ModelLoaded bool   `json:"model_loaded"`
	ModelSource string `json:"model_source,omitempty"`

	LastTrainedAt          time.Time `json:"last_trained_at"`
	LastTrainingDurationMS int64     `json:"last_training_duration_ms"`

	// LastError contains the last training error, if any.
	LastError string `json:"last_error,omitempty"`

	RatingsCount int `json:"ratings_count"`
	UserCount    int `json:"user_count"`
	BookCount    int `json:"book_count"`
}

// UserRecommendations is the personalized result for one user.
type UserRecommendations struct {
	UserID int64 `json:"user_id"`

	// Personalized is false for users the model has never seen.
	Personalized bool        `json:"personalized"`
	Items        []BookScore `json:"items"`
}

// ContentMatches are books similar to the user's highest rated one.
type ContentMatches struct {
	UserID    int64        `json:"user_id"`
	SeedBook  int64        `json:"seed_book_id,omitempty"`
	SeedTitle string       `json:"seed_title,omitempty"`
	Items     []TitleScore `json:"items"`
}
