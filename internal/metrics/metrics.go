// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

// Package metrics holds the Prometheus instrumentation for Shelfwise.
// Metrics are registered on the default registry and served at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfwise_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_db_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation"},
	)

	RatingUpserts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfwise_rating_upserts_total",
			Help: "Ratings inserted or updated",
		},
	)

	// Rating model training
	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_model_training_runs_total",
			Help: "Rating model preparation outcomes",
		},
		// trained, loaded, cached, insufficient_data, failed
		[]string{"outcome"},
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shelfwise_model_training_duration_seconds",
			Help:    "Wall time of one full training run",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800},
		},
	)

	TrainingEpochLoss = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelfwise_model_epoch_loss",
			Help: "Mean squared error of the most recent training epoch",
		},
	)

	TrainingProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelfwise_model_training_progress_ratio",
			Help: "Completed epochs over total epochs of the current run",
		},
	)

	ModelTrainedRatings = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelfwise_model_trained_ratings",
			Help: "Ratings count the serving model was trained on",
		},
	)

	CheckpointLoadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfwise_checkpoint_load_failures_total",
			Help: "Checkpoints that could not be read and fell back to retraining",
		},
	)

	// Query side
	Predictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_predictions_total",
			Help: "Personalized prediction requests by result",
		},
		// personalized, cold_start
		[]string{"result"},
	)

	SimilarityQueries = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfwise_similarity_query_duration_seconds",
			Help:    "Latency of content similarity queries",
			Buckets: prometheus.DefBuckets,
		},
		// book, text
		[]string{"kind"},
	)

	ContentIndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelfwise_content_index_documents",
			Help: "Books in the current TF-IDF index",
		},
	)

	// Cache
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_cache_hits_total",
			Help: "Engine and response cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_cache_misses_total",
			Help: "Engine and response cache misses",
		},
		[]string{"cache"},
	)

	// API
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfwise_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelfwise_api_active_requests",
			Help: "In-flight HTTP requests",
		},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shelfwise_circuit_breaker_state",
			Help: "0 = closed, 1 = half-open, 2 = open",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_circuit_breaker_requests_total",
			Help: "Calls through a circuit breaker by result",
		},
		// success, failure, rejected
		[]string{"name", "result"},
	)

	// Import
	ImportedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_import_rows_total",
			Help: "CSV rows imported or skipped",
		},
		// table: books, ratings; result: imported, skipped
		[]string{"table", "result"},
	)
)

// RecordDBQuery records one query's duration and, on failure, an error.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordTraining records the outcome of one TrainOrLoadModel call.
func RecordTraining(outcome string, duration time.Duration) {
	TrainingRuns.WithLabelValues(outcome).Inc()
	if outcome == "trained" {
		TrainingDuration.Observe(duration.Seconds())
	}
}

// RecordEpoch publishes per-epoch progress.
func RecordEpoch(epoch, total int, loss float64) {
	TrainingEpochLoss.Set(loss)
	if total > 0 {
		TrainingProgress.Set(float64(epoch) / float64(total))
	}
}

// RecordPrediction counts a prediction by whether the user was known.
func RecordPrediction(personalized bool) {
	if personalized {
		Predictions.WithLabelValues("personalized").Inc()
		return
	}
	Predictions.WithLabelValues("cold_start").Inc()
}

// RecordSimilarityQuery observes the latency of a content query.
func RecordSimilarityQuery(kind string, duration time.Duration) {
	SimilarityQueries.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordCache counts a cache lookup.
func RecordCache(cache string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cache).Inc()
		return
	}
	CacheMisses.WithLabelValues(cache).Inc()
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}
