// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/metrics"
	"github.com/tomtom215/shelfwise/internal/models"
)

// ResilientProvider wraps a DataProvider with a circuit breaker so a
// failing store is not hammered by every recommendation request.
//
// Breaker settings:
//   - Max 3 requests in half-open state
//   - 1 minute measurement window
//   - 2 minute timeout before attempting recovery
//   - Opens after a 60% failure rate with at least 10 requests
//
// Context cancellation is not counted as a store failure.
type ResilientProvider struct {
	inner DataProvider
	cb    *gobreaker.CircuitBreaker[any]
	name  string
}

// NewResilientProvider wraps inner with a breaker called name.
func NewResilientProvider(inner DataProvider, name string) *ResilientProvider {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})

	return &ResilientProvider{inner: inner, cb: cb, name: name}
}

// State returns the breaker state.
func (p *ResilientProvider) State() gobreaker.State {
	return p.cb.State()
}

// FetchBooks implements DataProvider.
func (p *ResilientProvider) FetchBooks(ctx context.Context) ([]models.Book, error) {
	return execute(p, func() ([]models.Book, error) { return p.inner.FetchBooks(ctx) })
}

// FetchRatings implements DataProvider.
func (p *ResilientProvider) FetchRatings(ctx context.Context) ([]models.Rating, error) {
	return execute(p, func() ([]models.Rating, error) { return p.inner.FetchRatings(ctx) })
}

// FetchUserRatings implements DataProvider.
func (p *ResilientProvider) FetchUserRatings(ctx context.Context, userID int64) ([]models.Rating, error) {
	return execute(p, func() ([]models.Rating, error) { return p.inner.FetchUserRatings(ctx, userID) })
}

func execute[T any](p *ResilientProvider, fn func() (T, error)) (T, error) {
	var zero T
	result, err := p.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(p.name, "rejected").Inc()
			logging.Warn().Str("breaker", p.name).Err(err).Msg("request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(p.name, "failure").Inc()
		}
		return zero, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(p.name, "success").Inc()

	typed, ok := result.(T)
	if !ok && result != nil {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// IsUnavailable reports whether err came from an open breaker.
func IsUnavailable(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

var _ DataProvider = (*ResilientProvider)(nil)
