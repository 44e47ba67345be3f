// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package middleware

import (
	"net/http"
	"time"

	"github.com/tomtom215/shelfwise/internal/logging"
)

// DefaultSlowRequestThreshold is used when SlowRequests gets a
// non-positive threshold.
const DefaultSlowRequestThreshold = time.Second

// SlowRequests logs a warning for every request slower than threshold.
// Untrained-model recommendation calls and cold content index builds are
// the usual suspects.
func SlowRequests(threshold time.Duration) func(http.Handler) http.Handler {
	if threshold <= 0 {
		threshold = DefaultSlowRequestThreshold
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			if d := time.Since(start); d > threshold {
				logging.Ctx(r.Context()).Warn().
					Str("method", r.Method).
					Str("route", routePattern(r)).
					Str("path", r.URL.Path).
					Int("status", rec.status).
					Int64("duration_ms", d.Milliseconds()).
					Int64("threshold_ms", threshold.Milliseconds()).
					Msg("Slow request detected")
			}
		})
	}
}
