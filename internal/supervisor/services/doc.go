// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

/*
Package services adapts Shelfwise components to the suture v4 Service
interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

HTTPServerService wraps *http.Server, translating ListenAndServe into
Serve and calling Shutdown with a bounded timeout on cancellation.

RecommendService drives the recommendation engine. It warms the engine
up on start, refreshes the rating model every recommend.train_interval,
and retrains after rating writes. Retrain requests are debounced with a
golang.org/x/time/rate limiter so a burst of ratings costs one training
run. Each cycle is bounded by recommend.train_timeout.

ImportService runs the CSV catalog import once. Failures are returned so
the supervisor retries with backoff; completion returns
suture.ErrDoNotRestart.
*/
package services
