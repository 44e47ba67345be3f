// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

/*
Package middleware provides the HTTP middleware the API router installs
in front of every handler.

  - RequestID: X-Request-ID propagation (google/uuid), visible to chi,
    the logging package and API error bodies
  - PrometheusMetrics: request latency histogram and in-flight gauge,
    labelled by chi route pattern
  - SlowRequests: warn-level log line for requests over a threshold
  - Compression: pooled gzip writers for clients that accept gzip

All middleware has chi's func(http.Handler) http.Handler shape:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.SlowRequests(time.Second))
	r.Use(middleware.Compression)
*/
package middleware
