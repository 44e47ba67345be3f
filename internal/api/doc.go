// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

/*
Package api provides the HTTP REST API for Shelfwise.

All routes live under /api/v1 and are served by a Chi router:

  - health/live, health/ready: probes
  - metrics: Prometheus exposition
  - books, books/{bookID}, books/{bookID}/similar, books/trending: catalog
  - search/similar: free-text content search
  - ratings: rating upserts
  - users, users/{userID}/...: users, their ratings, personalized and
    content-based recommendations
  - stats: table sizes
  - recommendations/status, recommendations/train: rating model control

Every JSON body uses the APIResponse envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}
	{"success": false, "error": {"code": "NOT_FOUND", "message": "...", "request_id": "..."}}

Domain errors are mapped to status codes in one place (ResponseWriter.ServiceError)
so handlers only decide what to fetch.

Middleware order: request id, real IP, panic recovery, CORS, Prometheus,
slow request logging, then per-group rate limits, security headers and
gzip compression. /metrics sits outside the compression group because
promhttp negotiates its own encoding.
*/
package api
