// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthLive handles GET /api/v1/health/live.
// It answers 200 while the process can serve requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles GET /api/v1/health/ready.
// It answers 200 only when the database responds; the rating model is
// reported but not required, since content search works without it.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbConnected := h.store.Ping(ctx) == nil
	status := h.engine.Status()

	data := map[string]interface{}{
		"database_connected": dbConnected,
		"model_loaded":       status.ModelLoaded,
		"training":           status.IsTraining,
		"ready_to_serve":     dbConnected,
		"uptime":             time.Since(h.startTime).Seconds(),
	}

	rw := NewResponseWriter(w, r)
	if !dbConnected {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Database is not reachable", data)
		return
	}
	rw.Success(data)
}
