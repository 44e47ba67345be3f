// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/shelfwise/internal/database"
	"github.com/tomtom215/shelfwise/internal/recommend"
)

// ServiceError maps an error returned by the store or the engine to its
// HTTP response. Anything unrecognised is a 500 DATABASE_ERROR.
func (rw *ResponseWriter) ServiceError(err error) {
	switch {
	case errors.Is(err, recommend.ErrInsufficientData), errors.Is(err, recommend.ErrModelNotTrained):
		rw.ServiceUnavailable(ErrCodeModelUnavailable, "Rating model is not available yet")
	case recommend.IsUnavailable(err):
		rw.ServiceUnavailable(ErrCodeServiceUnavailable, "Store is temporarily unavailable")
	case errors.Is(err, recommend.ErrTrainingInProgress):
		rw.Conflict(ErrCodeTrainingInProgress, "Training is already in progress")
	case errors.Is(err, database.ErrNotFound):
		rw.NotFound("Resource not found")
	case errors.Is(err, database.ErrDuplicateUsername):
		rw.Conflict(ErrCodeConflict, "Username already exists")
	case errors.Is(err, database.ErrInvalidScore):
		rw.ValidationError("Rating must be between 1 and 5", nil)
	case errors.Is(err, context.DeadlineExceeded):
		rw.Error(http.StatusGatewayTimeout, ErrCodeServiceUnavailable, "Request timed out")
	default:
		rw.DatabaseError(err)
	}
}
