// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tomtom215/shelfwise/internal/logging"
)

var (
	// ErrNotFound is returned when a book or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateUsername is returned by CreateUser for a taken username.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrInvalidScore is returned for ratings outside the 1..5 scale.
	ErrInvalidScore = errors.New("rating score out of range")
)

// maxConflictRetries bounds retries of DuckDB transaction conflicts.
const maxConflictRetries = 3

// closeWithLog closes a resource and logs any error
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly ignores any error.
// Used on error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

// rollbackOnError rolls tx back when *errp is non-nil.
func rollbackOnError(tx *sql.Tx, errp *error) {
	if *errp == nil {
		return
	}
	if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		logging.Error().
			Err(rbErr).
			AnErr("original_error", *errp).
			Msg("Transaction rollback failed")
	}
}

// isTransactionConflict checks if an error is a DuckDB transaction conflict
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Transaction conflict") ||
		strings.Contains(errStr, "Conflict on update") ||
		strings.Contains(errStr, "Conflict on tuple deletion") ||
		strings.Contains(errStr, "cannot update a table that has been altered")
}

// isConstraintViolation checks for DuckDB primary key and unique violations
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Duplicate key") ||
		strings.Contains(errStr, "violates unique constraint") ||
		strings.Contains(errStr, "violates primary key constraint")
}

// retryOnConflict runs op up to maxConflictRetries times, backing off
// linearly between attempts. Only transaction conflicts are retried.
func retryOnConflict(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransactionConflict(err) {
			return err
		}
		if attempt < maxConflictRetries-1 {
			backoff := time.Duration(attempt+1) * 5 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
