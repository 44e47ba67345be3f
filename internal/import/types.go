// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package catalogimport

import (
	"time"
)

// ImportStats holds statistics about an import operation. It doubles as
// the persisted progress record.
type ImportStats struct {
	// Fingerprint identifies the pair of source files.
	Fingerprint string `json:"fingerprint"`

	// Schema is the mapping name used for both files.
	Schema string `json:"schema"`

	BooksRead     int64 `json:"books_read"`
	BooksImported int64 `json:"books_imported"`
	BooksSkipped  int64 `json:"books_skipped"`

	// RatingsRead counts data rows consumed so far. A resumed import skips
	// this many rows.
	RatingsRead     int64 `json:"ratings_read"`
	RatingsImported int64 `json:"ratings_imported"`
	RatingsSkipped  int64 `json:"ratings_skipped"`

	UsersSynced int64 `json:"users_synced"`

	BooksDone bool `json:"books_done"`
	Completed bool `json:"completed"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Duration returns the duration of the import operation.
func (s *ImportStats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// RowsPerSecond returns the combined books and ratings read rate.
func (s *ImportStats) RowsPerSecond() float64 {
	duration := s.Duration().Seconds()
	if duration == 0 {
		return 0
	}
	return float64(s.BooksRead+s.RatingsRead) / duration
}
