// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/shelfwise/internal/metrics"
	"github.com/tomtom215/shelfwise/internal/models"
)

func (db *DB) queryRatings(ctx context.Context, operation, query string, args ...any) (ratings []models.Rating, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe(operation, start, err) }()

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer closeWithLog(rows, "rows")

	ratings = []models.Rating{}
	for rows.Next() {
		var r models.Rating
		if err := rows.Scan(&r.UserID, &r.BookID, &r.Score, &r.RatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		ratings = append(ratings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ratings: %w", err)
	}
	return ratings, nil
}

// FetchRatings returns every rating ordered by (user_id, book_id).
func (db *DB) FetchRatings(ctx context.Context) ([]models.Rating, error) {
	return db.queryRatings(ctx, "fetch_ratings",
		`SELECT user_id, book_id, rating, rated_at FROM ratings ORDER BY user_id, book_id`)
}

// FetchUserRatings returns one user's ratings ordered by book id.
func (db *DB) FetchUserRatings(ctx context.Context, userID int64) ([]models.Rating, error) {
	return db.queryRatings(ctx, "fetch_user_ratings",
		`SELECT user_id, book_id, rating, rated_at FROM ratings WHERE user_id = ? ORDER BY book_id`, userID)
}

// UserRatingsMap returns book_id -> score for one user.
func (db *DB) UserRatingsMap(ctx context.Context, userID int64) (map[int64]int, error) {
	ratings, err := db.FetchUserRatings(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]int, len(ratings))
	for _, r := range ratings {
		out[r.BookID] = r.Score
	}
	return out, nil
}

const upsertRatingSQL = `INSERT INTO ratings (user_id, book_id, rating, rated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (user_id, book_id) DO UPDATE SET
		rating = EXCLUDED.rating,
		rated_at = EXCLUDED.rated_at`

const ensureUserSQL = `INSERT INTO users (user_id, username, created_at)
	SELECT CAST(? AS BIGINT), 'User ' || CAST(? AS VARCHAR), CAST(? AS TIMESTAMP)
	WHERE NOT EXISTS (SELECT 1 FROM users WHERE user_id = ?)
	ON CONFLICT DO NOTHING`

// UpsertRating inserts or replaces the rating for (userID, bookID). The
// book must exist. A user row named "User <id>" is created for readers
// not yet in the users table. Transaction conflicts are retried.
func (db *DB) UpsertRating(ctx context.Context, userID, bookID int64, score int) (err error) {
	if score < models.MinScore || score > models.MaxScore {
		return fmt.Errorf("%w: %d", ErrInvalidScore, score)
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("upsert_rating", start, err) }()

	var exists bool
	if err = db.conn.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE book_id = ?)`, bookID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check book %d: %w", bookID, err)
	}
	if !exists {
		return fmt.Errorf("book %d: %w", bookID, ErrNotFound)
	}

	err = retryOnConflict(ctx, func() error {
		return db.doUpsertRating(ctx, userID, bookID, score, time.Now().UTC())
	})
	if err != nil {
		return fmt.Errorf("failed to upsert rating: %w", err)
	}

	metrics.RatingUpserts.Inc()
	return nil
}

func (db *DB) doUpsertRating(ctx context.Context, userID, bookID int64, score int, now time.Time) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackOnError(tx, &err)

	if _, err = tx.ExecContext(ctx, upsertRatingSQL, userID, bookID, score, now); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, ensureUserSQL, userID, userID, now, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertRatings writes a batch of ratings in one transaction. Within the
// batch the last rating for a (user, book) pair wins. Scores must already
// be on the 1..5 scale. Returns the number of rows written.
func (db *DB) UpsertRatings(ctx context.Context, ratings []models.Rating) (written int, err error) {
	if len(ratings) == 0 {
		return 0, nil
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("upsert_ratings_batch", start, err) }()

	batch := dedupeRatings(ratings)
	now := time.Now().UTC()

	err = retryOnConflict(ctx, func() (txErr error) {
		tx, txErr := db.conn.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}
		defer rollbackOnError(tx, &txErr)

		stmt, txErr := tx.PrepareContext(ctx, upsertRatingSQL)
		if txErr != nil {
			return txErr
		}
		defer closeWithLog(stmt, "prepared statement")

		for _, r := range batch {
			if r.Score < models.MinScore || r.Score > models.MaxScore {
				txErr = fmt.Errorf("%w: user %d book %d score %d", ErrInvalidScore, r.UserID, r.BookID, r.Score)
				return txErr
			}
			ratedAt := r.RatedAt
			if ratedAt.IsZero() {
				ratedAt = now
			}
			if _, txErr = stmt.ExecContext(ctx, r.UserID, r.BookID, r.Score, ratedAt); txErr != nil {
				return txErr
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upsert ratings batch: %w", err)
	}

	metrics.RatingUpserts.Add(float64(len(batch)))
	return len(batch), nil
}

// dedupeRatings keeps the last rating per (user, book), in first-seen order.
func dedupeRatings(ratings []models.Rating) []models.Rating {
	type key struct{ user, book int64 }
	pos := make(map[key]int, len(ratings))
	out := make([]models.Rating, 0, len(ratings))
	for _, r := range ratings {
		k := key{r.UserID, r.BookID}
		if i, ok := pos[k]; ok {
			out[i] = r
			continue
		}
		pos[k] = len(out)
		out = append(out, r)
	}
	return out
}

// BookAverageRating returns the mean score of a book rounded to one
// decimal. ok is false when the book has no ratings.
func (db *DB) BookAverageRating(ctx context.Context, bookID int64) (avg float64, ok bool, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("book_average_rating", start, err) }()

	var v sql.NullFloat64
	if err = db.conn.QueryRowContext(ctx, `SELECT AVG(rating) FROM ratings WHERE book_id = ?`, bookID).Scan(&v); err != nil {
		return 0, false, fmt.Errorf("failed to average ratings for book %d: %w", bookID, err)
	}
	if !v.Valid {
		return 0, false, nil
	}
	return roundTenth(v.Float64), true, nil
}

// DistinctUserIDs returns every user id that has at least one rating.
func (db *DB) DistinctUserIDs(ctx context.Context) (ids []int64, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("distinct_user_ids", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT user_id FROM ratings ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query user ids: %w", err)
	}
	defer closeWithLog(rows, "rows")

	ids = []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user ids: %w", err)
	}
	return ids, nil
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
