// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/shelfwise/internal/models"
)

// TrendingLimit is the number of books returned by TrendingBooks.
const TrendingLimit = 10

// Stats returns the book, user and rating counts.
func (db *DB) Stats(ctx context.Context) (stats *models.SystemStats, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("stats", start, err) }()

	stats = &models.SystemStats{}
	err = db.conn.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM books),
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM ratings)`).
		Scan(&stats.NumBooks, &stats.NumUsers, &stats.NumRatings)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	return stats, nil
}

// TrendingBooks returns the TrendingLimit most-rated books. Ties are broken
// by book id.
func (db *DB) TrendingBooks(ctx context.Context) (books []models.TrendingBook, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("trending_books", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `
		WITH counts AS (
			SELECT book_id, COUNT(*) AS rating_count, AVG(rating) AS avg_rating
			FROM ratings
			GROUP BY book_id
		)
		SELECT b.book_id, b.original_id, b.title, b.author, b.description, b.genres,
			b.year, b.publisher, b.image_url, c.rating_count, c.avg_rating
		FROM counts c
		JOIN books b ON b.book_id = c.book_id
		ORDER BY c.rating_count DESC, b.book_id
		LIMIT ?`, TrendingLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trending books: %w", err)
	}
	defer closeWithLog(rows, "rows")

	books = []models.TrendingBook{}
	for rows.Next() {
		var (
			count int64
			avg   float64
		)
		b, err := scanBook(rows, &count, &avg)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trending book: %w", err)
		}
		books = append(books, models.TrendingBook{
			Book:          b,
			RatingCount:   count,
			AverageRating: roundTenth(avg),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trending books: %w", err)
	}
	return books, nil
}
