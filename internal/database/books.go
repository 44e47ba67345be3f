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
	"strings"
	"time"

	"github.com/tomtom215/shelfwise/internal/models"
)

// SearchLimit caps title search results.
const SearchLimit = 50

const bookColumns = `book_id, original_id, title, author, description, genres, year, publisher, image_url`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner, extra ...any) (models.Book, error) {
	var (
		b      models.Book
		genres string
	)
	dest := []any{&b.ID, &b.OriginalID, &b.Title, &b.Author, &b.Description, &genres, &b.Year, &b.Publisher, &b.ImageURL}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return models.Book{}, err
	}
	b.Genres = SplitGenres(genres)
	return b, nil
}

// SplitGenres parses the stored comma-joined genre list.
func SplitGenres(s string) []string {
	out := []string{}
	for _, g := range strings.Split(s, ",") {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

// JoinGenres is the inverse of SplitGenres.
func JoinGenres(genres []string) string {
	parts := make([]string, 0, len(genres))
	for _, g := range genres {
		if g = strings.TrimSpace(strings.ReplaceAll(g, ",", " ")); g != "" {
			parts = append(parts, g)
		}
	}
	return strings.Join(parts, ", ")
}

func (db *DB) queryBooks(ctx context.Context, operation, query string, args ...any) (books []models.Book, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe(operation, start, err) }()

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer closeWithLog(rows, "rows")

	books = []models.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating books: %w", err)
	}
	return books, nil
}

// FetchBooks returns the whole catalog ordered by book id.
func (db *DB) FetchBooks(ctx context.Context) ([]models.Book, error) {
	return db.queryBooks(ctx, "fetch_books",
		`SELECT `+bookColumns+` FROM books ORDER BY book_id`)
}

// ListBooks returns one page of the catalog ordered by book id.
func (db *DB) ListBooks(ctx context.Context, limit, offset int) ([]models.Book, error) {
	if limit <= 0 || limit > SearchLimit {
		limit = SearchLimit
	}
	if offset < 0 {
		offset = 0
	}
	return db.queryBooks(ctx, "list_books",
		`SELECT `+bookColumns+` FROM books ORDER BY book_id LIMIT ? OFFSET ?`, limit, offset)
}

// SearchBooks returns up to SearchLimit books whose title contains q,
// ignoring case. An empty query lists the first page of the catalog.
func (db *DB) SearchBooks(ctx context.Context, q string) ([]models.Book, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return db.ListBooks(ctx, SearchLimit, 0)
	}
	// contains() treats q literally, unlike LIKE patterns
	return db.queryBooks(ctx, "search_books",
		`SELECT `+bookColumns+` FROM books
		WHERE contains(lower(title), lower(CAST(? AS VARCHAR)))
		ORDER BY book_id
		LIMIT ?`, q, SearchLimit)
}

// GetBook returns one book or ErrNotFound.
func (db *DB) GetBook(ctx context.Context, bookID int64) (book models.Book, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("get_book", start, err) }()

	row := db.conn.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE book_id = ?`, bookID)
	book, err = scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Book{}, ErrNotFound
	}
	if err != nil {
		return models.Book{}, fmt.Errorf("failed to get book %d: %w", bookID, err)
	}
	return book, nil
}

// CountBooks returns the catalog size.
func (db *DB) CountBooks(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return n, nil
}

// NextBookID returns one past the largest book id in the catalog.
func (db *DB) NextBookID(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(book_id), 0) + 1 FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to read next book id: %w", err)
	}
	return n, nil
}

// InsertBooks inserts a batch of books in one transaction. Books whose id
// already exists are left untouched. Returns the number inserted.
func (db *DB) InsertBooks(ctx context.Context, books []models.Book) (inserted int, err error) {
	if len(books) == 0 {
		return 0, nil
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("insert_books", start, err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackOnError(tx, &err)

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO books (`+bookColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (book_id) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare book insert: %w", err)
	}
	defer closeWithLog(stmt, "prepared statement")

	for i := range books {
		b := &books[i]
		res, err := stmt.ExecContext(ctx, b.ID, b.OriginalID, b.Title, b.Author, b.Description,
			JoinGenres(b.Genres), b.Year, b.Publisher, b.ImageURL)
		if err != nil {
			return 0, fmt.Errorf("failed to insert book %d: %w", b.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit books: %w", err)
	}
	return inserted, nil
}

// BookIDsByOriginalID maps upstream identifiers (ISBN or Goodreads id) to
// catalog ids. Used when importing ratings.
func (db *DB) BookIDsByOriginalID(ctx context.Context) (ids map[string]int64, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("book_id_map", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `SELECT original_id, book_id FROM books WHERE original_id <> ''`)
	if err != nil {
		return nil, fmt.Errorf("failed to query book ids: %w", err)
	}
	defer closeWithLog(rows, "rows")

	ids = make(map[string]int64)
	for rows.Next() {
		var (
			orig string
			id   int64
		)
		if err := rows.Scan(&orig, &id); err != nil {
			return nil, fmt.Errorf("failed to scan book id: %w", err)
		}
		ids[orig] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating book ids: %w", err)
	}
	return ids, nil
}
