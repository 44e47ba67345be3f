// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

// Package models holds the catalog and interaction records shared by the
// store, the recommendation engines and the HTTP API.
package models

import "time"

// Book is one catalog entry.
type Book struct {
	ID int64 `json:"book_id"`

	// OriginalID is the upstream identifier (ISBN for Book-Crossing,
	// the Goodreads book_id otherwise).
	OriginalID  string   `json:"original_id,omitempty"`
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Description string   `json:"description"`
	Genres      []string `json:"genres"`
	Year        int      `json:"year,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
}

// Rating is a single user's score for a book. There is at most one per
// (UserID, BookID).
type Rating struct {
	UserID  int64     `json:"user_id"`
	BookID  int64     `json:"book_id"`
	Score   int       `json:"rating"`
	RatedAt time.Time `json:"timestamp"`
}

// Valid rating bounds.
const (
	MinScore = 1
	MaxScore = 5
)

// User is a reader known to the system.
type User struct {
	ID        int64     `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// SystemStats summarises table sizes.
type SystemStats struct {
	NumBooks   int64 `json:"num_books"`
	NumUsers   int64 `json:"num_users"`
	NumRatings int64 `json:"num_ratings"`
}

// TrendingBook is a book ranked by how many ratings it has received.
type TrendingBook struct {
	Book
	RatingCount   int64   `json:"rating_count"`
	AverageRating float64 `json:"average_rating"`
}
