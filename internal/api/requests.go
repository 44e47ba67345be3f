// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package api

// RatingRequest is the body of POST /ratings.
type RatingRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
	BookID int64 `json:"book_id" validate:"required,gt=0"`
	Score  int   `json:"score" validate:"required,gte=1,lte=5"`
}

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32,username"`
}

// BookListRequest holds the validated query of GET /books.
type BookListRequest struct {
	Query  string `validate:"max=200"`
	Limit  int    `validate:"min=1,max=500"`
	Offset int    `validate:"min=0,max=10000000"`
}

// TextSearchRequest holds the validated query of GET /search/similar.
type TextSearchRequest struct {
	Query string `json:"q" validate:"required,max=1000"`
	N     int    `json:"n" validate:"min=0,max=1000"`
}
