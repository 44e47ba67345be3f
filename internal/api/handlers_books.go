// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package api

import (
	"net/http"
	"strings"

	"github.com/tomtom215/shelfwise/internal/cache"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/recommend"
)

const defaultBookPageSize = 50

// BookDetail is a book with its rounded average rating. AverageRating is
// null for a book nobody has rated.
type BookDetail struct {
	models.Book
	AverageRating *float64 `json:"average_rating"`
}

// SimilarBooks is the response of the similarity endpoints.
type SimilarBooks struct {
	BookID int64                  `json:"book_id,omitempty"`
	Query  string                 `json:"query,omitempty"`
	Items  []recommend.TitleScore `json:"items"`
}

// ListBooks handles GET /api/v1/books.
// With q it performs a case-insensitive title search capped at 50 results;
// otherwise it pages through the catalog with limit and offset.
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	req := BookListRequest{
		Query:  strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:  getIntParam(r, "limit", defaultBookPageSize),
		Offset: getIntParam(r, "offset", 0),
	}
	if !validateRequest(rw, &req) {
		return
	}

	if req.Query != "" {
		books, err := h.store.SearchBooks(r.Context(), req.Query)
		if err != nil {
			rw.ServiceError(err)
			return
		}
		rw.Success(books)
		return
	}

	// one extra row tells us whether another page exists
	books, err := h.store.ListBooks(r.Context(), req.Limit+1, req.Offset)
	if err != nil {
		rw.ServiceError(err)
		return
	}
	hasMore := len(books) > req.Limit
	if hasMore {
		books = books[:req.Limit]
	}
	rw.SuccessWithPagination(books, &PaginationMeta{
		Count:   len(books),
		Offset:  req.Offset,
		Limit:   req.Limit,
		HasMore: hasMore,
	})
}

// GetBook handles GET /api/v1/books/{bookID}.
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	bookID, err := pathID(r, "bookID")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	book, err := h.store.GetBook(r.Context(), bookID)
	if err != nil {
		rw.ServiceError(err)
		return
	}
	detail := BookDetail{Book: book}
	avg, ok, err := h.store.BookAverageRating(r.Context(), bookID)
	if err != nil {
		rw.ServiceError(err)
		return
	}
	if ok {
		detail.AverageRating = &avg
	}
	rw.Success(detail)
}

// SimilarToBook handles GET /api/v1/books/{bookID}/similar?n=.
// The book itself is never part of the result.
func (h *Handler) SimilarToBook(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	bookID, err := pathID(r, "bookID")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if _, err := h.store.GetBook(r.Context(), bookID); err != nil {
		rw.ServiceError(err)
		return
	}

	items, err := h.engine.SimilarToBookID(r.Context(), bookID, getIntParam(r, "n", 0))
	if err != nil {
		rw.ServiceError(err)
		return
	}
	rw.Success(SimilarBooks{BookID: bookID, Items: items})
}

// TrendingBooks handles GET /api/v1/books/trending.
func (h *Handler) TrendingBooks(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	books, err := cached(h, cache.GenerateKey("TrendingBooks", nil), func() ([]models.TrendingBook, error) {
		return h.store.TrendingBooks(r.Context())
	})
	if err != nil {
		rw.ServiceError(err)
		return
	}
	rw.Success(books)
}

// SearchSimilar handles GET /api/v1/search/similar?q=&n=.
func (h *Handler) SearchSimilar(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	req := TextSearchRequest{
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
		N:     getIntParam(r, "n", 0),
	}
	if !validateRequest(rw, &req) {
		return
	}

	items, err := h.engine.SimilarToText(r.Context(), req.Query, req.N)
	if err != nil {
		rw.ServiceError(err)
		return
	}
	rw.Success(SimilarBooks{Query: req.Query, Items: items})
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	stats, err := cached(h, cache.GenerateKey("Stats", nil), func() (*models.SystemStats, error) {
		return h.store.Stats(r.Context())
	})
	if err != nil {
		rw.ServiceError(err)
		return
	}
	rw.Success(stats)
}
