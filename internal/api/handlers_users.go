// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/recommend"
)

// RecommendationsResponse is a user's personalized top-K. Items is empty
// and Personalized false for a user the model has not seen.
type RecommendationsResponse struct {
	UserID       int64                 `json:"user_id"`
	Personalized bool                  `json:"personalized"`
	Explanation  string                `json:"explanation,omitempty"`
	Items        []recommend.BookScore `json:"items"`
}

// SubmitRating handles POST /api/v1/ratings.
// A repeated (user, book) pair overwrites the earlier score.
func (h *Handler) SubmitRating(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req RatingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if !validateRequest(rw, &req) {
		return
	}

	if err := h.store.UpsertRating(r.Context(), req.UserID, req.BookID, req.Score); err != nil {
		rw.ServiceError(err)
		return
	}
	h.onRatingsChanged()

	logging.Ctx(r.Context()).Debug().
		Int64("user_id", req.UserID).
		Int64("book_id", req.BookID).
		Int("score", req.Score).
		Msg("rating saved")
	rw.Success(req)
}

// UserRatings handles GET /api/v1/users/{userID}/ratings.
func (h *Handler) UserRatings(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID, err := pathID(r, "userID")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	ratings, err := h.store.UserRatingsMap(r.Context(), userID)
	if err != nil {
		rw.ServiceError(err)
		return
	}
	rw.Success(ratings)
}

// UserRecommendations handles GET /api/v1/users/{userID}/recommendations.
// Query: k (result size) and exclude_rated (default true).
func (h *Handler) UserRecommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID, err := pathID(r, "userID")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	recs, err := h.engine.RecommendForUser(r.Context(), userID, getIntParam(r, "k", 0), getBoolParam(r, "exclude_rated", true))
	if err != nil {
		rw.ServiceError(err)
		return
	}

	resp := RecommendationsResponse{
		UserID:       recs.UserID,
		Personalized: recs.Personalized,
		Items:        recs.Items,
	}
	if resp.Items == nil {
		resp.Items = []recommend.BookScore{}
	}
	if recs.Personalized {
		explanation, err := h.engine.Explain(r.Context(), userID)
		if err != nil {
			rw.ServiceError(err)
			return
		}
		resp.Explanation = explanation
	}
	rw.Success(resp)
}

// ContentMatches handles GET /api/v1/users/{userID}/content-matches?n=.
func (h *Handler) ContentMatches(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID, err := pathID(r, "userID")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	matches, err := h.engine.ContentMatchesForUser(r.Context(), userID, getIntParam(r, "n", 0))
	if err != nil {
		rw.ServiceError(err)
		return
	}
	rw.Success(matches)
}

// CreateUser handles POST /api/v1/users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if !validateRequest(rw, &req) {
		return
	}

	user, err := h.store.CreateUser(r.Context(), req.Username)
	if err != nil {
		rw.ServiceError(err)
		return
	}
	h.ClearCache()
	rw.Created(user)
}

// GetUserByName handles GET /api/v1/users/by-name/{username}.
func (h *Handler) GetUserByName(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	username := strings.TrimSpace(chi.URLParam(r, "username"))
	if username == "" {
		rw.BadRequest("username is required")
		return
	}
	user, err := h.store.GetUserByUsername(r.Context(), username)
	if err != nil {
		rw.ServiceError(err)
		return
	}
	rw.Success(user)
}
