// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

// Package algorithms implements the two recommendation models.
//
//   - NeuralRecommender: an embedding rating model trained with Adam on
//     mean squared error. Predicts a user's rating for any known book.
//   - ContentIndex: a TF-IDF vector space over author and description,
//     answering book-to-book and free-text similarity queries.
//
// Both are built once and then read concurrently. Neither mutates its
// state after construction.
package algorithms

import (
	"context"
	"sort"
)

// Scored is a row index with its raw similarity.
type Scored struct {
	Row   int
	Score float64
}

// sortScored orders by descending score, ties by ascending row index.
func sortScored(s []Scored) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		return s[i].Row < s[j].Row
	})
}

// ContextCancelled checks if the context has been canceled.
func ContextCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
