// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package recommend

import "github.com/tomtom215/shelfwise/internal/models"

// LikedThreshold is the lowest score counted as liking a book.
const LikedThreshold = 4

// FavoriteAuthor returns the most frequent author among the books a user
// rated at LikedThreshold or above. If the user liked nothing, all rated
// books count. Ties go to the alphabetically smallest name. ok is false when no rated
// book has a known, non-empty author.
func FavoriteAuthor(userRatings []models.Rating, books map[int64]models.Book) (string, bool) {
	if author, ok := modeAuthor(userRatings, books, LikedThreshold); ok {
		return author, true
	}
	return modeAuthor(userRatings, books, models.MinScore)
}

func modeAuthor(ratings []models.Rating, books map[int64]models.Book, minScore int) (string, bool) {
	counts := make(map[string]int)
	for _, r := range ratings {
		if r.Score < minScore {
			continue
		}
		book, ok := books[r.BookID]
		if !ok || book.Author == "" {
			continue
		}
		counts[book.Author]++
	}

	best, bestCount := "", 0
	for author, n := range counts {
		if n > bestCount || (n == bestCount && author < best) {
			best, bestCount = author, n
		}
	}
	return best, bestCount > 0
}

// Explanation returns the reason string shown next to personalized picks.
func Explanation(author string, ok bool) string {
	if !ok {
		return "Trending among similar users"
	}
	return "Matches your interest in " + author
}

// ContentSeed picks the user's highest rated book; ties go to the rating
// that comes first.
func ContentSeed(userRatings []models.Rating) (int64, bool) {
	if len(userRatings) == 0 {
		return 0, false
	}
	best := userRatings[0]
	for _, r := range userRatings[1:] {
		if r.Score > best.Score {
			best = r
		}
	}
	return best.BookID, true
}
