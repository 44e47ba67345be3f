// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package recommend

import (
	"testing"

	"github.com/tomtom215/shelfwise/internal/models"
)

func TestFavoriteAuthor(t *testing.T) {
	t.Parallel()

	books := map[int64]models.Book{
		1: {ID: 1, Author: "Le Guin"},
		2: {ID: 2, Author: "Banks"},
		3: {ID: 3, Author: "Banks"},
		4: {ID: 4, Author: "Le Guin"},
		5: {ID: 5, Author: ""},
	}

	tests := []struct {
		name    string
		ratings []models.Rating
		want    string
		wantOK  bool
	}{
		{"no ratings", nil, "", false},
		{"liked mode", []models.Rating{
			{BookID: 1, Score: 5}, {BookID: 2, Score: 4}, {BookID: 3, Score: 4}, {BookID: 4, Score: 2},
		}, "Banks", true},
		{"tie goes to smallest name", []models.Rating{
			{BookID: 1, Score: 5}, {BookID: 2, Score: 5},
		}, "Banks", true},
		{"tie ignores rating order", []models.Rating{
			{BookID: 2, Score: 4}, {BookID: 1, Score: 5}, {BookID: 4, Score: 4}, {BookID: 3, Score: 5},
		}, "Banks", true},
		{"falls back to all rated", []models.Rating{
			{BookID: 2, Score: 1}, {BookID: 1, Score: 2}, {BookID: 4, Score: 3},
		}, "Le Guin", true},
		{"unknown and blank authors", []models.Rating{
			{BookID: 99, Score: 5}, {BookID: 5, Score: 5},
		}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := FavoriteAuthor(tt.ratings, books)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("FavoriteAuthor() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestExplanation(t *testing.T) {
	t.Parallel()

	if got := Explanation("Banks", true); got != "Matches your interest in Banks" {
		t.Errorf("Explanation() = %q", got)
	}
	if got := Explanation("", false); got != "Trending among similar users" {
		t.Errorf("Explanation() = %q", got)
	}
}

func TestContentSeed(t *testing.T) {
	t.Parallel()

	if _, ok := ContentSeed(nil); ok {
		t.Error("no ratings should have no seed")
	}
	seed, ok := ContentSeed([]models.Rating{
		{BookID: 7, Score: 3}, {BookID: 8, Score: 5}, {BookID: 9, Score: 5},
	})
	if !ok || seed != 8 {
		t.Errorf("ContentSeed() = %d, %v; want 8, true", seed, ok)
	}
}
