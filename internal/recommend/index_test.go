// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package recommend

import (
	"testing"

	"github.com/tomtom215/shelfwise/internal/models"
)

func TestBuildIndex_Bijection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ratings []models.Rating
		users   int
		books   int
	}{
		{"empty", nil, 0, 0},
		{"sparse ids", []models.Rating{
			{UserID: 900, BookID: 17, Score: 4},
			{UserID: 3, BookID: 17, Score: 2},
			{UserID: 900, BookID: 5000, Score: 5},
		}, 2, 2},
		{"fixture", testRatings(), 6, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := BuildIndex(tt.ratings)
			if m.NumUsers() != tt.users || m.NumBooks() != tt.books {
				t.Fatalf("sizes = %d/%d, want %d/%d", m.NumUsers(), m.NumBooks(), tt.users, tt.books)
			}

			for idx := 0; idx < m.NumUsers(); idx++ {
				id, ok := m.UserID(idx)
				if !ok {
					t.Fatalf("gap at user index %d", idx)
				}
				back, ok := m.UserIndex(id)
				if !ok || back != idx {
					t.Errorf("user %d round trip = %d, want %d", id, back, idx)
				}
			}
			for idx := 0; idx < m.NumBooks(); idx++ {
				id, ok := m.BookID(idx)
				if !ok {
					t.Fatalf("gap at book index %d", idx)
				}
				back, ok := m.BookIndex(id)
				if !ok || back != idx {
					t.Errorf("book %d round trip = %d, want %d", id, back, idx)
				}
			}

			for _, r := range tt.ratings {
				if _, ok := m.UserIndex(r.UserID); !ok {
					t.Errorf("user %d missing", r.UserID)
				}
				if _, ok := m.BookIndex(r.BookID); !ok {
					t.Errorf("book %d missing", r.BookID)
				}
			}
		})
	}
}

func TestBuildIndex_FirstAppearanceOrder(t *testing.T) {
	t.Parallel()

	m := BuildIndex([]models.Rating{
		{UserID: 42, BookID: 7, Score: 3},
		{UserID: 8, BookID: 9, Score: 3},
		{UserID: 42, BookID: 1, Score: 3},
	})
	if idx, _ := m.UserIndex(42); idx != 0 {
		t.Errorf("user 42 index = %d, want 0", idx)
	}
	want := []int64{7, 9, 1}
	got := m.BookIDs()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("BookIDs() = %v, want %v", got, want)
		}
	}
}

func TestIndexMapper_ColdCase(t *testing.T) {
	t.Parallel()

	m := BuildIndex([]models.Rating{{UserID: 1, BookID: 1, Score: 5}})
	if _, ok := m.UserIndex(2); ok {
		t.Error("user without ratings must have no index")
	}
	if _, ok := m.BookIndex(2); ok {
		t.Error("book without ratings must have no index")
	}
	if _, ok := m.UserID(-1); ok {
		t.Error("negative index must not resolve")
	}
	if _, ok := m.BookID(1); ok {
		t.Error("out of range index must not resolve")
	}
}

func TestIndexMapper_Encode(t *testing.T) {
	t.Parallel()

	ratings := []models.Rating{
		{UserID: 10, BookID: 100, Score: 4},
		{UserID: 20, BookID: 100, Score: 2},
	}
	m := BuildIndex(ratings)
	samples := m.Encode(append(ratings, models.Rating{UserID: 30, BookID: 100, Score: 1}))
	if len(samples) != 2 {
		t.Fatalf("Encode() returned %d samples, want 2 (unmapped user skipped)", len(samples))
	}
	if samples[1].User != 1 || samples[1].Book != 0 || samples[1].Rating != 2 {
		t.Errorf("samples[1] = %+v", samples[1])
	}
}
