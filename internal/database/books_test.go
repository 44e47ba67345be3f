// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package database

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/tomtom215/shelfwise/internal/models"
)

func TestGenresRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     []string
		stored string
		out    []string
	}{
		{nil, "", []string{}},
		{[]string{"Sci-Fi"}, "Sci-Fi", []string{"Sci-Fi"}},
		{[]string{" Fiction ", "", "History"}, "Fiction, History", []string{"Fiction", "History"}},
		{[]string{"Arts, Crafts"}, "Arts  Crafts", []string{"Arts  Crafts"}},
	}

	for _, tt := range tests {
		stored := JoinGenres(tt.in)
		if stored != tt.stored {
			t.Errorf("JoinGenres(%q) = %q, want %q", tt.in, stored, tt.stored)
		}
		if got := SplitGenres(stored); !reflect.DeepEqual(got, tt.out) {
			t.Errorf("SplitGenres(%q) = %q, want %q", stored, got, tt.out)
		}
	}
}

func TestInsertAndFetchBooks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	catalog := testCatalog()
	// reversed input, ordered output
	reversed := []models.Book{catalog[2], catalog[1], catalog[0]}
	n, err := db.InsertBooks(ctx, reversed)
	if err != nil {
		t.Fatalf("InsertBooks: %v", err)
	}
	if n != 3 {
		t.Errorf("inserted = %d, want 3", n)
	}

	// existing ids are skipped
	n, err = db.InsertBooks(ctx, catalog[:1])
	if err != nil {
		t.Fatalf("InsertBooks again: %v", err)
	}
	if n != 0 {
		t.Errorf("re-insert = %d, want 0", n)
	}

	books, err := db.FetchBooks(ctx)
	if err != nil {
		t.Fatalf("FetchBooks: %v", err)
	}
	if !reflect.DeepEqual(books, catalog) {
		t.Errorf("FetchBooks = %+v\nwant %+v", books, catalog)
	}

	next, err := db.NextBookID(ctx)
	if err != nil {
		t.Fatalf("NextBookID: %v", err)
	}
	if next != 4 {
		t.Errorf("NextBookID = %d, want 4", next)
	}

	ids, err := db.BookIDsByOriginalID(ctx)
	if err != nil {
		t.Fatalf("BookIDsByOriginalID: %v", err)
	}
	if ids["0002"] != 2 || len(ids) != 3 {
		t.Errorf("BookIDsByOriginalID = %v", ids)
	}
}

func TestGetBook(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	insertTestBooks(t, db, testCatalog()...)

	b, err := db.GetBook(ctx, 2)
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if b.Title != "Space Robots" || b.Author != "Bob" {
		t.Errorf("GetBook(2) = %+v", b)
	}

	if _, err := db.GetBook(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBook(99) err = %v, want ErrNotFound", err)
	}
}

func TestSearchBooks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	insertTestBooks(t, db, testCatalog()...)

	tests := []struct {
		name  string
		query string
		want  []int64
	}{
		{"case insensitive", "SPACE", []int64{1, 2}},
		{"substring", "robot", []int64{2}},
		{"no match", "dragons", []int64{}},
		{"percent is literal", "%", []int64{}},
		{"empty lists catalog", "  ", []int64{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			books, err := db.SearchBooks(ctx, tt.query)
			if err != nil {
				t.Fatalf("SearchBooks: %v", err)
			}
			got := make([]int64, 0, len(books))
			for _, b := range books {
				got = append(got, b.ID)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SearchBooks(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestSearchBooksLimit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	books := make([]models.Book, 0, SearchLimit+10)
	for i := 1; i <= SearchLimit+10; i++ {
		books = append(books, models.Book{ID: int64(i), Title: fmt.Sprintf("Saga volume %d", i)})
	}
	insertTestBooks(t, db, books...)

	got, err := db.SearchBooks(ctx, "saga")
	if err != nil {
		t.Fatalf("SearchBooks: %v", err)
	}
	if len(got) != SearchLimit {
		t.Errorf("results = %d, want %d", len(got), SearchLimit)
	}

	page, err := db.ListBooks(ctx, 5, 58)
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if len(page) != 2 || page[0].ID != 59 {
		t.Errorf("ListBooks(5, 58) = %d books starting at %v", len(page), page)
	}
}
