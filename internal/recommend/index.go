// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package recommend

import (
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/recommend/algorithms"
)

// IndexMapper holds dense zero-based index spaces for the user and book ids
// present in one ratings snapshot. Indices are assigned in order of first
// appearance. It is immutable after BuildIndex.
type IndexMapper struct {
	userToIndex map[int64]int
	bookToIndex map[int64]int
	indexToUser []int64
	indexToBook []int64
}

// BuildIndex maps every distinct user and book id in ratings.
func BuildIndex(ratings []models.Rating) *IndexMapper {
	m := &IndexMapper{
		userToIndex: make(map[int64]int),
		bookToIndex: make(map[int64]int),
	}
	for _, r := range ratings {
		if _, ok := m.userToIndex[r.UserID]; !ok {
			m.userToIndex[r.UserID] = len(m.indexToUser)
			m.indexToUser = append(m.indexToUser, r.UserID)
		}
		if _, ok := m.bookToIndex[r.BookID]; !ok {
			m.bookToIndex[r.BookID] = len(m.indexToBook)
			m.indexToBook = append(m.indexToBook, r.BookID)
		}
	}
	return m
}

// UserIndex returns the dense index of a user id. ok is false for users
// without ratings in the snapshot (cold start).
func (m *IndexMapper) UserIndex(id int64) (int, bool) {
	idx, ok := m.userToIndex[id]
	return idx, ok
}

// BookIndex returns the dense index of a book id.
func (m *IndexMapper) BookIndex(id int64) (int, bool) {
	idx, ok := m.bookToIndex[id]
	return idx, ok
}

// UserID returns the user id at a dense index.
func (m *IndexMapper) UserID(idx int) (int64, bool) {
	if idx < 0 || idx >= len(m.indexToUser) {
		return 0, false
	}
	return m.indexToUser[idx], true
}

// BookID returns the book id at a dense index.
func (m *IndexMapper) BookID(idx int) (int64, bool) {
	if idx < 0 || idx >= len(m.indexToBook) {
		return 0, false
	}
	return m.indexToBook[idx], true
}

// NumUsers returns the size of the user index space.
func (m *IndexMapper) NumUsers() int { return len(m.indexToUser) }

// NumBooks returns the size of the book index space.
func (m *IndexMapper) NumBooks() int { return len(m.indexToBook) }

// BookIDs returns every mapped book id in index order.
func (m *IndexMapper) BookIDs() []int64 {
	out := make([]int64, len(m.indexToBook))
	copy(out, m.indexToBook)
	return out
}

// Encode converts ratings into training samples. Ratings whose ids are not
// mapped are skipped.
func (m *IndexMapper) Encode(ratings []models.Rating) []algorithms.Sample {
	samples := make([]algorithms.Sample, 0, len(ratings))
	for _, r := range ratings {
		u, ok := m.userToIndex[r.UserID]
		if !ok {
			continue
		}
		b, ok := m.bookToIndex[r.BookID]
		if !ok {
			continue
		}
		samples = append(samples, algorithms.Sample{User: u, Book: b, Rating: float64(r.Score)})
	}
	return samples
}
