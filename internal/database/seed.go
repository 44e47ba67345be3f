// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package database

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/models"
)

// Synthetic catalog dimensions.
const (
	SyntheticBooks   = 100
	SyntheticUsers   = 50
	SyntheticRatings = 1000
)

// SyntheticGenres is the genre pool for generated books.
var SyntheticGenres = []string{
	"Fiction", "Sci-Fi", "Mystery", "Romance", "Thriller", "Biography", "History", "Fantasy",
}

var (
	seedWords = []string{
		"ancient", "silent", "river", "empire", "shadow", "garden", "machine", "winter",
		"crown", "forgotten", "light", "ocean", "storm", "letter", "mirror", "city",
		"station", "orbit", "dragon", "secret", "summer", "island", "engine", "house",
		"night", "journey", "stone", "voice", "memory", "fire", "signal", "harbor",
		"library", "robot", "stranger", "valley", "promise", "map", "clock", "witness",
	}
	seedFirstNames = []string{
		"Ada", "Ben", "Clara", "Dmitri", "Elena", "Farid", "Grace", "Hiro",
		"Iris", "Jonas", "Keiko", "Luis", "Maya", "Nils", "Olu", "Priya",
	}
	seedLastNames = []string{
		"Abbott", "Brennan", "Castillo", "Dubois", "Eriksen", "Fischer", "Garcia", "Holt",
		"Ivanova", "Jensen", "Kowalski", "Larsen", "Moreau", "Novak", "Okafor", "Park",
	}
	seedPublishers = []string{
		"Harbor House", "Northlight Press", "Blue Orbit Books", "Meridian", "Quill & Co",
	}
)

// SyntheticData is a generated catalog with readers and ratings.
type SyntheticData struct {
	Books   []models.Book
	Users   []models.User
	Ratings []models.Rating
}

// GenerateSynthetic builds a deterministic catalog from seed. Ratings are
// uniform on 1..5 except that 30% of Fiction and Sci-Fi ratings get +1
// (capped at 5). Repeated (user, book) draws keep the first rating.
func GenerateSynthetic(seed int64, now time.Time) SyntheticData {
	rng := rand.New(rand.NewSource(seed))

	data := SyntheticData{
		Books: make([]models.Book, 0, SyntheticBooks),
		Users: make([]models.User, 0, SyntheticUsers),
	}

	for i := 1; i <= SyntheticBooks; i++ {
		genre := SyntheticGenres[rng.Intn(len(SyntheticGenres))]
		data.Books = append(data.Books, models.Book{
			ID:          int64(i),
			OriginalID:  fmt.Sprintf("synthetic-%d", i),
			Title:       sentence(rng, 4, false),
			Author:      seedFirstNames[rng.Intn(len(seedFirstNames))] + " " + seedLastNames[rng.Intn(len(seedLastNames))],
			Description: paragraph(rng, 3),
			Genres:      []string{genre},
			Year:        1950 + rng.Intn(74),
			Publisher:   seedPublishers[rng.Intn(len(seedPublishers))],
		})
	}

	for i := 1; i <= SyntheticUsers; i++ {
		data.Users = append(data.Users, models.User{
			ID:        int64(i),
			Username:  fmt.Sprintf("User %d", i),
			CreatedAt: now,
		})
	}

	type pair struct{ user, book int64 }
	seen := make(map[pair]struct{}, SyntheticRatings)
	data.Ratings = make([]models.Rating, 0, SyntheticRatings)
	for i := 0; i < SyntheticRatings; i++ {
		userID := int64(1 + rng.Intn(SyntheticUsers))
		bookID := int64(1 + rng.Intn(SyntheticBooks))
		score := 1 + rng.Intn(5)

		if rng.Float64() > 0.7 {
			switch data.Books[bookID-1].Genres[0] {
			case "Fiction", "Sci-Fi":
				score = min(models.MaxScore, score+1)
			}
		}

		k := pair{userID, bookID}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		data.Ratings = append(data.Ratings, models.Rating{
			UserID:  userID,
			BookID:  bookID,
			Score:   score,
			RatedAt: now,
		})
	}

	return data
}

func sentence(rng *rand.Rand, words int, period bool) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = seedWords[rng.Intn(len(seedWords))]
	}
	parts[0] = strings.ToUpper(parts[0][:1]) + parts[0][1:]
	s := strings.Join(parts, " ")
	if period {
		s += "."
	}
	return s
}

func paragraph(rng *rand.Rand, sentences int) string {
	parts := make([]string, sentences)
	for i := range parts {
		parts[i] = sentence(rng, 6+rng.Intn(5), true)
	}
	return strings.Join(parts, " ")
}

// SeedResult reports what SeedSynthetic wrote.
type SeedResult struct {
	Books   int
	Users   int
	Ratings int
}

// SeedSynthetic fills an empty catalog with GenerateSynthetic(seed).
// Returns nil when the books table already has rows.
func (db *DB) SeedSynthetic(ctx context.Context, seed int64) (*SeedResult, error) {
	n, err := db.CountBooks(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		logging.Debug().Int64("books", n).Msg("Catalog not empty, skipping synthetic seed")
		return nil, nil
	}

	logging.Info().Int64("seed", seed).Msg("Seeding database with synthetic catalog")
	data := GenerateSynthetic(seed, time.Now().UTC())

	result := &SeedResult{}
	if result.Books, err = db.InsertBooks(ctx, data.Books); err != nil {
		return nil, fmt.Errorf("seed books: %w", err)
	}
	if result.Users, err = db.insertUsers(ctx, data.Users); err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	if result.Ratings, err = db.UpsertRatings(ctx, data.Ratings); err != nil {
		return nil, fmt.Errorf("seed ratings: %w", err)
	}

	logging.Info().
		Int("books", result.Books).
		Int("users", result.Users).
		Int("ratings", result.Ratings).
		Msg("Synthetic catalog seeded")
	return result, nil
}

func (db *DB) insertUsers(ctx context.Context, users []models.User) (inserted int, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackOnError(tx, &err)

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO users (user_id, username, created_at)
		VALUES (?, ?, ?) ON CONFLICT DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare user insert: %w", err)
	}
	defer closeWithLog(stmt, "prepared statement")

	for _, u := range users {
		res, err := stmt.ExecContext(ctx, u.ID, u.Username, u.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert user %d: %w", u.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit users: %w", err)
	}
	return inserted, nil
}
