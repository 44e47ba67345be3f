// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package catalogimport

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownSchema is returned when neither built-in mapping matches the
// books header and no custom mapping is configured.
var ErrUnknownSchema = errors.New("unrecognized csv schema")

// BookColumns names the books CSV header for each catalog field. Empty
// names are absent columns.
type BookColumns struct {
	OriginalID  string `yaml:"original_id"`
	Title       string `yaml:"title"`
	Author      string `yaml:"author"`
	Description string `yaml:"description"`
	Genres      string `yaml:"genres"`
	Year        string `yaml:"year"`
	Publisher   string `yaml:"publisher"`
	ImageURL    string `yaml:"image_url"`
}

// RatingColumns names the ratings CSV header for each rating field.
type RatingColumns struct {
	UserID string `yaml:"user_id"`
	BookID string `yaml:"book_id"`
	Score  string `yaml:"score"`
}

// ColumnMapping describes one CSV layout.
type ColumnMapping struct {
	Name    string        `yaml:"name"`
	Books   BookColumns   `yaml:"books"`
	Ratings RatingColumns `yaml:"ratings"`

	// Defaults fill fields the layout does not carry.
	DefaultDescription string   `yaml:"default_description"`
	DefaultGenres      []string `yaml:"default_genres"`
	DefaultPublisher   string   `yaml:"default_publisher"`

	// SkipZeroScores drops ratings of 0 (implicit interactions).
	SkipZeroScores bool `yaml:"skip_zero_scores"`
}

// BookCrossing is the Kaggle Book-Crossing layout.
var BookCrossing = ColumnMapping{
	Name: "book-crossing",
	Books: BookColumns{
		OriginalID: "ISBN",
		Title:      "Book-Title",
		Author:     "Book-Author",
		Year:       "Year-Of-Publication",
		Publisher:  "Publisher",
		ImageURL:   "Image-URL-L",
	},
	Ratings: RatingColumns{
		UserID: "User-ID",
		BookID: "ISBN",
		Score:  "Book-Rating",
	},
	DefaultDescription: "No description available.",
	DefaultGenres:      []string{"General"},
	SkipZeroScores:     true,
}

// Goodreads is the goodbooks/Goodreads layout.
var Goodreads = ColumnMapping{
	Name: "goodreads",
	Books: BookColumns{
		OriginalID:  "book_id",
		Title:       "title",
		Author:      "author",
		Description: "description",
		Genres:      "genres",
		ImageURL:    "image_url",
	},
	Ratings: RatingColumns{
		UserID: "user_id",
		BookID: "book_id",
		Score:  "rating",
	},
	DefaultPublisher: "Unknown",
}

// builtinMappings are tried in order by DetectSchema.
var builtinMappings = []ColumnMapping{BookCrossing, Goodreads}

// LoadMapping reads a custom ColumnMapping from a YAML file.
func LoadMapping(path string) (*ColumnMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var m ColumnMapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.Name == "" {
		m.Name = "custom"
	}
	return &m, nil
}

// Validate checks that the mapping names the columns the importer needs.
func (m *ColumnMapping) Validate() error {
	var missing []string
	if m.Books.OriginalID == "" {
		missing = append(missing, "books.original_id")
	}
	if m.Books.Title == "" {
		missing = append(missing, "books.title")
	}
	if m.Ratings.UserID == "" {
		missing = append(missing, "ratings.user_id")
	}
	if m.Ratings.BookID == "" {
		missing = append(missing, "ratings.book_id")
	}
	if m.Ratings.Score == "" {
		missing = append(missing, "ratings.score")
	}
	if len(missing) > 0 {
		return fmt.Errorf("column mapping missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// matchesBooks reports whether header carries the mapping's id and title.
func (m *ColumnMapping) matchesBooks(header []string) bool {
	return hasColumn(header, m.Books.OriginalID) && hasColumn(header, m.Books.Title)
}

// matchesRatings reports whether header carries every rating column.
func (m *ColumnMapping) matchesRatings(header []string) bool {
	return hasColumn(header, m.Ratings.UserID) &&
		hasColumn(header, m.Ratings.BookID) &&
		hasColumn(header, m.Ratings.Score)
}

// DetectSchema picks the built-in mapping matching the books header. The
// ratings header, when non-nil, must match the same mapping.
func DetectSchema(booksHeader, ratingsHeader []string) (*ColumnMapping, error) {
	for i := range builtinMappings {
		m := builtinMappings[i]
		if !m.matchesBooks(booksHeader) {
			continue
		}
		if ratingsHeader != nil && !m.matchesRatings(ratingsHeader) {
			return nil, fmt.Errorf("%w: books look like %s but ratings header is %v",
				ErrUnknownSchema, m.Name, ratingsHeader)
		}
		return &m, nil
	}
	return nil, fmt.Errorf("%w: books header %v", ErrUnknownSchema, booksHeader)
}

func hasColumn(header []string, name string) bool {
	if name == "" {
		return false
	}
	for _, h := range header {
		if h == name {
			return true
		}
	}
	return false
}
