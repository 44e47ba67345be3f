// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package catalogimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/shelfwise/internal/config"
	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/metrics"
	"github.com/tomtom215/shelfwise/internal/models"
)

// defaultBatchSize applies when import.batch_size is not positive.
const defaultBatchSize = 5000

// Store is the part of the database the importer writes to.
type Store interface {
	CountBooks(ctx context.Context) (int64, error)
	NextBookID(ctx context.Context) (int64, error)
	InsertBooks(ctx context.Context, books []models.Book) (int, error)
	BookIDsByOriginalID(ctx context.Context) (map[string]int64, error)
	UpsertRatings(ctx context.Context, ratings []models.Rating) (int, error)
	SyncUsersFromRatings(ctx context.Context) (int64, error)
}

// Importer loads the configured CSV files into the store.
type Importer struct {
	cfg      *config.ImportConfig
	store    Store
	progress ProgressTracker

	mu      sync.Mutex
	running bool
}

// NewImporter creates an importer. A nil progress tracker keeps progress
// in memory only.
func NewImporter(cfg *config.ImportConfig, store Store, progress ProgressTracker) *Importer {
	if progress == nil {
		progress = NewInMemoryProgress()
	}
	return &Importer{
		cfg:      cfg,
		store:    store,
		progress: progress,
	}
}

// Import runs the import if the catalog is empty, or resumes one whose
// books phase already finished. It returns nil stats when there is
// nothing to do.
func (i *Importer) Import(ctx context.Context) (*ImportStats, error) {
	i.mu.Lock()
	if i.running {
		i.mu.Unlock()
		return nil, fmt.Errorf("import already in progress")
	}
	i.running = true
	i.mu.Unlock()

	defer func() {
		i.mu.Lock()
		i.running = false
		i.mu.Unlock()
	}()

	fp, err := fileFingerprint(i.cfg.BooksPath, i.cfg.RatingsPath)
	if err != nil {
		return nil, err
	}

	stats, err := i.progress.Load(ctx, fp)
	if err != nil {
		return nil, err
	}
	if stats != nil && stats.Completed {
		logging.Info().Str("fingerprint", fp).Msg("CSV files already imported, skipping")
		return nil, nil
	}

	existing, err := i.store.CountBooks(ctx)
	if err != nil {
		return nil, err
	}
	resuming := stats != nil && stats.BooksDone
	if existing > 0 && !resuming {
		logging.Info().Int64("books", existing).Msg("Catalog not empty, skipping CSV import")
		return nil, nil
	}

	mapping, err := i.resolveMapping(ctx)
	if err != nil {
		return nil, err
	}

	if stats == nil {
		stats = &ImportStats{Fingerprint: fp}
	}
	stats.Schema = mapping.Name
	stats.StartTime = time.Now()
	stats.EndTime = time.Time{}

	logging.Info().
		Str("schema", mapping.Name).
		Str("books_path", i.cfg.BooksPath).
		Str("ratings_path", i.cfg.RatingsPath).
		Bool("resuming", resuming).
		Msg("Starting CSV import")

	if !stats.BooksDone {
		if err := i.importBooks(ctx, mapping, stats); err != nil {
			return stats, fmt.Errorf("import books: %w", err)
		}
	}

	if i.cfg.RatingsPath != "" {
		if err := i.importRatings(ctx, mapping, stats); err != nil {
			return stats, fmt.Errorf("import ratings: %w", err)
		}
	}

	synced, err := i.store.SyncUsersFromRatings(ctx)
	if err != nil {
		return stats, fmt.Errorf("sync users: %w", err)
	}
	stats.UsersSynced = synced

	stats.Completed = true
	stats.EndTime = time.Now()
	i.saveProgress(ctx, stats)

	logging.Info().
		Int64("books", stats.BooksImported).
		Int64("books_skipped", stats.BooksSkipped).
		Int64("ratings", stats.RatingsImported).
		Int64("ratings_skipped", stats.RatingsSkipped).
		Int64("users", stats.UsersSynced).
		Dur("duration", stats.Duration()).
		Msg("CSV import completed")

	return stats, nil
}

// resolveMapping loads the configured mapping file or detects a built-in
// layout from both headers, read concurrently.
func (i *Importer) resolveMapping(ctx context.Context) (*ColumnMapping, error) {
	var booksHeader, ratingsHeader []string

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := readHeader(i.cfg.BooksPath)
		booksHeader = h
		return err
	})
	if i.cfg.RatingsPath != "" {
		g.Go(func() error {
			h, err := readHeader(i.cfg.RatingsPath)
			ratingsHeader = h
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if i.cfg.MappingPath != "" {
		m, err := LoadMapping(i.cfg.MappingPath)
		if err != nil {
			return nil, fmt.Errorf("load column mapping: %w", err)
		}
		if !m.matchesBooks(booksHeader) {
			return nil, fmt.Errorf("%w: mapping %s does not match books header %v", ErrUnknownSchema, m.Name, booksHeader)
		}
		if ratingsHeader != nil && !m.matchesRatings(ratingsHeader) {
			return nil, fmt.Errorf("%w: mapping %s does not match ratings header %v", ErrUnknownSchema, m.Name, ratingsHeader)
		}
		return m, nil
	}
	return DetectSchema(booksHeader, ratingsHeader)
}

func readHeader(path string) ([]string, error) {
	r, err := OpenCSV(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return r.Header(), nil
}

func (i *Importer) batchSize() int {
	if i.cfg.BatchSize > 0 {
		return i.cfg.BatchSize
	}
	return defaultBatchSize
}

func (i *Importer) importBooks(ctx context.Context, m *ColumnMapping, stats *ImportStats) error {
	r, err := OpenCSV(i.cfg.BooksPath)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	nextID, err := i.store.NextBookID(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{})
	batch := make([]models.Book, 0, i.batchSize())

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := i.store.InsertBooks(ctx, batch)
		if err != nil {
			return err
		}
		stats.BooksImported += int64(n)
		metrics.ImportedRows.WithLabelValues("books", "imported").Add(float64(n))
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read books: %w", err)
		}
		stats.BooksRead++

		book, ok := m.bookFromRecord(r, rec)
		if !ok {
			stats.BooksSkipped++
			metrics.ImportedRows.WithLabelValues("books", "skipped").Inc()
			continue
		}
		if _, dup := seen[book.OriginalID]; dup {
			stats.BooksSkipped++
			metrics.ImportedRows.WithLabelValues("books", "skipped").Inc()
			continue
		}
		seen[book.OriginalID] = struct{}{}

		book.ID = nextID
		nextID++
		batch = append(batch, book)

		if len(batch) >= i.batchSize() {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	stats.BooksDone = true
	i.saveProgress(ctx, stats)
	logging.Info().Int64("books", stats.BooksImported).Int64("skipped", stats.BooksSkipped).Msg("Books imported")
	return nil
}

func (m *ColumnMapping) bookFromRecord(r *CSVReader, rec []string) (models.Book, bool) {
	c := m.Books
	b := models.Book{
		OriginalID:  r.Field(rec, c.OriginalID),
		Title:       r.Field(rec, c.Title),
		Author:      r.Field(rec, c.Author),
		Description: r.Field(rec, c.Description),
		Year:        parseYear(r.Field(rec, c.Year)),
		Publisher:   r.Field(rec, c.Publisher),
		ImageURL:    r.Field(rec, c.ImageURL),
	}
	if b.OriginalID == "" || b.Title == "" {
		return models.Book{}, false
	}

	if c.Genres != "" {
		b.Genres = ParseGenres(r.Field(rec, c.Genres))
	}
	if len(b.Genres) == 0 && len(m.DefaultGenres) > 0 {
		b.Genres = append([]string(nil), m.DefaultGenres...)
	}
	if b.Description == "" {
		b.Description = m.DefaultDescription
	}
	if b.Publisher == "" {
		b.Publisher = m.DefaultPublisher
	}
	return b, true
}

func (i *Importer) importRatings(ctx context.Context, m *ColumnMapping, stats *ImportStats) error {
	r, err := OpenCSV(i.cfg.RatingsPath)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	ids, err := i.store.BookIDsByOriginalID(ctx)
	if err != nil {
		return err
	}

	// rows already handled by an interrupted run
	resumeAfter := stats.RatingsRead
	var row int64

	batch := make([]models.Rating, 0, i.batchSize())
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := i.store.UpsertRatings(ctx, batch)
		if err != nil {
			return err
		}
		stats.RatingsImported += int64(n)
		stats.RatingsRead = row
		metrics.ImportedRows.WithLabelValues("ratings", "imported").Add(float64(n))
		batch = batch[:0]
		i.saveProgress(ctx, stats)
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read ratings: %w", err)
		}
		row++
		if row <= resumeAfter {
			continue
		}

		rating, ok := m.ratingFromRecord(r, rec, ids)
		if !ok {
			stats.RatingsSkipped++
			metrics.ImportedRows.WithLabelValues("ratings", "skipped").Inc()
			continue
		}
		batch = append(batch, rating)

		if len(batch) >= i.batchSize() {
			if err := flush(); err != nil {
				return err
			}
			logging.Debug().Int64("rows", row).Int64("imported", stats.RatingsImported).Msg("Ratings batch written")
		}
	}
	if err := flush(); err != nil {
		return err
	}
	stats.RatingsRead = row
	return nil
}

func (m *ColumnMapping) ratingFromRecord(r *CSVReader, rec []string, ids map[string]int64) (models.Rating, bool) {
	userID, err := strconv.ParseInt(r.Field(rec, m.Ratings.UserID), 10, 64)
	if err != nil || userID <= 0 {
		return models.Rating{}, false
	}
	bookID, ok := ids[r.Field(rec, m.Ratings.BookID)]
	if !ok {
		return models.Rating{}, false
	}
	score, ok := parseScore(r.Field(rec, m.Ratings.Score))
	if !ok {
		return models.Rating{}, false
	}
	if score == 0 && m.SkipZeroScores {
		return models.Rating{}, false
	}
	return models.Rating{
		UserID: userID,
		BookID: bookID,
		Score:  clampScore(score),
	}, true
}

// parseScore accepts integers and decimal strings such as "4.0".
func parseScore(s string) (int, bool) {
	if v, err := strconv.Atoi(s); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int(f + 0.5), true
}

func clampScore(v int) int {
	return max(models.MinScore, min(models.MaxScore, v))
}

func (i *Importer) saveProgress(ctx context.Context, stats *ImportStats) {
	if err := i.progress.Save(ctx, stats); err != nil {
		logging.Warn().Err(err).Msg("Failed to save import progress")
	}
}
