// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package main

import (
	"fmt"
	"io"

	"github.com/tomtom215/shelfwise/internal/config"
	"github.com/tomtom215/shelfwise/internal/database"
	catalogimport "github.com/tomtom215/shelfwise/internal/import"
	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/supervisor"
	"github.com/tomtom215/shelfwise/internal/supervisor/services"
)

// nopCloser is returned when no progress database was opened.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// initImport adds the one-shot CSV import to the data layer when enabled.
// The returned closer releases the BadgerDB progress store and must be
// called after the tree has stopped.
func initImport(cfg *config.Config, db *database.DB, tree *supervisor.SupervisorTree, onComplete func(*catalogimport.ImportStats)) (io.Closer, error) {
	if !cfg.Import.Enabled {
		logging.Info().Msg("CSV import disabled (IMPORT_ENABLED=false)")
		return nopCloser{}, nil
	}

	var (
		progress catalogimport.ProgressTracker
		closer   io.Closer = nopCloser{}
	)
	if cfg.Import.ProgressPath != "" {
		badgerProgress, badgerDB, err := catalogimport.OpenBadgerProgress(cfg.Import.ProgressPath)
		if err != nil {
			return nil, fmt.Errorf("open import progress store: %w", err)
		}
		progress, closer = badgerProgress, badgerDB
	} else {
		logging.Warn().Msg("No import progress path configured, interrupted imports restart from scratch")
		progress = catalogimport.NewInMemoryProgress()
	}

	importer := catalogimport.NewImporter(&cfg.Import, db, progress)
	tree.AddDataService(services.NewImportService(importer, onComplete))

	logging.Info().
		Str("books", cfg.Import.BooksPath).
		Str("ratings", cfg.Import.RatingsPath).
		Str("mapping", cfg.Import.MappingPath).
		Msg("CSV import service added to supervisor tree")
	return closer, nil
}
