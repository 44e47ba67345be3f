// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package services

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"

	catalogimport "github.com/tomtom215/shelfwise/internal/import"
	"github.com/tomtom215/shelfwise/internal/logging"
)

// Importer is the part of *catalogimport.Importer the service drives.
type Importer interface {
	Import(ctx context.Context) (*catalogimport.ImportStats, error)
}

// ImportService runs the CSV catalog import once under supervision.
//
// A failed import returns its error so suture restarts it with backoff;
// the importer resumes from its recorded progress. A successful or
// skipped import returns suture.ErrDoNotRestart. onComplete runs only
// when rows were actually imported.
type ImportService struct {
	importer   Importer
	onComplete func(*catalogimport.ImportStats)
	name       string
}

// NewImportService creates the one-shot import service. onComplete may be nil.
//
//	svc := services.NewImportService(importer, func(*catalogimport.ImportStats) {
//	    engine.Invalidate()
//	    recommendSvc.RequestRetrain()
//	})
//	tree.AddDataService(svc)
func NewImportService(importer Importer, onComplete func(*catalogimport.ImportStats)) *ImportService {
	return &ImportService{
		importer:   importer,
		onComplete: onComplete,
		name:       "csv-import",
	}
}

// Serve implements suture.Service.
func (s *ImportService) Serve(ctx context.Context) error {
	stats, err := s.importer.Import(ctx)
	if err != nil {
		if ctx.Err() != nil {
			logging.Info().Msg("Import canceled due to shutdown")
			return ctx.Err()
		}
		return fmt.Errorf("import failed: %w", err)
	}

	if stats != nil && s.onComplete != nil {
		s.onComplete(stats)
	}
	return suture.ErrDoNotRestart
}

// String implements fmt.Stringer for logging.
func (s *ImportService) String() string {
	return s.name
}
