// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/shelfwise/internal/api"
	"github.com/tomtom215/shelfwise/internal/cache"
	"github.com/tomtom215/shelfwise/internal/config"
	"github.com/tomtom215/shelfwise/internal/database"
	catalogimport "github.com/tomtom215/shelfwise/internal/import"
	"github.com/tomtom215/shelfwise/internal/logging"
	"github.com/tomtom215/shelfwise/internal/supervisor"
	"github.com/tomtom215/shelfwise/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Shelfwise stopped with an error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

// run wires the components and blocks until SIGINT/SIGTERM.
func run(cfg *config.Config) error {
	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("model_path", cfg.Recommend.ModelPath).
		Bool("import_enabled", cfg.Import.Enabled).
		Msg("Starting Shelfwise with supervisor tree")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the importer fills an empty catalog itself, so seeding would block it
	if cfg.Database.SeedSynthetic && !cfg.Import.Enabled {
		if _, err := db.SeedSynthetic(ctx, cfg.Database.SeedValue); err != nil {
			return err
		}
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	rec, err := initRecommend(cfg, db, logging.WithComponent("recommend"), tree)
	if err != nil {
		return err
	}

	responseCache := cache.New("response", cfg.Recommend.CacheTTL)
	defer responseCache.Stop()

	importCloser, err := initImport(cfg, db, tree, func(stats *catalogimport.ImportStats) {
		rec.Engine.Invalidate()
		responseCache.Clear()
		rec.Service.RequestRetrain()
		logging.Info().
			Int64("books", stats.BooksImported).
			Int64("ratings", stats.RatingsImported).
			Int64("users", stats.UsersSynced).
			Msg("Catalog import finished, model refresh requested")
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := importCloser.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing import progress store")
		}
	}()

	handler := api.NewHandler(api.HandlerOptions{
		Store:        db,
		Engine:       rec.Engine,
		Retrainer:    rec.Service,
		Cache:        responseCache,
		TrainTimeout: cfg.Recommend.TrainTimeout,
	})

	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(&cfg.Security)))
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// suture delivers exactly one value and never closes the channel
	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			treeErr = err
		}
		cancel()
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	handler.Shutdown()
	if err := db.Checkpoint(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Final database checkpoint failed")
	}
	return treeErr
}
