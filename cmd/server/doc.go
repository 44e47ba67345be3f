// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

/*
Package main is the entry point for the Shelfwise server.

Shelfwise recommends books two ways: a neural rating model trained on the
explicit 1-5 star ratings in the catalog, and a TF-IDF content index over
book titles, authors, genres and descriptions. Users without enough ratings
for the model fall back to content similarity.

# Application Architecture

Components run under a Suture v4 supervisor tree:

	RootSupervisor ("shelfwise")
	├── DataSupervisor ("data-layer")
	│   └── CSV Import (optional, one-shot)
	├── RecommendSupervisor ("recommend-layer")
	│   └── Recommend Service (startup training, periodic and debounced retrains)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (Chi router under /api/v1)

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config file and environment
 2. Logging: zerolog with JSON/console output modes
 3. Database: DuckDB catalog, optionally seeded with synthetic data
 4. Recommendation engine: checkpoint store and circuit-broken data provider
 5. Response cache and CSV importer
 6. HTTP Server: Chi router with middleware stack

A finished import invalidates the model and the content index, clears the
response cache and asks the recommend service for a retrain.

# Configuration

	HTTP_PORT=8501                      # HTTP server port
	DUCKDB_PATH=/data/shelfwise.duckdb  # catalog database
	SEED_SYNTHETIC=false                # fill an empty catalog with generated data
	RECOMMEND_MODEL_PATH=/data/recommend
	RECOMMEND_TRAIN_ON_STARTUP=true
	RECOMMEND_TRAIN_INTERVAL=24h
	IMPORT_ENABLED=false
	IMPORT_BOOKS_PATH=/data/books.csv
	IMPORT_RATINGS_PATH=/data/ratings.csv
	CORS_ORIGINS=                       # comma separated, empty disables CORS
	LOG_LEVEL=info
	LOG_FORMAT=json

A YAML file found at CONFIG_PATH or one of the default locations is loaded
below the environment.

# Graceful Shutdown

SIGINT and SIGTERM cancel the root context. The supervisor stops the API
layer first, waits up to HTTP_SHUTDOWN_TIMEOUT for in-flight requests, and
reports services that did not stop. Background training started through the
API is awaited before the database is checkpointed and closed.
*/
package main
