// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package database

import (
	"context"
	"fmt"
)

// Genres are stored comma-joined in a VARCHAR column. Timestamps are
// written explicitly so no table default needs the ICU extension.
var schemaStatements = []struct {
	name string
	sql  string
}{
	{"books", `CREATE TABLE IF NOT EXISTS books (
		book_id BIGINT PRIMARY KEY,
		original_id VARCHAR NOT NULL DEFAULT '',
		title VARCHAR NOT NULL,
		author VARCHAR NOT NULL DEFAULT '',
		description VARCHAR NOT NULL DEFAULT '',
		genres VARCHAR NOT NULL DEFAULT '',
		year INTEGER NOT NULL DEFAULT 0,
		publisher VARCHAR NOT NULL DEFAULT '',
		image_url VARCHAR NOT NULL DEFAULT ''
	)`},
	{"users", `CREATE TABLE IF NOT EXISTS users (
		user_id BIGINT PRIMARY KEY,
		username VARCHAR NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL
	)`},
	{"ratings", `CREATE TABLE IF NOT EXISTS ratings (
		user_id BIGINT NOT NULL,
		book_id BIGINT NOT NULL,
		rating INTEGER NOT NULL,
		rated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, book_id)
	)`},
}

func (db *DB) createTables(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt.sql); err != nil {
			return fmt.Errorf("failed to create %s table: %w", stmt.name, err)
		}
	}
	return nil
}
