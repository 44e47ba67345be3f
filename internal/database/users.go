// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/shelfwise/internal/models"
)

// CreateUser registers a new reader and returns it. The id is one past
// the current maximum. Returns ErrDuplicateUsername for a taken name.
func (db *DB) CreateUser(ctx context.Context, username string) (user *models.User, err error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("create_user", start, err) }()

	if _, err := db.getUserByUsername(ctx, username); err == nil {
		return nil, ErrDuplicateUsername
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	var id int64
	err = retryOnConflict(ctx, func() error {
		return db.conn.QueryRowContext(ctx, `INSERT INTO users (user_id, username, created_at)
			SELECT COALESCE(MAX(user_id), 0) + 1, CAST(? AS VARCHAR), CAST(? AS TIMESTAMP) FROM users
			RETURNING user_id`, username, now).Scan(&id)
	})
	if err != nil {
		if isConstraintViolation(err) {
			// lost a race with a concurrent create of the same name
			if _, lookupErr := db.getUserByUsername(ctx, username); lookupErr == nil {
				return nil, ErrDuplicateUsername
			}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &models.User{ID: id, Username: username, CreatedAt: now}, nil
}

// GetUserByUsername looks a reader up by exact username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (user *models.User, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() {
		if errors.Is(err, ErrNotFound) {
			observe("get_user", start, nil)
			return
		}
		observe("get_user", start, err)
	}()

	return db.getUserByUsername(ctx, strings.TrimSpace(username))
}

func (db *DB) getUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id, username, created_at FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %q: %w", username, err)
	}
	return &u, nil
}

// SyncUsersFromRatings creates a "User <id>" row for every rating author
// missing from the users table. Returns the number of users added.
func (db *DB) SyncUsersFromRatings(ctx context.Context) (added int64, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { observe("sync_users", start, err) }()

	res, err := db.conn.ExecContext(ctx, `INSERT INTO users (user_id, username, created_at)
		SELECT DISTINCT r.user_id, 'User ' || CAST(r.user_id AS VARCHAR), CAST(? AS TIMESTAMP)
		FROM ratings r
		WHERE r.user_id NOT IN (SELECT user_id FROM users)
		ON CONFLICT DO NOTHING`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to sync users: %w", err)
	}
	added, _ = res.RowsAffected()
	return added, nil
}
