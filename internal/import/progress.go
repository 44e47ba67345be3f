// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package catalogimport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// progressKeyPrefix prefixes the per-fingerprint BadgerDB keys.
const progressKeyPrefix = "import:catalog:"

// ProgressTracker persists import progress keyed by file fingerprint.
type ProgressTracker interface {
	// Save persists the current import progress.
	Save(ctx context.Context, stats *ImportStats) error

	// Load returns the saved progress for fingerprint, or nil, nil.
	Load(ctx context.Context, fingerprint string) (*ImportStats, error)

	// Clear removes saved progress (for fresh imports).
	Clear(ctx context.Context, fingerprint string) error
}

// BadgerProgress implements ProgressTracker using BadgerDB for persistence.
type BadgerProgress struct {
	db *badger.DB
}

// NewBadgerProgress creates a progress tracker on an open BadgerDB.
func NewBadgerProgress(db *badger.DB) *BadgerProgress {
	return &BadgerProgress{db: db}
}

// OpenBadgerProgress opens (or creates) a BadgerDB at dir. The caller
// closes the returned DB.
func OpenBadgerProgress(dir string) (*BadgerProgress, *badger.DB, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithNumVersionsToKeep(1)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open progress store %s: %w", dir, err)
	}
	return NewBadgerProgress(db), db, nil
}

func progressKey(fingerprint string) []byte {
	return []byte(progressKeyPrefix + fingerprint)
}

// Save persists the current import progress to BadgerDB.
func (p *BadgerProgress) Save(_ context.Context, stats *ImportStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(progressKey(stats.Fingerprint), data)
	})
}

// Load retrieves the saved progress for fingerprint.
func (p *BadgerProgress) Load(_ context.Context, fingerprint string) (*ImportStats, error) {
	var (
		stats ImportStats
		found bool
	)

	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(progressKey(fingerprint))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stats)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &stats, nil
}

// Clear removes saved progress for fingerprint.
func (p *BadgerProgress) Clear(_ context.Context, fingerprint string) error {
	return p.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(progressKey(fingerprint))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// InMemoryProgress implements ProgressTracker in memory. Used in tests and
// when import.progress_path is empty.
type InMemoryProgress struct {
	mu    sync.Mutex
	stats map[string]ImportStats
}

// NewInMemoryProgress creates a new in-memory progress tracker.
func NewInMemoryProgress() *InMemoryProgress {
	return &InMemoryProgress{stats: make(map[string]ImportStats)}
}

// Save stores a copy of stats.
func (p *InMemoryProgress) Save(_ context.Context, stats *ImportStats) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats[stats.Fingerprint] = *stats
	return nil
}

// Load returns a copy of the stored progress.
func (p *InMemoryProgress) Load(_ context.Context, fingerprint string) (*ImportStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.stats[fingerprint]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Clear removes the stored progress.
func (p *InMemoryProgress) Clear(_ context.Context, fingerprint string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.stats, fingerprint)
	return nil
}
