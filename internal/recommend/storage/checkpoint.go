// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

// Package storage persists trained model parameters.
//
// A checkpoint is two files in the store directory:
//
//	{name}.ckpt.gz    gob-encoded parameters, gzip compressed
//	{name}.meta.json  CheckpointMetadata
//
// The metadata carries the ratings count the model was trained on, which is
// all the engine needs for its staleness check, plus a SHA-256 checksum of
// the uncompressed payload. Both files are written to a temporary name and
// renamed into place.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

var (
	// ErrCheckpointNotFound is returned when no checkpoint exists under a name.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrChecksumMismatch is returned when the payload does not match its metadata.
	ErrChecksumMismatch = errors.New("checkpoint checksum mismatch")
)

// CheckpointMetadata describes a stored checkpoint.
type CheckpointMetadata struct {
	// TrainedRatingsCount is the size of the ratings snapshot used for training.
	TrainedRatingsCount int `json:"trained_ratings_count"`

	NumUsers     int `json:"num_users"`
	NumBooks     int `json:"num_books"`
	EmbeddingDim int `json:"embedding_dim"`

	// FinalLoss is the mean squared error of the last epoch.
	FinalLoss float64 `json:"final_loss"`

	TrainedAt          time.Time `json:"trained_at"`
	SavedAt            time.Time `json:"saved_at"`
	TrainingDurationMS int64     `json:"training_duration_ms"`

	Checksum  string `json:"checksum"`
	SizeBytes int64  `json:"size_bytes"`
}

// Store manages checkpoints in one directory.
type Store struct {
	baseDir string
	mu      sync.RWMutex
}

// NewStore creates a store at baseDir, creating the directory if needed.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.baseDir
}

// SaveCheckpoint writes params and meta under name, replacing any previous
// checkpoint. Checksum, SizeBytes and SavedAt are filled in.
//
//nolint:gocritic // meta passed by value is acceptable for this write operation
func (s *Store) SaveCheckpoint(ctx context.Context, name string, params interface{}, meta CheckpointMetadata) (*CheckpointMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(params); err != nil {
		return nil, fmt.Errorf("encode checkpoint: %w", err)
	}
	hash := sha256.Sum256(raw.Bytes())
	meta.Checksum = hex.EncodeToString(hash[:])

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("compress checkpoint: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}
	meta.SizeBytes = int64(compressed.Len())
	meta.SavedAt = time.Now().UTC()

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Payload first: a crash between the two renames leaves old metadata,
	// whose checksum then fails and forces a retrain.
	if err := writeAtomic(s.checkpointPath(name), compressed.Bytes()); err != nil {
		return nil, fmt.Errorf("write checkpoint: %w", err)
	}
	if err := writeAtomic(s.metadataPath(name), metaBytes); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}
	return &meta, nil
}

// LoadMetadata reads only the metadata record of a checkpoint.
func (s *Store) LoadMetadata(ctx context.Context, name string) (*CheckpointMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readMetadata(name)
}

// LoadCheckpoint decodes the checkpoint payload into target, which must be
// a pointer to the type that was saved.
func (s *Store) LoadCheckpoint(ctx context.Context, name string, target interface{}) (*CheckpointMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, err := s.readMetadata(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(s.checkpointPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompress checkpoint: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	hash := sha256.Sum256(raw)
	if got := hex.EncodeToString(hash[:]); got != meta.Checksum {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, meta.Checksum, got)
	}

	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(target); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return meta, nil
}

// Delete removes a checkpoint. Missing files are not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range []string{s.checkpointPath(name), s.metadataPath(name)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func (s *Store) readMetadata(name string) (*CheckpointMetadata, error) {
	data, err := os.ReadFile(s.metadataPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var meta CheckpointMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &meta, nil
}

func (s *Store) checkpointPath(name string) string {
	return filepath.Join(s.baseDir, name+".ckpt.gz")
}

func (s *Store) metadataPath(name string) string {
	return filepath.Join(s.baseDir, name+".meta.json")
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()        //nolint:errcheck // already failing
		_ = os.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		return err
	}
	return os.Rename(tmpName, path)
}
