// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package recommend

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"github.com/tomtom215/shelfwise/internal/models"
)

// Fingerprint identifies a dataset snapshot by row count and content hash.
type Fingerprint struct {
	Count int    `json:"count"`
	Hash  string `json:"hash"`
}

// IsZero reports whether f was never computed.
func (f Fingerprint) IsZero() bool {
	return f.Hash == ""
}

// RatingsFingerprint hashes (user, book, score) of every rating in order.
// Timestamps are left out so re-submitting an identical score does not
// change the fingerprint.
func RatingsFingerprint(ratings []models.Rating) Fingerprint {
	h := sha256.New()
	var buf [8]byte
	for _, r := range ratings {
		writeInt(h, buf[:], r.UserID)
		writeInt(h, buf[:], r.BookID)
		writeInt(h, buf[:], int64(r.Score))
	}
	return Fingerprint{Count: len(ratings), Hash: hex.EncodeToString(h.Sum(nil))}
}

// BooksFingerprint hashes the fields the content index is built from.
func BooksFingerprint(books []models.Book) Fingerprint {
	h := sha256.New()
	var buf [8]byte
	for i := range books {
		b := &books[i]
		writeInt(h, buf[:], b.ID)
		writeString(h, buf[:], b.Title)
		writeString(h, buf[:], b.Author)
		writeString(h, buf[:], b.Description)
	}
	return Fingerprint{Count: len(books), Hash: hex.EncodeToString(h.Sum(nil))}
}

func writeInt(h hash.Hash, buf []byte, v int64) {
	binary.LittleEndian.PutUint64(buf, uint64(v)) //nolint:gosec // bit pattern only
	_, _ = h.Write(buf)                           //nolint:errcheck // hash writes never fail
}

// writeString length-prefixes s so adjacent fields cannot run together.
func writeString(h hash.Hash, buf []byte, s string) {
	writeInt(h, buf, int64(len(s)))
	_, _ = h.Write([]byte(s)) //nolint:errcheck // hash writes never fail
}
