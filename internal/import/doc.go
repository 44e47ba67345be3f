// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

// Package catalogimport loads a books CSV and a ratings CSV into an empty
// catalog.
//
// # Schemas
//
// The layout is detected from the books header:
//
//   - Book-Crossing (Kaggle): ISBN, Book-Title, Book-Author,
//     Year-Of-Publication, Publisher, Image-URL-L; ratings User-ID, ISBN,
//     Book-Rating. Rows carry no description, so every book gets
//     "No description available." and the genre General. A score of 0 is an
//     implicit interaction and is skipped.
//   - Goodreads: book_id, title, author, description, genres, image_url;
//     ratings user_id, book_id, rating.
//
// Any other layout needs a YAML column mapping (import.mapping_path):
//
//	name: my-export
//	books:
//	  original_id: id
//	  title: name
//	  author: writer
//	ratings:
//	  user_id: reader
//	  book_id: id
//	  score: stars
//
// # Flow
//
//  1. Both headers are read concurrently and the schema is detected.
//  2. Books get sequential catalog ids. Rows without a title and repeated
//     upstream ids are skipped.
//  3. Ratings referencing unknown books are dropped. Scores are clamped to
//     1..5 and written in batches of import.batch_size.
//  4. Every rating author gets a "User <id>" row.
//
// # Progress Tracking
//
// Progress is stored per file fingerprint (path, size, modification time)
// in BadgerDB. A crash after the books phase resumes with ratings on the
// next start, and a completed fingerprint is never imported twice.
package catalogimport
