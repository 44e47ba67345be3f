// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package catalogimport

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestDetectSchema(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		books   []string
		ratings []string
		want    string
		wantErr bool
	}{
		{
			name:    "book-crossing",
			books:   []string{"ISBN", "Book-Title", "Book-Author", "Year-Of-Publication", "Publisher", "Image-URL-L"},
			ratings: []string{"User-ID", "ISBN", "Book-Rating"},
			want:    "book-crossing",
		},
		{
			name:    "goodreads",
			books:   []string{"book_id", "title", "author", "description", "genres", "image_url"},
			ratings: []string{"user_id", "book_id", "rating"},
			want:    "goodreads",
		},
		{
			name:  "books only",
			books: []string{"book_id", "title"},
			want:  "goodreads",
		},
		{
			name:    "mismatched ratings",
			books:   []string{"ISBN", "Book-Title"},
			ratings: []string{"user_id", "book_id", "rating"},
			wantErr: true,
		},
		{
			name:    "unknown",
			books:   []string{"id", "name"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, err := DetectSchema(tt.books, tt.ratings)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownSchema) {
					t.Errorf("err = %v, want ErrUnknownSchema", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DetectSchema: %v", err)
			}
			if m.Name != tt.want {
				t.Errorf("schema = %q, want %q", m.Name, tt.want)
			}
		})
	}
}

func TestLoadMappingValidation(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	path := writeFile(t, dir, "partial.yaml", "books:\n  title: name\n")
	_, err := LoadMapping(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, field := range []string{"books.original_id", "ratings.user_id", "ratings.score"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err, field)
		}
	}

	if _, err := LoadMapping(writeFile(t, dir, "broken.yaml", "books: [")); err == nil {
		t.Error("expected yaml parse error")
	}

	full := writeFile(t, dir, "full.yaml", `books: {original_id: id, title: t}
ratings: {user_id: u, book_id: id, score: s}
skip_zero_scores: true
`)
	m, err := LoadMapping(full)
	if err != nil {
		t.Fatalf("LoadMapping: %v", err)
	}
	if m.Name != "custom" || !m.SkipZeroScores || m.Ratings.Score != "s" {
		t.Errorf("mapping = %+v", m)
	}
}

func TestParseGenres(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"Fiction", []string{"Fiction"}},
		{"['fantasy', 'young-adult']", []string{"fantasy", "young-adult"}},
		{`["a", "b"]`, []string{"a", "b"}},
		{"sci-fi|classics", []string{"sci-fi", "classics"}},
		{" History , , Biography ", []string{"History", "Biography"}},
	}
	for _, tt := range tests {
		if got := ParseGenres(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseGenres(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCSVReader(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	path := writeFile(t, dir, "bom.csv", "\ufeffbook_id, title \n1,Short\n2\n")
	r, err := OpenCSV(path)
	if err != nil {
		t.Fatalf("OpenCSV: %v", err)
	}
	defer r.Close()

	if got := r.Header(); !reflect.DeepEqual(got, []string{"book_id", "title"}) {
		t.Errorf("header = %q", got)
	}

	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if r.Field(rec, "title") != "Short" || r.Field(rec, "missing") != "" {
		t.Errorf("fields = %q", rec)
	}

	// short record
	rec, err = r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if r.Field(rec, "book_id") != "2" || r.Field(rec, "title") != "" {
		t.Errorf("short record fields = %q", rec)
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("final Next err = %v, want EOF", err)
	}
}

func TestFileFingerprint(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "x\n")
	b := writeFile(t, dir, "b.csv", "y\n")

	fa, err := fileFingerprint(a, b)
	if err != nil {
		t.Fatalf("fileFingerprint: %v", err)
	}
	again, _ := fileFingerprint(a, b)
	if fa != again {
		t.Errorf("fingerprint not stable: %s vs %s", fa, again)
	}
	swapped, _ := fileFingerprint(b, a)
	if swapped == fa {
		t.Error("fingerprint ignores file order")
	}
	if _, err := fileFingerprint(a, dir+"/missing.csv"); err == nil {
		t.Error("expected error for a missing file")
	}
}
