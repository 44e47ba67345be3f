// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package catalogimport

import (
	"bufio"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// CSVReader streams records from one CSV file, addressing fields by
// header name.
type CSVReader struct {
	file   *os.File
	reader *csv.Reader
	header []string
	index  map[string]int
}

// OpenCSV opens path and reads its header. The delimiter is ';' when the
// header line has semicolons but no commas, ',' otherwise.
func OpenCSV(path string) (*CSVReader, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied import path
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	br := bufio.NewReader(f)
	first, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		_ = f.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	line := string(first)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	r := csv.NewReader(br)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	if strings.Contains(line, ";") && !strings.Contains(line, ",") {
		r.Comma = ';'
	}

	header, err := r.Read()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	cr := &CSVReader{
		file:   f,
		reader: r,
		header: make([]string, len(header)),
		index:  make(map[string]int, len(header)),
	}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		cr.header[i] = h
		if _, dup := cr.index[h]; !dup {
			cr.index[h] = i
		}
	}
	return cr, nil
}

// Header returns the trimmed column names.
func (c *CSVReader) Header() []string {
	return c.header
}

// Next returns the next record, or io.EOF. The slice is reused between
// calls.
func (c *CSVReader) Next() ([]string, error) {
	for {
		rec, err := c.reader.Read()
		if err == nil {
			return rec, nil
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			// malformed line; skip it like a bad row
			continue
		}
		return nil, err
	}
}

// Field returns the trimmed value of column name in rec, or "" when the
// column is absent or the record is short.
func (c *CSVReader) Field(rec []string, name string) string {
	if name == "" {
		return ""
	}
	i, ok := c.index[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// Close closes the underlying file.
func (c *CSVReader) Close() error {
	return c.file.Close()
}

// ParseGenres accepts "a, b", "a|b" and the Python list form "['a', 'b']".
func ParseGenres(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	sep := ","
	if !strings.Contains(s, ",") && strings.Contains(s, "|") {
		sep = "|"
	}
	out := []string{}
	for _, g := range strings.Split(s, sep) {
		g = strings.Trim(strings.TrimSpace(g), `'"`)
		if g != "" {
			out = append(out, g)
		}
	}
	return out
}

// parseYear returns 0 for blank or non-numeric years.
func parseYear(s string) int {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || y < 0 {
		return 0
	}
	return y
}

// fileFingerprint hashes path, size and modification time of each file.
func fileFingerprint(paths ...string) (string, error) {
	h := sha256.New()
	for _, p := range paths {
		if p == "" {
			_, _ = h.Write([]byte{0})
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", p, err)
		}
		_, _ = fmt.Fprintf(h, "%s\x00%d\x00%d\x00", p, info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))[:32], nil
}
