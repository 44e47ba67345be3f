// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package algorithms

// ContentDocument is the text of one book fed to the content index.
type ContentDocument struct {
	BookID      int64
	Title       string
	Author      string
	Description string
}

// Text returns the indexed document: author followed by description.
func (d ContentDocument) Text() string {
	return d.Author + " " + d.Description
}

// posting is one (row, weight) entry of a term's inverted list.
type posting struct {
	row    int
	weight float64
}

// ContentIndex ranks books by cosine similarity of their TF-IDF vectors.
//
// Rows are keyed by book id. Titles form a secondary, non-unique index:
// every row carrying a title is kept, and single-row title lookups
// resolve to the last one.
//
// Similarity is computed on demand for the single query row through an
// inverted index, so a query costs the total length of the posting lists
// it touches rather than an all-pairs matrix.
type ContentIndex struct {
	vectorizer *TFIDFVectorizer
	rows       []SparseVector
	postings   [][]posting

	bookIDs     []int64
	titles      []string
	rowByID     map[int64]int
	rowsByTitle map[string][]int
	duplicates  int
}

// NewContentIndex fits a vectorizer over docs and builds the index.
// Row i corresponds to docs[i].
func NewContentIndex(docs []ContentDocument) *ContentIndex {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text()
	}
	vectorizer, rows := FitTransform(texts)

	idx := &ContentIndex{
		vectorizer:  vectorizer,
		rows:        rows,
		postings:    make([][]posting, vectorizer.VocabularySize()),
		bookIDs:     make([]int64, len(docs)),
		titles:      make([]string, len(docs)),
		rowByID:     make(map[int64]int, len(docs)),
		rowsByTitle: make(map[string][]int, len(docs)),
	}

	for i, d := range docs {
		idx.bookIDs[i] = d.BookID
		idx.titles[i] = d.Title
		idx.rowByID[d.BookID] = i
		if len(idx.rowsByTitle[d.Title]) > 0 {
			idx.duplicates++
		}
		idx.rowsByTitle[d.Title] = append(idx.rowsByTitle[d.Title], i)

		for _, tw := range rows[i] {
			idx.postings[tw.Term] = append(idx.postings[tw.Term], posting{row: i, weight: tw.Weight})
		}
	}
	return idx
}

// Len returns the number of indexed books.
func (c *ContentIndex) Len() int { return len(c.rows) }

// VocabularySize returns the number of fitted terms.
func (c *ContentIndex) VocabularySize() int { return c.vectorizer.VocabularySize() }

// DuplicateTitles counts rows whose title was already taken by an earlier row.
func (c *ContentIndex) DuplicateTitles() int { return c.duplicates }

// Title returns the title of row.
func (c *ContentIndex) Title(row int) string { return c.titles[row] }

// BookID returns the book id of row.
func (c *ContentIndex) BookID(row int) int64 { return c.bookIDs[row] }

// RowForTitle returns the last row carrying title.
func (c *ContentIndex) RowForTitle(title string) (int, bool) {
	rows := c.rowsByTitle[title]
	if len(rows) == 0 {
		return 0, false
	}
	return rows[len(rows)-1], true
}

// RowsForTitle returns every row carrying title, in catalog order.
func (c *ContentIndex) RowsForTitle(title string) []int {
	rows := c.rowsByTitle[title]
	out := make([]int, len(rows))
	copy(out, rows)
	return out
}

// RowForBookID returns the row of a book id.
func (c *ContentIndex) RowForBookID(id int64) (int, bool) {
	row, ok := c.rowByID[id]
	return row, ok
}

// SimilarToRow returns the topN rows most similar to row, excluding row
// itself. Ordering is by descending cosine, ties by ascending row index.
func (c *ContentIndex) SimilarToRow(row, topN int) []Scored {
	if row < 0 || row >= len(c.rows) {
		return []Scored{}
	}
	return c.rank(c.rows[row], row, topN)
}

// SimilarToText ranks every row against a free-text query.
func (c *ContentIndex) SimilarToText(query string, topN int) []Scored {
	return c.rank(c.vectorizer.Transform(query), -1, topN)
}

// rank scores every row against vec and returns the topN, skipping exclude.
// Rows sharing no term with vec score zero and still take part in ranking.
func (c *ContentIndex) rank(vec SparseVector, exclude, topN int) []Scored {
	if topN <= 0 || len(c.rows) == 0 {
		return []Scored{}
	}

	scores := make([]float64, len(c.rows))
	for _, tw := range vec {
		for _, p := range c.postings[tw.Term] {
			scores[p.row] += tw.Weight * p.weight
		}
	}

	all := make([]Scored, 0, len(c.rows))
	for i, s := range scores {
		if i == exclude {
			continue
		}
		all = append(all, Scored{Row: i, Score: s})
	}
	sortScored(all)

	if len(all) > topN {
		all = all[:topN]
	}
	return all
}
