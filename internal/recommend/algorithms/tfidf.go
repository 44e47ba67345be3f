// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package algorithms

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// tokenPattern matches runs of two or more letters, digits or underscores.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Tokenize lowercases text, splits it into word tokens and drops English
// stop words.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := raw[:0]
	for _, tok := range raw {
		if IsStopWord(tok) {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// TermWeight is one non-zero entry of a sparse document vector.
type TermWeight struct {
	Term   int
	Weight float64
}

// SparseVector is a document vector sorted by ascending term index.
type SparseVector []TermWeight

// Dot returns the inner product of two sorted sparse vectors.
func (v SparseVector) Dot(o SparseVector) float64 {
	var s float64
	i, j := 0, 0
	for i < len(v) && j < len(o) {
		switch {
		case v[i].Term == o[j].Term:
			s += v[i].Weight * o[j].Weight
			i++
			j++
		case v[i].Term < o[j].Term:
			i++
		default:
			j++
		}
	}
	return s
}

// TFIDFVectorizer converts text into L2-normalized TF-IDF vectors over a
// vocabulary fitted on a corpus. Term frequency is the raw count and
// idf = ln((1+n)/(1+df)) + 1.
type TFIDFVectorizer struct {
	vocabulary map[string]int
	terms      []string
	idf        []float64
}

// FitTransform fits the vocabulary and idf weights on docs and returns
// their vectors in input order.
func FitTransform(docs []string) (*TFIDFVectorizer, []SparseVector) {
	tokenized := make([][]string, len(docs))
	df := make(map[string]int)
	for i, doc := range docs {
		tokenized[i] = Tokenize(doc)
		seen := make(map[string]struct{}, len(tokenized[i]))
		for _, tok := range tokenized[i] {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	v := &TFIDFVectorizer{
		vocabulary: make(map[string]int, len(terms)),
		terms:      terms,
		idf:        make([]float64, len(terms)),
	}
	n := float64(len(docs))
	for i, term := range terms {
		v.vocabulary[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	vectors := make([]SparseVector, len(docs))
	for i, toks := range tokenized {
		vectors[i] = v.vectorize(toks)
	}
	return v, vectors
}

// Transform maps text into the fitted space. Unknown terms are dropped; a
// text with no known terms yields an empty vector.
func (v *TFIDFVectorizer) Transform(text string) SparseVector {
	return v.vectorize(Tokenize(text))
}

// VocabularySize returns the number of fitted terms.
func (v *TFIDFVectorizer) VocabularySize() int {
	return len(v.terms)
}

// Term returns the vocabulary term at index i.
func (v *TFIDFVectorizer) Term(i int) string {
	return v.terms[i]
}

// IDF returns the idf weight of term, or false if it is not in the vocabulary.
func (v *TFIDFVectorizer) IDF(term string) (float64, bool) {
	i, ok := v.vocabulary[term]
	if !ok {
		return 0, false
	}
	return v.idf[i], true
}

func (v *TFIDFVectorizer) vectorize(tokens []string) SparseVector {
	counts := make(map[int]float64)
	for _, tok := range tokens {
		if idx, ok := v.vocabulary[tok]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return SparseVector{}
	}

	vec := make(SparseVector, 0, len(counts))
	var norm float64
	for idx, tf := range counts {
		w := tf * v.idf[idx]
		vec = append(vec, TermWeight{Term: idx, Weight: w})
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i].Weight /= norm
	}
	sort.Slice(vec, func(i, j int) bool { return vec[i].Term < vec[j].Term })
	return vec
}
