// Package bm25 implements Okapi BM25 lexical scoring over a postings
// map. Scoring is lazy and per-candidate: there is no pre-sorted top-k
// lexical retrieval path, since the engine only ever needs a BM25 score
// for the (small) candidate set produced by LSH and HNSW.
package bm25

import (
	"math"
	"sync"

	"github.com/corvidsearch/retrieval/core"
)

// K1 and B are the Okapi BM25 tuning constants' spec-mandated defaults.
// New uses these unless overridden.
const (
	K1 = 1.5
	B  = 0.75
)

type posting struct {
	id    core.LocalID
	count int
}

// Index is an in-memory BM25 postings index keyed by the dense
// core.LocalID space shared with lsh and hnsw.
type Index struct {
	k1, b float64

	mu          sync.RWMutex
	inverted    map[string][]posting
	docLengths  map[core.LocalID]int
	totalLength int64
	docCount    int
}

// New creates an empty BM25 index using the spec's default k1/b.
func New() *Index {
	return NewWithParams(K1, B)
}

// NewWithParams creates an empty BM25 index with caller-supplied k1/b,
// per §6's bm25.k1/bm25.b configuration options.
func NewWithParams(k1, b float64) *Index {
	return &Index{
		k1:         k1,
		b:          b,
		inverted:   make(map[string][]posting),
		docLengths: make(map[core.LocalID]int),
	}
}

// Add inserts or replaces id's token multiset. tokens is the document's
// token list (not deduplicated — term frequency matters here, unlike in
// lsh's token sets).
func (idx *Index) Add(id core.LocalID, tokens []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeLocked(id)

	idx.docLengths[id] = len(tokens)
	idx.totalLength += int64(len(tokens))
	idx.docCount++

	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	for t, count := range tf {
		idx.inverted[t] = append(idx.inverted[t], posting{id: id, count: count})
	}
}

// Remove drops id from the postings map, the length table, and the
// corpus-size/total-length aggregates.
func (idx *Index) Remove(id core.LocalID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(id)
}

func (idx *Index) removeLocked(id core.LocalID) {
	length, ok := idx.docLengths[id]
	if !ok {
		return
	}

	for t, postings := range idx.inverted {
		for i, p := range postings {
			if p.id == id {
				idx.inverted[t] = append(postings[:i], postings[i+1:]...)
				break
			}
		}
		if len(idx.inverted[t]) == 0 {
			delete(idx.inverted, t)
		}
	}

	delete(idx.docLengths, id)
	idx.totalLength -= int64(length)
	idx.docCount--
}

// Score returns the Okapi BM25 score of id against queryTokens. Unknown
// terms (absent from the corpus) contribute 0, never a negative value. A
// zero-length corpus or a doc-id unknown to this index scores 0.
func (idx *Index) Score(queryTokens []string, id core.LocalID) float64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.docCount == 0 {
		return 0
	}

	docLen, ok := idx.docLengths[id]
	if !ok {
		return 0
	}

	avgDL := float64(idx.totalLength) / float64(idx.docCount)

	seen := make(map[string]struct{}, len(queryTokens))
	var score float64
	for _, term := range queryTokens {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		postings, ok := idx.inverted[term]
		if !ok {
			continue
		}

		tf := 0
		for _, p := range postings {
			if p.id == id {
				tf = p.count
				break
			}
		}
		if tf == 0 {
			continue
		}

		idf := idx.idf(len(postings))
		num := float64(tf) * (idx.k1 + 1)
		denom := float64(tf) + idx.k1*(1-idx.b+idx.b*(float64(docLen)/avgDL))
		score += idf * (num / denom)
	}

	return score
}

// idf computes ln((N - df + 0.5)/(df + 0.5) + 1), the spec's exact Okapi
// IDF form.
func (idx *Index) idf(df int) float64 {
	n := float64(idx.docCount)
	d := float64(df)
	return math.Log((n-d+0.5)/(d+0.5) + 1)
}

// DocCount returns the number of documents currently indexed.
func (idx *Index) DocCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.docCount
}
