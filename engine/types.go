// Package engine implements the build and query pipelines from
// SPEC_FULL.md §4.5: turning a batch of documents into a consistent
// generation of hnsw/lsh/bm25/pq/docstore state, and turning a query
// into a fused, ranked, filtered result set over that generation.
//
// It is deliberately free of logging/metrics/error-sentinel concerns —
// those live at the root retrieval.Engine facade, which wraps every
// call here the way the teacher's Vecgo[T] wraps its coordinator.
package engine

import (
	"time"

	"github.com/corvidsearch/retrieval/core"
)

// Config is the subset of engine-wide configuration the orchestrator
// needs directly (the rest — logger, metrics, index path — stays at the
// root facade).
type Config struct {
	Dimension int

	HNSWM              int
	HNSWEfConstruction int
	HNSWEfSearch       int

	PQM int
	PQK int

	LSHNumBands    int
	LSHRowsPerBand int

	BM25K1 float64
	BM25B  float64

	CacheMaxSize int
	QueryTimeout time.Duration

	// ScoringWorkers bounds the candidate-scoring fan-out pool size.
	// Zero selects a small positive default.
	ScoringWorkers int

	// EmbedQPS throttles calls into the embedder (build batches and
	// per-query embeds alike) so a slow or rate-limited external
	// embedding service isn't hammered by a burst of queries. Zero
	// means unlimited.
	EmbedQPS float64
}

// Candidate is one scored document before hydration, used internally
// between the scoring fan-out and the top-k assembly step.
type Candidate struct {
	ID    core.LocalID
	Cos   float64
	BM25  float64
	Jac   float64
	Score float64
}

// SearchResult is one ranked, hydrated document returned by Query.
type SearchResult struct {
	DocID     core.DocID
	Score     float64
	Cos       float64
	BM25      float64
	Jac       float64
	Hydration map[string]string
}

// BuildReport summarizes one Build call.
type BuildReport struct {
	DocumentsProcessed int
	Failures           int
	Elapsed            time.Duration
}

// Health is a snapshot of the coordinator's current generation,
// mirroring SPEC_FULL.md §6's health() operation.
type Health struct {
	GenerationID  string
	CorpusSize    int
	Tombstones    int
	PQTrained     bool
	LastBuildTime time.Time
}
