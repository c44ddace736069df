package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corvidsearch/retrieval/bm25"
	"github.com/corvidsearch/retrieval/core"
	"github.com/corvidsearch/retrieval/docstore"
	"github.com/corvidsearch/retrieval/document"
	"github.com/corvidsearch/retrieval/hnsw"
	"github.com/corvidsearch/retrieval/lsh"
	"github.com/corvidsearch/retrieval/pq"
)

// generation is one consistent, immutable-enough-to-read version of
// every index structure. Queries read through an
// atomic.Pointer[generation]; mutations build a new generation (full
// rebuild) or mutate the current one under the coordinator's single-
// writer lock (incremental add/update/delete), per §5's concurrency
// model.
type generation struct {
	id uuid.UUID

	graph    *hnsw.Graph
	lsh      *lsh.Table
	bm25     *bm25.Index
	pq       *pq.Quantizer
	docs     *docstore.Store
	registry *core.Registry

	// mapsMu guards embeddings/pqCodes/documents: the only plain Go
	// maps here without their own internal locking (hnsw/lsh/bm25/
	// docstore each guard themselves; core.Registry guards itself).
	// Build populates a generation before it's ever shared, so it never
	// takes this lock; AddDocument/DeleteDocument and Query/scoring
	// both do, since incremental mutation happens in place on the live
	// generation rather than via copy-on-write swap.
	mapsMu sync.RWMutex

	embeddings map[core.LocalID][]float32
	pqCodes    map[core.LocalID][]byte

	// documents retains the raw, caller-supplied Document for every live
	// id, so a rebuild (triggered by drift) can replay the full build
	// pipeline without the incremental manager needing its own separate
	// copy of the corpus.
	documents map[core.LocalID]document.Document

	tombstones        int
	updatesSinceBuild int
	createdAt         time.Time
}

func newGeneration(dim int, hnswOpts hnsw.Options, lshCfg lsh.Config, bm25K1, bm25B float64, pqM, pqK int) *generation {
	quantizer, err := pq.New(dim, pqM, pqK)
	if err != nil {
		// pqM/pqK are validated by the root config layer before reaching
		// here; a failure at this point is a programmer error, not a
		// runtime condition callers should recover from.
		panic(err)
	}

	return &generation{
		id:         uuid.New(),
		graph:      hnsw.New(dim, hnswOpts),
		lsh:        lsh.New(lshCfg),
		bm25:       bm25.NewWithParams(bm25K1, bm25B),
		pq:         quantizer,
		docs:       docstore.New(),
		registry:   core.NewRegistry(),
		embeddings: make(map[core.LocalID][]float32),
		pqCodes:    make(map[core.LocalID][]byte),
		documents:  make(map[core.LocalID]document.Document),
		createdAt:  time.Now(),
	}
}

// corpusSize returns the number of live (non-tombstoned) documents.
func (g *generation) corpusSize() int {
	return g.registry.Len()
}

func toMetadataRecord(doc document.Document) docstore.Record {
	return docstore.Record{
		Seniority:       docstore.StringValue(doc.Seniority),
		ExperienceYears: docstore.IntValue(int64(doc.ExperienceYears)),
		Skills:          docstore.StringSetValue(doc.Skills...),
		PostedAt:        docstore.PostedAtUnix(doc.PostedAt),
		Hydration:       doc.Metadata,
	}
}
