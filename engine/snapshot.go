package engine

import (
	"github.com/corvidsearch/retrieval/core"
	"github.com/corvidsearch/retrieval/document"
	"github.com/corvidsearch/retrieval/persistence"
)

// Snapshot exports the current generation into a persistence.Snapshot
// suitable for persistence.Save. It returns ErrNotReady if no
// generation has been built or loaded yet.
func (c *Coordinator) Snapshot() (persistence.Snapshot, error) {
	gen := c.cur.Load()
	if gen == nil {
		return persistence.Snapshot{}, ErrNotReady
	}

	gen.mapsMu.RLock()
	embeddings := make(map[core.LocalID][]float32, len(gen.embeddings))
	for id, v := range gen.embeddings {
		embeddings[id] = v
	}
	gen.mapsMu.RUnlock()

	return persistence.Snapshot{
		Graph:      gen.graph,
		LSH:        gen.lsh,
		BM25:       gen.bm25,
		PQ:         gen.pq,
		Embeddings: embeddings,
		Docs:       gen.docs,
		Registry:   gen.registry,
		Manifest: persistence.Manifest{
			GenerationID:   gen.id,
			Dimension:      c.cfg.Dimension,
			HNSWM:          c.cfg.HNSWM,
			PQM:            c.cfg.PQM,
			PQK:            c.cfg.PQK,
			LSHNumBands:    c.cfg.LSHNumBands,
			LSHRowsPerBand: c.cfg.LSHRowsPerBand,
			DocumentCount:  gen.corpusSize(),
			CreatedAt:      gen.createdAt,
		},
	}, nil
}

// LoadSnapshot installs snap as the current generation, re-encoding PQ
// codes from the restored embeddings if the quantizer is trained (PQ
// codes themselves are not part of the persisted format — only the
// codebook is, since they're cheap to recompute and keeping them out of
// the snapshot avoids doubling the persisted size of every vector).
//
// The restored generation's documents map starts empty: a snapshot does
// not retain original document content, only derived index state, so
// Rebuild cannot replay a freshly loaded generation until documents have
// been re-added via AddDocument/UpdateDocument or the caller re-runs
// Build over the full corpus.
func (c *Coordinator) LoadSnapshot(snap persistence.Snapshot) {
	gen := &generation{
		id:         snap.Manifest.GenerationID,
		graph:      snap.Graph,
		lsh:        snap.LSH,
		bm25:       snap.BM25,
		pq:         snap.PQ,
		docs:       snap.Docs,
		registry:   snap.Registry,
		embeddings: snap.Embeddings,
		pqCodes:    make(map[core.LocalID][]byte, len(snap.Embeddings)),
		documents:  make(map[core.LocalID]document.Document),
		createdAt:  snap.Manifest.CreatedAt,
	}

	if gen.pq.IsTrained() {
		for id, vec := range gen.embeddings {
			if code, err := gen.pq.Encode(vec); err == nil {
				gen.pqCodes[id] = code
			}
		}
	}

	c.cur.Store(gen)
	c.cache.Purge()
}
