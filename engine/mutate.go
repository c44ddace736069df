package engine

import (
	"context"
	"fmt"

	"github.com/corvidsearch/retrieval/core"
	"github.com/corvidsearch/retrieval/document"
	"github.com/corvidsearch/retrieval/vectormath"
)

// Stats summarizes the mutation pressure on the current generation,
// used by the incremental manager's maybe_rebuild drift check.
type Stats struct {
	CorpusSize        int
	Tombstones        int
	UpdatesSinceBuild int
}

// AddDocument embeds and inserts a single document into the current
// generation's HNSW/LSH/BM25/metadata tables (and PQ, if the
// generation's quantizer is already trained), under the single-writer
// lock (§4.7: "add_document: embed, tokenize, insert into metadata,
// BM25, LSH, HNSW; encode PQ if trained").
func (c *Coordinator) AddDocument(ctx context.Context, doc document.Document) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	gen := c.cur.Load()
	if gen == nil {
		return ErrNotReady
	}

	if err := c.embedLimiter.Wait(ctx); err != nil {
		return err
	}
	vectors, err := c.embedder.Embed(ctx, []string{doc.CanonicalText()})
	if err != nil {
		return fmt.Errorf("%w: %s", ErrEmbedding, err)
	}
	if len(vectors) != 1 || len(vectors[0]) != c.cfg.Dimension {
		return fmt.Errorf("%w: embedder returned a vector of the wrong shape", ErrEmbedding)
	}
	normalized := vectormath.NormalizeL2Copy(vectors[0])

	lid, existed := gen.registry.Ensure(doc.ID)
	if existed {
		// update_document's remove+add contract: drop the prior state
		// for this id before reinserting, so stale postings/tokens
		// don't linger alongside the new ones.
		c.removeFromIndexes(gen, lid)
	}

	if err := gen.graph.Insert(lid, normalized); err != nil {
		if !existed {
			gen.registry.Release(doc.ID)
		}
		return fmt.Errorf("%w: %s", ErrEmbedding, err)
	}

	gen.docs.Put(lid, toMetadataRecord(doc))
	gen.bm25.Add(lid, document.Tokenize(doc.CanonicalText()))
	gen.lsh.Add(lid, doc.TokenSet())

	var code []byte
	if gen.pq.IsTrained() {
		code, _ = gen.pq.Encode(normalized)
	}

	gen.mapsMu.Lock()
	gen.documents[lid] = doc
	gen.embeddings[lid] = normalized
	if code != nil {
		gen.pqCodes[lid] = code
	}
	gen.updatesSinceBuild++
	gen.mapsMu.Unlock()

	c.cache.Purge()

	return nil
}

// UpdateDocument replaces the document at docID with doc. If docID is
// unknown, it is treated as an add (§4.7).
func (c *Coordinator) UpdateDocument(ctx context.Context, docID core.DocID, doc document.Document) error {
	doc.ID = docID
	return c.AddDocument(ctx, doc)
}

// DeleteDocument tombstones docID in HNSW and drops it from every other
// table (§4.7).
func (c *Coordinator) DeleteDocument(docID core.DocID) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	gen := c.cur.Load()
	if gen == nil {
		return ErrNotReady
	}

	lid, ok := gen.registry.Lookup(docID)
	if !ok {
		return nil
	}

	c.removeFromIndexes(gen, lid)
	gen.graph.Remove(lid)
	gen.registry.Release(docID)

	gen.mapsMu.Lock()
	gen.tombstones++
	gen.mapsMu.Unlock()

	c.cache.Purge()
	return nil
}

// removeFromIndexes drops lid from every table except the registry and
// HNSW graph (callers handle those themselves, since add's replace path
// wants to keep lid's registry slot and re-Insert rather than tombstone
// it).
func (c *Coordinator) removeFromIndexes(gen *generation, lid core.LocalID) {
	gen.mapsMu.Lock()
	delete(gen.documents, lid)
	delete(gen.embeddings, lid)
	delete(gen.pqCodes, lid)
	gen.mapsMu.Unlock()

	gen.docs.Remove(lid)
	gen.bm25.Remove(lid)
	gen.lsh.Remove(lid)
}

// Stats reports the current generation's mutation pressure.
func (c *Coordinator) Stats() Stats {
	gen := c.cur.Load()
	if gen == nil {
		return Stats{}
	}

	gen.mapsMu.RLock()
	defer gen.mapsMu.RUnlock()
	return Stats{
		CorpusSize:        gen.corpusSize(),
		Tombstones:        gen.tombstones,
		UpdatesSinceBuild: gen.updatesSinceBuild,
	}
}

// Health reports a snapshot of the current generation for SPEC_FULL.md
// §6's health() operation.
func (c *Coordinator) Health() Health {
	gen := c.cur.Load()
	if gen == nil {
		return Health{}
	}

	gen.mapsMu.RLock()
	defer gen.mapsMu.RUnlock()
	return Health{
		GenerationID:  gen.id.String(),
		CorpusSize:    gen.corpusSize(),
		Tombstones:    gen.tombstones,
		PQTrained:     gen.pq.IsTrained(),
		LastBuildTime: gen.createdAt,
	}
}

// Rebuild replays every live document in the current generation through
// a fresh Build, compacting away tombstones and retraining PQ. It is
// the "offline rebuild" maybe_rebuild schedules once drift crosses the
// configured thresholds.
func (c *Coordinator) Rebuild(ctx context.Context) (BuildReport, error) {
	gen := c.cur.Load()
	if gen == nil {
		return BuildReport{}, ErrNotReady
	}

	gen.mapsMu.RLock()
	docs := make([]document.Document, 0, len(gen.documents))
	for _, d := range gen.documents {
		docs = append(docs, d)
	}
	gen.mapsMu.RUnlock()

	return c.Build(ctx, docs)
}

// ApproximateDistance returns the PQ asymmetric distance between query
// and docID's encoded vector, for recall experiments or a reranking
// caller (§4.3/§9: PQ is never consulted by the hot query path itself).
// It fails with ErrNotReady if no generation is loaded, if docID is
// unknown, or if docID has no PQ code (as when the quantizer was not
// trained at the time the document was added).
func (c *Coordinator) ApproximateDistance(docID core.DocID, query []float32) (float32, error) {
	gen := c.cur.Load()
	if gen == nil {
		return 0, ErrNotReady
	}

	lid, ok := gen.registry.Lookup(docID)
	if !ok {
		return 0, fmt.Errorf("%w: unknown document %q", ErrNotReady, docID)
	}

	gen.mapsMu.RLock()
	codes, ok := gen.pqCodes[lid]
	gen.mapsMu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: document %q has no PQ code", ErrNotReady, docID)
	}

	table, err := gen.pq.BuildDistanceTable(query)
	if err != nil {
		return 0, err
	}
	return gen.pq.AdcDistance(table, codes)
}
