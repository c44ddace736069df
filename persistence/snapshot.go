package persistence

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/corvidsearch/retrieval/bm25"
	"github.com/corvidsearch/retrieval/core"
	"github.com/corvidsearch/retrieval/docstore"
	"github.com/corvidsearch/retrieval/hnsw"
	"github.com/corvidsearch/retrieval/lsh"
	"github.com/corvidsearch/retrieval/pq"
)

// Snapshot is the full in-memory state of one generation, as handed to
// Save and returned by Load. Registry is included so DocID<->LocalID
// mappings survive a restart; without it a loaded generation could not
// translate public doc ids back into the ids its indexes use.
type Snapshot struct {
	Graph      *hnsw.Graph
	LSH        *lsh.Table
	BM25       *bm25.Index
	PQ         *pq.Quantizer
	Embeddings map[core.LocalID][]float32
	Docs       *docstore.Store
	Registry   *core.Registry
	Manifest   Manifest
}

const (
	hnswFile       = "hnsw.bin"
	lshFile        = "lsh.bin"
	bm25File       = "bm25.bin"
	pqFile         = "pq.bin"
	embeddingsFile = "embeddings.bin"
	metadataFile   = "metadata.bin"
	registryFile   = "registry.bin"
)

// gobRegistry mirrors the exported half of core.Registry, since the
// registry's fields are unexported and it doesn't implement
// gob.GobEncoder/GobDecoder itself (it lives in core, below persistence
// in the import graph, and has no reason to know about gob).
type gobRegistry struct {
	DocIDs []core.DocID
	Locals []core.LocalID
}

// Save writes every section of snap to dir, creating it if needed. A
// partially written directory (e.g. from a prior failed snapshot) is
// overwritten file by file; callers that need atomicity should snapshot
// to a temporary directory and rename it into place.
//
// Sections live in independent files with no shared state, so they are
// written concurrently via an errgroup.Group (grounded on the same
// bounded-fan-out idiom the rest of the pack uses for independent I/O):
// Save's wall-clock cost is the slowest single section, not their sum.
func Save(dir string, snap Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persistence: creating snapshot dir: %w", err)
	}

	gr := gobRegistry{}
	snap.Registry.Each(func(id core.DocID, lid core.LocalID) {
		gr.DocIDs = append(gr.DocIDs, id)
		gr.Locals = append(gr.Locals, lid)
	})

	var g errgroup.Group
	g.Go(func() error { return writeSection(filepath.Join(dir, hnswFile), snap.Graph) })
	g.Go(func() error { return writeSection(filepath.Join(dir, lshFile), snap.LSH) })
	g.Go(func() error { return writeSection(filepath.Join(dir, bm25File), snap.BM25) })
	g.Go(func() error { return writeSection(filepath.Join(dir, pqFile), snap.PQ) })
	g.Go(func() error { return writeSection(filepath.Join(dir, embeddingsFile), snap.Embeddings) })
	g.Go(func() error { return writeSection(filepath.Join(dir, metadataFile), snap.Docs) })
	g.Go(func() error { return writeSection(filepath.Join(dir, registryFile), gr) })
	if err := g.Wait(); err != nil {
		return err
	}

	return WriteManifest(dir, snap.Manifest)
}

// Load reads every section previously written by Save from dir. A
// missing or mismatched checksum on any section returns an error,
// signaling the caller to fall back to a full rebuild rather than serve
// a partially-loaded generation. Sections are read concurrently, same
// as Save; errgroup.Group reports the first section failure once every
// goroutine it launched has returned.
func Load(dir string) (Snapshot, error) {
	manifest, err := ReadManifest(dir)
	if err != nil {
		return Snapshot{}, fmt.Errorf("persistence: loading manifest: %w", err)
	}

	graph := hnsw.New(manifest.Dimension, hnsw.DefaultOptions())
	table := lsh.New(lsh.Config{NumBands: manifest.LSHNumBands, RowsPerBand: manifest.LSHRowsPerBand})
	bmIndex := bm25.New()
	quantizer, err := pq.New(manifest.Dimension, manifest.PQM, manifest.PQK)
	if err != nil {
		return Snapshot{}, fmt.Errorf("persistence: rebuilding quantizer shell: %w", err)
	}
	embeddings := make(map[core.LocalID][]float32)
	docs := docstore.New()
	var gr gobRegistry

	var g errgroup.Group
	g.Go(func() error { return readSection(filepath.Join(dir, hnswFile), graph) })
	g.Go(func() error { return readSection(filepath.Join(dir, lshFile), table) })
	g.Go(func() error { return readSection(filepath.Join(dir, bm25File), bmIndex) })
	g.Go(func() error { return readSection(filepath.Join(dir, pqFile), quantizer) })
	g.Go(func() error { return readSection(filepath.Join(dir, embeddingsFile), &embeddings) })
	g.Go(func() error { return readSection(filepath.Join(dir, metadataFile), docs) })
	g.Go(func() error { return readSection(filepath.Join(dir, registryFile), &gr) })
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	registry := core.NewRegistry()
	for i, id := range gr.DocIDs {
		registry.Restore(id, gr.Locals[i])
	}

	return Snapshot{
		Graph:      graph,
		LSH:        table,
		BM25:       bmIndex,
		PQ:         quantizer,
		Embeddings: embeddings,
		Docs:       docs,
		Registry:   registry,
		Manifest:   manifest,
	}, nil
}
