package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidsearch/retrieval/bm25"
	"github.com/corvidsearch/retrieval/core"
	"github.com/corvidsearch/retrieval/docstore"
	"github.com/corvidsearch/retrieval/hnsw"
	"github.com/corvidsearch/retrieval/lsh"
	"github.com/corvidsearch/retrieval/pq"
)

func buildFixtureSnapshot(t *testing.T) Snapshot {
	t.Helper()

	registry := core.NewRegistry()
	lid0, _ := registry.Ensure(core.DocID("doc-0"))
	lid1, _ := registry.Ensure(core.DocID("doc-1"))

	graph := hnsw.New(4, hnsw.DefaultOptions())
	require.NoError(t, graph.Insert(lid0, []float32{1, 0, 0, 0}))
	require.NoError(t, graph.Insert(lid1, []float32{0, 1, 0, 0}))

	table := lsh.New(lsh.DefaultConfig())
	table.Add(lid0, map[string]struct{}{"go": {}, "backend": {}})
	table.Add(lid1, map[string]struct{}{"go": {}, "frontend": {}})

	bmIndex := bm25.New()
	bmIndex.Add(lid0, []string{"go", "backend", "go"})
	bmIndex.Add(lid1, []string{"go", "frontend"})

	quantizer, err := pq.New(4, 2, 4)
	require.NoError(t, err)
	require.NoError(t, quantizer.Train([][]float32{
		{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1},
	}))

	docs := docstore.New()
	docs.Put(lid0, docstore.Record{Seniority: docstore.StringValue("senior")})
	docs.Put(lid1, docstore.Record{Seniority: docstore.StringValue("junior")})

	embeddings := map[core.LocalID][]float32{
		lid0: {1, 0, 0, 0},
		lid1: {0, 1, 0, 0},
	}

	manifest := Manifest{
		GenerationID:   NewGenerationID(),
		Dimension:      4,
		HNSWM:          16,
		PQM:            2,
		PQK:            4,
		LSHNumBands:    lsh.DefaultConfig().NumBands,
		LSHRowsPerBand: lsh.DefaultConfig().RowsPerBand,
		DocumentCount:  2,
		CreatedAt:      time.Unix(0, 0).UTC(),
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
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	snap := buildFixtureSnapshot(t)

	require.NoError(t, Save(dir, snap))

	loaded, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, snap.Manifest.Dimension, loaded.Manifest.Dimension)
	assert.Equal(t, snap.Manifest.DocumentCount, loaded.Manifest.DocumentCount)
	assert.Equal(t, snap.Manifest.GenerationID, loaded.Manifest.GenerationID)

	lid0, ok := loaded.Registry.Lookup(core.DocID("doc-0"))
	require.True(t, ok)
	lid1, ok := loaded.Registry.Lookup(core.DocID("doc-1"))
	require.True(t, ok)

	assert.True(t, loaded.Graph.Contains(lid0))
	assert.True(t, loaded.Graph.Contains(lid1))

	results, err := loaded.Graph.Search([]float32{1, 0, 0, 0}, 1, 50)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, lid0, results[0].Node)

	candidates := loaded.LSH.Candidates(map[string]struct{}{"go": {}})
	assert.True(t, candidates.Contains(uint32(lid0)))
	assert.True(t, candidates.Contains(uint32(lid1)))

	assert.Greater(t, loaded.BM25.Score([]string{"backend"}, lid0), 0.0)
	assert.Equal(t, 2, loaded.BM25.DocCount())

	assert.True(t, loaded.PQ.IsTrained())
	codes, err := loaded.PQ.Encode([]float32{1, 0, 0, 0})
	require.NoError(t, err)
	assert.Len(t, codes, 2)

	rec, ok := loaded.Docs.Get(lid0)
	require.True(t, ok)
	assert.Equal(t, "senior", rec.Seniority.Str)

	assert.Equal(t, []float32{1, 0, 0, 0}, loaded.Embeddings[lid0])
}

func TestLoadMissingDirectoryFails(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}
