package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidsearch/retrieval/core"
	"github.com/corvidsearch/retrieval/docstore"
	"github.com/corvidsearch/retrieval/document"
)

func TestAddDocumentMakesItSearchable(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Build(context.Background(), sampleDocs())
	require.NoError(t, err)

	err = c.AddDocument(context.Background(), document.Document{
		ID: "d4", Content: "aws devops engineer", Skills: []string{"aws", "devops"}, Seniority: "senior", ExperienceYears: 7,
	})
	require.NoError(t, err)

	results, err := c.Query(context.Background(), "aws", 2, docstore.Filter{}, 0)
	require.NoError(t, err)

	var ids []string
	for _, r := range results {
		ids = append(ids, string(r.DocID))
	}
	assert.Contains(t, ids, "d4")
	assert.NotContains(t, ids, "d3")
}

func TestAddDocumentOnEmptyEngineIsNotReady(t *testing.T) {
	c := newTestCoordinator(t)

	err := c.AddDocument(context.Background(), document.Document{ID: "d1", Content: "x"})
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestDeleteDocumentRemovesFromResultsAndFrees(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Build(context.Background(), sampleDocs())
	require.NoError(t, err)

	err = c.DeleteDocument(core.DocID("d1"))
	require.NoError(t, err)

	results, err := c.Query(context.Background(), "python aws", 5, docstore.Filter{}, 0)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "d1", string(r.DocID))
	}

	stats := c.Stats()
	assert.Equal(t, 1, stats.Tombstones)
	assert.Equal(t, 2, stats.CorpusSize)
}

func TestDeleteUnknownDocumentIsNoop(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Build(context.Background(), sampleDocs())
	require.NoError(t, err)

	err = c.DeleteDocument(core.DocID("never-existed"))
	assert.NoError(t, err)
}

func TestUpdateDocumentOnUnknownIDBehavesAsAdd(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Build(context.Background(), sampleDocs())
	require.NoError(t, err)

	err = c.UpdateDocument(context.Background(), core.DocID("d5"), document.Document{
		Content: "golang platform reliability engineer", Skills: []string{"go", "sre"},
	})
	require.NoError(t, err)

	stats := c.Stats()
	assert.Equal(t, 4, stats.CorpusSize)
}

func TestUpdateDocumentReplacesContent(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Build(context.Background(), sampleDocs())
	require.NoError(t, err)

	err = c.UpdateDocument(context.Background(), core.DocID("d2"), document.Document{
		Content: "python machine learning engineer", Skills: []string{"python", "ml"}, Seniority: "senior", ExperienceYears: 8,
	})
	require.NoError(t, err)

	results, err := c.Query(context.Background(), "python", 5, docstore.Filter{}, 0)
	require.NoError(t, err)

	var ids []string
	for _, r := range results {
		ids = append(ids, string(r.DocID))
	}
	assert.Contains(t, ids, "d2")

	stats := c.Stats()
	assert.Equal(t, 3, stats.CorpusSize)
}

func TestMutationsPurgeQueryCache(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Build(context.Background(), sampleDocs())
	require.NoError(t, err)

	_, err = c.Query(context.Background(), "python aws", 3, docstore.Filter{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, c.cache.Len())

	err = c.DeleteDocument(core.DocID("d3"))
	require.NoError(t, err)
	assert.Equal(t, 0, c.cache.Len())
}

func TestHealthReflectsCurrentGeneration(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Build(context.Background(), sampleDocs())
	require.NoError(t, err)

	h := c.Health()
	assert.Equal(t, 3, h.CorpusSize)
	assert.Equal(t, 0, h.Tombstones)
	assert.NotEmpty(t, h.GenerationID)
}

func TestRebuildReplaysLiveDocuments(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Build(context.Background(), sampleDocs())
	require.NoError(t, err)

	genBefore := c.Generation()

	report, err := c.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.DocumentsProcessed)

	assert.NotSame(t, genBefore, c.Generation())
}

func TestApproximateDistanceRequiresTrainedPQAndKnownDoc(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Build(context.Background(), sampleDocs())
	require.NoError(t, err)

	query := make([]float32, 16)
	query[0] = 1

	_, err = c.ApproximateDistance(core.DocID("does-not-exist"), query)
	assert.Error(t, err)

	_, err = c.ApproximateDistance(core.DocID("d1"), query)
	// PQ may or may not be trained depending on sample size relative to
	// the centroid count; either a distance or a descriptive error is
	// acceptable here, but the call must not panic.
	_ = err
}
