// Scenarios from SPEC_FULL.md §8 / spec.md §8, numbered 1-6 exactly as
// in the source specification. This file is an external test package so
// it can exercise the full retrieval.Engine facade (validation, metrics,
// caching) rather than only the engine.Coordinator it wraps.
package engine_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	retrieval "github.com/corvidsearch/retrieval"
	"github.com/corvidsearch/retrieval/core"
	"github.com/corvidsearch/retrieval/document"
	"github.com/corvidsearch/retrieval/embed"
	"github.com/corvidsearch/retrieval/engine"
)

func newScenarioEngine(t *testing.T, opts ...retrieval.Option) *retrieval.Engine {
	t.Helper()
	base := []retrieval.Option{
		retrieval.WithEmbeddingDim(32),
		retrieval.WithEmbedder(embed.NewStatic(32)),
		retrieval.WithHNSW(8, 64, 64),
		retrieval.WithPQ(2, 4),
		retrieval.WithLSH(8, 2),
		retrieval.WithLogger(retrieval.NoopLogger()),
	}
	e, err := retrieval.NewEngine(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

// Scenario 1: three-document corpus, query "python aws", k=3. Expected
// order d1, d3, d2, with d1's score strictly greater than d3's.
func TestScenario1RankingOrder(t *testing.T) {
	e := newScenarioEngine(t)
	docs := []document.Document{
		{ID: "d1", Content: "python developer with aws experience"},
		{ID: "d2", Content: "java backend engineer kubernetes"},
		{ID: "d3", Content: "senior python data scientist"},
	}
	_, err := e.BuildIndexes(context.Background(), docs)
	require.NoError(t, err)

	results, err := e.Search(context.Background(), "python aws", 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	got := []string{string(results[0].DocID), string(results[1].DocID), string(results[2].DocID)}
	assert.Equal(t, []string{"d1", "d3", "d2"}, got)
	assert.Greater(t, results[0].Score, results[1].Score)
}

// Scenario 2: same corpus and query, filtered to required_skills:
// {"kubernetes"}. Expected: only d2 is returned.
func TestScenario2FilterRestrictsToMatchingDocument(t *testing.T) {
	e := newScenarioEngine(t)
	docs := []document.Document{
		{ID: "d1", Content: "python developer with aws experience"},
		{ID: "d2", Content: "java backend engineer kubernetes", Skills: []string{"kubernetes"}},
		{ID: "d3", Content: "senior python data scientist"},
	}
	_, err := e.BuildIndexes(context.Background(), docs)
	require.NoError(t, err)

	results, err := e.Search(context.Background(), "python aws", 3, map[string]any{
		"required_skills": []any{"kubernetes"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d2", string(results[0].DocID))
}

// Scenario 3: add d4="aws devops engineer" then search "aws", k=2.
// Expected: d4 and d1 appear, d3 does not. Then delete d4 and confirm
// its absence from a subsequent search.
func TestScenario3AddThenDeleteDocument(t *testing.T) {
	e := newScenarioEngine(t)
	docs := []document.Document{
		{ID: "d1", Content: "python developer with aws experience"},
		{ID: "d2", Content: "java backend engineer kubernetes"},
		{ID: "d3", Content: "senior python data scientist"},
	}
	_, err := e.BuildIndexes(context.Background(), docs)
	require.NoError(t, err)

	require.NoError(t, e.AddDocument(context.Background(), document.Document{
		ID: "d4", Content: "aws devops engineer",
	}))

	results, err := e.Search(context.Background(), "aws", 2, nil)
	require.NoError(t, err)
	var ids []string
	for _, r := range results {
		ids = append(ids, string(r.DocID))
	}
	assert.Contains(t, ids, "d4")
	assert.Contains(t, ids, "d1")
	assert.NotContains(t, ids, "d3")

	require.NoError(t, e.DeleteDocument(context.Background(), "d4"))

	results, err = e.Search(context.Background(), "aws", 3, nil)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "d4", string(r.DocID))
	}
}

// Scenario 4: 1,000-document corpus, snapshot, fresh engine, load. Ten
// random (here: deterministically varied) queries must produce the
// exact same top-5 id sequence against the loaded engine.
func TestScenario4SnapshotLoadReproducesTopK(t *testing.T) {
	dir := t.TempDir()
	e := newScenarioEngine(t, retrieval.WithIndexPath(dir))

	docs := make([]document.Document, 1000)
	skillPool := []string{"python", "java", "go", "aws", "kubernetes", "rust", "sql", "ml"}
	for i := range docs {
		skill := skillPool[i%len(skillPool)]
		docs[i] = document.Document{
			ID:      core.DocID(fmt.Sprintf("doc-%04d", i)),
			Content: fmt.Sprintf("engineer number %d specializing in %s with production experience", i, skill),
			Skills:  []string{skill},
		}
	}
	_, err := e.BuildIndexes(context.Background(), docs)
	require.NoError(t, err)

	queries := []string{
		"python production", "java engineer", "go specialist", "aws experience",
		"kubernetes operator", "rust systems", "sql database", "ml pipeline",
		"engineer number 42", "production experience",
	}

	var before [][]string
	for _, q := range queries {
		results, err := e.Search(context.Background(), q, 5, nil)
		require.NoError(t, err)
		before = append(before, idsOf(results))
	}

	require.NoError(t, e.Snapshot(""))

	e2 := newScenarioEngine(t, retrieval.WithIndexPath(dir))
	require.NoError(t, e2.Load(""))

	for i, q := range queries {
		results, err := e2.Search(context.Background(), q, 5, nil)
		require.NoError(t, err)
		assert.Equal(t, before[i], idsOf(results), "query %q", q)
	}
}

// Scenario 5: num_results=0 is a validation error, and must not
// increment the success counter.
func TestScenario5ZeroResultsIsValidationError(t *testing.T) {
	metrics := &retrieval.BasicMetricsCollector{}
	e := newScenarioEngine(t, retrieval.WithMetricsCollector(metrics))
	_, err := e.BuildIndexes(context.Background(), []document.Document{
		{ID: "d1", Content: "python developer"},
	})
	require.NoError(t, err)

	_, err = e.Search(context.Background(), "python", 0, nil)
	assert.ErrorIs(t, err, retrieval.ErrValidation)
	assert.Equal(t, int64(1), metrics.SearchErrors.Load())
	assert.Equal(t, int64(0), metrics.SearchCacheHits.Load())
}

// Scenario 6: a cancelled search returns a Cancelled error; the next
// identical search completes normally and its result is served from
// cache on a further repeat.
func TestScenario6CancelThenRetryIsCached(t *testing.T) {
	e := newScenarioEngine(t)
	_, err := e.BuildIndexes(context.Background(), []document.Document{
		{ID: "d1", Content: "python developer with aws experience"},
		{ID: "d2", Content: "java backend engineer kubernetes"},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Search(ctx, "python aws", 2, nil)
	assert.ErrorIs(t, err, retrieval.ErrCancelled)

	first, err := e.Search(context.Background(), "python aws", 2, nil)
	require.NoError(t, err)

	second, err := e.Search(context.Background(), "python aws", 2, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func idsOf(results []engine.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = string(r.DocID)
	}
	return out
}
