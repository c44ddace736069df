package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidsearch/retrieval/docstore"
)

func TestSnapshotBeforeBuildFails(t *testing.T) {
	c := newTestCoordinator(t)

	_, err := c.Snapshot()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestSnapshotLoadRoundTripPreservesRanking(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Build(context.Background(), sampleDocs())
	require.NoError(t, err)

	before, err := c.Query(context.Background(), "python aws", 3, docstore.Filter{}, 0)
	require.NoError(t, err)

	snap, err := c.Snapshot()
	require.NoError(t, err)

	c2 := newTestCoordinator(t)
	c2.LoadSnapshot(snap)

	after, err := c2.Query(context.Background(), "python aws", 3, docstore.Filter{}, 0)
	require.NoError(t, err)

	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].DocID, after[i].DocID)
	}
}

func TestLoadSnapshotPurgesPriorCache(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Build(context.Background(), sampleDocs())
	require.NoError(t, err)

	_, err = c.Query(context.Background(), "python aws", 3, docstore.Filter{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, c.cache.Len())

	snap, err := c.Snapshot()
	require.NoError(t, err)
	c.LoadSnapshot(snap)

	assert.Equal(t, 0, c.cache.Len())
}

func TestLoadSnapshotStartsWithEmptyDocumentsMap(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Build(context.Background(), sampleDocs())
	require.NoError(t, err)

	snap, err := c.Snapshot()
	require.NoError(t, err)

	c2 := newTestCoordinator(t)
	c2.LoadSnapshot(snap)

	// A loaded generation retains derived index state but not original
	// document content, so a rebuild immediately after load (with no
	// documents re-added) has nothing to replay.
	_, err = c2.Rebuild(context.Background())
	assert.ErrorIs(t, err, ErrEmbedding)

	h := c2.Health()
	assert.Equal(t, 3, h.CorpusSize)
}
