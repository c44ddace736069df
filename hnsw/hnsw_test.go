package hnsw

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidsearch/retrieval/core"
)

func unit(v []float32) []float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	inv := float32(1) / sqrt32(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}

func sqrt32(x float32) float32 {
	// tiny local sqrt to avoid importing math just for tests
	if x == 0 {
		return 0
	}
	z := x
	for i := 0; i < 30; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}

func opts() Options {
	o := DefaultOptions()
	o.Rand = rand.New(rand.NewSource(42))
	return o
}

func TestInsertIntoEmptyGraph(t *testing.T) {
	g := New(2, opts())
	err := g.Insert(core.LocalID(0), unit([]float32{1, 0}))
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())
}

func TestInsertDimensionMismatch(t *testing.T) {
	g := New(3, opts())
	err := g.Insert(core.LocalID(0), []float32{1, 0})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSearchEmptyGraph(t *testing.T) {
	g := New(2, opts())
	_, err := g.Search([]float32{1, 0}, 1, 10)
	assert.ErrorIs(t, err, ErrEmptyGraph)
}

func TestSearchFindsNearest(t *testing.T) {
	g := New(2, opts())
	vectors := map[core.LocalID][]float32{
		0: unit([]float32{1, 0}),
		1: unit([]float32{0, 1}),
		2: unit([]float32{0.9, 0.1}),
	}
	for id, v := range vectors {
		require.NoError(t, g.Insert(id, v))
	}

	results, err := g.Search(unit([]float32{1, 0}), 2, 50)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, core.LocalID(0), results[0].Node)
}

func TestRemoveTombstonesExcludedFromSearch(t *testing.T) {
	g := New(2, opts())
	require.NoError(t, g.Insert(core.LocalID(0), unit([]float32{1, 0})))
	require.NoError(t, g.Insert(core.LocalID(1), unit([]float32{0.9, 0.1})))

	g.Remove(core.LocalID(0))
	assert.False(t, g.Contains(core.LocalID(0)))

	results, err := g.Search(unit([]float32{1, 0}), 2, 50)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, core.LocalID(0), r.Node)
	}
}

func TestLenExcludesTombstones(t *testing.T) {
	g := New(2, opts())
	require.NoError(t, g.Insert(core.LocalID(0), unit([]float32{1, 0})))
	require.NoError(t, g.Insert(core.LocalID(1), unit([]float32{0, 1})))
	g.Remove(core.LocalID(0))
	assert.Equal(t, 1, g.Len())
}

func TestSearchManyNodesRecall(t *testing.T) {
	g := New(8, opts())
	rng := rand.New(rand.NewSource(7))

	var target []float32
	for i := 0; i < 200; i++ {
		v := make([]float32, 8)
		for j := range v {
			v[j] = rng.Float32()*2 - 1
		}
		v = unit(v)
		require.NoError(t, g.Insert(core.LocalID(i), v))
		if i == 0 {
			target = v
		}
	}

	results, err := g.Search(target, 5, 100)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, core.LocalID(0), results[0].Node, "the query vector's own id should be its own nearest neighbor")
}
