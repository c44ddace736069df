package lsh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidsearch/retrieval/core"
)

func tokenSet(words ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

func TestJaccardSets(t *testing.T) {
	a := tokenSet("python", "aws")
	assert.Equal(t, 1.0, JaccardSets(a, a))
	assert.Equal(t, 0.0, JaccardSets(a, tokenSet()))
	assert.Equal(t, 0.0, JaccardSets(tokenSet(), tokenSet()))

	b := tokenSet("python", "kubernetes")
	assert.InDelta(t, 1.0/3.0, JaccardSets(a, b), 1e-9)
}

func TestTableAddCandidates(t *testing.T) {
	table := New(DefaultConfig())

	table.Add(core.LocalID(1), tokenSet("python", "developer", "aws"))
	table.Add(core.LocalID(2), tokenSet("java", "backend", "kubernetes"))
	table.Add(core.LocalID(3), tokenSet("python", "data", "scientist"))

	cands := table.Candidates(tokenSet("python", "aws"))
	ids := SortedCandidateIDs(cands)
	require.Contains(t, ids, core.LocalID(1))
}

func TestTableRemove(t *testing.T) {
	table := New(DefaultConfig())
	table.Add(core.LocalID(1), tokenSet("python", "aws"))
	table.Remove(core.LocalID(1))

	cands := table.Candidates(tokenSet("python", "aws"))
	assert.True(t, cands.IsEmpty())
	assert.Equal(t, 0.0, table.Jaccard(tokenSet("python"), core.LocalID(1)))
}

func TestTableEmptyTokensProduceNoCandidates(t *testing.T) {
	table := New(DefaultConfig())
	table.Add(core.LocalID(1), tokenSet())

	cands := table.Candidates(tokenSet("anything"))
	assert.True(t, cands.IsEmpty())
}

func TestTableJaccardAfterAdd(t *testing.T) {
	table := New(DefaultConfig())
	table.Add(core.LocalID(1), tokenSet("python", "aws"))

	assert.Equal(t, 1.0, table.Jaccard(tokenSet("python", "aws"), core.LocalID(1)))
}

func TestTableReAddReplacesSignature(t *testing.T) {
	table := New(DefaultConfig())
	table.Add(core.LocalID(1), tokenSet("python"))
	table.Add(core.LocalID(1), tokenSet("java"))

	assert.Equal(t, 0.0, table.Jaccard(tokenSet("python"), core.LocalID(1)))
	assert.Equal(t, 1.0, table.Jaccard(tokenSet("java"), core.LocalID(1)))
}
