package bm25

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corvidsearch/retrieval/core"
)

func TestScoreWithNoTermsInCorpus(t *testing.T) {
	idx := New()
	idx.Add(core.LocalID(1), []string{"python", "developer"})

	assert.Equal(t, 0.0, idx.Score([]string{"zzznotaterm"}, core.LocalID(1)))
}

func TestScoreUnknownDocument(t *testing.T) {
	idx := New()
	idx.Add(core.LocalID(1), []string{"python"})

	assert.Equal(t, 0.0, idx.Score([]string{"python"}, core.LocalID(99)))
}

func TestScoreEmptyCorpus(t *testing.T) {
	idx := New()
	assert.Equal(t, 0.0, idx.Score([]string{"python"}, core.LocalID(1)))
}

func TestScoreRewardsExactMatch(t *testing.T) {
	idx := New()
	idx.Add(core.LocalID(1), []string{"python", "developer", "aws"})
	idx.Add(core.LocalID(2), []string{"java", "backend", "engineer", "kubernetes"})
	idx.Add(core.LocalID(3), []string{"senior", "python", "data", "scientist"})

	query := []string{"python", "aws"}
	s1 := idx.Score(query, core.LocalID(1))
	s2 := idx.Score(query, core.LocalID(2))
	s3 := idx.Score(query, core.LocalID(3))

	assert.Greater(t, s1, s3)
	assert.Greater(t, s3, s2)
	assert.Equal(t, 0.0, s2)
}

func TestRemoveDropsDocumentFromScoring(t *testing.T) {
	idx := New()
	idx.Add(core.LocalID(1), []string{"python", "aws"})
	idx.Remove(core.LocalID(1))

	assert.Equal(t, 0.0, idx.Score([]string{"python"}, core.LocalID(1)))
	assert.Equal(t, 0, idx.DocCount())
}

func TestDuplicateQueryTermsDoNotDoubleCount(t *testing.T) {
	idx := New()
	idx.Add(core.LocalID(1), []string{"python", "python", "aws"})

	s1 := idx.Score([]string{"python"}, core.LocalID(1))
	s2 := idx.Score([]string{"python", "python"}, core.LocalID(1))
	assert.Equal(t, s1, s2)
}
