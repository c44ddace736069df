package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *prometheus.Registry) {
	t.Helper()
	promReg := prometheus.NewRegistry()
	return NewRegistry(promReg), promReg
}

func TestRecordBuildIncrementsCountersAndHistogram(t *testing.T) {
	r, promReg := newTestRegistry(t)

	r.RecordBuild(10*time.Millisecond, 5, 1, nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(r.indexBuildsTotal))
	assert.Equal(t, float64(0), testutil.ToFloat64(r.indexBuildErrorsTotal))

	r.RecordBuild(10*time.Millisecond, 0, 0, errors.New("boom"))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.indexBuildsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.indexBuildErrorsTotal))

	count, err := testutil.GatherAndCount(promReg, "index_build_time_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordSearchLabelsOutcomeAndTracksCacheHits(t *testing.T) {
	r, _ := newTestRegistry(t)

	r.RecordSearch(5*time.Millisecond, true, nil)
	r.RecordSearch(5*time.Millisecond, false, errors.New("fail"))

	assert.Equal(t, float64(1), testutil.ToFloat64(r.searchQueriesTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.searchQueriesTotal.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.searchCacheHitsTotal))
}

func TestRecordMutationLabelsKindAndOutcome(t *testing.T) {
	r, _ := newTestRegistry(t)

	r.RecordMutation("add", time.Millisecond, nil)
	r.RecordMutation("delete", time.Millisecond, errors.New("fail"))

	assert.Equal(t, float64(1), testutil.ToFloat64(r.mutationsTotal.WithLabelValues("add", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.mutationsTotal.WithLabelValues("delete", "error")))
}

func TestRecordSnapshotLabelsOutcome(t *testing.T) {
	r, _ := newTestRegistry(t)

	r.RecordSnapshot(time.Millisecond, nil)
	r.RecordSnapshot(time.Millisecond, errors.New("fail"))

	assert.Equal(t, float64(1), testutil.ToFloat64(r.snapshotsTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.snapshotsTotal.WithLabelValues("error")))
}

func TestNewRegistryRejectsDuplicateRegistration(t *testing.T) {
	promReg := prometheus.NewRegistry()
	NewRegistry(promReg)

	assert.Panics(t, func() {
		NewRegistry(promReg)
	})
}
