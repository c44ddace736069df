package retrieval

import (
	"sync/atomic"
	"time"
)

// MetricsCollector is the hook the engine calls after each operation.
// The telemetry package's Registry is the production implementation,
// backed by Prometheus counters and histograms; NoopMetricsCollector and
// BasicMetricsCollector below cover tests and simple in-process
// debugging without pulling in a registry.
type MetricsCollector interface {
	// RecordBuild is called after build_indexes completes.
	RecordBuild(duration time.Duration, documentsProcessed, failures int, err error)

	// RecordSearch is called after search completes.
	RecordSearch(duration time.Duration, cacheHit bool, err error)

	// RecordMutation is called after add/update/delete_document.
	RecordMutation(kind string, duration time.Duration, err error)

	// RecordSnapshot is called after snapshot/load.
	RecordSnapshot(duration time.Duration, err error)
}

// NoopMetricsCollector discards every observation. It is the default
// when no collector is configured.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(time.Duration, int, int, error)  {}
func (NoopMetricsCollector) RecordSearch(time.Duration, bool, error)     {}
func (NoopMetricsCollector) RecordMutation(string, time.Duration, error) {}
func (NoopMetricsCollector) RecordSnapshot(time.Duration, error)         {}

// BasicMetricsCollector is a simple in-memory collector for tests and
// debugging that don't need a Prometheus registry.
type BasicMetricsCollector struct {
	BuildCount         atomic.Int64
	BuildErrors        atomic.Int64
	DocumentsProcessed atomic.Int64
	DocumentFailures   atomic.Int64

	SearchCount     atomic.Int64
	SearchCacheHits atomic.Int64
	SearchErrors    atomic.Int64

	MutationCount  atomic.Int64
	MutationErrors atomic.Int64

	SnapshotCount  atomic.Int64
	SnapshotErrors atomic.Int64
}

func (b *BasicMetricsCollector) RecordBuild(_ time.Duration, processed, failures int, err error) {
	b.BuildCount.Add(1)
	b.DocumentsProcessed.Add(int64(processed))
	b.DocumentFailures.Add(int64(failures))
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordSearch(_ time.Duration, cacheHit bool, err error) {
	b.SearchCount.Add(1)
	if cacheHit {
		b.SearchCacheHits.Add(1)
	}
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordMutation(_ string, _ time.Duration, err error) {
	b.MutationCount.Add(1)
	if err != nil {
		b.MutationErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordSnapshot(_ time.Duration, err error) {
	b.SnapshotCount.Add(1)
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}
