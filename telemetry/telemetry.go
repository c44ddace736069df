// Package telemetry exposes the engine's operation counters and
// latency histograms to Prometheus, under the exact metric names
// SPEC_FULL.md §6 requires. Grounded on the teacher's metrics package
// (package-level CounterVec/HistogramVec values plus a guarded
// RegisterXMetrics, rather than constructing collectors ad hoc per
// call site).
package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every metric the engine emits and implements
// retrieval.MetricsCollector. Unlike the package-level vars in the
// teacher's metrics package, these are held as fields so a process can
// run more than one engine instance against distinct registries (e.g.
// one per tenant) without collector name collisions.
type Registry struct {
	searchQueriesTotal    *prometheus.CounterVec
	searchCacheHitsTotal  prometheus.Counter
	indexBuildsTotal      prometheus.Counter
	indexBuildErrorsTotal prometheus.Counter

	searchResponseTimeMs  prometheus.Histogram
	indexBuildTimeSeconds prometheus.Histogram

	mutationsTotal *prometheus.CounterVec
	snapshotsTotal *prometheus.CounterVec
}

var registerOnce sync.Once

// NewRegistry creates a Registry and registers its collectors against
// reg. Passing prometheus.DefaultRegisterer matches the common
// single-process case; a caller running multiple engines should pass a
// fresh prometheus.NewRegistry() per instance instead.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		searchQueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "search_queries_total",
			Help: "Total number of search() calls, labeled by outcome.",
		}, []string{"outcome"}),
		searchCacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "search_cache_hits_total",
			Help: "Total number of search() calls served from the query cache.",
		}),
		indexBuildsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "index_builds_total",
			Help: "Total number of build_indexes() calls.",
		}),
		indexBuildErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "index_build_errors_total",
			Help: "Total number of build_indexes() calls that returned an error.",
		}),
		searchResponseTimeMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "search_response_time_ms",
			Help:    "search() latency in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1ms .. ~8s
		}),
		indexBuildTimeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "index_build_time_seconds",
			Help:    "build_indexes() latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		mutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "document_mutations_total",
			Help: "Total number of add/update/delete_document calls, labeled by kind and outcome.",
		}, []string{"kind", "outcome"}),
		snapshotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapshot_operations_total",
			Help: "Total number of snapshot/load calls, labeled by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		r.searchQueriesTotal,
		r.searchCacheHitsTotal,
		r.indexBuildsTotal,
		r.indexBuildErrorsTotal,
		r.searchResponseTimeMs,
		r.indexBuildTimeSeconds,
		r.mutationsTotal,
		r.snapshotsTotal,
	)

	return r
}

// NewDefaultRegistry registers against prometheus.DefaultRegisterer, but
// only once per process — a second call returns a new Registry
// registered against a private prometheus.NewRegistry(), avoiding the
// duplicate-registration panic MustRegister would otherwise raise if a
// caller constructs more than one Engine against the default registry.
// Metrics of that second Registry are not exposed through
// prometheus.DefaultRegisterer.
func NewDefaultRegistry() *Registry {
	var r *Registry
	registerOnce.Do(func() {
		r = NewRegistry(prometheus.DefaultRegisterer)
	})
	if r == nil {
		r = NewRegistry(prometheus.NewRegistry())
	}
	return r
}

// RecordBuild implements retrieval.MetricsCollector.
func (r *Registry) RecordBuild(duration time.Duration, _, _ int, err error) {
	r.indexBuildsTotal.Inc()
	if err != nil {
		r.indexBuildErrorsTotal.Inc()
	}
	r.indexBuildTimeSeconds.Observe(duration.Seconds())
}

// RecordSearch implements retrieval.MetricsCollector.
func (r *Registry) RecordSearch(duration time.Duration, cacheHit bool, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.searchQueriesTotal.WithLabelValues(outcome).Inc()
	if cacheHit {
		r.searchCacheHitsTotal.Inc()
	}
	r.searchResponseTimeMs.Observe(float64(duration.Microseconds()) / 1000.0)
}

// RecordMutation implements retrieval.MetricsCollector.
func (r *Registry) RecordMutation(kind string, _ time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.mutationsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordSnapshot implements retrieval.MetricsCollector.
func (r *Registry) RecordSnapshot(_ time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.snapshotsTotal.WithLabelValues(outcome).Inc()
}
