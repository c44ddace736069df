// Package incremental keeps the live generation consistent under
// add/update/delete traffic and decides when drift has grown large
// enough to warrant a full offline rebuild (SPEC_FULL.md §4.7).
//
// The manager holds a narrow, lookup-and-trigger interface onto the
// engine rather than the engine's own types, mirroring the teacher's
// split between a facade (which owns the coordinator) and the
// coordinator itself (which never holds a strong reference back to its
// owner) — see design note §9's cyclic-reference guidance.
package incremental

import (
	"context"
	"sync"

	"github.com/corvidsearch/retrieval/core"
	"github.com/corvidsearch/retrieval/document"
)

// Stats mirrors engine.Stats without importing the engine package
// directly, keeping this package's dependency surface to the Engine
// interface below.
type Stats struct {
	CorpusSize        int
	Tombstones        int
	UpdatesSinceBuild int
}

// BuildReport mirrors engine.BuildReport.
type BuildReport struct {
	DocumentsProcessed int
	Failures           int
}

// Engine is the narrow surface the manager needs from the orchestrator:
// perform one mutation, read current drift, or trigger a rebuild. It
// never exposes generation internals.
type Engine interface {
	AddDocument(ctx context.Context, doc document.Document) error
	UpdateDocument(ctx context.Context, docID core.DocID, doc document.Document) error
	DeleteDocument(docID core.DocID) error
	Stats() Stats
	Rebuild(ctx context.Context) (BuildReport, error)
}

// Thresholds controls maybe_rebuild's drift trigger: a rebuild is
// scheduled once tombstones + updates_since_build reaches
// max(Absolute, Fraction * corpus_size).
type Thresholds struct {
	Absolute int
	Fraction float64
}

// DefaultThresholds matches SPEC_FULL.md §4.7's defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{Absolute: 10_000, Fraction: 0.1}
}

// Manager forwards mutations to a single engine and decides, after
// each one, whether drift warrants a rebuild. It does
// not run a background goroutine; maybe_rebuild is checked
// synchronously at the end of every mutating call, and RunRebuild is
// left to the caller to invoke (offline, out of the request path) once
// ShouldRebuild reports true — matching the spec's "schedule an offline
// rebuild" language rather than rebuilding inline under load.
type Manager struct {
	engine     Engine
	thresholds Thresholds

	mu      sync.Mutex
	pending bool
}

// New creates a Manager wrapping engine with the given drift thresholds.
func New(engine Engine, thresholds Thresholds) *Manager {
	return &Manager{engine: engine, thresholds: thresholds}
}

// AddDocument embeds, tokenizes, and inserts doc into every live index
// table, then re-evaluates the drift trigger.
func (m *Manager) AddDocument(ctx context.Context, doc document.Document) error {
	if err := m.engine.AddDocument(ctx, doc); err != nil {
		return err
	}
	m.evaluateDrift()
	return nil
}

// UpdateDocument treats docID as remove+add; an unknown docID is
// treated as a plain add (§4.7).
func (m *Manager) UpdateDocument(ctx context.Context, docID core.DocID, doc document.Document) error {
	if err := m.engine.UpdateDocument(ctx, docID, doc); err != nil {
		return err
	}
	m.evaluateDrift()
	return nil
}

// DeleteDocument tombstones docID in HNSW and drops it from every other
// table, then re-evaluates the drift trigger.
func (m *Manager) DeleteDocument(ctx context.Context, docID core.DocID) error {
	if err := m.engine.DeleteDocument(docID); err != nil {
		return err
	}
	m.evaluateDrift()
	return nil
}

// evaluateDrift implements maybe_rebuild's condition and records the
// decision for ShouldRebuild to report; it never blocks a mutating call
// on the rebuild itself.
func (m *Manager) evaluateDrift() {
	stats := m.engine.Stats()
	threshold := m.thresholds.Absolute
	if fractional := int(m.thresholds.Fraction * float64(stats.CorpusSize)); fractional > threshold {
		threshold = fractional
	}

	if stats.Tombstones+stats.UpdatesSinceBuild >= threshold {
		m.mu.Lock()
		m.pending = true
		m.mu.Unlock()
	}
}

// ShouldRebuild reports whether the last mutation's drift check
// scheduled a rebuild that hasn't run yet.
func (m *Manager) ShouldRebuild() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// RunRebuild performs the scheduled offline rebuild and clears the
// pending flag regardless of outcome, so a failed rebuild doesn't wedge
// the manager into retrying on every subsequent mutation; the caller
// decides whether and when to retry.
func (m *Manager) RunRebuild(ctx context.Context) (BuildReport, error) {
	report, err := m.engine.Rebuild(ctx)

	m.mu.Lock()
	m.pending = false
	m.mu.Unlock()

	return report, err
}
