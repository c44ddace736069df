package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/corvidsearch/retrieval/core"
	"github.com/corvidsearch/retrieval/docstore"
	"github.com/corvidsearch/retrieval/document"
	"github.com/corvidsearch/retrieval/engine"
	"github.com/corvidsearch/retrieval/incremental"
	"github.com/corvidsearch/retrieval/persistence"
)

// Engine is the public facade tying the build/query orchestrator
// (engine.Coordinator), the incremental mutation manager
// (incremental.Manager), and the snapshot codec (persistence) together,
// the way the teacher's Vecgo[T] wraps its own coordinator: every call
// here times the operation, logs it, records it to the configured
// MetricsCollector, and translates internal errors into the public
// sentinel kinds before returning.
type Engine struct {
	cfg  config
	coor *engine.Coordinator
	mgr  *incremental.Manager
}

// NewEngine constructs an Engine from the given options. WithEmbedder is
// effectively required: with a nil embedder, every call that reaches the
// embedding step (build, search, add/update) fails with
// ErrEmbeddingFailure.
func NewEngine(opts ...Option) (*Engine, error) {
	cfg := applyOptions(opts)

	coor, err := engine.New(engineConfig(cfg), cfg.embedder)
	if err != nil {
		return nil, internalErrorf("", "constructing coordinator: %s", err)
	}

	e := &Engine{cfg: cfg, coor: coor}
	e.mgr = incremental.New(coordinatorAdapter{coor}, incremental.Thresholds{
		Absolute: cfg.driftAbsolute,
		Fraction: cfg.driftFraction,
	})

	return e, nil
}

func engineConfig(cfg config) engine.Config {
	return engine.Config{
		Dimension:          cfg.embeddingDim,
		HNSWM:              cfg.hnswM,
		HNSWEfConstruction: cfg.hnswEfConstruction,
		HNSWEfSearch:       cfg.hnswEfSearch,
		PQM:                cfg.pqM,
		PQK:                cfg.pqK,
		LSHNumBands:        cfg.lshNumBands,
		LSHRowsPerBand:     cfg.lshRowsPerBand,
		BM25K1:             cfg.bm25K1,
		BM25B:              cfg.bm25B,
		CacheMaxSize:       cfg.cacheMaxSize,
		QueryTimeout:       cfg.queryTimeout,
		ScoringWorkers:     0,
		EmbedQPS:           cfg.embedQPS,
	}
}

// Close releases the Engine's scoring worker pool.
func (e *Engine) Close() {
	e.coor.Close()
}

// BuildIndexes runs the full build pipeline over docs, replacing
// whatever generation (if any) was previously live.
func (e *Engine) BuildIndexes(ctx context.Context, docs []document.Document) (engine.BuildReport, error) {
	start := time.Now()

	if len(docs) == 0 {
		err := validationErrorf("build_indexes: docs must be non-empty")
		e.cfg.logger.Error("build_indexes rejected", "error", err)
		e.cfg.metrics.RecordBuild(time.Since(start), 0, 0, err)
		return engine.BuildReport{}, err
	}

	report, err := e.coor.Build(ctx, docs)
	err = translateError(err)

	e.cfg.metrics.RecordBuild(time.Since(start), report.DocumentsProcessed, report.Failures, err)
	if err != nil {
		e.cfg.logger.Error("build_indexes failed", "error", err, "elapsed", time.Since(start))
		return report, err
	}

	e.cfg.logger.Info("build_indexes completed",
		"documents_processed", report.DocumentsProcessed,
		"failures", report.Failures,
		"elapsed", report.Elapsed,
	)
	return report, nil
}

// Search runs the query pipeline: validate, embed, gather HNSW/LSH
// candidates, filter, fuse-score, rank, hydrate. rawFilter is the raw
// field bag described by §4.6 ("min_experience", "seniority_levels",
// "required_skills", "date_range"); pass nil for no filter.
func (e *Engine) Search(ctx context.Context, queryText string, k int, rawFilter map[string]any) ([]engine.SearchResult, error) {
	start := time.Now()

	if queryText == "" {
		err := validationErrorf("search: query text must be non-empty")
		e.cfg.metrics.RecordSearch(time.Since(start), false, err)
		return nil, err
	}
	if k <= 0 {
		err := validationErrorf("search: num_results must be positive, got %d", k)
		e.cfg.metrics.RecordSearch(time.Since(start), false, err)
		return nil, err
	}

	filter, err := docstore.ParseFilter(rawFilter)
	if err != nil {
		err = validationErrorf("search: %s", err)
		e.cfg.metrics.RecordSearch(time.Since(start), false, err)
		return nil, err
	}

	if e.cfg.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.queryTimeout)
		defer cancel()
	}

	results, err := e.coor.Query(ctx, queryText, k, filter, e.cfg.hnswEfSearch)
	err = translateError(err)

	cacheHit := err == nil && len(results) > 0
	e.cfg.metrics.RecordSearch(time.Since(start), cacheHit, err)

	if err != nil {
		e.cfg.logger.Warn("search failed", "error", err, "query", queryText)
		return nil, err
	}

	e.cfg.logger.Debug("search completed", "query", queryText, "k", k, "results", len(results), "elapsed", time.Since(start))
	return results, nil
}

// AddDocument embeds and inserts a single document into the live
// generation, then checks whether drift now warrants a rebuild.
func (e *Engine) AddDocument(ctx context.Context, doc document.Document) error {
	return e.mutate(ctx, "add", func(ctx context.Context) error {
		return e.mgr.AddDocument(ctx, doc)
	})
}

// UpdateDocument replaces docID's document; an unknown docID is treated
// as an add.
func (e *Engine) UpdateDocument(ctx context.Context, docID string, doc document.Document) error {
	return e.mutate(ctx, "update", func(ctx context.Context) error {
		return e.mgr.UpdateDocument(ctx, core.DocID(docID), doc)
	})
}

// DeleteDocument tombstones docID.
func (e *Engine) DeleteDocument(ctx context.Context, docID string) error {
	return e.mutate(ctx, "delete", func(ctx context.Context) error {
		return e.mgr.DeleteDocument(ctx, core.DocID(docID))
	})
}

func (e *Engine) mutate(ctx context.Context, kind string, fn func(context.Context) error) error {
	start := time.Now()
	err := translateError(fn(ctx))
	e.cfg.metrics.RecordMutation(kind, time.Since(start), err)
	if err != nil {
		e.cfg.logger.Error("document mutation failed", "kind", kind, "error", err)
		return err
	}
	e.cfg.logger.Debug("document mutation completed", "kind", kind, "elapsed", time.Since(start))
	return nil
}

// MaybeRebuild triggers the offline rebuild incremental mutation has
// scheduled, if any; it is a no-op returning a zero BuildReport when no
// rebuild is pending. Callers are expected to invoke this periodically
// out of the request path (§4.7: "schedule an offline rebuild").
func (e *Engine) MaybeRebuild(ctx context.Context) (engine.BuildReport, error) {
	if !e.mgr.ShouldRebuild() {
		return engine.BuildReport{}, nil
	}

	start := time.Now()
	report, err := e.mgr.RunRebuild(ctx)
	err = translateError(err)
	e.cfg.metrics.RecordBuild(time.Since(start), report.DocumentsProcessed, report.Failures, err)
	return engine.BuildReport{DocumentsProcessed: report.DocumentsProcessed, Failures: report.Failures, Elapsed: time.Since(start)}, err
}

// Health reports a snapshot of the current generation per §6's health()
// operation.
func (e *Engine) Health() engine.Health {
	return e.coor.Health()
}

// ApproximateDistance exposes PQ's asymmetric distance for recall
// experiments or reranking callers; it is never consulted by Search
// itself (§4.3/§9).
func (e *Engine) ApproximateDistance(docID string, query []float32) (float32, error) {
	d, err := e.coor.ApproximateDistance(core.DocID(docID), query)
	return d, translateError(err)
}

// Snapshot writes the current generation to dir (or the configured
// WithIndexPath if dir is empty).
func (e *Engine) Snapshot(dir string) error {
	start := time.Now()
	if dir == "" {
		dir = e.cfg.indexPath
	}
	if dir == "" {
		err := validationErrorf("snapshot: no directory given and no WithIndexPath configured")
		e.cfg.metrics.RecordSnapshot(time.Since(start), err)
		return err
	}

	snap, err := e.coor.Snapshot()
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrIndexNotReady, err)
		e.cfg.metrics.RecordSnapshot(time.Since(start), err)
		return err
	}

	err = persistence.Save(dir, snap)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrIndexIO, err)
	}
	e.cfg.metrics.RecordSnapshot(time.Since(start), err)
	if err != nil {
		e.cfg.logger.Error("snapshot failed", "dir", dir, "error", err)
		return err
	}
	e.cfg.logger.Info("snapshot completed", "dir", dir, "elapsed", time.Since(start))
	return nil
}

// Load reads a generation from dir (or the configured WithIndexPath if
// dir is empty) and installs it as current. A partial/corrupt directory
// surfaces as ErrIndexIO rather than partially loading.
func (e *Engine) Load(dir string) error {
	start := time.Now()
	if dir == "" {
		dir = e.cfg.indexPath
	}
	if dir == "" {
		err := validationErrorf("load: no directory given and no WithIndexPath configured")
		e.cfg.metrics.RecordSnapshot(time.Since(start), err)
		return err
	}

	snap, err := persistence.Load(dir)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrIndexIO, err)
		e.cfg.metrics.RecordSnapshot(time.Since(start), err)
		e.cfg.logger.Error("load failed", "dir", dir, "error", err)
		return err
	}

	e.coor.LoadSnapshot(snap)
	e.cfg.metrics.RecordSnapshot(time.Since(start), nil)
	e.cfg.logger.Info("load completed", "dir", dir, "elapsed", time.Since(start))
	return nil
}

// coordinatorAdapter narrows *engine.Coordinator down to the
// incremental.Engine interface, converting engine.Stats/BuildReport to
// their incremental-package equivalents so incremental stays free of an
// import-cycle-prone direct dependency on the engine package's own
// result types.
type coordinatorAdapter struct{ c *engine.Coordinator }

func (a coordinatorAdapter) AddDocument(ctx context.Context, doc document.Document) error {
	return a.c.AddDocument(ctx, doc)
}

func (a coordinatorAdapter) UpdateDocument(ctx context.Context, docID core.DocID, doc document.Document) error {
	return a.c.UpdateDocument(ctx, docID, doc)
}

func (a coordinatorAdapter) DeleteDocument(docID core.DocID) error {
	return a.c.DeleteDocument(docID)
}

func (a coordinatorAdapter) Stats() incremental.Stats {
	s := a.c.Stats()
	return incremental.Stats{CorpusSize: s.CorpusSize, Tombstones: s.Tombstones, UpdatesSinceBuild: s.UpdatesSinceBuild}
}

func (a coordinatorAdapter) Rebuild(ctx context.Context) (incremental.BuildReport, error) {
	r, err := a.c.Rebuild(ctx)
	return incremental.BuildReport{DocumentsProcessed: r.DocumentsProcessed, Failures: r.Failures}, err
}
