package retrieval

import (
	"log/slog"
	"time"

	"github.com/corvidsearch/retrieval/embed"
)

// config holds every recognized configuration value from §6: embedding
// width, per-index tuning, cache sizing, rebuild drift thresholds, and
// the ambient logger/metrics/embedder dependencies the engine never
// constructs itself.
type config struct {
	embeddingDim int
	useGPU       bool
	indexPath    string

	cacheMaxSize int

	hnswM              int
	hnswEfConstruction int
	hnswEfSearch       int

	pqM int
	pqK int

	lshNumBands    int
	lshRowsPerBand int

	bm25K1 float64
	bm25B  float64

	driftAbsolute int
	driftFraction float64

	queryTimeout time.Duration
	embedQPS     float64

	embedder embed.Embedder
	logger   *Logger
	metrics  MetricsCollector
}

// Option configures a new Engine. The zero value of config is never
// used directly; NewEngine starts from defaultConfig and applies Options
// on top.
type Option func(*config)

func defaultConfig() config {
	return config{
		embeddingDim:       384,
		cacheMaxSize:       1024,
		hnswM:              16,
		hnswEfConstruction: 200,
		hnswEfSearch:       200,
		pqM:                8,
		pqK:                256,
		lshNumBands:        16,
		lshRowsPerBand:     4,
		bm25K1:             1.5,
		bm25B:              0.75,
		driftAbsolute:      10_000,
		driftFraction:      0.1,
		queryTimeout:       2 * time.Second,
		logger:             NoopLogger(),
		metrics:            NoopMetricsCollector{},
	}
}

// WithEmbeddingDim fixes the vector width. Changing it on a live engine
// requires a rebuild (old embeddings are the wrong length).
func WithEmbeddingDim(dim int) Option {
	return func(c *config) { c.embeddingDim = dim }
}

// WithGPU records whether the embedder the caller supplies routes calls
// to a GPU. The engine never constructs an embedder itself; this value
// is only stored in the configuration, and is neither read by the engine
// nor reported by Health().
func WithGPU(useGPU bool) Option {
	return func(c *config) { c.useGPU = useGPU }
}

// WithIndexPath sets the snapshot directory used by Snapshot/Load when
// called without an explicit path.
func WithIndexPath(path string) Option {
	return func(c *config) { c.indexPath = path }
}

// WithCacheMaxSize bounds the query result LRU cache's entry count.
func WithCacheMaxSize(n int) Option {
	return func(c *config) { c.cacheMaxSize = n }
}

// WithHNSW configures the HNSW graph's M, ef_construction, and default
// ef_search. Pass 0 for any field to keep its default.
func WithHNSW(m, efConstruction, efSearch int) Option {
	return func(c *config) {
		if m > 0 {
			c.hnswM = m
		}
		if efConstruction > 0 {
			c.hnswEfConstruction = efConstruction
		}
		if efSearch > 0 {
			c.hnswEfSearch = efSearch
		}
	}
}

// WithPQ configures the product quantizer's subspace count (M) and
// per-subspace centroid count (K).
func WithPQ(m, k int) Option {
	return func(c *config) {
		if m > 0 {
			c.pqM = m
		}
		if k > 0 {
			c.pqK = k
		}
	}
}

// WithLSH configures the MinHash table's band count and rows per band.
func WithLSH(numBands, rowsPerBand int) Option {
	return func(c *config) {
		if numBands > 0 {
			c.lshNumBands = numBands
		}
		if rowsPerBand > 0 {
			c.lshRowsPerBand = rowsPerBand
		}
	}
}

// WithBM25 configures the k1/b Okapi tuning constants.
func WithBM25(k1, b float64) Option {
	return func(c *config) {
		c.bm25K1 = k1
		c.bm25B = b
	}
}

// WithRebuildThresholds configures the drift_absolute / drift_fraction
// thresholds that trigger maybe_rebuild.
func WithRebuildThresholds(absolute int, fraction float64) Option {
	return func(c *config) {
		c.driftAbsolute = absolute
		c.driftFraction = fraction
	}
}

// WithQueryTimeout sets the hard default query deadline.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithEmbedQPS throttles calls into the configured Embedder to at most
// qps requests per second, covering both build batches and per-query/
// per-mutation embeds. Zero (the default) leaves the embedder
// unthrottled.
func WithEmbedQPS(qps float64) Option {
	return func(c *config) { c.embedQPS = qps }
}

// WithEmbedder supplies the Embedder used by build and query. Required:
// the engine treats embedding as a pure external function per §1.
func WithEmbedder(e embed.Embedder) Option {
	return func(c *config) { c.embedder = e }
}

// WithLogger configures structured logging for operations. Pass nil to
// disable logging.
func WithLogger(logger *Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithLogLevel is a convenience wrapper for
// WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(c *config) { c.logger = NewTextLogger(level) }
}

// WithMetricsCollector configures a metrics collector. Pass nil to
// disable collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(c *config) { c.metrics = mc }
}

func applyOptions(optFns []Option) config {
	c := defaultConfig()
	for _, fn := range optFns {
		if fn != nil {
			fn(&c)
		}
	}
	if c.logger == nil {
		c.logger = NoopLogger()
	}
	if c.metrics == nil {
		c.metrics = NoopMetricsCollector{}
	}
	return c
}
