package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/corvidsearch/retrieval/cache"
	"github.com/corvidsearch/retrieval/core"
	"github.com/corvidsearch/retrieval/docstore"
	"github.com/corvidsearch/retrieval/document"
	"github.com/corvidsearch/retrieval/embed"
	"github.com/corvidsearch/retrieval/hnsw"
	"github.com/corvidsearch/retrieval/lsh"
	"github.com/corvidsearch/retrieval/vectormath"
)

// ErrNotReady is returned by Query when no generation has been built or
// loaded yet.
var ErrNotReady = errors.New("engine: index not ready")

// ErrEmbedding wraps an embedder failure.
var ErrEmbedding = errors.New("engine: embedding failure")

// Coordinator owns the current generation and every pipeline that reads
// or mutates it. A single sync.Mutex serializes mutation commits
// (grounded on the teacher's engine.Coordinator lock discipline);
// readers load the current generation through an atomic pointer
// (grounded on the teacher's engine.current atomic.Pointer[snapshot]
// pattern), so a query never observes a partially-built generation.
type Coordinator struct {
	cfg      Config
	embedder embed.Embedder

	writeMu sync.Mutex
	cur     atomic.Pointer[generation]

	cache        *cache.QueryCache[[]SearchResult]
	pool         *ants.PoolWithFunc
	embedLimiter *rate.Limiter
}

// New creates a Coordinator with no generation loaded; Build or
// LoadSnapshot must run before Query succeeds. A nil embedder is replaced
// by one whose every call fails, so embedding steps return ErrEmbedding.
func New(cfg Config, embedder embed.Embedder) (*Coordinator, error) {
	if embedder == nil {
		embedder = missingEmbedder{}
	}

	workers := cfg.ScoringWorkers
	if workers <= 0 {
		workers = 8
	}

	limit := rate.Inf
	if cfg.EmbedQPS > 0 {
		limit = rate.Limit(cfg.EmbedQPS)
	}

	c := &Coordinator{
		cfg:          cfg,
		embedder:     embedder,
		cache:        cache.New[[]SearchResult](cfg.CacheMaxSize),
		embedLimiter: rate.NewLimiter(limit, 1),
	}

	pool, err := ants.NewPoolWithFunc(workers, c.scoreWorker)
	if err != nil {
		return nil, fmt.Errorf("engine: creating scoring pool: %w", err)
	}
	c.pool = pool

	return c, nil
}

// missingEmbedder stands in for a nil Embedder.
type missingEmbedder struct{}

func (missingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("no embedder configured")
}

func (missingEmbedder) Dimension() int { return 0 }

// Close releases the scoring pool's goroutines.
func (c *Coordinator) Close() {
	c.pool.Release()
}

func (c *Coordinator) hnswOptions() hnsw.Options {
	opts := hnsw.DefaultOptions()
	opts.M = c.cfg.HNSWM
	opts.EfConstruction = c.cfg.HNSWEfConstruction
	opts.EfSearch = c.cfg.HNSWEfSearch
	return opts
}

func (c *Coordinator) lshConfig() lsh.Config {
	return lsh.Config{NumBands: c.cfg.LSHNumBands, RowsPerBand: c.cfg.LSHRowsPerBand}
}

// Generation returns the currently-loaded generation, or nil if none has
// been built or loaded yet. Exported for package-internal test fixtures
// only — external callers observe generation state through Health,
// Stats, Snapshot, and Query.
func (c *Coordinator) Generation() *generation { return c.cur.Load() }

// Build runs the full build pipeline over docs (§4.5 steps 1-5) and
// installs the result as the current generation. Documents for which
// embedding or tokenization fails are skipped; the build succeeds as
// long as at least one document was indexed.
func (c *Coordinator) Build(ctx context.Context, docs []document.Document) (BuildReport, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	start := time.Now()

	gen := newGeneration(c.cfg.Dimension, c.hnswOptions(), c.lshConfig(), c.cfg.BM25K1, c.cfg.BM25B, c.cfg.PQM, c.cfg.PQK)

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.CanonicalText()
	}

	if err := c.embedLimiter.Wait(ctx); err != nil {
		return BuildReport{}, err
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return BuildReport{}, fmt.Errorf("%w: %s", ErrEmbedding, err)
	}
	if len(vectors) != len(docs) {
		return BuildReport{}, fmt.Errorf("%w: embedder returned %d vectors for %d documents", ErrEmbedding, len(vectors), len(docs))
	}

	// Insert in deterministic doc-id order (§4.5 step 5: "stable
	// builds") rather than input order, so two builds over the same
	// corpus always produce the same HNSW graph regardless of batch
	// ordering.
	order := make([]int, len(docs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return docs[order[i]].ID < docs[order[j]].ID })

	var processed, failures int
	sampleVectors := make([][]float32, 0, len(docs))

	for _, i := range order {
		if ctx.Err() != nil {
			return BuildReport{}, ctx.Err()
		}

		doc := docs[i]
		vec := vectors[i]
		if len(vec) != c.cfg.Dimension {
			failures++
			continue
		}

		lid, _ := gen.registry.Ensure(doc.ID)
		normalized := vectormath.NormalizeL2Copy(vec)

		if err := gen.graph.Insert(lid, normalized); err != nil {
			gen.registry.Release(doc.ID)
			failures++
			continue
		}

		gen.documents[lid] = doc
		gen.embeddings[lid] = normalized
		gen.docs.Put(lid, toMetadataRecord(doc))
		gen.bm25.Add(lid, document.Tokenize(doc.CanonicalText()))
		gen.lsh.Add(lid, doc.TokenSet())

		sampleVectors = append(sampleVectors, normalized)
		processed++
	}

	if processed == 0 {
		return BuildReport{Failures: failures, Elapsed: time.Since(start)}, fmt.Errorf("%w: no documents indexed", ErrEmbedding)
	}

	// §4.5 step 4: train PQ on a uniform sample sized max(K*40, 10_000)
	// when available, else the whole corpus, then encode every vector.
	// Strides evenly across the doc-id-sorted insertion order instead of
	// truncating, so the codebook is seeded from across the whole corpus
	// rather than just its lexicographically-first documents; the stride
	// (not a random draw) keeps the build deterministic across runs.
	target := c.cfg.PQK * 40
	if target < 10_000 {
		target = 10_000
	}
	trainSet := sampleVectors
	if len(trainSet) > target {
		trainSet = make([][]float32, target)
		stride := float64(len(sampleVectors)) / float64(target)
		for i := range trainSet {
			trainSet[i] = sampleVectors[int(float64(i)*stride)]
		}
	}
	if err := gen.pq.Train(trainSet); err == nil {
		for lid, vec := range gen.embeddings {
			if code, encErr := gen.pq.Encode(vec); encErr == nil {
				gen.pqCodes[lid] = code
			}
		}
	}

	c.cur.Store(gen)
	c.cache.Purge()

	return BuildReport{DocumentsProcessed: processed, Failures: failures, Elapsed: time.Since(start)}, nil
}

// Query runs the query pipeline (§4.5 steps 1-8) against the current
// generation.
func (c *Coordinator) Query(ctx context.Context, queryText string, k int, filter docstore.Filter, efSearch int) ([]SearchResult, error) {
	gen := c.cur.Load()
	if gen == nil {
		return nil, ErrNotReady
	}

	fingerprint := fmt.Sprintf("%s\x00%d\x00%s", queryText, k, filter.Fingerprint())
	if cached, ok := c.cache.Get(fingerprint); ok {
		return cached, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if err := c.embedLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	vectors, err := c.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEmbedding, err)
	}
	queryVec := vectormath.NormalizeL2Copy(vectors[0])

	queryTokenList := document.Tokenize(queryText)
	queryTokenSet := make(map[string]struct{}, len(queryTokenList))
	for _, t := range queryTokenList {
		queryTokenSet[t] = struct{}{}
	}

	if efSearch <= 0 {
		efSearch = c.cfg.HNSWEfSearch
	}

	candidateSet := make(map[core.LocalID]struct{})
	if gen.graph.Len() > 0 {
		hits, err := gen.graph.Search(queryVec, efSearch, efSearch)
		if err != nil && !errors.Is(err, hnsw.ErrEmptyGraph) {
			return nil, err
		}
		for _, h := range hits {
			candidateSet[h.Node] = struct{}{}
		}
	}
	for _, id := range lsh.SortedCandidateIDs(gen.lsh.Candidates(queryTokenSet)) {
		candidateSet[id] = struct{}{}
	}

	results, err := c.scoreCandidates(ctx, gen, candidateSet, queryVec, queryTokenList, queryTokenSet, filter, k)
	if err != nil {
		return nil, err
	}

	c.cache.Put(fingerprint, results)
	return results, nil
}

// scoreTask is the unit of work submitted to the ants pool: one
// candidate scored against one query, under one generation.
type scoreTask struct {
	id          core.LocalID
	gen         *generation
	filter      docstore.Filter
	queryVec    []float32
	queryTokens []string
	querySet    map[string]struct{}
	done        chan struct{}

	out Candidate
	ok  bool
}

func (c *Coordinator) scoreWorker(payload any) {
	t := payload.(*scoreTask)
	defer close(t.done)

	if !t.gen.graph.Contains(t.id) {
		return
	}

	rec, ok := t.gen.docs.Get(t.id)
	if !ok || !t.filter.Matches(rec) {
		return
	}

	t.gen.mapsMu.RLock()
	vec, ok := t.gen.embeddings[t.id]
	t.gen.mapsMu.RUnlock()
	if !ok {
		return
	}

	cos := float64(vectormath.CosineSimilarity(t.queryVec, vec))
	bmScore := t.gen.bm25.Score(t.queryTokens, t.id)
	jac := t.gen.lsh.Jaccard(t.querySet, t.id)

	t.out = Candidate{
		ID:    t.id,
		Cos:   cos,
		BM25:  bmScore,
		Jac:   jac,
		Score: 0.6*cos + 0.3*bmScore + 0.1*jac,
	}
	t.ok = true
}

func (c *Coordinator) scoreCandidates(ctx context.Context, gen *generation, candidateSet map[core.LocalID]struct{}, queryVec []float32, queryTokens []string, querySet map[string]struct{}, filter docstore.Filter, k int) ([]SearchResult, error) {
	tasks := make([]*scoreTask, 0, len(candidateSet))
	for id := range candidateSet {
		tasks = append(tasks, &scoreTask{
			id:          id,
			gen:         gen,
			filter:      filter,
			queryVec:    queryVec,
			queryTokens: queryTokens,
			querySet:    querySet,
			done:        make(chan struct{}),
		})
	}

	for _, t := range tasks {
		if err := c.pool.Invoke(t); err != nil {
			close(t.done)
			return nil, fmt.Errorf("engine: submitting scoring task: %w", err)
		}
	}

	candidates := make([]Candidate, 0, len(tasks))
	for i, t := range tasks {
		select {
		case <-t.done:
		case <-ctx.Done():
			// Every task up to i has already completed; the rest were
			// submitted to the pool, so wait for each of them to finish
			// before returning, and discard their results.
			for _, rest := range tasks[i:] {
				<-rest.done
			}
			return nil, ctx.Err()
		}
		if t.ok {
			candidates = append(candidates, t.out)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	candidates = candidates[:k]

	out := make([]SearchResult, len(candidates))
	for i, cnd := range candidates {
		docID, _ := gen.registry.DocOf(cnd.ID)
		rec, _ := gen.docs.Get(cnd.ID)
		out[i] = SearchResult{
			DocID:     docID,
			Score:     cnd.Score,
			Cos:       cnd.Cos,
			BM25:      cnd.BM25,
			Jac:       cnd.Jac,
			Hydration: rec.Hydration,
		}
	}

	return out, nil
}
