// Package hnsw implements a hierarchical navigable small-world graph
// over cosine distance, returning the approximate k-nearest documents to
// a query embedding.
//
// Ids are the dense core.LocalID space shared with the lsh package;
// nothing in this package ever sees a string document id. Deletion is a
// tombstone — a removed node's connections are left intact so the graph
// stays navigable, and the node is simply filtered out of search
// results. A tombstoned node can still be chosen as a neighbor of a
// newly inserted node.
package hnsw

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"

	"github.com/corvidsearch/retrieval/core"
	"github.com/corvidsearch/retrieval/vectormath"
)

// LocalID is the graph's node identifier; it is always core.LocalID.
type LocalID = core.LocalID

// ErrDimensionMismatch is returned when a vector's length does not match
// the graph's configured dimension.
var ErrDimensionMismatch = errors.New("hnsw: vector dimension mismatch")

// ErrEmptyGraph is returned by Search when no live node has ever been
// inserted.
var ErrEmptyGraph = errors.New("hnsw: graph is empty")

// Options configures graph construction. The zero value is not usable;
// callers should start from DefaultOptions.
type Options struct {
	// M is the base out-degree: layer>0 nodes keep at most M neighbors,
	// layer-0 nodes keep at most 2*M.
	M int
	// EfConstruction is the dynamic candidate list size used while
	// inserting.
	EfConstruction int
	// EfSearch is the default dynamic candidate list size used while
	// searching, overridable per query.
	EfSearch int
	// Heuristic selects the diversity-preferring neighbor selection
	// heuristic over naive closest-M selection.
	Heuristic bool
	// Rand, if set, is used for level sampling. Tests that need
	// deterministic level assignment supply a seeded source.
	Rand *rand.Rand
}

// DefaultOptions returns the spec's defaults: M=16, ef_construction=200,
// ef_search=200, heuristic neighbor selection on.
func DefaultOptions() Options {
	return Options{
		M:              16,
		EfConstruction: 200,
		EfSearch:       200,
		Heuristic:      true,
	}
}

type node struct {
	vector      []float32
	connections [][]LocalID // connections[layer] = neighbor ids at that layer
}

// Graph is a concurrency-safe HNSW index. Reads (Search) take an RLock;
// writes (Insert, Remove) take the full Lock, matching the teacher's
// single-mutex discipline rather than a generation-swap, since HNSW
// mutation here is always driven through the engine's single-writer
// path already.
type Graph struct {
	mu sync.RWMutex

	dimension int
	m         int
	mMax      int
	mMax0     int
	ml        float64

	hasEntry bool
	ep       LocalID
	maxLevel int

	nodes      map[LocalID]*node
	tombstones *roaring.Bitmap

	opts Options
	rng  *rand.Rand
}

// New creates an empty graph for vectors of the given dimension.
func New(dimension int, opts Options) *Graph {
	if opts.M <= 0 {
		opts = DefaultOptions()
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	return &Graph{
		dimension:  dimension,
		m:          opts.M,
		mMax:       opts.M,
		mMax0:      opts.M * 2,
		ml:         1 / math.Log(float64(opts.M)),
		nodes:      make(map[LocalID]*node),
		tombstones: roaring.New(),
		opts:       opts,
		rng:        rng,
	}
}

// Len returns the number of live (non-tombstoned) nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes) - int(g.tombstones.GetCardinality())
}

func (g *Graph) distance(a, b []float32) float32 {
	return vectormath.CosineDistance(a, b)
}

// Insert adds id with the given vector. Safe to call on an empty graph;
// the first insertion becomes the entry point.
func (g *Graph) Insert(id LocalID, vector []float32) error {
	if len(vector) != g.dimension {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, g.dimension, len(vector))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	level := g.randomLevel()
	n := &node{
		vector:      vector,
		connections: make([][]LocalID, level+1),
	}
	g.nodes[id] = n
	g.tombstones.Remove(uint32(id))

	if !g.hasEntry {
		g.hasEntry = true
		g.ep = id
		g.maxLevel = level
		return nil
	}

	ep := g.ep
	curDist := g.distance(vector, g.nodes[ep].vector)

	for l := g.maxLevel; l > level; l-- {
		ep, curDist = g.greedyDescend(vector, ep, curDist, l)
	}

	entryPoints := []Item{{Node: ep, Distance: curDist}}
	for l := min(g.maxLevel, level); l >= 0; l-- {
		candidates := g.searchLayer(vector, entryPoints, g.opts.EfConstruction, l, id)
		mmax := g.mMax
		if l == 0 {
			mmax = g.mMax0
		}

		neighbours := g.selectNeighbours(vector, candidates, mmax)
		g.connect(id, l, neighbours, mmax)

		entryPoints = neighbours
	}

	if level > g.maxLevel {
		g.maxLevel = level
		g.ep = id
	}

	return nil
}

// Remove tombstones id. Its connections are left in place so the graph
// stays navigable; the node is excluded from all future search results,
// but can still be selected as a neighbor of newly inserted nodes.
func (g *Graph) Remove(id LocalID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[id]; ok {
		g.tombstones.Add(uint32(id))
	}
}

// Contains reports whether id is present and not tombstoned.
func (g *Graph) Contains(id LocalID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok && !g.tombstones.Contains(uint32(id))
}

// Search returns the approximate k-nearest live neighbors to query,
// ordered by ascending distance then ascending LocalID. efSearch is
// clamped up to at least k.
func (g *Graph) Search(query []float32, k, efSearch int) ([]Item, error) {
	if len(query) != g.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, g.dimension, len(query))
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.hasEntry {
		return nil, ErrEmptyGraph
	}

	if efSearch < k {
		efSearch = k
	}

	ep := g.ep
	curDist := g.distance(query, g.nodes[ep].vector)

	for l := g.maxLevel; l > 0; l-- {
		ep, curDist = g.greedyDescend(query, ep, curDist, l)
	}

	candidates := g.searchLayer(query, []Item{{Node: ep, Distance: curDist}}, efSearch, 0, core.MaxLocalID)

	live := make([]Item, 0, len(candidates))
	for _, c := range candidates {
		if g.tombstones.Contains(uint32(c.Node)) {
			continue
		}
		live = append(live, c)
	}

	sort.Slice(live, func(i, j int) bool {
		if live[i].Distance != live[j].Distance {
			return live[i].Distance < live[j].Distance
		}
		return live[i].Node < live[j].Node
	})

	if len(live) > k {
		live = live[:k]
	}

	return live, nil
}

// greedyDescend walks layer l from ep towards query, returning the
// closest node found and its distance. It is the single-candidate
// descent used above layer 0.
func (g *Graph) greedyDescend(query []float32, ep LocalID, epDist float32, l int) (LocalID, float32) {
	for {
		improved := false
		for _, nb := range g.layerConnections(ep, l) {
			d := g.distance(query, g.nodes[nb].vector)
			if d < epDist {
				epDist = d
				ep = nb
				improved = true
			}
		}
		if !improved {
			return ep, epDist
		}
	}
}

func (g *Graph) layerConnections(id LocalID, l int) []LocalID {
	n := g.nodes[id]
	if l >= len(n.connections) {
		return nil
	}
	return n.connections[l]
}

// searchLayer runs bounded best-first search at layer l starting from
// entryPoints, with a dynamic candidate list of size ef. skip, if it is
// a valid node id, is excluded from the returned candidates (used during
// insertion so a node never links to itself).
func (g *Graph) searchLayer(query []float32, entryPoints []Item, ef, l int, skip LocalID) []Item {
	visited := bitset.New(uint(len(g.nodes) + 1))
	candidates := NewPriorityQueue(false) // min-heap: closest first
	results := NewPriorityQueue(true)     // max-heap: farthest at top

	for _, ep := range entryPoints {
		candidates.push(ep)
		results.push(ep)
		visited.Set(uint(ep.Node))
	}

	for !candidates.empty() {
		cur := candidates.pop()
		if !results.empty() && cur.Distance > results.top().Distance && results.len() >= ef {
			break
		}

		for _, nb := range g.layerConnections(cur.Node, l) {
			if visited.Test(uint(nb)) {
				continue
			}
			visited.Set(uint(nb))

			d := g.distance(query, g.nodes[nb].vector)
			if results.len() < ef || d < results.top().Distance {
				item := Item{Node: nb, Distance: d}
				candidates.push(item)
				if nb != skip {
					results.push(item)
				}
				if results.len() > ef {
					results.pop()
				}
			}
		}
	}

	out := make([]Item, 0, results.len())
	for !results.empty() {
		out = append(out, results.pop())
	}
	// results came off the max-heap farthest-first; reverse for
	// nearest-first, matching what callers expect from "candidates".
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	return out
}

// selectNeighbours picks up to mmax neighbours for a new node out of
// candidates, using either the diversity-preserving heuristic or plain
// closest-mmax selection.
func (g *Graph) selectNeighbours(query []float32, candidates []Item, mmax int) []Item {
	if !g.opts.Heuristic {
		return g.selectNeighboursSimple(candidates, mmax)
	}
	return g.selectNeighboursHeuristic(query, candidates, mmax)
}

func (g *Graph) selectNeighboursSimple(candidates []Item, mmax int) []Item {
	sorted := append([]Item(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Distance < sorted[j].Distance })
	if len(sorted) > mmax {
		sorted = sorted[:mmax]
	}
	return sorted
}

// selectNeighboursHeuristic implements the classical HNSW diversity
// heuristic: walk candidates nearest-first, and admit one only if it is
// closer to the query than to every neighbour already admitted. This
// avoids clustering all edges on one side of the new node.
func (g *Graph) selectNeighboursHeuristic(query []float32, candidates []Item, mmax int) []Item {
	sorted := append([]Item(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Distance < sorted[j].Distance })

	selected := make([]Item, 0, mmax)
	for _, cand := range sorted {
		if len(selected) >= mmax {
			break
		}

		good := true
		for _, sel := range selected {
			if g.distance(g.nodes[cand.Node].vector, g.nodes[sel.Node].vector) < cand.Distance {
				good = false
				break
			}
		}
		if good {
			selected = append(selected, cand)
		}
	}

	return selected
}

// connect makes id's layer-l connections mutual, trimming any neighbour
// whose own connection list now exceeds mmax back down using the same
// selection strategy.
func (g *Graph) connect(id LocalID, l int, neighbours []Item, mmax int) {
	n := g.nodes[id]
	ids := make([]LocalID, 0, len(neighbours))
	for _, nb := range neighbours {
		ids = append(ids, nb.Node)
	}
	n.connections[l] = ids

	for _, nb := range neighbours {
		other := g.nodes[nb.Node]
		for len(other.connections) <= l {
			other.connections = append(other.connections, nil)
		}
		other.connections[l] = append(other.connections[l], id)

		if len(other.connections[l]) > mmax {
			items := make([]Item, 0, len(other.connections[l]))
			for _, oid := range other.connections[l] {
				items = append(items, Item{Node: oid, Distance: g.distance(other.vector, g.nodes[oid].vector)})
			}
			trimmed := g.selectNeighbours(other.vector, items, mmax)
			trimmedIDs := make([]LocalID, len(trimmed))
			for i, t := range trimmed {
				trimmedIDs[i] = t.Node
			}
			other.connections[l] = trimmedIDs
		}
	}
}

// randomLevel samples a level from a geometric distribution with
// parameter 1/ln(M), per the classical HNSW construction algorithm.
func (g *Graph) randomLevel() int {
	return int(math.Floor(-math.Log(g.rng.Float64()) * g.ml))
}

// Stats summarizes the graph's current shape for health reporting.
type Stats struct {
	Nodes      int
	Tombstoned int
	MaxLevel   int
}

// Stats returns a structured snapshot of the graph's size, matching the
// information the teacher's HNSW prints for diagnostics but returned as
// data instead of being written to stdout.
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return Stats{
		Nodes:      len(g.nodes),
		Tombstoned: int(g.tombstones.GetCardinality()),
		MaxLevel:   g.maxLevel,
	}
}
