package hnsw

import (
	"bytes"
	"encoding/gob"

	"github.com/RoaringBitmap/roaring/v2"
)

// gobNode mirrors node but only needs to exist so gob has a named type
// to encode/decode through; node itself stays unexported.
type gobNode struct {
	Vector      []float32
	Connections [][]LocalID
}

// gobGraph is the on-the-wire shape of a Graph, used by GobEncode and
// GobDecode below. Roaring bitmaps are flattened to a sorted uint32
// slice rather than relying on roaring's own serialization format,
// keeping the whole snapshot section single-codec.
type gobGraph struct {
	Dimension  int
	M          int
	MMax       int
	MMax0      int
	Ml         float64
	HasEntry   bool
	Ep         LocalID
	MaxLevel   int
	NodeIDs    []LocalID
	Nodes      []gobNode
	Tombstones []uint32

	// Options minus Rand, which gob cannot encode.
	EfConstruction int
	EfSearch       int
	Heuristic      bool
}

var (
	_ gob.GobEncoder = (*Graph)(nil)
	_ gob.GobDecoder = (*Graph)(nil)
)

// GobEncode implements gob.GobEncoder, letting a Graph be embedded
// directly in the persistence codec's section encoding.
func (g *Graph) GobEncode() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	gg := gobGraph{
		Dimension:  g.dimension,
		M:          g.m,
		MMax:       g.mMax,
		MMax0:      g.mMax0,
		Ml:         g.ml,
		HasEntry:   g.hasEntry,
		Ep:         g.ep,
		MaxLevel:   g.maxLevel,
		Tombstones: g.tombstones.ToArray(),

		EfConstruction: g.opts.EfConstruction,
		EfSearch:       g.opts.EfSearch,
		Heuristic:      g.opts.Heuristic,
	}

	gg.NodeIDs = make([]LocalID, 0, len(g.nodes))
	gg.Nodes = make([]gobNode, 0, len(g.nodes))
	for id, n := range g.nodes {
		gg.NodeIDs = append(gg.NodeIDs, id)
		gg.Nodes = append(gg.Nodes, gobNode{Vector: n.vector, Connections: n.connections})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (g *Graph) GobDecode(data []byte) error {
	var gg gobGraph
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&gg); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.dimension = gg.Dimension
	g.m = gg.M
	g.mMax = gg.MMax
	g.mMax0 = gg.MMax0
	g.ml = gg.Ml
	g.hasEntry = gg.HasEntry
	g.ep = gg.Ep
	g.maxLevel = gg.MaxLevel
	g.opts = Options{M: gg.M, EfConstruction: gg.EfConstruction, EfSearch: gg.EfSearch, Heuristic: gg.Heuristic}

	g.nodes = make(map[LocalID]*node, len(gg.NodeIDs))
	for i, id := range gg.NodeIDs {
		g.nodes[id] = &node{vector: gg.Nodes[i].Vector, connections: gg.Nodes[i].Connections}
	}

	g.tombstones = roaring.BitmapOf(gg.Tombstones...)

	return nil
}
