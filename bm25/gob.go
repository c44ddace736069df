package bm25

import (
	"bytes"
	"encoding/gob"

	"github.com/corvidsearch/retrieval/core"
)

type gobPosting struct {
	ID    core.LocalID
	Count int
}

// gobIndex is the on-the-wire shape of an Index: the postings map and
// aggregates are copied out verbatim rather than replayed through Add,
// since the original per-document token order isn't recoverable from
// term-frequency counts alone (and isn't needed to reconstruct scores).
type gobIndex struct {
	K1          float64
	B           float64
	Inverted    map[string][]gobPosting
	DocLengths  map[core.LocalID]int
	TotalLength int64
	DocCount    int
}

var (
	_ gob.GobEncoder = (*Index)(nil)
	_ gob.GobDecoder = (*Index)(nil)
)

// GobEncode implements gob.GobEncoder.
func (idx *Index) GobEncode() ([]byte, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	gi := gobIndex{
		K1:          idx.k1,
		B:           idx.b,
		Inverted:    make(map[string][]gobPosting, len(idx.inverted)),
		DocLengths:  make(map[core.LocalID]int, len(idx.docLengths)),
		TotalLength: idx.totalLength,
		DocCount:    idx.docCount,
	}
	for term, postings := range idx.inverted {
		list := make([]gobPosting, len(postings))
		for i, p := range postings {
			list[i] = gobPosting{ID: p.id, Count: p.count}
		}
		gi.Inverted[term] = list
	}
	for id, l := range idx.docLengths {
		gi.DocLengths[id] = l
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gi); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (idx *Index) GobDecode(data []byte) error {
	var gi gobIndex
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&gi); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.k1 = gi.K1
	idx.b = gi.B
	idx.inverted = make(map[string][]posting, len(gi.Inverted))
	for term, list := range gi.Inverted {
		postings := make([]posting, len(list))
		for i, p := range list {
			postings[i] = posting{id: p.ID, count: p.Count}
		}
		idx.inverted[term] = postings
	}
	idx.docLengths = gi.DocLengths
	idx.totalLength = gi.TotalLength
	idx.docCount = gi.DocCount

	return nil
}
