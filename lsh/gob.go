package lsh

import (
	"bytes"
	"encoding/gob"
	"sort"

	"github.com/corvidsearch/retrieval/core"
)

// gobTable is the on-the-wire shape of a Table. Band posting lists are
// never serialized directly — they're a pure function of cfg and the
// per-document token sets, so GobDecode rebuilds them the same way Add
// would, which also keeps the wire format agnostic to any future change
// in how bands are keyed.
type gobTable struct {
	Cfg    Config
	IDs    []core.LocalID
	Tokens [][]string
}

var (
	_ gob.GobEncoder = (*Table)(nil)
	_ gob.GobDecoder = (*Table)(nil)
)

// GobEncode implements gob.GobEncoder.
func (t *Table) GobEncode() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	gt := gobTable{Cfg: t.cfg}
	gt.IDs = make([]core.LocalID, 0, len(t.tokens))
	for id := range t.tokens {
		gt.IDs = append(gt.IDs, id)
	}
	sort.Slice(gt.IDs, func(i, j int) bool { return gt.IDs[i] < gt.IDs[j] })

	gt.Tokens = make([][]string, len(gt.IDs))
	for i, id := range gt.IDs {
		toks := t.tokens[id]
		list := make([]string, 0, len(toks))
		for tok := range toks {
			list = append(list, tok)
		}
		gt.Tokens[i] = list
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (t *Table) GobDecode(data []byte) error {
	var gt gobTable
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&gt); err != nil {
		return err
	}

	fresh := New(gt.Cfg)
	for i, id := range gt.IDs {
		set := make(map[string]struct{}, len(gt.Tokens[i]))
		for _, tok := range gt.Tokens[i] {
			set[tok] = struct{}{}
		}
		fresh.Add(id, set)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg = fresh.cfg
	t.seeds = fresh.seeds
	t.bands = fresh.bands
	t.tokens = fresh.tokens

	return nil
}
