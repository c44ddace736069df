package docstore

import (
	"bytes"
	"encoding/gob"

	"github.com/corvidsearch/retrieval/core"
)

type gobStore struct {
	IDs     []core.LocalID
	Records []Record
}

var (
	_ gob.GobEncoder = (*Store)(nil)
	_ gob.GobDecoder = (*Store)(nil)
)

// GobEncode implements gob.GobEncoder.
func (s *Store) GobEncode() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gs := gobStore{
		IDs:     make([]core.LocalID, 0, len(s.records)),
		Records: make([]Record, 0, len(s.records)),
	}
	for id, r := range s.records {
		gs.IDs = append(gs.IDs, id)
		gs.Records = append(gs.Records, r)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (s *Store) GobDecode(data []byte) error {
	var gs gobStore
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&gs); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[core.LocalID]Record, len(gs.IDs))
	for i, id := range gs.IDs {
		s.records[id] = gs.Records[i]
	}

	return nil
}
