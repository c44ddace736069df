package pq

import (
	"bytes"
	"encoding/gob"
)

// gobQuantizer is the on-the-wire shape of a Quantizer. The PRNG is
// deliberately not part of it — a loaded quantizer is always already
// trained, and Train is never called again after a snapshot round-trip.
type gobQuantizer struct {
	Dimension    int
	NumSubspaces int
	NumCentroids int
	SubDim       int
	Codebooks    [][][]float32
	Trained      bool
}

var (
	_ gob.GobEncoder = (*Quantizer)(nil)
	_ gob.GobDecoder = (*Quantizer)(nil)
)

// GobEncode implements gob.GobEncoder.
func (q *Quantizer) GobEncode() ([]byte, error) {
	gq := gobQuantizer{
		Dimension:    q.dimension,
		NumSubspaces: q.numSubspaces,
		NumCentroids: q.numCentroids,
		SubDim:       q.subDim,
		Codebooks:    q.codebooks,
		Trained:      q.trained,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gq); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (q *Quantizer) GobDecode(data []byte) error {
	var gq gobQuantizer
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&gq); err != nil {
		return err
	}

	q.dimension = gq.Dimension
	q.numSubspaces = gq.NumSubspaces
	q.numCentroids = gq.NumCentroids
	q.subDim = gq.SubDim
	q.codebooks = gq.Codebooks
	q.trained = gq.Trained

	return nil
}
