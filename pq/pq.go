// Package pq implements product quantization: training a codebook that
// partitions a vector space into M equal-width subspaces with K
// centroids each, encoding vectors to M-byte codes, and computing
// asymmetric distance between a full-precision query and an encoded
// vector via precomputed per-subspace distance tables.
//
// PQ is a reranker and memory-saver only; the engine's final fusion
// score always uses exact cosine on the (small) candidate set, per
// spec §4.3 — nothing in this package ever needs to be exact.
package pq

import (
	"errors"
	"math"
	"math/rand"

	"github.com/corvidsearch/retrieval/vectormath"
)

// ErrNotTrained is returned by Encode/BuildDistanceTable/AdcDistance when
// called before Train.
var ErrNotTrained = errors.New("pq: quantizer is not trained")

// ErrDimensionMismatch is returned when a vector's length does not match
// the configured dimension, or a code's length does not match M.
var ErrDimensionMismatch = errors.New("pq: dimension mismatch")

// Quantizer is a trained-or-untrained product quantizer for vectors of a
// fixed dimension.
type Quantizer struct {
	dimension    int
	numSubspaces int // M
	numCentroids int // K
	subDim       int // dimension / M
	codebooks    [][][]float32
	trained      bool
	rng          *rand.Rand
}

// New creates a quantizer for vectors of dimension, split into M
// subspaces of K centroids each. dimension must be divisible by M, and K
// must fit in a byte (<= 256) since codes are stored as one byte per
// subspace.
func New(dimension, numSubspaces, numCentroids int) (*Quantizer, error) {
	if numSubspaces <= 0 || dimension%numSubspaces != 0 {
		return nil, errors.New("pq: dimension must be divisible by numSubspaces")
	}
	if numCentroids <= 0 || numCentroids > 256 {
		return nil, errors.New("pq: numCentroids must be in (0, 256]")
	}

	return &Quantizer{
		dimension:    dimension,
		numSubspaces: numSubspaces,
		numCentroids: numCentroids,
		subDim:       dimension / numSubspaces,
		codebooks:    make([][][]float32, numSubspaces),
		rng:          rand.New(rand.NewSource(1)),
	}, nil
}

// IsTrained reports whether Train has completed successfully.
func (q *Quantizer) IsTrained() bool { return q.trained }

// NumSubspaces returns M.
func (q *Quantizer) NumSubspaces() int { return q.numSubspaces }

// NumCentroids returns K.
func (q *Quantizer) NumCentroids() int { return q.numCentroids }

// Train runs k-means++ seeding followed by Lloyd iteration independently
// on each of the M subspaces, over the given sample of full vectors.
func (q *Quantizer) Train(vectors [][]float32) error {
	if len(vectors) == 0 {
		return errors.New("pq: no training vectors provided")
	}
	if len(vectors[0]) != q.dimension {
		return ErrDimensionMismatch
	}

	for m := 0; m < q.numSubspaces; m++ {
		start := m * q.subDim
		end := start + q.subDim

		sub := make([][]float32, len(vectors))
		for i, v := range vectors {
			sub[i] = v[start:end]
		}

		q.codebooks[m] = q.kmeans(sub, q.numCentroids, 20)
	}

	q.trained = true
	return nil
}

// Encode returns a per-subspace nearest-centroid index for vector, one
// byte per subspace.
func (q *Quantizer) Encode(vector []float32) ([]byte, error) {
	if !q.trained {
		return nil, ErrNotTrained
	}
	if len(vector) != q.dimension {
		return nil, ErrDimensionMismatch
	}

	codes := make([]byte, q.numSubspaces)
	for m := 0; m < q.numSubspaces; m++ {
		start := m * q.subDim
		sub := vector[start : start+q.subDim]
		codes[m] = byte(q.nearestCentroid(sub, q.codebooks[m]))
	}

	return codes, nil
}

// BuildDistanceTable precomputes, for each subspace, the squared L2
// distance from query's subvector to every centroid in that subspace's
// codebook. The returned table has length M*K; table[m*K+k] is the
// distance from subspace m of query to centroid k.
func (q *Quantizer) BuildDistanceTable(query []float32) ([]float32, error) {
	if !q.trained {
		return nil, ErrNotTrained
	}
	if len(query) != q.dimension {
		return nil, ErrDimensionMismatch
	}

	table := make([]float32, q.numSubspaces*q.numCentroids)
	for m := 0; m < q.numSubspaces; m++ {
		start := m * q.subDim
		sub := query[start : start+q.subDim]
		for k := 0; k < q.numCentroids; k++ {
			table[m*q.numCentroids+k] = vectormath.SquaredL2(sub, q.codebooks[m][k])
		}
	}

	return table, nil
}

// AdcDistance sums the precomputed table entries selected by codes,
// giving the asymmetric distance between the query that produced table
// and the vector that produced codes, without ever reconstructing either
// vector.
func (q *Quantizer) AdcDistance(table []float32, codes []byte) (float32, error) {
	if !q.trained {
		return 0, ErrNotTrained
	}
	if len(codes) != q.numSubspaces {
		return 0, ErrDimensionMismatch
	}

	var dist float32
	for m, c := range codes {
		dist += table[m*q.numCentroids+int(c)]
	}

	return dist, nil
}

// Codebooks returns the trained codebooks, shape [M][K][dimension/M],
// for persistence.
func (q *Quantizer) Codebooks() [][][]float32 { return q.codebooks }

// SetCodebooks installs codebooks loaded from a snapshot and marks the
// quantizer trained.
func (q *Quantizer) SetCodebooks(codebooks [][][]float32) {
	q.codebooks = codebooks
	q.trained = true
}

func (q *Quantizer) nearestCentroid(v []float32, centroids [][]float32) int {
	best := 0
	bestDist := float32(math.MaxFloat32)
	for i, c := range centroids {
		d := vectormath.SquaredL2(v, c)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// kmeans runs k-means++ seeding followed by Lloyd iteration on vectors,
// returning k centroids.
func (q *Quantizer) kmeans(vectors [][]float32, k, maxIters int) [][]float32 {
	dim := len(vectors[0])

	if len(vectors) < k {
		centroids := make([][]float32, k)
		for i := range centroids {
			centroids[i] = make([]float32, dim)
			copy(centroids[i], vectors[i%len(vectors)])
		}
		return centroids
	}

	centroids := make([][]float32, k)
	for i := range centroids {
		centroids[i] = make([]float32, dim)
	}

	first := q.rng.Intn(len(vectors))
	copy(centroids[0], vectors[first])

	minDistSq := make([]float32, len(vectors))
	var sum float32
	for i, v := range vectors {
		d := vectormath.SquaredL2(v, centroids[0])
		minDistSq[i] = d
		sum += d
	}

	for c := 1; c < k; c++ {
		if sum == 0 {
			idx := q.rng.Intn(len(vectors))
			copy(centroids[c], vectors[idx])
			continue
		}

		target := q.rng.Float32() * sum
		var cumsum float32
		chosen := 0
		for i, d := range minDistSq {
			cumsum += d
			if cumsum >= target {
				chosen = i
				break
			}
		}
		copy(centroids[c], vectors[chosen])

		sum = 0
		for i, v := range vectors {
			d := vectormath.SquaredL2(v, centroids[c])
			if d < minDistSq[i] {
				minDistSq[i] = d
			}
			sum += minDistSq[i]
		}
	}

	assignments := make([]int, len(vectors))
	for iter := 0; iter < maxIters; iter++ {
		changed := false
		for i, v := range vectors {
			nearest := q.nearestCentroid(v, centroids)
			if assignments[i] != nearest {
				changed = true
				assignments[i] = nearest
			}
		}
		if !changed {
			break
		}

		counts := make([]int, k)
		sums := make([][]float32, k)
		for i := range sums {
			sums[i] = make([]float32, dim)
		}

		for i, v := range vectors {
			cl := assignments[i]
			counts[cl]++
			for j, val := range v {
				sums[cl][j] += val
			}
		}

		for i := range centroids {
			if counts[i] > 0 {
				for j := range centroids[i] {
					centroids[i][j] = sums[i][j] / float32(counts[i])
				}
			}
		}
	}

	return centroids
}

