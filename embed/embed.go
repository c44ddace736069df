// Package embed defines the Embedder interface the engine treats the
// embedding model through, per §1's "embedding model itself is out of
// scope" — the engine never constructs one, only calls one the caller
// supplies. It also provides a rate-limited wrapper and a deterministic
// test double.
package embed

import (
	"context"
	"fmt"
	"hash/fnv"

	"golang.org/x/time/rate"

	"github.com/corvidsearch/retrieval/document"
	"github.com/corvidsearch/retrieval/vectormath"
)

// Embedder maps a batch of texts to a batch of equal-dimension vectors,
// one per input text, in order. Implementations must be safe for
// concurrent use — the engine shares a single Embedder across build and
// query traffic.
type Embedder interface {
	// Embed returns one vector per entry in texts, preserving order.
	// Implementations should return an error rather than a
	// shorter-than-input result on partial failure, so the caller can
	// attribute the failure rather than silently misaligning vectors to
	// documents.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed width of vectors this embedder
	// produces.
	Dimension() int
}

// RateLimited wraps an Embedder with a requests-per-second budget, so a
// burst of single-document add_document calls cannot overwhelm a
// batched embedder that expects calls to be spaced out.
type RateLimited struct {
	inner   Embedder
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with a token-bucket limiter allowing rps
// calls per second with the given burst.
func NewRateLimited(inner Embedder, rps float64, burst int) *RateLimited {
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Embed waits for the rate limiter before delegating to inner.Embed. It
// returns ctx's cancellation error if the wait is interrupted.
func (r *RateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embed: rate limit wait: %w", err)
	}
	return r.inner.Embed(ctx, texts)
}

// Dimension delegates to inner.
func (r *RateLimited) Dimension() int { return r.inner.Dimension() }

// Static is a deterministic test double built on the feature-hashing
// trick (as in Vowpal Wabbit / scikit-learn's HashingVectorizer): each
// token hashes to a dimension and a sign, so two texts sharing
// vocabulary land closer in cosine space than two that don't, without
// needing a real model. It is not a semantic embedder — shared tokens
// drive similarity, not meaning — but that is enough to exercise fusion
// scoring and ranking in tests deterministically.
type Static struct {
	dim int
}

// NewStatic creates a Static embedder producing vectors of dim.
func NewStatic(dim int) *Static {
	return &Static{dim: dim}
}

// Dimension returns the configured dimension.
func (s *Static) Dimension() int { return s.dim }

// Embed hashes each text's token set into a unit-normalized vector.
func (s *Static) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = hashVector(text, s.dim)
	}
	return out, nil
}

// hashVector builds a feature-hashed vector: every token in text
// contributes +1 or -1 (chosen by a second hash bit) to one dimension,
// and the result is L2-normalized so cosine similarity reduces to
// (weighted) token overlap between two texts.
func hashVector(text string, dim int) []float32 {
	v := make([]float32, dim)
	for _, tok := range document.Tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()

		idx := int(sum % uint64(dim))
		sign := float32(1)
		if (sum>>1)&1 == 1 {
			sign = -1
		}
		v[idx] += sign
	}
	return vectormath.NormalizeL2Copy(v)
}
