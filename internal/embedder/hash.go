package embedder

import (
	"context"
	"math"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/kailas-cloud/querydex/internal/domain"
)

// HashEmbedder derives a reproducible pseudo-random unit vector from a
// BLAKE2b hash of the text. Identical text and dimension always produce
// bit-identical output, so the whole pipeline can run and be tested without
// a model dependency.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a deterministic embedder of the given dimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 384
	}
	return &HashEmbedder{dim: dim}
}

// Dim returns the configured vector dimension.
func (e *HashEmbedder) Dim() int { return e.dim }

// Embed implements domain.Embedder. It is total: empty or whitespace-only
// text yields the all-zero vector; everything else yields a unit vector.
func (e *HashEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: e.embed(text)}, nil
}

func (e *HashEmbedder) embed(text string) []float32 {
	v := make([]float32, e.dim)
	s := strings.TrimSpace(text)
	if s == "" {
		return v
	}

	data := []byte(s)
	h := blake2b.Sum256(data)

	var seed uint64
	for i := 0; i < 8; i++ {
		seed |= uint64(h[i]) << (8 * i)
	}

	// LCG walk over the input bytes scatters +/-1 counts across buckets.
	for _, b := range data {
		seed = seed*6364136223846793005 + 1 + uint64(b)
		idx := int(seed % uint64(e.dim))
		if seed>>63 == 0 {
			v[idx]++
		} else {
			v[idx]--
		}
	}

	return Normalize(v)
}

// Normalize scales v to unit L2 norm in place and returns it.
// The all-zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
