package resolve

import (
	"context"

	"github.com/kailas-cloud/querydex/internal/domain"
)

// ExactCache answers exact (post-trim) query lookups in the volatile cache.
type ExactCache interface {
	GetExact(ctx context.Context, query string) (domain.Payload, error)
}

// SemanticIndex answers nearest-neighbor lookups and accepts write-backs.
type SemanticIndex interface {
	SearchSimilar(ctx context.Context, vector []float32, k int) ([]domain.SemanticHit, error)
	Set(ctx context.Context, query string, payload domain.Payload, embedding []float32) error
}

// ColdCache is the durable fallback cache.
type ColdCache interface {
	Get(ctx context.Context, query string) (domain.Payload, error)
	Set(ctx context.Context, query string, payload domain.Payload) error
}

// LiveProvider fetches fresh results from the search backend.
type LiveProvider interface {
	Fetch(ctx context.Context, query string) (domain.Payload, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
