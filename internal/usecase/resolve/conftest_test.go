package resolve

import (
	"context"

	"github.com/kailas-cloud/querydex/internal/domain"
)

// mockExact implements ExactCache for tests.
type mockExact struct {
	getFn func(ctx context.Context, query string) (domain.Payload, error)
	calls int
}

func (m *mockExact) GetExact(ctx context.Context, query string) (domain.Payload, error) {
	m.calls++
	if m.getFn != nil {
		return m.getFn(ctx, query)
	}
	return domain.Payload{}, domain.ErrCacheMiss
}

// mockSemantic implements SemanticIndex for tests.
type mockSemantic struct {
	searchFn    func(ctx context.Context, vector []float32, k int) ([]domain.SemanticHit, error)
	setFn       func(ctx context.Context, query string, payload domain.Payload, embedding []float32) error
	searchCalls int
	setCalls    int
}

func (m *mockSemantic) SearchSimilar(ctx context.Context, vector []float32, k int) ([]domain.SemanticHit, error) {
	m.searchCalls++
	if m.searchFn != nil {
		return m.searchFn(ctx, vector, k)
	}
	return nil, nil
}

func (m *mockSemantic) Set(ctx context.Context, query string, payload domain.Payload, embedding []float32) error {
	m.setCalls++
	if m.setFn != nil {
		return m.setFn(ctx, query, payload, embedding)
	}
	return nil
}

// mockCold implements ColdCache for tests.
type mockCold struct {
	getFn    func(ctx context.Context, query string) (domain.Payload, error)
	setFn    func(ctx context.Context, query string, payload domain.Payload) error
	setCalls int
}

func (m *mockCold) Get(ctx context.Context, query string) (domain.Payload, error) {
	if m.getFn != nil {
		return m.getFn(ctx, query)
	}
	return domain.Payload{}, domain.ErrCacheMiss
}

func (m *mockCold) Set(ctx context.Context, query string, payload domain.Payload) error {
	m.setCalls++
	if m.setFn != nil {
		return m.setFn(ctx, query, payload)
	}
	return nil
}

// mockLive implements LiveProvider for tests.
type mockLive struct {
	fetchFn func(ctx context.Context, query string) (domain.Payload, error)
	calls   int
}

func (m *mockLive) Fetch(ctx context.Context, query string) (domain.Payload, error) {
	m.calls++
	if m.fetchFn != nil {
		return m.fetchFn(ctx, query)
	}
	return domain.EmptyPayload(query), nil
}

// mockEmbedder implements Embedder for tests.
type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
	calls   int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0, 0, 0}}, nil
}
