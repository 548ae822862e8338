// Package embedder turns text into fixed-dimension, unit-normalized vectors.
//
// Two modes exist: a deterministic hash-derived mode with no external
// dependencies, and a model-backed mode that encodes via an embedding API.
// The model client is constructed at most once per Provider instance, on
// first use; if construction or encoding fails, the call transparently falls
// back to the deterministic mode. Embed never fails and never blocks the
// caller on a broken model.
package embedder

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
	"github.com/kailas-cloud/querydex/internal/metrics"
)

// Provider resolves which embedding mode serves a call.
type Provider struct {
	dim      int
	fallback *HashEmbedder
	logger   *zap.Logger

	// Model-backed mode. construct runs under once; a nil construct means
	// deterministic-only operation.
	construct func() (domain.Embedder, error)
	once      sync.Once
	model     domain.Embedder
}

// Option configures a Provider.
type Option func(*Provider)

// WithModel enables the model-backed mode. construct is invoked lazily on
// first use, at most once per Provider, even under concurrent first calls.
func WithModel(construct func() (domain.Embedder, error)) Option {
	return func(p *Provider) {
		p.construct = construct
	}
}

// WithLogger sets the logger. Default is zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// New creates an embedding provider of the given dimension.
func New(dim int, opts ...Option) *Provider {
	p := &Provider{
		dim:      dim,
		fallback: NewHashEmbedder(dim),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dim returns the configured vector dimension.
func (p *Provider) Dim() int { return p.dim }

// Embed implements domain.Embedder. It is total: any model failure is
// absorbed and the deterministic mode answers instead.
func (p *Provider) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if p.construct == nil {
		return p.fallback.Embed(ctx, text)
	}

	p.once.Do(func() {
		model, err := p.construct()
		if err != nil {
			p.logger.Warn("Embedding model unavailable, using deterministic mode", zap.Error(err))
			return
		}
		p.model = model
	})

	if p.model == nil {
		metrics.EmbeddingFallbacksTotal.Inc()
		return p.fallback.Embed(ctx, text)
	}

	res, err := p.model.Embed(ctx, text)
	if err != nil {
		p.logger.Warn("Embedding encode failed, using deterministic mode", zap.Error(err))
		metrics.EmbeddingFallbacksTotal.Inc()
		return p.fallback.Embed(ctx, text)
	}

	res.Embedding = Normalize(res.Embedding)
	return res, nil
}
