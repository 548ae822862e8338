// Package resolve orchestrates the tiered lookup: exact cache, semantic
// index, cold cache, live provider. Each tier failure is absorbed at the
// tier boundary; a resolver call always produces an Outcome and never an
// error.
package resolve

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/querydex/internal/db"
	"github.com/kailas-cloud/querydex/internal/domain"
	"github.com/kailas-cloud/querydex/internal/metrics"
)

// Options tunes the resolver.
type Options struct {
	// KNNK is the neighbor count for the semantic probe.
	KNNK int
	// MinScore gates acceptance of the best semantic neighbor. Zero accepts
	// the top hit unconditionally.
	MinScore float64
	// MaxParallel bounds concurrent queries inside ResolveAll.
	MaxParallel int
}

// Service is the hybrid resolver.
type Service struct {
	exact    ExactCache
	semantic SemanticIndex
	cold     ColdCache
	live     LiveProvider
	embed    Embedder

	knnK        int
	minScore    float64
	maxParallel int
	logger      *zap.Logger

	// semanticDown flips when the backend reports the search module is
	// missing; the semantic tier is then skipped for the process lifetime.
	semanticDown atomic.Bool
}

// New creates a resolver service.
func New(
	exact ExactCache,
	semantic SemanticIndex,
	cold ColdCache,
	live LiveProvider,
	embed Embedder,
	opts Options,
	logger *zap.Logger,
) *Service {
	if opts.KNNK <= 0 {
		opts.KNNK = 3
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 3
	}
	return &Service{
		exact:       exact,
		semantic:    semantic,
		cold:        cold,
		live:        live,
		embed:       embed,
		knnK:        opts.KNNK,
		minScore:    opts.MinScore,
		maxParallel: opts.MaxParallel,
		logger:      logger,
	}
}

// Search resolves one query through the tiers in order and returns the first
// hit, tagged with its source. Every tier failure is treated as a miss; when
// all tiers fail the outcome is degraded with an empty payload.
func (s *Service) Search(ctx context.Context, query string) domain.Outcome {
	query = strings.TrimSpace(query)
	if query == "" {
		metrics.ResolverRequestsTotal.WithLabelValues(string(domain.SourceDegraded)).Inc()
		return domain.Degraded(query)
	}

	if payload, ok := s.tryExact(ctx, query); ok {
		return s.outcome(query, domain.SourceExact, payload)
	}

	// The embedding survives the semantic probe so a later live hit can be
	// written back without recomputing it.
	embedding := s.tryEmbed(ctx, query)

	if payload, ok := s.trySemantic(ctx, embedding); ok {
		return s.outcome(query, domain.SourceSemantic, payload)
	}

	if payload, ok := s.tryCold(ctx, query); ok {
		return s.outcome(query, domain.SourceCold, payload)
	}

	payload, err := s.fetchLive(ctx, query)
	if err != nil {
		s.logger.Warn("All tiers failed, degrading",
			zap.String("query", query), zap.Error(err))
		metrics.ResolverRequestsTotal.WithLabelValues(string(domain.SourceDegraded)).Inc()
		return domain.Degraded(query)
	}

	s.writeBack(ctx, query, payload, embedding)
	return s.outcome(query, domain.SourceLive, payload)
}

// ResolveAll resolves queries concurrently with a bounded worker pool and
// returns outcomes in input order. Like Search, it never returns an error.
func (s *Service) ResolveAll(ctx context.Context, queries []string) []domain.Outcome {
	outcomes := make([]domain.Outcome, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)
	for i, q := range queries {
		g.Go(func() error {
			outcomes[i] = s.Search(gctx, q)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (s *Service) outcome(query string, source domain.Source, payload domain.Payload) domain.Outcome {
	metrics.ResolverRequestsTotal.WithLabelValues(string(source)).Inc()
	return domain.Outcome{Query: query, Source: source, Payload: payload}
}

func (s *Service) tryExact(ctx context.Context, query string) (domain.Payload, bool) {
	start := time.Now()
	payload, err := s.exact.GetExact(ctx, query)
	metrics.ResolverTierDuration.WithLabelValues("exact").Observe(time.Since(start).Seconds())

	if err == nil {
		return payload, true
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		metrics.ResolverTierFailuresTotal.WithLabelValues("exact").Inc()
		s.logger.Warn("Exact tier failed", zap.String("query", query), zap.Error(err))
	}
	return domain.Payload{}, false
}

// tryEmbed computes the query embedding; nil means the embedder failed and
// both the semantic probe and the write-back are skipped this call.
func (s *Service) tryEmbed(ctx context.Context, query string) []float32 {
	res, err := s.embed.Embed(ctx, query)
	if err != nil {
		metrics.ResolverTierFailuresTotal.WithLabelValues("semantic").Inc()
		s.logger.Warn("Embedding failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	return res.Embedding
}

func (s *Service) trySemantic(ctx context.Context, embedding []float32) (domain.Payload, bool) {
	if embedding == nil || s.semanticDown.Load() {
		return domain.Payload{}, false
	}

	start := time.Now()
	hits, err := s.semantic.SearchSimilar(ctx, embedding, s.knnK)
	metrics.ResolverTierDuration.WithLabelValues("semantic").Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, db.ErrSearchUnsupported) {
			if s.semanticDown.CompareAndSwap(false, true) {
				s.logger.Info("Search module unavailable, semantic tier disabled")
			}
		} else {
			metrics.ResolverTierFailuresTotal.WithLabelValues("semantic").Inc()
			s.logger.Warn("Semantic tier failed", zap.Error(err))
		}
		return domain.Payload{}, false
	}

	if len(hits) == 0 {
		return domain.Payload{}, false
	}
	best := hits[0]
	if s.minScore > 0 && best.Score < s.minScore {
		return domain.Payload{}, false
	}
	return best.Payload, true
}

func (s *Service) tryCold(ctx context.Context, query string) (domain.Payload, bool) {
	start := time.Now()
	payload, err := s.cold.Get(ctx, query)
	metrics.ResolverTierDuration.WithLabelValues("cold").Observe(time.Since(start).Seconds())

	if err == nil {
		return payload, true
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		metrics.ResolverTierFailuresTotal.WithLabelValues("cold").Inc()
		s.logger.Warn("Cold tier failed", zap.String("query", query), zap.Error(err))
	}
	return domain.Payload{}, false
}

func (s *Service) fetchLive(ctx context.Context, query string) (domain.Payload, error) {
	start := time.Now()
	payload, err := s.live.Fetch(ctx, query)
	metrics.ResolverTierDuration.WithLabelValues("live").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ResolverTierFailuresTotal.WithLabelValues("live").Inc()
		return domain.Payload{}, err
	}
	return payload, nil
}

// writeBack persists a live payload into both caches. Best effort: a lost
// cache write must never fail the caller's search.
func (s *Service) writeBack(ctx context.Context, query string, payload domain.Payload, embedding []float32) {
	if err := s.cold.Set(ctx, query, payload); err != nil {
		s.logger.Warn("Cold write-back failed", zap.String("query", query), zap.Error(err))
	}

	// The hot write serves the exact tier too, so it happens even when the
	// semantic tier is disabled. It only needs a vector to store.
	if embedding == nil {
		return
	}
	if err := s.semantic.Set(ctx, query, payload, embedding); err != nil {
		s.logger.Warn("Hot write-back failed", zap.String("query", query), zap.Error(err))
	}
}
