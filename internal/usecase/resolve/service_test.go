package resolve

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/db"
	"github.com/kailas-cloud/querydex/internal/domain"
)

func payloadFor(query, title string) domain.Payload {
	return domain.Payload{Query: query, Results: []domain.ResultItem{{Title: title, URL: "http://x", Content: "c"}}}
}

func newService(exact *mockExact, semantic *mockSemantic, cold *mockCold, live *mockLive, emb *mockEmbedder, opts Options) *Service {
	if exact == nil {
		exact = &mockExact{}
	}
	if semantic == nil {
		semantic = &mockSemantic{}
	}
	if cold == nil {
		cold = &mockCold{}
	}
	if live == nil {
		live = &mockLive{}
	}
	if emb == nil {
		emb = &mockEmbedder{}
	}
	return New(exact, semantic, cold, live, emb, opts, zap.NewNop())
}

func TestSearch_EmptyQuery(t *testing.T) {
	live := &mockLive{}
	s := newService(nil, nil, nil, live, nil, Options{})

	for _, q := range []string{"", "   ", "\t\n"} {
		out := s.Search(context.Background(), q)
		if out.Source != domain.SourceDegraded {
			t.Errorf("source for %q = %q, expected degraded", q, out.Source)
		}
		if len(out.Payload.Results) != 0 {
			t.Errorf("expected empty payload for %q", q)
		}
	}
	if live.calls != 0 {
		t.Errorf("provider must not be called for empty queries, calls = %d", live.calls)
	}
}

func TestSearch_ExactHit(t *testing.T) {
	exact := &mockExact{
		getFn: func(ctx context.Context, query string) (domain.Payload, error) {
			return payloadFor(query, "cached"), nil
		},
	}
	semantic := &mockSemantic{}
	live := &mockLive{}
	s := newService(exact, semantic, nil, live, nil, Options{})

	out := s.Search(context.Background(), "climate ethics")
	if out.Source != domain.SourceExact {
		t.Fatalf("source = %q, expected exact", out.Source)
	}
	if out.Query != "climate ethics" {
		t.Errorf("query = %q", out.Query)
	}
	if semantic.searchCalls != 0 || live.calls != 0 {
		t.Error("later tiers must not run after an exact hit")
	}
}

func TestSearch_SemanticHit(t *testing.T) {
	semantic := &mockSemantic{
		searchFn: func(ctx context.Context, vector []float32, k int) ([]domain.SemanticHit, error) {
			if k != 3 {
				t.Errorf("k = %d, expected default 3", k)
			}
			return []domain.SemanticHit{
				{Query: "climate morality", Payload: payloadFor("climate morality", "near"), Score: 0.92},
			}, nil
		},
	}
	live := &mockLive{}
	s := newService(nil, semantic, nil, live, nil, Options{})

	out := s.Search(context.Background(), "climate ethics")
	if out.Source != domain.SourceSemantic {
		t.Fatalf("source = %q, expected semantic", out.Source)
	}
	// The outcome carries the caller's query; the payload is the neighbor's.
	if out.Query != "climate ethics" {
		t.Errorf("outcome query = %q", out.Query)
	}
	if out.Payload.Query != "climate morality" {
		t.Errorf("payload query = %q", out.Payload.Query)
	}
	if live.calls != 0 {
		t.Error("provider must not be called after a semantic hit")
	}
}

func TestSearch_MinScoreRejectsWeakHit(t *testing.T) {
	semantic := &mockSemantic{
		searchFn: func(ctx context.Context, vector []float32, k int) ([]domain.SemanticHit, error) {
			return []domain.SemanticHit{{Query: "other", Payload: payloadFor("other", "weak"), Score: 0.3}}, nil
		},
	}
	cold := &mockCold{
		getFn: func(ctx context.Context, query string) (domain.Payload, error) {
			return payloadFor(query, "cold"), nil
		},
	}
	s := newService(nil, semantic, cold, nil, nil, Options{MinScore: 0.8})

	out := s.Search(context.Background(), "q")
	if out.Source != domain.SourceCold {
		t.Errorf("source = %q, expected cold after weak semantic hit", out.Source)
	}
}

func TestSearch_ZeroMinScoreAcceptsTopHit(t *testing.T) {
	semantic := &mockSemantic{
		searchFn: func(ctx context.Context, vector []float32, k int) ([]domain.SemanticHit, error) {
			return []domain.SemanticHit{{Query: "other", Payload: payloadFor("other", "weak"), Score: 0.01}}, nil
		},
	}
	s := newService(nil, semantic, nil, nil, nil, Options{})

	out := s.Search(context.Background(), "q")
	if out.Source != domain.SourceSemantic {
		t.Errorf("source = %q, expected semantic with zero threshold", out.Source)
	}
}

func TestSearch_ColdHit(t *testing.T) {
	cold := &mockCold{
		getFn: func(ctx context.Context, query string) (domain.Payload, error) {
			return payloadFor(query, "cold"), nil
		},
	}
	live := &mockLive{}
	s := newService(nil, nil, cold, live, nil, Options{})

	out := s.Search(context.Background(), "q")
	if out.Source != domain.SourceCold {
		t.Fatalf("source = %q, expected cold", out.Source)
	}
	if live.calls != 0 {
		t.Error("provider must not be called after a cold hit")
	}
}

func TestSearch_LiveHitWritesBack(t *testing.T) {
	fresh := payloadFor("q", "fresh")
	live := &mockLive{
		fetchFn: func(ctx context.Context, query string) (domain.Payload, error) {
			return fresh, nil
		},
	}
	var hotQuery string
	var hotVec []float32
	semantic := &mockSemantic{
		setFn: func(ctx context.Context, query string, payload domain.Payload, embedding []float32) error {
			hotQuery = query
			hotVec = embedding
			return nil
		},
	}
	cold := &mockCold{}
	emb := &mockEmbedder{}
	s := newService(nil, semantic, cold, live, emb, Options{})

	out := s.Search(context.Background(), "q")
	if out.Source != domain.SourceLive {
		t.Fatalf("source = %q, expected live", out.Source)
	}
	if cold.setCalls != 1 {
		t.Errorf("cold write-backs = %d, expected 1", cold.setCalls)
	}
	if semantic.setCalls != 1 || hotQuery != "q" {
		t.Errorf("hot write-backs = %d (query %q), expected 1", semantic.setCalls, hotQuery)
	}
	if emb.calls != 1 {
		t.Errorf("embed calls = %d, expected the probe embedding to be reused", emb.calls)
	}
	if len(hotVec) != 4 {
		t.Errorf("written embedding = %v", hotVec)
	}
}

func TestSearch_WriteBackFailureIsAbsorbed(t *testing.T) {
	live := &mockLive{
		fetchFn: func(ctx context.Context, query string) (domain.Payload, error) {
			return payloadFor(query, "fresh"), nil
		},
	}
	semantic := &mockSemantic{
		setFn: func(ctx context.Context, query string, payload domain.Payload, embedding []float32) error {
			return errors.New("hot write failed")
		},
	}
	cold := &mockCold{
		setFn: func(ctx context.Context, query string, payload domain.Payload) error {
			return errors.New("cold write failed")
		},
	}
	s := newService(nil, semantic, cold, live, nil, Options{})

	out := s.Search(context.Background(), "q")
	if out.Source != domain.SourceLive {
		t.Errorf("write-back failures must not change the outcome, source = %q", out.Source)
	}
}

func TestSearch_AllTiersFail(t *testing.T) {
	exact := &mockExact{
		getFn: func(ctx context.Context, query string) (domain.Payload, error) {
			return domain.Payload{}, errors.New("redis down")
		},
	}
	semantic := &mockSemantic{
		searchFn: func(ctx context.Context, vector []float32, k int) ([]domain.SemanticHit, error) {
			return nil, errors.New("redis down")
		},
	}
	cold := &mockCold{
		getFn: func(ctx context.Context, query string) (domain.Payload, error) {
			return domain.Payload{}, errors.New("disk error")
		},
	}
	live := &mockLive{
		fetchFn: func(ctx context.Context, query string) (domain.Payload, error) {
			return domain.Payload{}, domain.ErrProviderUnavailable
		},
	}
	s := newService(exact, semantic, cold, live, nil, Options{})

	out := s.Search(context.Background(), "q")
	if out.Source != domain.SourceDegraded {
		t.Fatalf("source = %q, expected degraded", out.Source)
	}
	if out.Payload.Results == nil || len(out.Payload.Results) != 0 {
		t.Errorf("degraded payload must be empty but valid, got %+v", out.Payload)
	}
}

func TestSearch_EmbedderFailureSkipsSemantic(t *testing.T) {
	emb := &mockEmbedder{
		embedFn: func(ctx context.Context, text string) (domain.EmbeddingResult, error) {
			return domain.EmbeddingResult{}, errors.New("embedder down")
		},
	}
	semantic := &mockSemantic{}
	cold := &mockCold{
		getFn: func(ctx context.Context, query string) (domain.Payload, error) {
			return payloadFor(query, "cold"), nil
		},
	}
	s := newService(nil, semantic, cold, nil, emb, Options{})

	out := s.Search(context.Background(), "q")
	if out.Source != domain.SourceCold {
		t.Fatalf("source = %q, expected cold", out.Source)
	}
	if semantic.searchCalls != 0 {
		t.Error("semantic search must be skipped without an embedding")
	}
}

func TestSearch_UnsupportedDisablesSemanticTier(t *testing.T) {
	semantic := &mockSemantic{
		searchFn: func(ctx context.Context, vector []float32, k int) ([]domain.SemanticHit, error) {
			return nil, &db.Error{Op: db.OpSearch, Err: db.ErrSearchUnsupported}
		},
	}
	cold := &mockCold{
		getFn: func(ctx context.Context, query string) (domain.Payload, error) {
			return payloadFor(query, "cold"), nil
		},
	}
	s := newService(nil, semantic, cold, nil, nil, Options{})
	ctx := context.Background()

	_ = s.Search(ctx, "first")
	_ = s.Search(ctx, "second")
	_ = s.Search(ctx, "third")

	if semantic.searchCalls != 1 {
		t.Errorf("semantic probes = %d, expected 1 (tier disabled after unsupported)", semantic.searchCalls)
	}
}

func TestSearch_SemanticDownStillWritesHotCache(t *testing.T) {
	semantic := &mockSemantic{
		searchFn: func(ctx context.Context, vector []float32, k int) ([]domain.SemanticHit, error) {
			return nil, db.ErrSearchUnsupported
		},
	}
	live := &mockLive{
		fetchFn: func(ctx context.Context, query string) (domain.Payload, error) {
			return payloadFor(query, "fresh"), nil
		},
	}
	s := newService(nil, semantic, nil, live, nil, Options{})

	out := s.Search(context.Background(), "q")
	if out.Source != domain.SourceLive {
		t.Fatalf("source = %q", out.Source)
	}
	// The hash entry still serves the exact tier even without the search module.
	if semantic.setCalls != 1 {
		t.Errorf("hot write-backs = %d, expected 1", semantic.setCalls)
	}
}

func TestSearch_TrimsQuery(t *testing.T) {
	var got string
	exact := &mockExact{
		getFn: func(ctx context.Context, query string) (domain.Payload, error) {
			got = query
			return payloadFor(query, "hit"), nil
		},
	}
	s := newService(exact, nil, nil, nil, nil, Options{})

	out := s.Search(context.Background(), "  climate ethics \n")
	if got != "climate ethics" {
		t.Errorf("tier saw %q, expected trimmed query", got)
	}
	if out.Query != "climate ethics" {
		t.Errorf("outcome query = %q", out.Query)
	}
}

func TestResolveAll(t *testing.T) {
	exact := &mockExact{
		getFn: func(ctx context.Context, query string) (domain.Payload, error) {
			return payloadFor(query, query), nil
		},
	}
	s := newService(exact, nil, nil, nil, nil, Options{MaxParallel: 2})

	queries := []string{"alpha", "beta", "gamma"}
	outcomes := s.ResolveAll(context.Background(), queries)

	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	for i, q := range queries {
		if outcomes[i].Query != q {
			t.Errorf("outcomes[%d].Query = %q, expected %q (input order)", i, outcomes[i].Query, q)
		}
		if outcomes[i].Source != domain.SourceExact {
			t.Errorf("outcomes[%d].Source = %q", i, outcomes[i].Source)
		}
	}
}

func TestResolveAll_MixedOutcomes(t *testing.T) {
	live := &mockLive{
		fetchFn: func(ctx context.Context, query string) (domain.Payload, error) {
			return domain.Payload{}, domain.ErrProviderUnavailable
		},
	}
	s := newService(nil, nil, nil, live, nil, Options{})

	outcomes := s.ResolveAll(context.Background(), []string{"q", ""})
	if outcomes[0].Source != domain.SourceDegraded {
		t.Errorf("outcomes[0].Source = %q", outcomes[0].Source)
	}
	if outcomes[1].Source != domain.SourceDegraded {
		t.Errorf("outcomes[1].Source = %q", outcomes[1].Source)
	}
}
