package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/db"
	"github.com/kailas-cloud/querydex/internal/domain"
)

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{
		result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}, TotalTokens: 5},
	}
	var storedKey string
	var storedVal []byte
	var storedTTL time.Duration
	kv := &mockKVStore{
		getFn: func(ctx context.Context, key string) ([]byte, error) {
			return nil, db.ErrKeyNotFound
		},
		setWithTTLFn: func(ctx context.Context, key string, value []byte, ttl time.Duration) error {
			storedKey = key
			storedVal = value
			storedTTL = ttl
			return nil
		},
	}

	c := New(inner, kv, time.Hour, nil, zap.NewNop())
	result, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if result.TotalTokens != 5 {
		t.Errorf("TotalTokens = %d, expected 5 on a miss", result.TotalTokens)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, expected 1", inner.calls)
	}
	if !strings.HasPrefix(storedKey, "querydex:emb_cache:") {
		t.Errorf("cache key = %q", storedKey)
	}
	if len(storedVal) != 8 {
		t.Errorf("stored value length = %d, expected 8", len(storedVal))
	}
	if storedTTL != time.Hour {
		t.Errorf("ttl = %v, expected 1h", storedTTL)
	}
}

func TestEmbed_CacheHit(t *testing.T) {
	inner := &mockEmbedder{
		result: domain.EmbeddingResult{Embedding: []float32{9, 9}, TotalTokens: 100},
	}
	kv := &mockKVStore{
		getFn: func(ctx context.Context, key string) ([]byte, error) {
			return db.VectorToBytes([]float32{0.5, 0.25}), nil
		},
	}

	c := New(inner, kv, time.Hour, nil, zap.NewNop())
	result, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if inner.calls != 0 {
		t.Errorf("inner must not be called on a hit, calls = %d", inner.calls)
	}
	if result.TotalTokens != 0 {
		t.Errorf("TotalTokens = %d, expected 0 on a hit", result.TotalTokens)
	}
	if len(result.Embedding) != 2 || result.Embedding[0] != 0.5 {
		t.Errorf("embedding = %v", result.Embedding)
	}
}

func TestEmbed_CorruptEntryFallsThrough(t *testing.T) {
	inner := &mockEmbedder{
		result: domain.EmbeddingResult{Embedding: []float32{0.1}},
	}
	kv := &mockKVStore{
		getFn: func(ctx context.Context, key string) ([]byte, error) {
			return []byte{1, 2, 3}, nil // not a multiple of 4
		},
	}

	c := New(inner, kv, time.Hour, nil, zap.NewNop())
	if _, err := c.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected fall-through to inner, calls = %d", inner.calls)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("api down")}
	kv := &mockKVStore{
		getFn: func(ctx context.Context, key string) ([]byte, error) {
			return nil, db.ErrKeyNotFound
		},
	}

	c := New(inner, kv, time.Hour, nil, zap.NewNop())
	if _, err := c.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected inner error to propagate")
	}
}

func TestEmbed_ZeroTTLUsesPlainSet(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}}}
	plainSet := false
	kv := &mockKVStore{
		getFn: func(ctx context.Context, key string) ([]byte, error) {
			return nil, db.ErrKeyNotFound
		},
		setFn: func(ctx context.Context, key string, value []byte) error {
			plainSet = true
			return nil
		},
		setWithTTLFn: func(ctx context.Context, key string, value []byte, ttl time.Duration) error {
			t.Error("SetWithTTL must not be called with zero ttl")
			return nil
		},
	}

	c := New(inner, kv, 0, nil, zap.NewNop())
	if _, err := c.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if !plainSet {
		t.Error("expected Set to be used for zero ttl")
	}
}

func TestCacheKey_TrimsText(t *testing.T) {
	c := New(&mockEmbedder{}, &mockKVStore{}, 0, nil, zap.NewNop())
	if c.cacheKey("hello") != c.cacheKey("  hello \n") {
		t.Error("padded text should share the trimmed text's cache key")
	}
}

func TestEmbed_StoreWriteErrorIsNonFatal(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}}}
	kv := &mockKVStore{
		getFn: func(ctx context.Context, key string) ([]byte, error) {
			return nil, db.ErrKeyNotFound
		},
		setWithTTLFn: func(ctx context.Context, key string, value []byte, ttl time.Duration) error {
			return errors.New("write failed")
		},
	}

	c := New(inner, kv, time.Hour, nil, zap.NewNop())
	result, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("cache write failure must not fail Embed: %v", err)
	}
	if len(result.Embedding) != 1 {
		t.Errorf("embedding = %v", result.Embedding)
	}
}
