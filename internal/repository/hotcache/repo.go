// Package hotcache stores query payloads in the volatile backend. One
// keyspace serves two read paths: exact lookup by query hash and
// nearest-neighbor lookup over the embedding field.
package hotcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/querydex/internal/db"
	"github.com/kailas-cloud/querydex/internal/domain"
)

const (
	keyPrefix = domain.KeyPrefix + "queries:"
	indexName = keyPrefix + "idx"

	fieldQuery     = "query"
	fieldPayload   = "payload_json"
	fieldCreatedAt = "created_at"
	fieldEmbedding = "embedding"
)

// store is the consumer interface for hot-cache operations (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo implements the exact and semantic tiers of the resolver.
type Repo struct {
	store store
	dim   int
	ttl   time.Duration
}

// New creates a hot-cache repository. dim is the embedding dimension every
// stored vector must match; ttl bounds entry lifetime and is enforced by
// the backend.
func New(s store, dim int, ttl time.Duration) *Repo {
	return &Repo{store: s, dim: dim, ttl: ttl}
}

// EnsureIndex creates the vector index if it does not exist. Safe to call on
// every startup: an already-existing index is not an error. A backend without
// the search module surfaces db.ErrSearchUnsupported to the caller.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def := &db.IndexDefinition{
		Name:        indexName,
		StorageType: db.StorageHash,
		Prefixes:    []string{keyPrefix},
		Fields: []db.IndexField{
			{Name: fieldQuery, Type: db.IndexFieldText},
			{Name: fieldCreatedAt, Type: db.IndexFieldNumeric},
			{
				Name:           fieldEmbedding,
				Type:           db.IndexFieldVector,
				VectorAlgo:     db.VectorFlat,
				VectorDim:      r.dim,
				VectorDistance: db.DistanceCosine,
			},
		},
	}

	err := r.store.CreateIndex(ctx, def)
	if err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("ensure index %s: %w", indexName, err)
	}
	return nil
}

// GetExact returns the cached payload for an exact (post-trim) query match.
// Returns domain.ErrCacheMiss when no live entry exists.
func (r *Repo) GetExact(ctx context.Context, query string) (domain.Payload, error) {
	key := queryKey(query)

	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return domain.Payload{}, domain.ErrCacheMiss
	}

	payload, err := parsePayload(fields[fieldPayload])
	if err != nil {
		return domain.Payload{}, fmt.Errorf("parse payload %s: %w", key, err)
	}
	return payload, nil
}

// Set writes a payload with its embedding and refreshes the entry TTL.
// Last write wins for concurrent writers of the same query.
func (r *Repo) Set(ctx context.Context, query string, payload domain.Payload, embedding []float32) error {
	if len(embedding) != r.dim {
		return fmt.Errorf("embedding dim %d, want %d: %w",
			len(embedding), r.dim, domain.ErrVectorDimMismatch)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	key := queryKey(query)
	fields := map[string]string{
		fieldQuery:     strings.TrimSpace(query),
		fieldPayload:   string(data),
		fieldCreatedAt: strconv.FormatInt(time.Now().Unix(), 10),
		fieldEmbedding: string(db.VectorToBytes(embedding)),
	}

	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	if r.ttl > 0 {
		if err := r.store.Expire(ctx, key, r.ttl); err != nil {
			return fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return nil
}

// SearchSimilar returns up to k nearest neighbors of the given vector,
// ordered by descending similarity.
func (r *Repo) SearchSimilar(ctx context.Context, vector []float32, k int) ([]domain.SemanticHit, error) {
	if len(vector) != r.dim {
		return nil, fmt.Errorf("query vector dim %d, want %d: %w",
			len(vector), r.dim, domain.ErrVectorDimMismatch)
	}

	q := &db.KNNQuery{
		IndexName:    indexName,
		Vector:       vector,
		K:            k,
		ReturnFields: []string{fieldQuery, fieldPayload},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", indexName, err)
	}
	return parseHits(sr)
}

// parseHits converts db.SearchResult into []domain.SemanticHit, skipping
// entries whose payload no longer parses.
func parseHits(sr *db.SearchResult) ([]domain.SemanticHit, error) {
	if sr == nil || sr.Total == 0 {
		return nil, nil
	}

	hits := make([]domain.SemanticHit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		payload, err := parsePayload(entry.Fields[fieldPayload])
		if err != nil {
			continue
		}
		hits = append(hits, domain.SemanticHit{
			Query:   entry.Fields[fieldQuery],
			Payload: payload,
			Score:   entry.Score,
		})
	}
	return hits, nil
}

func parsePayload(raw string) (domain.Payload, error) {
	if raw == "" {
		return domain.Payload{}, errors.New("empty payload field")
	}
	var p domain.Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.Payload{}, err
	}
	return p, nil
}

// queryKey derives the entry key from the trimmed query text.
func queryKey(query string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(query)))
	return keyPrefix + hex.EncodeToString(sum[:])
}
