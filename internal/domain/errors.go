package domain

import "errors"

var (
	// ErrCacheMiss signals that a tier has no entry for the query.
	// The resolver treats it as a clean miss and moves to the next tier.
	ErrCacheMiss = errors.New("cache miss")
	// ErrEmptyQuery signals an empty or whitespace-only query.
	ErrEmptyQuery = errors.New("empty query")
	// ErrVectorDimMismatch signals an embedding whose length disagrees with
	// the configured dimension.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrProviderUnavailable signals that the live search provider failed
	// (network error, timeout, non-2xx status, or malformed response).
	ErrProviderUnavailable = errors.New("search provider unavailable")
)
