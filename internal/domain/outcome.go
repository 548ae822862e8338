package domain

// KeyPrefix namespaces every Redis key written by querydex.
const KeyPrefix = "querydex:"

// Source identifies which tier satisfied a resolver call.
type Source string

const (
	// SourceExact is a hash-keyed hit in the volatile cache.
	SourceExact Source = "exact"
	// SourceSemantic is a nearest-neighbor hit in the vector index.
	SourceSemantic Source = "semantic"
	// SourceCold is a hit in the durable cache.
	SourceCold Source = "cold"
	// SourceLive is a fresh result from the search provider.
	SourceLive Source = "live"
	// SourceDegraded means no tier could answer; the payload is empty but valid.
	SourceDegraded Source = "degraded"
)

// ResultItem is a single normalized search result. Engine and Score are
// optional provider fields and stay absent when the provider omits them.
type ResultItem struct {
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Content string   `json:"content"`
	Engine  string   `json:"engine,omitempty"`
	Score   *float64 `json:"score,omitempty"`
}

// Payload is the cached unit of search results for one query.
type Payload struct {
	Query   string       `json:"query"`
	Results []ResultItem `json:"results"`
}

// EmptyPayload returns a valid zero-result payload for the given query.
func EmptyPayload(query string) Payload {
	return Payload{Query: query, Results: []ResultItem{}}
}

// Outcome is the tagged result of a resolver call. It is the only value
// crossing the resolver boundary and is immutable once constructed.
type Outcome struct {
	Query   string  `json:"query"`
	Source  Source  `json:"source"`
	Payload Payload `json:"payload"`
}

// Degraded builds the terminal outcome returned when every tier missed or failed.
func Degraded(query string) Outcome {
	return Outcome{Query: query, Source: SourceDegraded, Payload: EmptyPayload(query)}
}

// SemanticHit is one nearest-neighbor match from the vector index.
type SemanticHit struct {
	Query   string
	Payload Payload
	Score   float64
}
