// Package searxng fetches fresh results from a SearXNG instance's JSON API.
package searxng

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
)

// Config holds SearXNG client settings.
type Config struct {
	BaseURL        string
	Language       string
	SafeSearch     int
	MaxResults     int
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// Client talks to one SearXNG instance.
type Client struct {
	baseURL    string
	language   string
	safeSearch int
	maxResults int
	httpClient *http.Client
	logger     *zap.Logger
}

// searxResponse mirrors the subset of the SearXNG JSON response we consume.
type searxResponse struct {
	Results []struct {
		Title   string   `json:"title"`
		URL     string   `json:"url"`
		Content string   `json:"content"`
		Engine  string   `json:"engine"`
		Score   *float64 `json:"score"`
	} `json:"results"`
}

// New creates a SearXNG client. The connect timeout bounds dialing only;
// the request timeout bounds the whole round trip including body read.
func New(cfg *Config) *Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		language:   cfg.Language,
		safeSearch: cfg.SafeSearch,
		maxResults: cfg.MaxResults,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				DialContext:         dialer.DialContext,
				MaxIdleConnsPerHost: 4,
			},
		},
		logger: cfg.Logger,
	}
}

// Fetch runs a live search. Any transport failure, non-2xx status, or
// malformed body is wrapped with domain.ErrProviderUnavailable so the
// caller can treat the provider as a single failure class.
func (c *Client) Fetch(ctx context.Context, query string) (domain.Payload, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	if c.language != "" {
		params.Set("language", c.language)
	}
	params.Set("safesearch", strconv.Itoa(c.safeSearch))

	reqURL := c.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("build request: %w: %w", domain.ErrProviderUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("searxng request: %w: %w", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Payload{}, fmt.Errorf("searxng status %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	}

	var parsed searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.Payload{}, fmt.Errorf("decode searxng response: %w: %w", domain.ErrProviderUnavailable, err)
	}

	return c.buildPayload(query, &parsed), nil
}

// buildPayload normalizes and truncates the raw response.
func (c *Client) buildPayload(query string, resp *searxResponse) domain.Payload {
	limit := len(resp.Results)
	if c.maxResults > 0 && limit > c.maxResults {
		limit = c.maxResults
	}

	items := make([]domain.ResultItem, 0, limit)
	for _, r := range resp.Results[:limit] {
		items = append(items, domain.ResultItem{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Engine:  r.Engine,
			Score:   r.Score,
		})
	}

	return domain.Payload{Query: query, Results: items}
}
