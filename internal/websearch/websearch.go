// Package websearch issues domain-constrained queries against the Exa search
// API and normalizes the results for the ranking pipeline.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/psybrarian/psybrarian/internal/domains"
	"github.com/psybrarian/psybrarian/internal/log"
)

// maxResponseSize caps the provider response body (resource exhaustion guard).
const maxResponseSize = 4 << 20

// ErrProvider indicates the search provider returned a non-success response.
// Unlike embedding failures this is surfaced loudly: missing sources
// materially change answer quality and the caller decides whether to proceed
// with zero external sources.
var ErrProvider = errors.New("search provider error")

// Result is a single web search hit. Domain is derived from URL through
// domains.Extract (lowercase, www-stripped).
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Favicon string `json:"favicon,omitempty"`
	Domain  string `json:"domain"`
}

// Searcher is the interface the orchestrator and the guarantee engine
// consume.
type Searcher interface {
	Search(ctx context.Context, query string, includeDomains []string, priority map[string]float64, limit int) ([]Result, error)
}

// Client talks to the Exa /search endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  log.Logger
}

// New creates a Client. timeout bounds each search call; zero means 20s.
func New(baseURL, apiKey string, timeout time.Duration, logger log.Logger) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// searchRequest is the provider wire format.
type searchRequest struct {
	Query               string             `json:"query"`
	NumResults          int                `json:"numResults"`
	IncludeDomains      []string           `json:"includeDomains,omitempty"`
	DomainPriorityHints map[string]float64 `json:"domainPriorityHints,omitempty"`
	Contents            contentOptions     `json:"contents"`
}

type contentOptions struct {
	Text bool `json:"text"`
}

// searchResponse is the provider's result envelope.
type searchResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Text    string `json:"text"`
		Snippet string `json:"snippet"`
		Favicon string `json:"favicon"`
	} `json:"results"`
}

// Search runs one provider query constrained to includeDomains.
//
// Results whose derived domain is not in includeDomains are discarded even
// when the provider returns them; providers have been seen leaking outside
// their own allow-list filter. An empty includeDomains slice means
// unconstrained search and skips the post-filter.
func (c *Client) Search(ctx context.Context, query string, includeDomains []string, priority map[string]float64, limit int) ([]Result, error) {
	payload, err := json.Marshal(searchRequest{
		Query:               query,
		NumResults:          limit,
		IncludeDomains:      includeDomains,
		DomainPriorityHints: priority,
		Contents:            contentOptions{Text: true},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: request timeout: %v", ErrProvider, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrProvider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("search provider returned error",
			"status", resp.StatusCode,
			"body_size", len(body))
		return nil, fmt.Errorf("%w: status %d", ErrProvider, resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrProvider, err)
	}

	allowed := make(map[string]struct{}, len(includeDomains))
	for _, d := range includeDomains {
		allowed[domains.Extract(d)] = struct{}{}
	}

	results := make([]Result, 0, len(parsed.Results))
	dropped := 0
	for _, r := range parsed.Results {
		domain := domains.Extract(r.URL)
		if len(allowed) > 0 {
			if _, ok := allowed[domain]; !ok {
				dropped++
				continue
			}
		}

		snippet := r.Snippet
		if snippet == "" {
			snippet = r.Text
		}
		results = append(results, Result{
			URL:     r.URL,
			Title:   r.Title,
			Snippet: snippet,
			Favicon: r.Favicon,
			Domain:  domain,
		})
	}

	c.logger.Debug("web search complete",
		"query_chars", len(query),
		"returned", len(results),
		"dropped_off_allowlist", dropped)
	return results, nil
}
