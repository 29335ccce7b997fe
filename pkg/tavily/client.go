// Package tavily is a minimal client for the Tavily search API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL     = "https://api.tavily.com"
	defaultSearchDepth = "advanced"
	defaultMaxResults  = 10
)

// Client performs searches against the Tavily API.
type Client interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// SearchRequest is the request body for POST /search.
type SearchRequest struct {
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth,omitempty"`
	Topic          string   `json:"topic,omitempty"`
	Days           int      `json:"days,omitempty"`
	MaxResults     int      `json:"max_results,omitempty"`
	IncludeAnswer  bool     `json:"include_answer,omitempty"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
}

// SearchResponse is the response from POST /search.
type SearchResponse struct {
	Query        string   `json:"query"`
	Answer       string   `json:"answer,omitempty"`
	Results      []Result `json:"results"`
	ResponseTime float64  `json:"response_time"`
}

// Result is a single search hit.
type Result struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
}

// StatusError is returned for non-200 API responses so callers can
// decide which statuses are worth retrying.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tavily: unexpected status %d: %s", e.Code, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithSearchDepth overrides the default search depth ("basic" or "advanced").
func WithSearchDepth(depth string) Option {
	return func(c *httpClient) {
		c.searchDepth = depth
	}
}

// WithMaxResults overrides the default per-query result cap.
func WithMaxResults(n int) Option {
	return func(c *httpClient) {
		c.maxResults = n
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey      string
	baseURL     string
	searchDepth string
	maxResults  int
	http        *http.Client
}

// NewClient creates a Tavily API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		searchDepth: defaultSearchDepth,
		maxResults:  defaultMaxResults,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.SearchDepth == "" {
		req.SearchDepth = c.searchDepth
	}
	if req.MaxResults == 0 {
		req.MaxResults = c.maxResults
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "tavily: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "tavily: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "tavily: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "tavily: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	var result SearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "tavily: unmarshal response")
	}

	return &result, nil
}
