package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"sentinel/internal/adapters/config"
	"sentinel/internal/metrics"
	"sentinel/pkg/errors"
)

const defaultSerperURL = "https://google.serper.dev"

// Kind selects the search endpoint
type Kind string

const (
	KindSearch Kind = "search"
	KindNews   Kind = "news"
)

// Recency narrows results to a trailing window
type Recency string

const (
	RecencyAny   Recency = ""
	RecencyDay   Recency = "d"
	RecencyWeek  Recency = "w"
	RecencyMonth Recency = "m"
	RecencyYear  Recency = "y"
)

// Query is one search request
type Query struct {
	Text    string
	Count   int
	Recency Recency
	Kind    Kind
}

// Client is the search-service collaborator. Results come back as formatted
// text suitable for inclusion in a completion prompt.
type Client interface {
	Search(ctx context.Context, q Query) (string, error)
}

// SerperClient implements Client against the Serper Google Search API
type SerperClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Ensure SerperClient implements Client
var _ Client = (*SerperClient)(nil)

// NewSerperClient creates a Serper search client
func NewSerperClient(cfg config.SearchConfig) *SerperClient {
	return &SerperClient{
		apiKey:     cfg.SerperKey,
		baseURL:    defaultSerperURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.ReqPerMinute/60.0), 2),
	}
}

// WithBaseURL overrides the API endpoint, used in tests
func (c *SerperClient) WithBaseURL(url string) *SerperClient {
	c.baseURL = url
	return c
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
	TBS string `json:"tbs,omitempty"`
}

type serperResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Date    string `json:"date,omitempty"`
	Source  string `json:"source,omitempty"`
}

type serperResponse struct {
	Organic []serperResult `json:"organic"`
	News    []serperResult `json:"news"`
}

// Search executes a query and returns results formatted as prompt text
func (c *SerperClient) Search(ctx context.Context, q Query) (string, error) {
	if c.apiKey == "" {
		return "", errors.Wrap(errors.ErrInvalidInput, "serper API key not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}

	kind := q.Kind
	if kind == "" {
		kind = KindSearch
	}

	count := q.Count
	if count <= 0 {
		count = 10
	}
	if count > 100 {
		count = 100 // API limit
	}

	apiReq := serperRequest{Q: q.Text, Num: count}
	if q.Recency != RecencyAny {
		apiReq.TBS = "qdr:" + string(q.Recency)
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return "", errors.Wrap(err, "marshal serper request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/"+string(kind), bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "create HTTP request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordSearch(string(kind), err)
		return "", errors.Wrap(err, "send serper request")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read serper response")
	}

	if resp.StatusCode != http.StatusOK {
		err := errors.Wrapf(errors.ErrExternal, "serper API error (%d): %s", resp.StatusCode, string(respBody))
		metrics.RecordSearch(string(kind), err)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
			return "", errors.Wrapf(errors.ErrQuotaExceeded, "serper API error (%d)", resp.StatusCode)
		}
		return "", err
	}

	var apiResp serperResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", errors.Wrap(err, "unmarshal serper response")
	}

	metrics.RecordSearch(string(kind), nil)

	if kind == KindNews {
		return formatNewsResults(q.Text, apiResp.News), nil
	}
	return formatSearchResults(q.Text, apiResp.Organic), nil
}

func formatSearchResults(query string, results []serperResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search Results for: %q\n", query)
	b.WriteString(strings.Repeat("=", 50))

	for i, r := range results {
		fmt.Fprintf(&b, "\n\n%d. %s\n", i+1, r.Title)
		fmt.Fprintf(&b, "   URL: %s\n", r.Link)
		fmt.Fprintf(&b, "   Description: %s", r.Snippet)
	}
	return b.String()
}

func formatNewsResults(query string, results []serperResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "News Results for: %q\n", query)
	b.WriteString(strings.Repeat("=", 50))

	for i, r := range results {
		fmt.Fprintf(&b, "\n\n%d. %s\n", i+1, r.Title)
		fmt.Fprintf(&b, "   Source: %s\n", r.Source)
		fmt.Fprintf(&b, "   Date: %s\n", r.Date)
		fmt.Fprintf(&b, "   URL: %s\n", r.Link)
		fmt.Fprintf(&b, "   Summary: %s", r.Snippet)
	}
	return b.String()
}
