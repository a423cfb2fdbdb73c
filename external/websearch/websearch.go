// Package websearch discovers candidate "web papers" ingestion inputs
// (spec.md §1) via the Brave Search API. Grounded on
// `tool/brave.go`'s BraveSearch tool (same endpoint, same
// X-Subscription-Token header, same query-parameter shape), adapted from a
// LangGraph-agent "tool" (Name/Description/Call(ctx, string) (string,
// error)) into a typed client returning structured results instead of a
// single formatted string, since SPEC_FULL.md's ingestion pipeline needs
// titles/URLs to feed as ingestion candidates, not prose for an LLM tool
// call.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
)

const defaultBaseURL = "https://api.search.brave.com/res/v1/web/search"
const defaultTimeout = 10 * time.Second

// Result is one web search hit.
type Result struct {
	Title       string
	URL         string
	Description string
}

// Client searches the web via the Brave Search API.
type Client struct {
	APIKey     string
	BaseURL    string
	Count      int
	Country    string
	Lang       string
	HTTPClient *http.Client
}

// New constructs a Client with spec §5's default timeout and Brave's
// documented result-count bounds.
func New(apiKey string) *Client {
	return &Client{
		APIKey:     apiKey,
		BaseURL:    defaultBaseURL,
		Count:      10,
		Country:    "US",
		Lang:       "en",
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search returns up to Count web results for query.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	if c.APIKey == "" {
		return nil, kinderr.New(kinderr.ValidationError, "websearch: API key not configured").WithField("api_key")
	}
	count := c.Count
	if count <= 0 {
		count = 10
	}
	if count > 20 {
		count = 20
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", fmt.Sprintf("%d", count))
	if c.Country != "" {
		params.Set("country", c.Country)
	}
	if c.Lang != "" {
		params.Set("search_lang", c.Lang)
	}

	reqURL := fmt.Sprintf("%s?%s", c.BaseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Fatal, err, "websearch: build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.APIKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.TransientIO, err, "websearch: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, kinderr.New(kinderr.RateLimited, "websearch: rate limited by provider").WithRetryAfter(30)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, kinderr.New(kinderr.TransientIO, "websearch: provider returned status %d", resp.StatusCode)
	}

	var parsed braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, kinderr.Wrap(kinderr.Fatal, err, "websearch: decode response")
	}

	results := make([]Result, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Description: r.Description})
	}
	return results, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultTimeout}
}
