package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Brave searches the web via the Brave Search API.
type Brave struct {
	apiKey  string
	count   int
	baseURL string
	client  *http.Client
}

// NewBrave creates a Brave Search provider returning up to count results.
func NewBrave(apiKey string, count int) *Brave {
	if count <= 0 {
		count = 10
	}
	if count > 20 {
		count = 20
	}
	return &Brave{
		apiKey:  apiKey,
		count:   count,
		baseURL: "https://api.search.brave.com/res/v1/web/search",
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type braveResponse struct {
	Web braveWeb `json:"web"`
}

type braveWeb struct {
	Results []braveResult `json:"results"`
}

type braveResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

func (b *Brave) Search(ctx context.Context, query string) ([]string, error) {
	u, _ := url.Parse(b.baseURL)
	q := u.Query()
	q.Set("q", query)
	q.Set("count", fmt.Sprintf("%d", b.count))
	u.RawQuery = q.Encode()

	body, err := get(ctx, b.client, u.String(), http.Header{
		"Accept":               {"application/json"},
		"X-Subscription-Token": {b.apiKey},
	})
	if err != nil {
		return nil, fmt.Errorf("brave: %w", err)
	}

	var result braveResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("brave: parse response: %w", err)
	}

	urls := make([]string, 0, len(result.Web.Results))
	for _, r := range result.Web.Results {
		urls = append(urls, r.URL)
	}
	return dedupe(urls), nil
}
