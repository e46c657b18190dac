package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Google queries a Programmable Search Engine through the Custom Search
// JSON API. The API returns at most 10 results per request.
type Google struct {
	apiKey  string
	cx      string
	num     int
	baseURL string
	client  *http.Client
}

// NewGoogle creates a Custom Search provider for engine cx.
func NewGoogle(apiKey, cx string, num int) *Google {
	if num <= 0 || num > 10 {
		num = 10
	}
	return &Google{
		apiKey:  apiKey,
		cx:      cx,
		num:     num,
		baseURL: "https://www.googleapis.com/customsearch/v1",
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type googleResponse struct {
	Items []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
	} `json:"items"`
}

func (g *Google) Search(ctx context.Context, query string) ([]string, error) {
	u, _ := url.Parse(g.baseURL)
	q := u.Query()
	q.Set("key", g.apiKey)
	q.Set("cx", g.cx)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(g.num))
	u.RawQuery = q.Encode()

	body, err := get(ctx, g.client, u.String(), http.Header{"Accept": {"application/json"}})
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}

	var result googleResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("google: parse response: %w", err)
	}

	urls := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		urls = append(urls, item.Link)
	}
	return dedupe(urls), nil
}
