package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// CrossEncoder scores query/document pairs with a remote cross-encoder
// served behind a text-embeddings-inference style POST /rerank endpoint.
type CrossEncoder struct {
	baseURL string
	client  *http.Client
}

// NewCrossEncoder creates a scorer for the rerank service at baseURL.
func NewCrossEncoder(baseURL string) *CrossEncoder {
	return &CrossEncoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *CrossEncoder) Name() string { return "crossencoder" }

type rerankRequest struct {
	Query    string   `json:"query"`
	Texts    []string `json:"texts"`
	Truncate bool     `json:"truncate"`
}

type rerankHit struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

func (c *CrossEncoder) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	body, err := json.Marshal(rerankRequest{Query: query, Texts: docs, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank service error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var hits []rerankHit
	if err := json.Unmarshal(data, &hits); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	// Documents the service leaves out stay unranked.
	scores := make([]float64, len(docs))
	for i := range scores {
		scores[i] = math.NaN()
	}
	for _, h := range hits {
		if h.Index >= 0 && h.Index < len(docs) {
			scores[h.Index] = h.Score
		}
	}
	return scores, nil
}
