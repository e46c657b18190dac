package rerank

import (
	"context"
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve"
)

// Lexical scores documents with bleve's term relevance over a throwaway
// in-memory index. Documents that do not match score zero.
type Lexical struct{}

func (Lexical) Name() string { return "lexical" }

func (Lexical) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	defer index.Close()

	batch := index.NewBatch()
	for i, d := range docs {
		if err := batch.Index(strconv.Itoa(i), map[string]interface{}{"text": d}); err != nil {
			return nil, fmt.Errorf("index document %d: %w", i, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("index batch: %w", err)
	}

	q := bleve.NewMatchQuery(query)
	q.SetField("text")
	req := bleve.NewSearchRequestOptions(q, len(docs), 0, false)
	res, err := index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	scores := make([]float64, len(docs))
	for _, hit := range res.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= len(docs) {
			continue
		}
		scores[i] = hit.Score
	}
	return scores, nil
}
