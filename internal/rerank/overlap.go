package rerank

import (
	"context"
	"strings"
)

// Tokenizer splits text into model tokens.
type Tokenizer interface {
	Tokenize(text string) []int
}

// Overlap scores a document by the share of distinct query tokens it
// contains. It needs no external service.
type Overlap struct {
	tok Tokenizer
}

// NewOverlap creates an overlap scorer using tok.
func NewOverlap(tok Tokenizer) *Overlap {
	return &Overlap{tok: tok}
}

func (o *Overlap) Name() string { return "overlap" }

func (o *Overlap) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	want := make(map[int]struct{})
	for _, t := range o.tok.Tokenize(strings.ToLower(query)) {
		want[t] = struct{}{}
	}

	scores := make([]float64, len(docs))
	if len(want) == 0 {
		return scores, nil
	}
	for i, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hit := make(map[int]struct{})
		for _, t := range o.tok.Tokenize(strings.ToLower(d)) {
			if _, ok := want[t]; ok {
				hit[t] = struct{}{}
			}
		}
		scores[i] = float64(len(hit)) / float64(len(want))
	}
	return scores, nil
}
