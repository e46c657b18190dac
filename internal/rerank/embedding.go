package rerank

import (
	"context"
	"fmt"
	"math"

	"github.com/user/gophersearch/pkg/llm"
)

// Embedding scores documents by cosine similarity to the query embedding.
type Embedding struct {
	embedder llm.Embedder
}

// NewEmbedding creates an embedding scorer.
func NewEmbedding(e llm.Embedder) *Embedding {
	return &Embedding{embedder: e}
}

func (e *Embedding) Name() string { return "embedding" }

func (e *Embedding) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	vecs, err := e.embedder.Embed(ctx, append([]string{query}, docs...))
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vecs) != len(docs)+1 {
		return nil, fmt.Errorf("embed: got %d vectors for %d texts", len(vecs), len(docs)+1)
	}
	scores := make([]float64, len(docs))
	for i := range docs {
		scores[i] = cosine(vecs[0], vecs[i+1])
	}
	return scores, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
