// Package rerank orders retrieved documents by fusing the rankings of
// several relevance scorers with Reciprocal Rank Fusion.
package rerank

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/user/gophersearch/internal/types"
)

// DefaultK is the RRF damping constant.
const DefaultK = 60

// Scorer assigns a relevance score to every document for query. Higher is
// better. The returned slice is parallel to docs; NaN marks a document the
// scorer did not rank.
type Scorer interface {
	Name() string
	Score(ctx context.Context, query string, docs []string) ([]float64, error)
}

// Result is one document in reranked order.
type Result struct {
	Index int     // position in the input slice
	Doc   string
	Score float64 // fused RRF score
}

// Reranker fuses the rankings of its scorers.
type Reranker struct {
	k       int
	scorers []Scorer
}

// New creates a reranker. A non-positive k selects DefaultK.
func New(k int, scorers ...Scorer) *Reranker {
	if k <= 0 {
		k = DefaultK
	}
	return &Reranker{k: k, scorers: scorers}
}

// Rerank scores docs with every scorer, fuses the per-scorer ranks and
// returns every input document exactly once. A scorer that fails is
// skipped; the call fails only when all of them do.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []string) ([]Result, error) {
	if len(docs) == 0 {
		return []Result{}, nil
	}

	var rankings [][]int
	for _, s := range r.scorers {
		scores, err := s.Score(ctx, query, docs)
		if err == nil && len(scores) != len(docs) {
			err = fmt.Errorf("got %d scores for %d documents", len(scores), len(docs))
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("scorer failed", "scorer", s.Name(), "error", err)
			continue
		}
		rankings = append(rankings, rankOf(scores))
	}
	if len(rankings) == 0 {
		return nil, fmt.Errorf("rerank: all %d scorers failed: %w", len(r.scorers), types.ErrUpstreamError)
	}

	fused := Fuse(r.k, len(docs), rankings...)
	order := make([]int, len(docs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return fused[order[a]] > fused[order[b]]
	})

	out := make([]Result, len(order))
	for pos, idx := range SplitReverse(order) {
		out[pos] = Result{Index: idx, Doc: docs[idx], Score: fused[idx]}
	}
	return out, nil
}

// rankOf converts scores into 1-based ranks, best first. Equal scores keep
// input order. NaN scores get rank 0.
func rankOf(scores []float64) []int {
	order := make([]int, 0, len(scores))
	for i, s := range scores {
		if !math.IsNaN(s) {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	ranks := make([]int, len(scores))
	for pos, idx := range order {
		ranks[idx] = pos + 1
	}
	return ranks
}

// Fuse sums 1/(k+rank) over every ranking for n documents. A rank of zero
// or less means the ranking did not place that document and contributes
// nothing.
func Fuse(k, n int, rankings ...[]int) []float64 {
	scores := make([]float64, n)
	for _, ranks := range rankings {
		for idx, rank := range ranks {
			if idx >= n || rank <= 0 {
				continue
			}
			scores[idx] += 1.0 / float64(k+rank)
		}
	}
	return scores
}

// SplitReverse returns the elements at even positions followed by the
// elements at odd positions in reverse.
func SplitReverse[T any](items []T) []T {
	out := make([]T, 0, len(items))
	for i := 0; i < len(items); i += 2 {
		out = append(out, items[i])
	}
	last := len(items) - 1
	if last%2 == 0 {
		last--
	}
	for i := last; i >= 1; i -= 2 {
		out = append(out, items[i])
	}
	return out
}
