package rerank

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/gophersearch/internal/types"
)

type fixedScorer struct {
	name   string
	scores []float64
	err    error
	calls  int
}

func (f *fixedScorer) Name() string { return f.name }

func (f *fixedScorer) Score(_ context.Context, _ string, docs []string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

func indices(results []Result) []int {
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = r.Index
	}
	return out
}

func TestRerankTwoScorers(t *testing.T) {
	s1 := &fixedScorer{name: "a", scores: []float64{3, 2, 1}}
	s2 := &fixedScorer{name: "b", scores: []float64{1, 3, 2}}
	r := New(60, s1, s2)

	results, err := r.Rerank(context.Background(), "q", []string{"a", "b", "c"})
	require.NoError(t, err)

	// Fused order is b, a, c; the reorder yields b, c, a.
	assert.Equal(t, []int{1, 2, 0}, indices(results))
	assert.Equal(t, "b", results[0].Doc)
	assert.InDelta(t, 1.0/61+1.0/62, results[0].Score, 1e-12)
	assert.InDelta(t, 1.0/62+1.0/63, results[1].Score, 1e-12)
	assert.InDelta(t, 1.0/61+1.0/63, results[2].Score, 1e-12)
}

func TestRerankEmptyInput(t *testing.T) {
	s := &fixedScorer{name: "a"}
	results, err := New(0, s).Rerank(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
	assert.Zero(t, s.calls)
}

func TestRerankSingleDocument(t *testing.T) {
	r := New(60,
		&fixedScorer{name: "a", scores: []float64{0.2}},
		&fixedScorer{name: "b", scores: []float64{9}},
	)
	results, err := r.Rerank(context.Background(), "q", []string{"only"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Index)
	assert.InDelta(t, 2.0/61, results[0].Score, 1e-12)
}

func TestRerankDuplicateTextsKeptSeparately(t *testing.T) {
	r := New(60, &fixedScorer{name: "a", scores: []float64{1, 1, 1}})
	results, err := r.Rerank(context.Background(), "q", []string{"same", "same", "same"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	// Ties keep input order: fused 0,1,2 then reorder 0,2,1.
	assert.Equal(t, []int{0, 2, 1}, indices(results))
}

func TestRerankPermutationAndOrdering(t *testing.T) {
	docs := make([]string, 9)
	s1 := make([]float64, 9)
	s2 := make([]float64, 9)
	for i := range docs {
		docs[i] = fmt.Sprintf("doc-%d", i)
		s1[i] = float64((i * 7) % 9)
		s2[i] = float64((i * 4) % 9)
	}
	r := New(60, &fixedScorer{name: "a", scores: s1}, &fixedScorer{name: "b", scores: s2})

	first, err := r.Rerank(context.Background(), "q", docs)
	require.NoError(t, err)
	second, err := r.Rerank(context.Background(), "q", docs)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	idx := indices(first)
	sorted := append([]int(nil), idx...)
	sort.Ints(sorted)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, sorted)

	// Undo the reorder and check the fused order is non-increasing.
	fused := undoSplitReverse(first)
	for i, res := range fused {
		assert.GreaterOrEqual(t, res.Score, 0.0)
		assert.Equal(t, docs[res.Index], res.Doc)
		if i > 0 {
			assert.GreaterOrEqual(t, fused[i-1].Score, res.Score)
		}
	}
}

func undoSplitReverse(results []Result) []Result {
	n := len(results)
	out := make([]Result, n)
	evens := (n + 1) / 2
	for i := 0; i < evens; i++ {
		out[2*i] = results[i]
	}
	for j, res := range results[evens:] {
		pos := 2*(n/2-j) - 1
		out[pos] = res
	}
	return out
}

func TestRerankSkipsFailingScorer(t *testing.T) {
	bad := &fixedScorer{name: "bad", err: errors.New("boom")}
	short := &fixedScorer{name: "short", scores: []float64{1}}
	good := &fixedScorer{name: "good", scores: []float64{1, 2}}

	results, err := New(60, bad, short, good).Rerank(context.Background(), "q", []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, indices(results))
	assert.InDelta(t, 1.0/61, results[0].Score, 1e-12)
}

func TestRerankAllScorersFail(t *testing.T) {
	r := New(60, &fixedScorer{name: "a", err: errors.New("down")}, &fixedScorer{name: "b", err: errors.New("down")})
	_, err := r.Rerank(context.Background(), "q", []string{"x"})
	assert.True(t, errors.Is(err, types.ErrUpstreamError))
}

func TestSplitReverse(t *testing.T) {
	assert.Equal(t, []int{}, SplitReverse([]int{}))
	assert.Equal(t, []int{0}, SplitReverse([]int{0}))
	assert.Equal(t, []int{0, 1}, SplitReverse([]int{0, 1}))
	assert.Equal(t, []int{0, 2, 1}, SplitReverse([]int{0, 1, 2}))
	assert.Equal(t, []int{0, 2, 4, 3, 1}, SplitReverse([]int{0, 1, 2, 3, 4}))
	assert.Equal(t, []int{0, 2, 4, 5, 3, 1}, SplitReverse([]int{0, 1, 2, 3, 4, 5}))
}

func TestFusePartialRankings(t *testing.T) {
	scores := Fuse(60, 3, []int{1, 0, 2}, []int{2, 1})
	assert.InDelta(t, 1.0/61+1.0/62, scores[0], 1e-12)
	assert.InDelta(t, 1.0/61, scores[1], 1e-12)
	assert.InDelta(t, 1.0/62, scores[2], 1e-12)
}

func TestRankOfStableTies(t *testing.T) {
	assert.Equal(t, []int{2, 1, 3, 4}, rankOf([]float64{5, 7, 5, 1}))
}

func TestRankOfSkipsUnranked(t *testing.T) {
	nan := math.NaN()
	assert.Equal(t, []int{0, 1, 0, 2}, rankOf([]float64{nan, 7, nan, 1}))
	assert.Equal(t, []int{0, 0}, rankOf([]float64{nan, nan}))
}
