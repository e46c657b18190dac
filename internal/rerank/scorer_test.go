package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpus = []string{
	"Reciprocal rank fusion combines rankings from several retrieval systems.",
	"Bananas are rich in potassium and easy to carry.",
	"Rank fusion with a constant of sixty is robust for retrieval.",
}

func TestLexicalScorer(t *testing.T) {
	scores, err := Lexical{}.Score(context.Background(), "rank fusion retrieval", corpus)
	require.NoError(t, err)
	require.Len(t, scores, 3)

	assert.Greater(t, scores[0], 0.0)
	assert.Greater(t, scores[2], 0.0)
	assert.Zero(t, scores[1])
}

func TestLexicalScorerDuplicates(t *testing.T) {
	scores, err := Lexical{}.Score(context.Background(), "potassium", []string{corpus[1], corpus[1]})
	require.NoError(t, err)
	assert.Greater(t, scores[0], 0.0)
	assert.InDelta(t, scores[0], scores[1], 1e-9)
}

type wordTokenizer struct{}

func (wordTokenizer) Tokenize(text string) []int {
	var out []int
	for _, w := range strings.Fields(strings.Trim(text, ".")) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(w, ".,")))
		out = append(out, int(h.Sum32()))
	}
	return out
}

func TestOverlapScorer(t *testing.T) {
	o := NewOverlap(wordTokenizer{})
	scores, err := o.Score(context.Background(), "Rank Fusion retrieval", corpus)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, scores[0], 1e-9)
	assert.Zero(t, scores[1])
	assert.InDelta(t, 1.0, scores[2], 1e-9)

	scores, err = o.Score(context.Background(), "", corpus)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, scores)
}

type fakeEmbedder struct {
	vecs [][]float32
	err  error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vecs, nil
}

func TestEmbeddingScorer(t *testing.T) {
	e := NewEmbedding(&fakeEmbedder{vecs: [][]float32{
		{1, 0},
		{1, 0},
		{0, 1},
		{1, 1},
	}})
	scores, err := e.Score(context.Background(), "q", []string{"same", "orthogonal", "diagonal"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, scores[0], 1e-9)
	assert.InDelta(t, 0.0, scores[1], 1e-9)
	assert.InDelta(t, 1/math.Sqrt2, scores[2], 1e-6)

	_, err = NewEmbedding(&fakeEmbedder{err: errors.New("down")}).Score(context.Background(), "q", []string{"a"})
	assert.Error(t, err)

	_, err = NewEmbedding(&fakeEmbedder{vecs: [][]float32{{1}}}).Score(context.Background(), "q", []string{"a"})
	assert.Error(t, err)
}

func TestCosineZeroVector(t *testing.T) {
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestCrossEncoderScorer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)
		var req rerankRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "rank fusion", req.Query)
		assert.Len(t, req.Texts, 3)
		json.NewEncoder(w).Encode([]rerankHit{{Index: 2, Score: 0.9}, {Index: 0, Score: 0.4}})
	}))
	defer server.Close()

	scores, err := NewCrossEncoder(server.URL+"/").Score(context.Background(), "rank fusion", corpus)
	require.NoError(t, err)
	assert.Equal(t, 0.4, scores[0])
	assert.True(t, math.IsNaN(scores[1]))
	assert.Equal(t, 0.9, scores[2])
	assert.Equal(t, []int{2, 0, 1}, rankOf(scores))
}

func TestCrossEncoderPartialRanking(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]rerankHit{{Index: 0, Score: 0.9}})
	}))
	defer server.Close()

	results, err := New(60, NewCrossEncoder(server.URL)).Rerank(context.Background(), "q", []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byDoc := map[string]float64{}
	for _, r := range results {
		byDoc[r.Doc] = r.Score
	}
	assert.InDelta(t, 1.0/61, byDoc["a"], 1e-12)
	assert.Equal(t, 0.0, byDoc["b"])
}

func TestCrossEncoderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewCrossEncoder(server.URL).Score(context.Background(), "q", corpus)
	assert.ErrorContains(t, err, "status 503")
}
