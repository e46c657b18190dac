package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/gophersearch/internal/scrape"
	"github.com/user/gophersearch/internal/types"
)

type stubSearch struct {
	mu      sync.Mutex
	results map[string][]string
	err     error
	queries []string
}

func (s *stubSearch) Search(_ context.Context, q string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	return s.results[q], nil
}

type stubFetcher struct {
	fail    map[string]error
	delay   time.Duration
	running atomic.Int32
	peak    atomic.Int32
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (*scrape.Document, error) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.fail[url]; err != nil {
		return nil, err
	}
	return &scrape.Document{URL: url, Fragments: []string{"text of " + url}}, nil
}

func urls(docs []*scrape.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.URL
	}
	return out
}

func TestRetrieve(t *testing.T) {
	sp := &stubSearch{results: map[string][]string{
		"expanded": {"https://a", "https://b", "https://c"},
	}}
	f := &stubFetcher{fail: map[string]error{"https://b": errors.New("timeout")}}

	res, err := New(sp, f, 2).Retrieve(context.Background(), "expanded", "topic")
	require.NoError(t, err)
	assert.Equal(t, "expanded", res.Query)
	assert.Equal(t, 3, res.URLsFound)
	assert.Equal(t, []string{"https://a", "https://c"}, urls(res.Docs))
	assert.Equal(t, []string{"expanded"}, sp.queries)
}

func TestRetrieveFallsBackToTopic(t *testing.T) {
	sp := &stubSearch{results: map[string][]string{
		"topic": {"https://t"},
	}}
	res, err := New(sp, &stubFetcher{}, 0).Retrieve(context.Background(), "expanded", "topic")
	require.NoError(t, err)
	assert.Equal(t, "topic", res.Query)
	assert.Equal(t, []string{"expanded", "topic"}, sp.queries)
	assert.Equal(t, []string{"https://t"}, urls(res.Docs))
}

func TestRetrieveNoFallbackWhenSame(t *testing.T) {
	sp := &stubSearch{results: map[string][]string{}}
	res, err := New(sp, &stubFetcher{}, 0).Retrieve(context.Background(), "topic", "topic")
	require.NoError(t, err)
	assert.Empty(t, res.Docs)
	assert.Zero(t, res.URLsFound)
	assert.Equal(t, []string{"topic"}, sp.queries)
}

func TestRetrieveAllFetchesFail(t *testing.T) {
	sp := &stubSearch{results: map[string][]string{"q": {"https://a", "https://b"}}}
	f := &stubFetcher{fail: map[string]error{
		"https://a": errors.New("403"),
		"https://b": scrape.ErrNoContent,
	}}
	res, err := New(sp, f, 4).Retrieve(context.Background(), "q", "")
	require.NoError(t, err)
	assert.NotNil(t, res.Docs)
	assert.Empty(t, res.Docs)
	assert.Equal(t, 2, res.URLsFound)
}

func TestRetrieveSearchError(t *testing.T) {
	sp := &stubSearch{err: errors.New("quota exceeded")}
	_, err := New(sp, &stubFetcher{}, 4).Retrieve(context.Background(), "q", "")
	assert.True(t, errors.Is(err, types.ErrUpstreamError))
}

func TestFetchAllBoundedConcurrency(t *testing.T) {
	var list []string
	for i := 0; i < 12; i++ {
		list = append(list, fmt.Sprintf("https://site/%d", i))
	}
	f := &stubFetcher{delay: 20 * time.Millisecond}

	docs, err := New(&stubSearch{}, f, 3).FetchAll(context.Background(), list)
	require.NoError(t, err)
	assert.Equal(t, list, urls(docs))
	assert.LessOrEqual(t, f.peak.Load(), int32(3))
}

func TestFetchAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&stubSearch{}, &stubFetcher{}, 2).FetchAll(ctx, []string{"https://a"})
	assert.ErrorIs(t, err, context.Canceled)
}
