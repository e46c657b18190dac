package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html><head>
<title>Understanding Reciprocal Rank Fusion</title>
<meta name="author" content="Jane Doe">
<meta property="og:site_name" content="Search Weekly">
</head><body>
<nav><ul><li>Home</li><li>About</li></ul></nav>
<article>
<h1>Understanding Reciprocal Rank Fusion</h1>
<p>Reciprocal Rank Fusion merges several ranked lists into one. Each document receives the sum of one over k plus its rank in every list.</p>
<p>The constant k is usually set to sixty, which dampens the influence of any single model and makes the fused ranking robust to outliers.</p>
<p>Because it only needs rank positions, RRF can combine scorers whose raw scores live on completely different scales.</p>
</article>
</body></html>`

func newPageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articleHTML))
	})
	mux.HandleFunc("/notes.md", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/markdown")
		w.Write([]byte("---\ntitle: Notes\n---\nFirst paragraph.\n\nSecond paragraph.\n"))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>   </body></html>`))
	})
	mux.HandleFunc("/binary", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7"))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/missing", http.NotFound)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestHTTPFetcherHTML(t *testing.T) {
	server := newPageServer(t)
	f := NewHTTPFetcher(5*time.Second, 1<<20, "test-agent")

	doc, err := f.Fetch(context.Background(), server.URL+"/article")
	require.NoError(t, err)

	assert.Equal(t, server.URL+"/article", doc.URL)
	assert.Contains(t, doc.Text(), "The constant k is usually set to sixty")
	assert.Contains(t, doc.Metadata["title"], "Reciprocal Rank Fusion")

	seen := map[string]bool{}
	for _, frag := range doc.Fragments {
		assert.False(t, seen[frag], "duplicate fragment %q", frag)
		seen[frag] = true
	}
}

func TestHTTPFetcherMarkdownFrontMatter(t *testing.T) {
	server := newPageServer(t)
	f := NewHTTPFetcher(5*time.Second, 1<<20, "")

	doc, err := f.Fetch(context.Background(), server.URL+"/notes.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"First paragraph.", "Second paragraph."}, doc.Fragments)
	assert.Equal(t, map[string]string{"title": "Notes"}, doc.Metadata)
}

func TestHTTPFetcherFailures(t *testing.T) {
	server := newPageServer(t)
	f := NewHTTPFetcher(200*time.Millisecond, 1<<20, "")
	ctx := context.Background()

	_, err := f.Fetch(ctx, server.URL+"/missing")
	assert.ErrorContains(t, err, "status 404")

	_, err = f.Fetch(ctx, server.URL+"/binary")
	assert.ErrorContains(t, err, "unsupported content type")

	_, err = f.Fetch(ctx, server.URL+"/empty")
	assert.True(t, errors.Is(err, ErrNoContent))

	start := time.Now()
	_, err = f.Fetch(ctx, server.URL+"/slow")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	_, err = f.Fetch(ctx, "ftp://example.com/file")
	assert.ErrorContains(t, err, "unsupported url")
}

func TestDocumentText(t *testing.T) {
	d := &Document{Fragments: []string{"a", "b"}}
	assert.Equal(t, "a\nb", d.Text())
}
