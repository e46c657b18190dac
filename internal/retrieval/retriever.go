// Package retrieval turns a query into scraped documents: search for
// candidate URLs, then fetch and extract them with a bounded worker pool.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/user/gophersearch/internal/scrape"
	"github.com/user/gophersearch/internal/search"
	"github.com/user/gophersearch/internal/types"
)

// DefaultWorkers is the fetch pool size used when none is configured.
const DefaultWorkers = 4

// Result is the outcome of one retrieval cycle.
type Result struct {
	Query     string             // the query that produced the URLs
	URLsFound int                // number of URLs returned by search
	Docs      []*scrape.Document // successfully extracted pages, in search order
}

// Retriever runs search and fetch for a single query.
type Retriever struct {
	search  search.Provider
	fetcher scrape.Fetcher
	workers int
}

// New creates a Retriever. A non-positive workers selects DefaultWorkers.
func New(sp search.Provider, fetcher scrape.Fetcher, workers int) *Retriever {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Retriever{search: sp, fetcher: fetcher, workers: workers}
}

// Retrieve searches for query, falling back to the unexpanded topic once
// when the first search comes back empty, and fetches every result URL.
// Individual fetch failures are logged and dropped; a search failure fails
// the call.
func (r *Retriever) Retrieve(ctx context.Context, query, fallback string) (*Result, error) {
	used, urls, err := r.Search(ctx, query, fallback)
	if err != nil {
		return nil, err
	}
	docs, err := r.FetchAll(ctx, urls)
	if err != nil {
		return nil, err
	}
	return &Result{Query: used, URLsFound: len(urls), Docs: docs}, nil
}

// Search runs the search half of Retrieve and reports which query
// produced the returned URLs.
func (r *Retriever) Search(ctx context.Context, query, fallback string) (string, []string, error) {
	urls, err := r.search.Search(ctx, query)
	if err != nil {
		return "", nil, fmt.Errorf("search %q: %w: %v", query, types.ErrUpstreamError, err)
	}
	if len(urls) > 0 || strings.TrimSpace(fallback) == "" || fallback == query {
		return query, urls, nil
	}

	slog.Info("no search results, retrying with topic", "query", query, "topic", fallback)
	urls, err = r.search.Search(ctx, fallback)
	if err != nil {
		return "", nil, fmt.Errorf("search %q: %w: %v", fallback, types.ErrUpstreamError, err)
	}
	return fallback, urls, nil
}

// FetchAll fetches urls concurrently and returns the documents that
// produced content, in input order. It only fails when ctx is done.
func (r *Retriever) FetchAll(ctx context.Context, urls []string) ([]*scrape.Document, error) {
	results := make([]*scrape.Document, len(urls))

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, u := range urls {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			doc, err := r.fetcher.Fetch(ctx, u)
			switch {
			case err == nil:
				results[i] = doc
			case errors.Is(err, scrape.ErrNoContent):
				slog.Debug("page has no content", "url", u)
			case ctx.Err() != nil:
			default:
				slog.Warn("fetch failed", "url", u, "error", err)
			}
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs := make([]*scrape.Document, 0, len(urls))
	for _, d := range results {
		if d != nil {
			docs = append(docs, d)
		}
	}
	return docs, nil
}
