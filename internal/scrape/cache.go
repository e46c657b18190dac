package scrape

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedFetcher serves recently fetched pages from Redis. Cache failures
// never fail a fetch; they are logged and the page is fetched directly.
type CachedFetcher struct {
	next   Fetcher
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCachedFetcher wraps next with a Redis page cache.
func NewCachedFetcher(next Fetcher, client redis.UniversalClient, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{next: next, client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

func cacheKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return "gophersearch:page:" + hex.EncodeToString(sum[:])
}

func (c *CachedFetcher) Fetch(ctx context.Context, url string) (*Document, error) {
	key := cacheKey(url)

	val, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var doc Document
		if err := json.Unmarshal(val, &doc); err == nil {
			return &doc, nil
		}
		slog.Warn("corrupt page cache entry", "url", url)
	case !errors.Is(err, redis.Nil):
		slog.Warn("page cache read failed", "url", url, "error", err)
	}

	doc, err := c.next.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(doc); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.Warn("page cache write failed", "url", url, "error", err)
		}
	}
	return doc, nil
}
