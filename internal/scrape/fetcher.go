package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	readability "github.com/go-shiori/go-readability"
)

// HTTPFetcher downloads pages over HTTP and extracts their text. Each call
// has its own timeout and is never retried.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	timeout   time.Duration
}

// NewHTTPFetcher creates a fetcher with a per-request timeout and a cap on
// the number of body bytes read.
func NewHTTPFetcher(timeout time.Duration, maxBody int64, userAgent string) *HTTPFetcher {
	if userAgent == "" {
		userAgent = "gophersearch/1.0"
	}
	return &HTTPFetcher{
		client:    &http.Client{},
		userAgent: userAgent,
		maxBody:   maxBody,
		timeout:   timeout,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil || (pageURL.Scheme != "http" && pageURL.Scheme != "https") {
		return nil, fmt.Errorf("unsupported url %q", rawURL)
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	var doc *Document
	switch {
	case mediaType == "text/plain" || mediaType == "text/markdown":
		doc = fromText(rawURL, string(body))
	case mediaType == "" || strings.Contains(mediaType, "html"):
		doc, err = fromHTML(pageURL, string(body))
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported content type %q", mediaType)
	}

	if len(doc.Fragments) == 0 {
		return nil, ErrNoContent
	}
	return doc, nil
}

func fromText(rawURL, text string) *Document {
	body, meta := ParseFrontMatter(text)
	return &Document{URL: rawURL, Fragments: paragraphs(body), Metadata: meta}
}

// fromHTML narrows the page to its main content with readability, then
// keeps the text blocks. When no blocks survive, the page is converted to
// markdown and split into paragraphs instead.
func fromHTML(pageURL *url.URL, src string) (*Document, error) {
	doc := &Document{URL: pageURL.String(), Metadata: map[string]string{}}

	content := src
	article, err := readability.FromReader(strings.NewReader(src), pageURL)
	if err != nil {
		slog.Debug("readability failed", "url", pageURL.String(), "error", err)
	} else {
		setMeta(doc.Metadata, "title", article.Title)
		setMeta(doc.Metadata, "author", article.Byline)
		setMeta(doc.Metadata, "sitename", article.SiteName)
		setMeta(doc.Metadata, "description", article.Excerpt)
		setMeta(doc.Metadata, "image", article.Image)
		if strings.TrimSpace(article.Content) != "" {
			content = article.Content
		}
	}

	blocks, err := ExtractBlocks(content)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if len(blocks) == 0 && content != src {
		if blocks, err = ExtractBlocks(src); err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}
	}
	if len(blocks) == 0 {
		md, err := htmltomarkdown.ConvertString(src)
		if err != nil {
			return nil, fmt.Errorf("convert to markdown: %w", err)
		}
		blocks = paragraphs(md)
	}

	doc.Fragments = blocks
	if len(doc.Metadata) == 0 {
		doc.Metadata = nil
	}
	return doc, nil
}

func setMeta(m map[string]string, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		m[key] = v
	}
}
