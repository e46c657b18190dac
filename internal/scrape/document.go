// Package scrape fetches web pages and turns them into plain-text documents.
package scrape

import (
	"context"
	"errors"
	"strings"
)

// ErrNoContent is returned when a page downloads fine but yields no text.
var ErrNoContent = errors.New("no extractable content")

// Document is the text pulled from one page. Fragment order carries no
// meaning; duplicates have already been removed.
type Document struct {
	URL       string            `json:"url"`
	Fragments []string          `json:"fragments"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Text joins the fragments into the form handed to rerankers and
// summarizers.
func (d *Document) Text() string {
	return strings.Join(d.Fragments, "\n")
}

// Fetcher downloads and extracts a single URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Document, error)
}
