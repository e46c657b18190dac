// Package summary condenses retrieved documents. Each document is first
// reduced to a verbatim extractive digest; the digests are then synthesized
// into one structured answer streamed back to the caller.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	ctxengine "github.com/user/gophersearch/internal/context"
	"github.com/user/gophersearch/internal/types"
	"github.com/user/gophersearch/pkg/llm"
)

const (
	// DefaultWorkers bounds concurrent summarization calls.
	DefaultWorkers = 4

	extractiveTemperature = 0.1
)

// Truncater limits text to a token budget.
type Truncater interface {
	Truncate(text string, maxTokens int) string
}

// Digest is the extractive summary of the document at Index. Err is set
// when that document could not be summarized.
type Digest struct {
	Index int
	Text  string
	Err   error
}

// Summarizer produces extractive digests.
type Summarizer struct {
	provider  llm.Provider
	truncater Truncater
	maxTokens int
	workers   int
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithTruncation caps every document at maxTokens before it is sent.
func WithTruncation(t Truncater, maxTokens int) Option {
	return func(s *Summarizer) {
		s.truncater = t
		s.maxTokens = maxTokens
	}
}

// WithWorkers sets the fan-out width of SummarizeAll.
func WithWorkers(n int) Option {
	return func(s *Summarizer) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewSummarizer creates a Summarizer backed by provider.
func NewSummarizer(provider llm.Provider, opts ...Option) *Summarizer {
	s := &Summarizer{provider: provider, workers: DefaultWorkers}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize returns an extractive digest of text. A well-formed but empty
// model reply yields "" and no error.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("summarize: blank document: %w", types.ErrInvalidInput)
	}
	if s.truncater != nil && s.maxTokens > 0 {
		text = s.truncater.Truncate(text, s.maxTokens)
	}

	messages := []llm.Message{
		llm.System(ctxengine.ExtractiveSystemPrompt),
		llm.User(ctxengine.ExtractivePrompt(text)),
	}
	resp, err := s.provider.Complete(ctx, messages, nil, llm.WithTemperature(extractiveTemperature))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("summarize: %w: %v", types.ErrUpstreamError, err)
	}
	if resp == nil {
		return "", fmt.Errorf("summarize: no choice returned: %w", types.ErrUpstreamError)
	}
	return strings.TrimSpace(resp.Content), nil
}

// SummarizeAll summarizes every document with at most the configured
// number of calls in flight. It waits for all of them and returns one
// Digest per input, in input order, whether or not it succeeded.
func (s *Summarizer) SummarizeAll(ctx context.Context, docs []string) []Digest {
	out := make([]Digest, len(docs))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, doc := range docs {
		g.Go(func() error {
			text, err := s.Summarize(ctx, doc)
			out[i] = Digest{Index: i, Text: text, Err: err}
			if err != nil && ctx.Err() == nil {
				slog.Warn("summarize failed", "index", i, "error", err)
			}
			return nil
		})
	}
	g.Wait()
	return out
}

// Join concatenates the successful, non-empty digests in order, separated
// by newlines. It returns "" when none qualify.
func Join(digests []Digest) string {
	var parts []string
	for _, d := range digests {
		if d.Err == nil && d.Text != "" {
			parts = append(parts, d.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Failed counts digests that carry an error other than cancellation.
func Failed(digests []Digest) int {
	n := 0
	for _, d := range digests {
		if d.Err != nil && !errors.Is(d.Err, context.Canceled) {
			n++
		}
	}
	return n
}
