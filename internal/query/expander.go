// Package query rewrites a conversational topic into a web search query.
package query

import (
	"context"
	"fmt"
	"strings"

	ctxengine "github.com/user/gophersearch/internal/context"
	"github.com/user/gophersearch/internal/types"
	"github.com/user/gophersearch/pkg/llm"
)

const temperature = 0.1

// Expander asks the model for a search-friendly version of a topic.
type Expander struct {
	provider llm.Provider
}

// NewExpander creates an Expander backed by provider.
func NewExpander(provider llm.Provider) *Expander {
	return &Expander{provider: provider}
}

// Expand returns the expanded query for topic. Callers are expected to fall
// back to topic itself on any error.
func (e *Expander) Expand(ctx context.Context, topic string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", fmt.Errorf("expand: blank topic: %w", types.ErrInvalidInput)
	}

	messages := []llm.Message{llm.User(ctxengine.ExpandPrompt(topic))}
	resp, err := e.provider.Complete(ctx, messages, nil, llm.WithTemperature(temperature))
	if err != nil {
		return "", fmt.Errorf("expand: %w: %v", types.ErrUpstreamUnavailable, err)
	}

	if resp == nil {
		return "", fmt.Errorf("expand: no choice returned: %w", types.ErrEmptyResponse)
	}
	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", fmt.Errorf("expand: %w", types.ErrEmptyResponse)
	}
	return out, nil
}
