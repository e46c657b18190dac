package summary

import (
	"context"
	"fmt"

	ctxengine "github.com/user/gophersearch/internal/context"
	"github.com/user/gophersearch/internal/types"
	"github.com/user/gophersearch/pkg/llm"
)

const synthesisTemperature = 0.1

// Synthesizer streams the final structured answer built from digests.
type Synthesizer struct {
	provider llm.Provider
}

// NewSynthesizer creates a Synthesizer backed by provider.
func NewSynthesizer(provider llm.Provider) *Synthesizer {
	return &Synthesizer{provider: provider}
}

// Synthesize starts one streaming call over material and forwards content
// chunks as they arrive. The returned channel is closed when the answer is
// complete or ctx is cancelled. A failure after the stream opened arrives
// as a final Delta whose Err wraps types.ErrUpstreamError.
func (s *Synthesizer) Synthesize(ctx context.Context, material string) (<-chan llm.Delta, error) {
	messages := []llm.Message{llm.User(ctxengine.SynthesisPrompt(material))}
	upstream, err := s.provider.Stream(ctx, messages, nil, llm.WithTemperature(synthesisTemperature))
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w: %v", types.ErrUpstreamError, err)
	}

	out := make(chan llm.Delta)
	go func() {
		defer close(out)
		for d := range upstream {
			if d.Err != nil {
				d = llm.Delta{Err: fmt.Errorf("synthesize: %w: %v", types.ErrUpstreamError, d.Err)}
			} else if d.Content == "" {
				continue
			}
			select {
			case out <- d:
			case <-ctx.Done():
				// Drain so the provider goroutine can observe ctx and exit.
				for range upstream {
				}
				return
			}
		}
	}()
	return out, nil
}
