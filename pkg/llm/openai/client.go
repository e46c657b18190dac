package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/user/gophersearch/pkg/llm"
)

// Client implements llm.Provider and llm.Embedder for OpenAI-compatible APIs,
// including a local Ollama server exposing /v1.
type Client struct {
	config *llm.Config
	api    *goopenai.Client
}

// New creates a new OpenAI-compatible client with the given configuration.
func New(config *llm.Config) *Client {
	cc := goopenai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cc.BaseURL = config.BaseURL
	}
	// No client-wide timeout: synthesis streams can run for minutes and are
	// bounded by the request context instead.
	cc.HTTPClient = &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 120 * time.Second,
			IdleConnTimeout:       90 * time.Second,
		},
	}
	return &Client{
		config: config,
		api:    goopenai.NewClientWithConfig(cc),
	}
}

func (c *Client) request(messages []llm.Message, tools []llm.Tool, opts []llm.CallOption) goopenai.ChatCompletionRequest {
	o := llm.ApplyOptions(opts)

	req := goopenai.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: toAPIMessages(messages),
	}
	if len(tools) > 0 {
		req.Tools = toAPITools(tools)
	}

	req.MaxTokens = c.config.MaxTokens
	if o.MaxTokens > 0 {
		req.MaxTokens = o.MaxTokens
	}

	req.Temperature = c.config.Temperature
	if o.Temperature != nil {
		req.Temperature = *o.Temperature
	}
	return req
}

// Complete sends a chat completion request and returns the full response.
func (c *Client) Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool, opts ...llm.CallOption) (*llm.Response, error) {
	resp, err := c.api.CreateChatCompletion(ctx, c.request(messages, tools, opts))
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	msg := resp.Choices[0].Message
	return &llm.Response{
		Content:   msg.Content,
		ToolCalls: fromAPIToolCalls(msg.ToolCalls),
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

// Stream opens a streaming chat completion. Deltas are forwarded as they
// arrive. Cancelling ctx stops the reader goroutine and closes the upstream
// connection.
func (c *Client) Stream(ctx context.Context, messages []llm.Message, tools []llm.Tool, opts ...llm.CallOption) (<-chan llm.Delta, error) {
	req := c.request(messages, tools, opts)
	req.Stream = true

	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}

	ch := make(chan llm.Delta)
	go func() {
		defer close(ch)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case ch <- llm.Delta{Err: fmt.Errorf("reading stream: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			for _, choice := range resp.Choices {
				d := llm.Delta{
					Content:   choice.Delta.Content,
					ToolCalls: fromAPIToolCalls(choice.Delta.ToolCalls),
				}
				if d.Content == "" && len(d.ToolCalls) == 0 {
					continue
				}
				select {
				case ch <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// Embed returns one embedding vector per input text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model := c.config.EmbeddingModel
	if model == "" {
		model = c.config.Model
	}

	resp, err := c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: texts,
		Model: goopenai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Data {
		idx := e.Index
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		out[idx] = e.Embedding
	}
	return out, nil
}

func toAPIMessages(messages []llm.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		m := goopenai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
		if msg.Role == llm.RoleTool && len(msg.Tools) > 0 {
			m.ToolCallID = msg.Tools[0].ID
		} else {
			for _, tc := range msg.Tools {
				m.ToolCalls = append(m.ToolCalls, goopenai.ToolCall{
					ID:   tc.ID,
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      tc.Function.Name,
						Arguments: string(tc.Function.Arguments),
					},
				})
			}
		}
		out[i] = m
	}
	return out
}

func toAPITools(tools []llm.Tool) []goopenai.Tool {
	out := make([]goopenai.Tool, len(tools))
	for i, t := range tools {
		out[i] = goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		}
	}
	return out
}

func fromAPIToolCalls(calls []goopenai.ToolCall) []llm.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]llm.ToolCall, len(calls))
	for i, tc := range calls {
		args := json.RawMessage(tc.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		out[i] = llm.ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: llm.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: args,
			},
		}
	}
	return out
}
