// internal/context/engine.go
package context

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/gophersearch/internal/types"
	"github.com/user/gophersearch/pkg/llm"
)

// Engine assembles prompts for the LLM and keeps them inside token budgets.
type Engine struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
	system    *template.Template
}

// New creates a context engine with the specified token budget.
// model is used to select the appropriate tokenizer (e.g. "gpt-4").
// maxTokens is the model's context window size; 0 disables history
// budgeting so the whole conversation is replayed.
// reserve is the number of tokens to reserve for the model's response.
func New(model string, maxTokens, reserve int) (*Engine, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	tmpl, err := template.New("system").Parse(SystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("parse system prompt: %w", err)
	}
	return &Engine{
		tokenizer: enc,
		maxTokens: maxTokens,
		reserve:   reserve,
		system:    tmpl,
	}, nil
}

// CountTokens returns the token count for a string.
func (e *Engine) CountTokens(text string) int {
	return len(e.tokenizer.Encode(text, nil, nil))
}

// Tokenize returns the token ids of text.
func (e *Engine) Tokenize(text string) []int {
	return e.tokenizer.Encode(text, nil, nil)
}

// Truncate cuts text to at most maxTokens tokens. maxTokens <= 0 returns
// text unchanged.
func (e *Engine) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	toks := e.tokenizer.Encode(text, nil, nil)
	if len(toks) <= maxTokens {
		return text
	}
	return e.tokenizer.Decode(toks[:maxTokens])
}

// PromptData feeds the system prompt template.
type PromptData struct {
	Time      string
	SessionID string
	Tools     []string
}

// BuildHistory turns a session's stored turns into chat messages headed by
// the system prompt. With a budget set, the oldest turns are dropped first;
// the newest turn is always kept.
func (e *Engine) BuildHistory(session *types.Session, turns []*types.Turn, toolNames []string) ([]llm.Message, error) {
	var buf bytes.Buffer
	err := e.system.Execute(&buf, PromptData{
		Time:      time.Now().Format(time.RFC3339),
		SessionID: string(session.ID),
		Tools:     toolNames,
	})
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}
	sysPrompt := buf.String()

	start := 0
	if e.maxTokens > 0 {
		remaining := e.maxTokens - e.reserve - e.CountTokens(sysPrompt)
		used := 0
		start = len(turns)
		for i := len(turns) - 1; i >= 0; i-- {
			n := e.CountTokens(turns[i].Content)
			if used+n > remaining && i < len(turns)-1 {
				break
			}
			used += n
			start = i
		}
	}

	messages := make([]llm.Message, 0, 1+len(turns)-start)
	messages = append(messages, llm.System(sysPrompt))
	for _, turn := range turns[start:] {
		messages = append(messages, llm.Message{Role: string(turn.Role), Content: turn.Content})
	}
	return messages, nil
}
