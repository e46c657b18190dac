package runtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/gophersearch/pkg/llm"
)

func call(name, args string) llm.ToolCall {
	return llm.ToolCall{Type: "function", Function: llm.FunctionCall{Name: name, Arguments: json.RawMessage(args)}}
}

func TestToolDeclarations(t *testing.T) {
	tools := ToolDeclarations()
	require.Len(t, tools, 2)
	assert.Equal(t, "respond_directly", tools[0].Function.Name)
	assert.Equal(t, "generate_query", tools[1].Function.Name)
	for _, tool := range tools {
		assert.Equal(t, "function", tool.Type)
		assert.True(t, json.Valid(tool.Function.Parameters), tool.Function.Name)
	}
	assert.Equal(t, []string{"respond_directly", "generate_query"}, ToolNames())
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name  string
		calls []llm.ToolCall
		want  Decision
	}{
		{"no calls", nil, Decision{Kind: ToolRespondDirectly}},
		{"direct", []llm.ToolCall{call("respond_directly", `{}`)}, Decision{Kind: ToolRespondDirectly}},
		{"query", []llm.ToolCall{call("generate_query", `{"query":" solar eclipse 2026 "}`)}, Decision{Kind: ToolGenerateQuery, Query: "solar eclipse 2026"}},
		{"first recognized wins", []llm.ToolCall{
			call("bash", `{"cmd":"ls"}`),
			call("generate_query", `{"query":"a"}`),
			call("respond_directly", `{}`),
		}, Decision{Kind: ToolGenerateQuery, Query: "a"}},
		{"unknown only", []llm.ToolCall{call("weather", `{}`)}, Decision{Kind: ToolRespondDirectly}},
		{"blank query uses message", []llm.ToolCall{call("generate_query", `{}`)}, Decision{Kind: ToolGenerateQuery, Query: "who won the match"}},
		{"bad args uses message", []llm.ToolCall{call("generate_query", `not json`)}, Decision{Kind: ToolGenerateQuery, Query: "who won the match"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.calls, " who won the match "))
		})
	}
}

func TestToolKindString(t *testing.T) {
	assert.Equal(t, "generate_query", ToolGenerateQuery.String())
	assert.Equal(t, "unknown", ToolKind(0).String())
}
