package runtime

import (
	"encoding/json"
	"strings"

	"github.com/user/gophersearch/pkg/llm"
)

// ToolKind enumerates the actions the model can choose between.
type ToolKind int

const (
	ToolRespondDirectly ToolKind = iota + 1
	ToolGenerateQuery
)

type toolSpec struct {
	name        string
	description string
	parameters  json.RawMessage
}

var toolTable = map[ToolKind]toolSpec{
	ToolRespondDirectly: {
		name:        "respond_directly",
		description: "Answer the user directly from your own knowledge, without searching the web. Use for greetings, small talk and questions you can answer reliably.",
		parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
	},
	ToolGenerateQuery: {
		name:        "generate_query",
		description: "Search the web for up-to-date information. Use when the question needs recent events, specific facts or sources.",
		parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Short topic to search the web for"}
			},
			"required": ["query"]
		}`),
	},
}

var toolOrder = []ToolKind{ToolRespondDirectly, ToolGenerateQuery}

var toolsByName = func() map[string]ToolKind {
	m := make(map[string]ToolKind, len(toolTable))
	for kind, spec := range toolTable {
		m[spec.name] = kind
	}
	return m
}()

func (k ToolKind) String() string {
	if spec, ok := toolTable[k]; ok {
		return spec.name
	}
	return "unknown"
}

// ToolNames lists the declared tools for the system prompt.
func ToolNames() []string {
	out := make([]string, 0, len(toolOrder))
	for _, k := range toolOrder {
		out = append(out, toolTable[k].name)
	}
	return out
}

// ToolDeclarations converts the tool table to the LLM provider format.
func ToolDeclarations() []llm.Tool {
	out := make([]llm.Tool, 0, len(toolOrder))
	for _, k := range toolOrder {
		spec := toolTable[k]
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.Function{
				Name:        spec.name,
				Description: spec.description,
				Parameters:  spec.parameters,
			},
		})
	}
	return out
}

// Decision is the action picked for a turn.
type Decision struct {
	Kind  ToolKind
	Query string // search topic for ToolGenerateQuery
}

// Decide picks the action from the model's tool calls. The first
// recognized call wins; no recognized call means a direct answer. A
// generate_query call without a usable query searches for the user's own
// message.
func Decide(calls []llm.ToolCall, userText string) Decision {
	for _, tc := range calls {
		kind, ok := toolsByName[tc.Function.Name]
		if !ok {
			continue
		}
		if kind != ToolGenerateQuery {
			return Decision{Kind: kind}
		}

		var args struct {
			Query string `json:"query"`
		}
		_ = tc.Function.Decode(&args)
		q := strings.TrimSpace(args.Query)
		if q == "" {
			q = strings.TrimSpace(userText)
		}
		return Decision{Kind: ToolGenerateQuery, Query: q}
	}
	return Decision{Kind: ToolRespondDirectly}
}
