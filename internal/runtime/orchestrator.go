// Package runtime drives chat sessions: for every user message it decides
// between a direct model answer and a web research answer, runs the chosen
// path and streams the result as ordered events.
package runtime

import (
	"context"
	"errors"
	"fmt"

	ctxengine "github.com/user/gophersearch/internal/context"
	"github.com/user/gophersearch/internal/metrics"
	"github.com/user/gophersearch/internal/rerank"
	"github.com/user/gophersearch/internal/scrape"
	"github.com/user/gophersearch/internal/summary"
	"github.com/user/gophersearch/internal/types"
	"github.com/user/gophersearch/pkg/llm"
)

const newSessionMessage = "Starting a new chat session."

// Expander rewrites a topic into a search query.
type Expander interface {
	Expand(ctx context.Context, topic string) (string, error)
}

// Retriever finds and fetches pages for a query.
type Retriever interface {
	Search(ctx context.Context, query, fallback string) (used string, urls []string, err error)
	FetchAll(ctx context.Context, urls []string) ([]*scrape.Document, error)
}

// Reranker orders documents by relevance to a query.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string) ([]rerank.Result, error)
}

// Summarizer digests documents concurrently.
type Summarizer interface {
	SummarizeAll(ctx context.Context, docs []string) []summary.Digest
}

// Synthesizer streams the final answer from the joined digests.
type Synthesizer interface {
	Synthesize(ctx context.Context, material string) (<-chan llm.Delta, error)
}

// Config wires an Orchestrator. Metrics may be nil.
type Config struct {
	Provider    llm.Provider
	Engine      *ctxengine.Engine
	Store       types.ConversationStore
	Expander    Expander
	Retriever   Retriever
	Reranker    Reranker
	Summarizer  Summarizer
	Synthesizer Synthesizer
	Metrics     *metrics.Metrics
}

// Orchestrator holds the collaborators shared by every session.
type Orchestrator struct {
	provider    llm.Provider
	engine      *ctxengine.Engine
	store       types.ConversationStore
	expander    Expander
	retriever   Retriever
	reranker    Reranker
	summarizer  Summarizer
	synthesizer Synthesizer
	metrics     *metrics.Metrics
}

// New creates an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		provider:    cfg.Provider,
		engine:      cfg.Engine,
		store:       cfg.Store,
		expander:    cfg.Expander,
		retriever:   cfg.Retriever,
		reranker:    cfg.Reranker,
		summarizer:  cfg.Summarizer,
		synthesizer: cfg.Synthesizer,
		metrics:     cfg.Metrics,
	}
}

// Open attaches to the conversation id, creating it when it does not exist
// yet, and announces it on emit: a history snapshot for an existing
// conversation, a new-session notice otherwise. An empty id creates a
// conversation under a fresh id.
func (o *Orchestrator) Open(ctx context.Context, id types.SessionID, emit Emitter) (*Session, error) {
	if id == "" {
		id = types.NewSessionID()
	}

	var ev Event
	_, err := o.store.GetSession(ctx, id)
	switch {
	case err == nil:
		turns, err := o.store.ListTurns(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		history := make([]HistoryMessage, 0, len(turns))
		for _, t := range turns {
			history = append(history, HistoryMessage{Author: string(t.Role), Content: t.Content})
		}
		ev = Event{Type: EventHistory, SessionID: id, History: history}
	case errors.Is(err, types.ErrSessionNotFound):
		if _, _, err := o.store.CreateSession(ctx, id, types.DefaultSessionTitle); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		ev = Event{Type: EventNewSession, SessionID: id, Text: newSessionMessage}
	default:
		return nil, fmt.Errorf("load session: %w", err)
	}

	s := &Session{id: id, o: o, emit: emit, state: StateAwaitingInput}
	if err := emit.Emit(ctx, ev); err != nil {
		s.state = StateClosed
		return nil, fmt.Errorf("emit %s: %w", ev.Type, err)
	}
	o.metrics.SessionOpened()
	return s, nil
}
