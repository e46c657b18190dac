package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/user/gophersearch/internal/metrics"
	"github.com/user/gophersearch/internal/summary"
	"github.com/user/gophersearch/internal/types"
	"github.com/user/gophersearch/pkg/llm"
)

// Notices sent to the client.
const (
	llmErrorPrefix  = "Error from LLM: "
	internalError   = "An internal server error occurred. Please try again."
	emptyMessage    = "Please enter a message."
	NoResultsAnswer = "I could not find any relevant information on the web for that question. Try rephrasing it or asking about something more specific."
)

// Progress messages emitted on the research path.
const (
	thinkAnalyzing  = "Currently analyzing %d webpages."
	thinkReviewing  = "Fetching and reviewing articles"
	thinkGenerating = "Generating a structured response"
)

// State is a session's position in the turn cycle.
type State int

const (
	StateAwaitingInput State = iota
	StateDecidingAction
	StateDirectAnswer
	StateToolRetrieval
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingInput:
		return "awaiting_input"
	case StateDecidingAction:
		return "deciding_action"
	case StateDirectAnswer:
		return "direct_answer"
	case StateToolRetrieval:
		return "tool_retrieval"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// TurnError is a failed turn that has already been reported to the client
// as an error notice. The session can take the next message.
type TurnError struct {
	Notice string
	Err    error
}

func (e *TurnError) Error() string { return e.Err.Error() }
func (e *TurnError) Unwrap() error { return e.Err }

var (
	// ErrClosed is returned for turns on a closed session.
	ErrClosed = errors.New("session closed")
	// ErrClientGone wraps emit failures: the client can no longer be reached.
	ErrClientGone = errors.New("client disconnected")
)

// Limiter bounds how many turns run at once across sessions.
type Limiter interface {
	Acquire(ctx context.Context, n int64) error
	Release(n int64)
}

// Session is the live state machine for one conversation on one
// connection. Turns are handled one at a time.
type Session struct {
	id   types.SessionID
	o    *Orchestrator
	emit Emitter

	mu        sync.Mutex
	state     State
	closeOnce sync.Once
}

func (s *Session) ID() types.SessionID { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	if s.state != StateClosed {
		s.state = st
	}
	s.mu.Unlock()
}

// Close moves the session to its terminal state. Stored history is kept.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		s.o.metrics.SessionClosed()
	})
}

// Run feeds messages from inbound through HandleTurn until inbound is
// closed, ctx is done or the client goes away; none of those is an error.
// Failed turns do not end the loop. limit may be nil.
func (s *Session) Run(ctx context.Context, inbound <-chan string, limit Limiter) error {
	defer s.Close()
	for {
		var text string
		var ok bool
		select {
		case text, ok = <-inbound:
			if !ok {
				return nil
			}
		case <-ctx.Done():
			return nil
		}

		if limit != nil {
			if err := limit.Acquire(ctx, 1); err != nil {
				return nil
			}
		}
		_, err := s.HandleTurn(ctx, text)
		if limit != nil {
			limit.Release(1)
		}

		var te *TurnError
		switch {
		case err == nil, errors.As(err, &te):
		case errors.Is(err, ErrClientGone):
			slog.Debug("client gone", "session_id", string(s.id), "error", err)
			return nil
		case ctx.Err() != nil:
			slog.Debug("session cancelled", "session_id", string(s.id))
			return nil
		default:
			return err
		}
	}
}

// HandleTurn runs one user message through the state machine and returns
// the answer recorded for it. A *TurnError means the failure was reported
// to the client; any other error means the session is closed.
func (s *Session) HandleTurn(ctx context.Context, text string) (string, error) {
	if s.State() == StateClosed {
		return "", ErrClosed
	}
	start := time.Now()
	defer s.setState(StateAwaitingInput)

	// Streams opened during the turn stop when it returns.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if strings.TrimSpace(text) == "" {
		return "", s.fail(ctx, "", emptyMessage, fmt.Errorf("blank message: %w", types.ErrInvalidInput))
	}

	s.setState(StateDecidingAction)
	if err := s.o.store.AppendTurn(ctx, &types.Turn{SessionID: s.id, Role: types.RoleUser, Content: text}); err != nil {
		return "", s.fail(ctx, "", internalError, fmt.Errorf("record user turn: %w", err))
	}

	history, err := s.history(ctx)
	if err != nil {
		return "", s.fail(ctx, "", internalError, err)
	}

	decideStart := time.Now()
	resp, err := s.o.provider.Complete(ctx, history, ToolDeclarations())
	s.o.metrics.Stage("decide", decideStart)
	if err != nil {
		return "", s.fail(ctx, "", llmErrorPrefix+err.Error(), fmt.Errorf("decide: %w", err))
	}

	d := Decide(resp.ToolCalls, text)
	slog.Debug("turn decided", "session_id", string(s.id), "action", d.Kind.String(), "query", d.Query)

	if d.Kind == ToolGenerateQuery {
		s.setState(StateToolRetrieval)
		return s.research(ctx, d.Query, start)
	}
	s.setState(StateDirectAnswer)
	return s.answerDirectly(ctx, history, start)
}

func (s *Session) history(ctx context.Context) ([]llm.Message, error) {
	sess, err := s.o.store.GetSession(ctx, s.id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	turns, err := s.o.store.ListTurns(ctx, s.id)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	return s.o.engine.BuildHistory(sess, turns, ToolNames())
}

func (s *Session) answerDirectly(ctx context.Context, history []llm.Message, start time.Time) (string, error) {
	ch, err := s.o.provider.Stream(ctx, history, nil)
	if err != nil {
		return "", s.fail(ctx, metrics.PathDirect, llmErrorPrefix+err.Error(), fmt.Errorf("direct answer: %w", err))
	}
	return s.stream(ctx, metrics.PathDirect, ch, start)
}

func (s *Session) research(ctx context.Context, topic string, start time.Time) (string, error) {
	const path = metrics.PathRetrieval

	stageStart := time.Now()
	query, err := s.o.expander.Expand(ctx, topic)
	s.o.metrics.Stage("expand", stageStart)
	if err != nil {
		if ctx.Err() != nil {
			return "", s.fail(ctx, path, "", err)
		}
		slog.Warn("query expansion failed, searching for topic", "session_id", string(s.id), "error", err)
		query = topic
	}
	if err := s.think(ctx, query); err != nil {
		return "", err
	}

	stageStart = time.Now()
	used, urls, err := s.o.retriever.Search(ctx, query, topic)
	s.o.metrics.Stage("search", stageStart)
	if err != nil {
		return "", s.fail(ctx, path, internalError, err)
	}
	if err := s.think(ctx, fmt.Sprintf(thinkAnalyzing, len(urls))); err != nil {
		return "", err
	}

	stageStart = time.Now()
	docs, err := s.o.retriever.FetchAll(ctx, urls)
	s.o.metrics.Stage("fetch", stageStart)
	if err != nil {
		return "", s.fail(ctx, path, internalError, err)
	}
	s.o.metrics.Pages(len(docs), len(urls)-len(docs))
	slog.Info("pages retrieved", "session_id", string(s.id), "query", used, "urls", len(urls), "docs", len(docs))
	if len(docs) == 0 {
		return s.noResults(ctx, start)
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text()
	}
	stageStart = time.Now()
	ranked, err := s.o.reranker.Rerank(ctx, query, texts)
	s.o.metrics.Stage("rerank", stageStart)
	if err != nil {
		return "", s.fail(ctx, path, internalError, err)
	}
	if err := s.think(ctx, thinkReviewing); err != nil {
		return "", err
	}

	ordered := make([]string, len(ranked))
	for i, r := range ranked {
		ordered[i] = r.Doc
	}
	stageStart = time.Now()
	digests := s.o.summarizer.SummarizeAll(ctx, ordered)
	s.o.metrics.Stage("summarize", stageStart)
	if err := ctx.Err(); err != nil {
		return "", s.fail(ctx, path, "", err)
	}
	s.o.metrics.SummaryFailures(summary.Failed(digests))

	material := summary.Join(digests)
	if material == "" {
		return s.noResults(ctx, start)
	}
	if err := s.think(ctx, thinkGenerating); err != nil {
		return "", err
	}

	ch, err := s.o.synthesizer.Synthesize(ctx, material)
	if err != nil {
		return "", s.fail(ctx, path, llmErrorPrefix+err.Error(), err)
	}
	return s.stream(ctx, path, ch, start)
}

// stream forwards chunks from ch, then closes the answer with stream_end
// and records it. A failure mid-stream still ends the stream before the
// error notice so the client can finish the partial answer.
func (s *Session) stream(ctx context.Context, path string, ch <-chan llm.Delta, start time.Time) (string, error) {
	var sb strings.Builder
	first := true
	for d := range ch {
		if d.Err != nil {
			if ctx.Err() != nil {
				break
			}
			if err := s.send(ctx, Event{Type: EventStreamEnd}); err != nil {
				return "", err
			}
			return "", s.fail(ctx, path, llmErrorPrefix+d.Err.Error(), d.Err)
		}
		if d.Content == "" {
			continue
		}
		if first {
			s.o.metrics.FirstChunk(path, start)
			first = false
		}
		sb.WriteString(d.Content)
		if err := s.send(ctx, Event{Type: EventChunk, Text: d.Content}); err != nil {
			return "", err
		}
	}
	if err := ctx.Err(); err != nil {
		return "", s.fail(ctx, path, "", err)
	}

	if err := s.send(ctx, Event{Type: EventStreamEnd}); err != nil {
		return "", err
	}
	return s.record(ctx, path, metrics.StatusSuccess, sb.String())
}

func (s *Session) noResults(ctx context.Context, start time.Time) (string, error) {
	s.o.metrics.FirstChunk(metrics.PathRetrieval, start)
	if err := s.send(ctx, Event{Type: EventChunk, Text: NoResultsAnswer}); err != nil {
		return "", err
	}
	if err := s.send(ctx, Event{Type: EventStreamEnd}); err != nil {
		return "", err
	}
	return s.record(ctx, metrics.PathRetrieval, metrics.StatusNoResults, NoResultsAnswer)
}

func (s *Session) record(ctx context.Context, path, status, answer string) (string, error) {
	err := s.o.store.AppendTurn(ctx, &types.Turn{SessionID: s.id, Role: types.RoleAssistant, Content: answer})
	if err != nil {
		return "", s.fail(ctx, path, internalError, fmt.Errorf("record answer: %w", err))
	}
	s.o.metrics.Turn(path, status)
	return answer, nil
}

func (s *Session) think(ctx context.Context, msg string) error {
	return s.send(ctx, Event{Type: EventThink, Text: msg})
}

// send emits ev and closes the session when the client is gone.
func (s *Session) send(ctx context.Context, ev Event) error {
	ev.SessionID = s.id
	if err := s.emit.Emit(ctx, ev); err != nil {
		s.Close()
		return fmt.Errorf("emit %s: %w: %w", ev.Type, ErrClientGone, err)
	}
	return nil
}

// fail ends the current turn. Cancellation closes the session without a
// notice; any other failure is reported once and leaves the session open.
func (s *Session) fail(ctx context.Context, path, notice string, err error) error {
	if path == "" {
		path = "undecided"
	}
	if ctx.Err() != nil {
		slog.Debug("turn abandoned", "session_id", string(s.id), "error", err)
		s.o.metrics.Turn(path, metrics.StatusCancelled)
		s.Close()
		return ctx.Err()
	}

	slog.Error("turn failed", "session_id", string(s.id), "path", path, "error", err)
	s.o.metrics.Turn(path, metrics.StatusError)
	if sendErr := s.send(ctx, Event{Type: EventError, Text: notice}); sendErr != nil {
		return sendErr
	}
	return &TurnError{Notice: notice, Err: err}
}
