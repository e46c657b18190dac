package runtime

import (
	"context"

	"github.com/user/gophersearch/internal/types"
)

// EventType tags an outbound Event.
type EventType string

const (
	EventHistory    EventType = "history"
	EventNewSession EventType = "new_session"
	EventThink      EventType = "think"
	EventChunk      EventType = "chunk"
	EventStreamEnd  EventType = "stream_end"
	EventError      EventType = "error"
)

// HistoryMessage is one stored turn replayed to a reconnecting client.
type HistoryMessage struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

// Event is one item on a session's outbound stream. Text carries the
// think message, the new-session notice, a content chunk or an error
// notice, depending on Type.
type Event struct {
	Type      EventType
	SessionID types.SessionID
	Text      string
	History   []HistoryMessage
}

// Emitter delivers events to the client in the order they are emitted. An
// error means the client is gone and the session must close.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, ev Event) error

func (f EmitterFunc) Emit(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(context.Context, Event) error { return nil })
