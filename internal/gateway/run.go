package gateway

import (
	"context"
	"time"

	"github.com/user/gophersearch/internal/runtime"
	"github.com/user/gophersearch/internal/types"
)

// RunStatus represents the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one queued turn from a non-interactive source: a chat platform
// message, a scheduled task or a webhook call.
type Run struct {
	ID        types.RunID
	SessionID types.SessionID
	Event     *types.InboundEvent
	Status    RunStatus
	CreatedAt time.Time
	StartedAt *time.Time
	EndedAt   *time.Time
	Error     error

	// Ctx is set by the queue when the run starts.
	Ctx context.Context
	// Emitter receives progress and content events; nil discards them.
	Emitter runtime.Emitter
	// OnComplete receives the answer, or the error notice when the turn
	// failed.
	OnComplete func(response string)
	// OnFailure, when set, receives a failed run's error in place of the
	// notice sent to OnComplete.
	OnFailure func(err error)
}

// NewRun creates a Run in the Queued state for the given session and event.
func NewRun(sessionID types.SessionID, event *types.InboundEvent) *Run {
	return &Run{
		ID:        types.NewRunID(),
		SessionID: sessionID,
		Event:     event,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
	}
}

func (r *Run) start() {
	now := time.Now()
	r.StartedAt = &now
	r.Status = RunStatusRunning
}

func (r *Run) finish(err error) {
	now := time.Now()
	r.EndedAt = &now
	r.Error = err
	if err != nil {
		r.Status = RunStatusFailed
	} else {
		r.Status = RunStatusComplete
	}
}
