package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/gophersearch/internal/delivery"
	"github.com/user/gophersearch/internal/gateway"
	"github.com/user/gophersearch/internal/runtime"
	"github.com/user/gophersearch/internal/state"
	"github.com/user/gophersearch/internal/types"
)

// Submitter queues a turn.
type Submitter interface {
	HandleInbound(ctx context.Context, event *types.InboundEvent, opts ...gateway.RunOption) error
}

// Runner pushes task prompts through the gateway and records the outcome.
type Runner struct {
	gw       Submitter
	store    *state.TaskStore
	delivery *delivery.Registry
}

// NewRunner creates a Runner. delivery may be nil, in which case scheduled
// answers are only stored in the task's conversation.
func NewRunner(gw Submitter, store *state.TaskStore, d *delivery.Registry) *Runner {
	return &Runner{gw: gw, store: store, delivery: d}
}

// SessionKey returns the conversation a task writes to.
func SessionKey(task *state.Task) string {
	if task.SessionKey != "" {
		return task.SessionKey
	}
	return string(types.NewSessionKey("task", task.Name))
}

// Fire runs a task in the background and delivers the answer to the task's
// session key. It is the scheduler's Handler.
func (r *Runner) Fire(task state.Task) {
	go func() {
		answer, err := r.RunTask(context.Background(), &task, task.Prompt)
		if err != nil {
			slog.Error("scheduled task failed", "name", task.Name, "error", err)
			return
		}
		if r.delivery == nil {
			return
		}
		if err := r.delivery.Deliver(context.Background(), SessionKey(&task), answer); err != nil {
			slog.Warn("task delivery failed", "name", task.Name, "error", err)
		}
	}()
}

// RunTask runs prompt in the task's conversation and records the run.
func (r *Runner) RunTask(ctx context.Context, task *state.Task, prompt string) (string, error) {
	answer, err := r.Run(ctx, SessionKey(task), prompt)
	if recErr := r.store.RecordRun(task.Name, time.Now(), err); recErr != nil {
		slog.Warn("record task run failed", "name", task.Name, "error", recErr)
	}
	return answer, err
}

// Run submits prompt to the conversation named by sessionKey and waits for
// the answer.
func (r *Runner) Run(ctx context.Context, sessionKey, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" || sessionKey == "" {
		return "", fmt.Errorf("prompt and session key are required: %w", types.ErrInvalidInput)
	}

	done := make(chan string, 1)
	failed := make(chan error, 1)
	event := &types.InboundEvent{Source: "task", SessionKey: types.SessionKey(sessionKey), Text: prompt}
	err := r.gw.HandleInbound(ctx, event,
		gateway.WithOnComplete(func(resp string) { done <- resp }),
		gateway.WithOnFailure(func(err error) { failed <- err }),
	)
	if err != nil {
		return "", err
	}

	select {
	case resp := <-done:
		return resp, nil
	case err := <-failed:
		var te *runtime.TurnError
		if errors.As(err, &te) {
			return "", errors.New(te.Notice)
		}
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
