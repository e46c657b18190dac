package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/gophersearch/internal/delivery"
	"github.com/user/gophersearch/internal/gateway"
	"github.com/user/gophersearch/internal/runtime"
	"github.com/user/gophersearch/internal/state"
	"github.com/user/gophersearch/internal/types"
)

// fakeGateway completes every run synchronously.
type fakeGateway struct {
	mu     sync.Mutex
	events []*types.InboundEvent
	answer string
	notice string
	hold   bool
}

func (f *fakeGateway) HandleInbound(ctx context.Context, event *types.InboundEvent, opts ...gateway.RunOption) error {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()

	run := gateway.NewRun(event.SessionKey.SessionID(), event)
	for _, opt := range opts {
		opt(run)
	}
	if f.hold {
		return nil
	}
	if f.notice != "" {
		run.OnFailure(&runtime.TurnError{Notice: f.notice, Err: errors.New("quota")})
		return nil
	}
	run.OnComplete(f.answer)
	return nil
}

func newRunnerStore(t *testing.T) *state.TaskStore {
	t.Helper()
	store := state.NewTaskStore(filepath.Join(t.TempDir(), "tasks.json"))
	require.NoError(t, store.Add(&state.Task{Name: "digest", Prompt: "daily Go news", Enabled: true}))
	return store
}

func TestRunnerRunTaskRecords(t *testing.T) {
	store := newRunnerStore(t)
	gw := &fakeGateway{answer: "Go 1.26 is out."}
	r := NewRunner(gw, store, nil)

	task, err := store.Get("digest")
	require.NoError(t, err)

	answer, err := r.RunTask(context.Background(), task, task.Prompt)
	require.NoError(t, err)
	assert.Equal(t, "Go 1.26 is out.", answer)

	require.Len(t, gw.events, 1)
	assert.Equal(t, types.SessionKey("task:digest"), gw.events[0].SessionKey)
	assert.Equal(t, "daily Go news", gw.events[0].Text)

	task, err = store.Get("digest")
	require.NoError(t, err)
	assert.False(t, task.LastRunAt.IsZero())
	assert.Empty(t, task.LastError)
}

func TestRunnerTurnFailure(t *testing.T) {
	store := newRunnerStore(t)
	gw := &fakeGateway{notice: "Error from LLM: quota exceeded"}
	r := NewRunner(gw, store, nil)

	task, err := store.Get("digest")
	require.NoError(t, err)

	_, err = r.RunTask(context.Background(), task, task.Prompt)
	require.EqualError(t, err, "Error from LLM: quota exceeded")

	task, err = store.Get("digest")
	require.NoError(t, err)
	assert.Equal(t, "Error from LLM: quota exceeded", task.LastError)
}

func TestRunnerRequiresPrompt(t *testing.T) {
	r := NewRunner(&fakeGateway{}, newRunnerStore(t), nil)
	_, err := r.Run(context.Background(), "webhook:x", "  ")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestRunnerContextCancelled(t *testing.T) {
	r := NewRunner(&fakeGateway{hold: true}, newRunnerStore(t), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, "webhook:x", "anything")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunnerFireDelivers(t *testing.T) {
	store := newRunnerStore(t)
	reg := delivery.NewRegistry()
	got := make(chan string, 1)
	reg.Register("telegram:", func(_ context.Context, key, msg string) error {
		got <- key + "|" + msg
		return nil
	})

	r := NewRunner(&fakeGateway{answer: "digest body"}, store, reg)
	r.Fire(state.Task{Name: "digest", Prompt: "daily Go news", SessionKey: "telegram:7:7", Enabled: true})

	select {
	case v := <-got:
		assert.Equal(t, "telegram:7:7|digest body", v)
	case <-time.After(2 * time.Second):
		t.Fatal("task answer was not delivered")
	}
}
