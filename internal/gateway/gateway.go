// Package gateway admits turns into the runtime. Interactive connections
// run their own session loop; chat platforms, schedules and webhooks go
// through per-session queues. Both share one bound on concurrent turns.
package gateway

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/user/gophersearch/internal/runtime"
	"github.com/user/gophersearch/internal/types"
)

// Opener attaches to a conversation.
type Opener interface {
	Open(ctx context.Context, id types.SessionID, emit runtime.Emitter) (*runtime.Session, error)
}

// Gateway owns the connection registry, the run queue and the turn
// semaphore. Its lifecycle follows the server's.
type Gateway struct {
	opener   Opener
	Registry *Registry
	Queue    *Queue
	turns    *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Gateway that runs at most maxConcurrent turns at once.
func New(opener Opener, maxConcurrent int64) *Gateway {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	sem := semaphore.NewWeighted(maxConcurrent)
	g := &Gateway{
		opener:   opener,
		Registry: NewRegistry(),
		Queue:    NewQueue(sem),
		turns:    sem,
	}
	g.Queue.SetProcessor(g.processRun)
	return g
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context, ends every live connection, stops the
// queue, and waits for outstanding work to finish.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
	g.wg.Wait()
}

// Serve runs one interactive connection to completion: it opens the
// session, registers the connection and feeds inbound messages through the
// session one at a time. It returns when inbound closes, ctx is done, the
// gateway stops or the client goes away.
func (g *Gateway) Serve(ctx context.Context, connID string, id types.SessionID, emit runtime.Emitter, inbound <-chan string) error {
	if g.ctx == nil {
		return fmt.Errorf("gateway not started")
	}
	g.wg.Add(1)
	defer g.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(g.ctx, cancel)
	defer stop()

	sess, err := g.opener.Open(ctx, id, emit)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	g.Registry.Register(connID, sess.ID())
	defer g.Registry.Unregister(connID)

	return sess.Run(ctx, inbound, g.turns)
}

// RunOption configures optional behavior on a Run.
type RunOption func(*Run)

// WithOnComplete sets a callback invoked with the final response.
func WithOnComplete(fn func(string)) RunOption {
	return func(r *Run) { r.OnComplete = fn }
}

// WithOnFailure sets a callback invoked with the error of a failed run.
func WithOnFailure(fn func(error)) RunOption {
	return func(r *Run) { r.OnFailure = fn }
}

// WithEmitter streams the run's events to emit.
func WithEmitter(emit runtime.Emitter) RunOption {
	return func(r *Run) { r.Emitter = emit }
}

// HandleInbound maps the event's session key to its conversation, wraps
// it in a Run, and enqueues it for processing.
func (g *Gateway) HandleInbound(ctx context.Context, event *types.InboundEvent, opts ...RunOption) error {
	if event.SessionKey == "" {
		return fmt.Errorf("inbound event has no session key: %w", types.ErrInvalidInput)
	}
	run := NewRun(event.SessionKey.SessionID(), event)
	for _, opt := range opts {
		opt(run)
	}
	return g.Queue.Enqueue(run)
}

func (g *Gateway) processRun(run *Run) error {
	emit := run.Emitter
	if emit == nil {
		emit = runtime.Discard
	}
	sess, err := g.opener.Open(run.Ctx, run.SessionID, emit)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer sess.Close()

	answer, err := sess.HandleTurn(run.Ctx, run.Event.Text)
	if err != nil {
		return err
	}
	if run.OnComplete != nil {
		run.OnComplete(answer)
	}
	return nil
}
