// Package timers implements a Relay workflow that sets two timers and
// announces the first one to fire.
package timers

import (
	"context"
	"fmt"

	"github.com/relaypro/relay-go/protocol"
	"github.com/relaypro/relay-go/relay"
	"github.com/relaypro/relay-go/workflow"

	"github.com/micromdm/nanolib/log"
)

const (
	DefaultWorkflowName = "timers"
	InteractionName     = "timers interaction"

	FirstTimer  = "first timer"
	SecondTimer = "second timer"
)

// Workflow sets timers and terminates once one fires.
type Workflow struct {
	name   string
	first  int64
	second int64
	logger log.Logger
}

// Options configure [Workflow].
type Option func(*Workflow)

// WithName names the workflow. By default [DefaultWorkflowName] is used.
func WithName(name string) Option {
	return func(w *Workflow) {
		w.name = name
	}
}

// WithTimeouts sets the timeouts of the two timers in seconds.
func WithTimeouts(first, second int64) Option {
	return func(w *Workflow) {
		w.first = first
		w.second = second
	}
}

// New creates a new [Workflow].
func New(logger log.Logger, opts ...Option) *Workflow {
	if logger == nil {
		panic("nil logger")
	}
	w := &Workflow{
		name:   DefaultWorkflowName,
		first:  5,
		second: 10,
		logger: logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the name of w.
func (w *Workflow) Name() string {
	return w.name
}

// NewWorkflow returns the callbacks of one session.
func (w *Workflow) NewWorkflow() *workflow.Workflow {
	var sourceURI string
	wf := workflow.New()
	wf.OnStart(func(ctx context.Context, r *relay.Relay, ev *protocol.StartEvent) error {
		return r.StartInteraction(ctx, ev.SourceURI(), InteractionName, nil)
	})
	wf.OnInteractionLifecycle(func(ctx context.Context, r *relay.Relay, ev *protocol.InteractionLifecycleEvent) error {
		sourceURI = string(ev.SourceURI)
		if !ev.IsTypeStarted() {
			return nil
		}
		if _, err := r.SayAndWait(ctx, sourceURI, "setting timers"); err != nil {
			return err
		}
		if err := r.SetTimer(ctx, protocol.TimerTimeout, FirstTimer, w.first, protocol.TimeoutSecs); err != nil {
			return err
		}
		return r.SetTimer(ctx, protocol.TimerTimeout, SecondTimer, w.second, protocol.TimeoutSecs)
	})
	wf.OnTimerFired(func(ctx context.Context, r *relay.Relay, ev *protocol.TimerFiredEvent) error {
		w.logger.Debug("msg", "timer fired", "name", ev.Name)
		if _, err := r.SayAndWait(ctx, sourceURI, fmt.Sprintf("%s fired", ev.Name)); err != nil {
			return err
		}
		if err := r.ClearTimer(ctx, SecondTimer); err != nil {
			return err
		}
		return r.Terminate(ctx)
	})
	return wf
}
