// Package hello implements a Relay workflow that greets the device
// that started it.
package hello

import (
	"context"

	"github.com/relaypro/relay-go/logkeys"
	"github.com/relaypro/relay-go/protocol"
	"github.com/relaypro/relay-go/relay"
	"github.com/relaypro/relay-go/workflow"

	"github.com/micromdm/nanolib/log"
)

const (
	DefaultWorkflowName = "hello"
	InteractionName     = "hello interaction"
)

// Workflow says hello world and terminates.
type Workflow struct {
	name     string
	greeting string
	logger   log.Logger
}

// Options configure [Workflow].
type Option func(*Workflow)

// WithName names the workflow. By default [DefaultWorkflowName] is used.
func WithName(name string) Option {
	return func(w *Workflow) {
		w.name = name
	}
}

// WithGreeting changes what is said.
func WithGreeting(greeting string) Option {
	return func(w *Workflow) {
		w.greeting = greeting
	}
}

// New creates a new [Workflow].
func New(logger log.Logger, opts ...Option) *Workflow {
	if logger == nil {
		panic("nil logger")
	}
	w := &Workflow{
		name:     DefaultWorkflowName,
		greeting: "hello world",
		logger:   logger,
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
	wf := workflow.New()
	wf.OnStart(func(ctx context.Context, r *relay.Relay, ev *protocol.StartEvent) error {
		w.logger.Debug(
			logkeys.Message, "started",
			logkeys.SessionID, r.SessionID(),
			logkeys.Target, ev.SourceURI(),
		)
		return r.StartInteraction(ctx, ev.SourceURI(), InteractionName, nil)
	})
	wf.OnInteractionLifecycle(func(ctx context.Context, r *relay.Relay, ev *protocol.InteractionLifecycleEvent) error {
		switch {
		case ev.IsTypeStarted():
			if _, err := r.SayAndWait(ctx, string(ev.SourceURI), w.greeting); err != nil {
				return err
			}
			return r.EndInteraction(ctx, string(ev.SourceURI), InteractionName)
		case ev.IsTypeEnded():
			return r.Terminate(ctx)
		}
		return nil
	})
	return wf
}
