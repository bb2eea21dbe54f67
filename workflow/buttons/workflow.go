// Package buttons implements a Relay workflow that counts button presses.
package buttons

import (
	"context"
	"fmt"

	"github.com/relaypro/relay-go/logkeys"
	"github.com/relaypro/relay-go/protocol"
	"github.com/relaypro/relay-go/relay"
	"github.com/relaypro/relay-go/workflow"

	"github.com/micromdm/nanolib/log"
)

const (
	DefaultWorkflowName = "buttons"
	InteractionName     = "buttons interaction"
)

// Workflow announces the running count of each button and tap kind.
type Workflow struct {
	name   string
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

// New creates a new [Workflow].
func New(logger log.Logger, opts ...Option) *Workflow {
	if logger == nil {
		panic("nil logger")
	}
	w := &Workflow{name: DefaultWorkflowName, logger: logger}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the name of w.
func (w *Workflow) Name() string {
	return w.name
}

type press struct {
	button string
	taps   string
}

// NewWorkflow returns the callbacks of one session.
// Counts are kept per session.
func (w *Workflow) NewWorkflow() *workflow.Workflow {
	var sourceURI string
	counts := make(map[press]int)
	wf := workflow.New()
	wf.OnStart(func(ctx context.Context, r *relay.Relay, ev *protocol.StartEvent) error {
		return r.StartInteraction(ctx, ev.SourceURI(), InteractionName, nil)
	})
	wf.OnInteractionLifecycle(func(ctx context.Context, r *relay.Relay, ev *protocol.InteractionLifecycleEvent) error {
		sourceURI = string(ev.SourceURI)
		return nil
	})
	wf.OnButton(func(ctx context.Context, r *relay.Relay, ev *protocol.ButtonEvent) error {
		p := press{button: string(ev.Button), taps: string(ev.Taps)}
		counts[p]++
		text := fmt.Sprintf("%s clicked %s %d times", p.taps, p.button, counts[p])
		w.logger.Debug(
			logkeys.Message, text,
			logkeys.SessionID, r.SessionID(),
		)
		_, err := r.SayAndWait(ctx, sourceURI, text)
		return err
	})
	return wf
}
