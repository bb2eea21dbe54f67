// Package leds implements a Relay workflow that walks through the LED
// effects of the device, one per timer.
package leds

import (
	"context"

	"github.com/relaypro/relay-go/protocol"
	"github.com/relaypro/relay-go/relay"
	"github.com/relaypro/relay-go/workflow"

	"github.com/micromdm/nanolib/log"
)

const (
	DefaultWorkflowName = "leds"
	InteractionName     = "leds interaction"
)

// Timer names, in the order they are set.
const (
	TimerRainbow = "rainbow"
	TimerRotate  = "rotate"
	TimerFlash   = "flash"
	TimerBreathe = "breathe"
	TimerVibrate = "vibrate"
	TimerFinish  = "finish"
)

// Workflow shows each LED effect and then terminates.
type Workflow struct {
	name   string
	step   int64
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

// WithStep sets the seconds between effects.
func WithStep(secs int64) Option {
	return func(w *Workflow) {
		w.step = secs
	}
}

// New creates a new [Workflow].
func New(logger log.Logger, opts ...Option) *Workflow {
	if logger == nil {
		panic("nil logger")
	}
	w := &Workflow{name: DefaultWorkflowName, step: 3, logger: logger}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the name of w.
func (w *Workflow) Name() string {
	return w.name
}

// effect shows one effect, announces it and sets the timer for the next.
type effect struct {
	show func(ctx context.Context, r *relay.Relay, target string) error
	say  string
	next string
}

var effects = map[string]effect{
	TimerRainbow: {
		show: func(ctx context.Context, r *relay.Relay, target string) error {
			return r.Rainbow(ctx, target, -1)
		},
		say:  "rainbow",
		next: TimerRotate,
	},
	TimerRotate: {
		show: func(ctx context.Context, r *relay.Relay, target string) error {
			return r.Rotate(ctx, target, "00ff00")
		},
		say:  "rotate",
		next: TimerFlash,
	},
	TimerFlash: {
		show: func(ctx context.Context, r *relay.Relay, target string) error {
			return r.Flash(ctx, target, "ff00ff", 5)
		},
		say:  "flash",
		next: TimerBreathe,
	},
	TimerBreathe: {
		show: func(ctx context.Context, r *relay.Relay, target string) error {
			return r.Breathe(ctx, target, "ff00ff")
		},
		say:  "breathe",
		next: TimerVibrate,
	},
	TimerVibrate: {
		show: func(ctx context.Context, r *relay.Relay, target string) error {
			if err := r.SwitchAllLedOff(ctx, target); err != nil {
				return err
			}
			return r.Vibrate(ctx, target, 100, 500, 500, 500, 500, 500)
		},
		say:  "vibrate",
		next: TimerFinish,
	},
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
		if err := r.SwitchAllLedOn(ctx, sourceURI, "ff0000"); err != nil {
			return err
		}
		if _, err := r.SayAndWait(ctx, sourceURI, "red"); err != nil {
			return err
		}
		return r.SetTimer(ctx, protocol.TimerTimeout, TimerRainbow, w.step, protocol.TimeoutSecs)
	})
	wf.OnTimerFired(func(ctx context.Context, r *relay.Relay, ev *protocol.TimerFiredEvent) error {
		name := string(ev.Name)
		if name == TimerFinish {
			if _, err := r.SayAndWait(ctx, sourceURI, "goodbye"); err != nil {
				return err
			}
			if err := r.SwitchAllLedOff(ctx, sourceURI); err != nil {
				return err
			}
			return r.Terminate(ctx)
		}
		e, ok := effects[name]
		if !ok {
			w.logger.Info("msg", "unknown timer", "name", name)
			return nil
		}
		if err := e.show(ctx, r, sourceURI); err != nil {
			return err
		}
		if _, err := r.SayAndWait(ctx, sourceURI, e.say); err != nil {
			return err
		}
		return r.SetTimer(ctx, protocol.TimerTimeout, e.next, w.step, protocol.TimeoutSecs)
	})
	return wf
}
