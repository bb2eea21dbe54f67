package workflow

import (
	"context"
	"sort"

	"github.com/relaypro/relay-go/protocol"
	"github.com/relaypro/relay-go/relay"
)

// Namers provide a name string.
type Namer interface {
	// Name returns the name of the workflow.
	// This string is used to route connections to this workflow.
	Name() string
}

// Builders create the callback table of a named workflow.
type Builder interface {
	Namer

	// NewWorkflow returns the callback table for one new session.
	NewWorkflow() *Workflow
}

// Handler handles an inbound event for a session.
type Handler func(ctx context.Context, r *relay.Relay, msg *protocol.Message) error

// Workflow is a table of event types to handlers.
// It is not safe for concurrent registration.
type Workflow struct {
	handlers map[protocol.EventType]Handler
}

// New creates an empty callback table.
func New() *Workflow {
	return &Workflow{handlers: make(map[protocol.EventType]Handler)}
}

// Handle registers fn for events of type t, replacing any previous handler.
func (w *Workflow) Handle(t protocol.EventType, fn Handler) {
	w.handlers[t] = fn
}

// Handler returns the handler registered for t.
func (w *Workflow) Handler(t protocol.EventType) (Handler, bool) {
	fn, ok := w.handlers[t]
	return fn, ok
}

// Types returns the registered event types, sorted.
func (w *Workflow) Types() []protocol.EventType {
	types := make([]protocol.EventType, 0, len(w.handlers))
	for t := range w.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// on registers fn for t, decoding the message into a new T first.
func on[T any](w *Workflow, t protocol.EventType, fn func(context.Context, *relay.Relay, *T) error) {
	w.Handle(t, func(ctx context.Context, r *relay.Relay, msg *protocol.Message) error {
		ev := new(T)
		if err := msg.Unmarshal(ev); err != nil {
			return err
		}
		return fn(ctx, r, ev)
	})
}

// Func is a Builder that populates a new table with a function.
type Func struct {
	name string
	fn   func(*Workflow)
}

// NewFunc creates a Builder named name whose tables are populated by fn.
func NewFunc(name string, fn func(*Workflow)) *Func {
	return &Func{name: name, fn: fn}
}

// Name returns the name of f.
func (f *Func) Name() string {
	return f.name
}

// NewWorkflow builds a new table.
func (f *Func) NewWorkflow() *Workflow {
	w := New()
	f.fn(w)
	return w
}
