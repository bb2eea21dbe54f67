// Package relay provides the command surface a workflow uses to drive
// Relay devices within its session.
package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/relaypro/relay-go/correlate"
	"github.com/relaypro/relay-go/logkeys"
	"github.com/relaypro/relay-go/protocol"
	"github.com/relaypro/relay-go/session"
	invstorage "github.com/relaypro/relay-go/subsystem/inventory/storage"

	"github.com/micromdm/nanolib/log"
)

// ErrNoValue is returned when a reply lacks the queried value.
var ErrNoValue = errors.New("no value in reply")

// Relay issues commands over a single session.
type Relay struct {
	s         *session.Session
	c         *correlate.Correlator
	logger    log.Logger
	inventory invstorage.Storage
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// WithInventory records device info replies in store.
func WithInventory(store invstorage.Storage) Option {
	return func(r *Relay) {
		r.inventory = store
	}
}

// New creates a Relay bound to s that sends through c.
func New(s *session.Session, c *correlate.Correlator, opts ...Option) *Relay {
	r := &Relay{s: s, c: c, logger: log.NopLogger}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logkeys.SessionID, s.ID())
	return r
}

// SessionID returns the id of the session the Relay is bound to.
func (r *Relay) SessionID() string {
	return r.s.ID()
}

// Session returns the session the Relay is bound to.
func (r *Relay) Session() *session.Session {
	return r.s
}

// fire sends req without waiting for a reply.
func (r *Relay) fire(ctx context.Context, req *protocol.Request) error {
	_, err := r.c.Send(ctx, r.s, req, false, 0)
	return err
}

// call sends req and waits for its reply.
func (r *Relay) call(ctx context.Context, req *protocol.Request) (*protocol.Message, error) {
	call, err := r.c.Send(ctx, r.s, req, true, 0)
	if err != nil {
		return nil, err
	}
	return call.Wait(ctx)
}

// callAwaitPrompt sends req and waits for the prompt it starts to stop.
func (r *Relay) callAwaitPrompt(ctx context.Context, req *protocol.Request) (*protocol.Message, error) {
	call, err := r.c.SendAwaitPrompt(ctx, r.s, req, 0)
	if err != nil {
		return nil, err
	}
	return call.Wait(ctx)
}

// exec sends req, waits for its reply and discards it.
func (r *Relay) exec(ctx context.Context, req *protocol.Request) error {
	_, err := r.call(ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", req.Type, err)
	}
	return nil
}

type params = map[string]interface{}

func targeted(t protocol.RequestType, target string, p params) *protocol.Request {
	return protocol.NewTargetedRequest(t, p, target)
}
