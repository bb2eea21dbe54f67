// Package correlate matches outbound requests to their inbound replies.
package correlate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/relaypro/relay-go/logkeys"
	"github.com/relaypro/relay-go/metrics"
	"github.com/relaypro/relay-go/protocol"
	"github.com/relaypro/relay-go/session"
	"github.com/relaypro/relay-go/utils/uuid"

	"github.com/micromdm/nanolib/log"
)

var (
	ErrCommandTimeout = errors.New("command timeout")
	ErrCommandFailed  = errors.New("command failed")
)

// DefaultTimeout is the default time to wait for a reply.
const DefaultTimeout = 10 * time.Second

// attempts to find an unused correlation id
const idAttempts = 3

// Correlator sends requests over sessions and resolves their replies.
type Correlator struct {
	ider    uuid.IDer
	timeout time.Duration
	logger  log.Logger
	metrics *metrics.Metrics
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithLogger sets the correlator logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Correlator) {
		c.logger = logger
	}
}

// WithIDer sets the correlation id generator.
func WithIDer(ider uuid.IDer) Option {
	return func(c *Correlator) {
		c.ider = ider
	}
}

// WithTimeout sets the default reply timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Correlator) {
		c.timeout = timeout
	}
}

// WithMetrics sets the metrics to update.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Correlator) {
		c.metrics = m
	}
}

// New creates a new correlator.
func New(opts ...Option) *Correlator {
	c := &Correlator{
		ider:    uuid.NewHex(),
		timeout: DefaultTimeout,
		logger:  log.NopLogger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.New(nil)
	}
	return c
}

// Timeout returns the default reply timeout.
func (c *Correlator) Timeout() time.Duration {
	return c.timeout
}

// Call is a request awaiting its reply.
type Call struct {
	c   *Correlator
	s   *session.Session
	p   *session.Pending
	req *protocol.Request
}

// Send transmits req over s. If expectsReply is true the returned Call
// resolves with the reply carrying the same correlation id, or fails
// after timeout; otherwise the returned Call is nil. A timeout of zero
// uses the default.
func (c *Correlator) Send(ctx context.Context, s *session.Session, req *protocol.Request, expectsReply bool, timeout time.Duration) (*Call, error) {
	return c.send(ctx, s, req, expectsReply, false, timeout)
}

// SendAwaitPrompt is like Send with a reply expected, but the Call only
// resolves once the prompt started by the request has stopped.
func (c *Correlator) SendAwaitPrompt(ctx context.Context, s *session.Session, req *protocol.Request, timeout time.Duration) (*Call, error) {
	return c.send(ctx, s, req, true, true, timeout)
}

func (c *Correlator) send(ctx context.Context, s *session.Session, req *protocol.Request, expectsReply, waitPrompt bool, timeout time.Duration) (*Call, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	var p *session.Pending
	if expectsReply {
		var err error
		for i := 0; i < idAttempts; i++ {
			req.ID = c.ider.ID()
			p = session.NewPending(req.ID, req.Type, timeout)
			p.WaitPromptStop = waitPrompt
			if err = s.Track(p); !errors.Is(err, session.ErrDuplicateID) {
				break
			}
		}
		if err != nil {
			return nil, fmt.Errorf("tracking %s: %w", req.Type, err)
		}
	} else {
		req.ID = c.ider.ID()
	}

	logger := c.logger.With(
		logkeys.SessionID, s.ID(),
		logkeys.RequestType, req.Type,
		logkeys.CorrelationID, req.ID,
	)

	raw, err := json.Marshal(req)
	if err == nil {
		err = s.Send(ctx, raw)
	}
	if err != nil {
		if p != nil {
			s.Settle(p.ID, nil, err)
		}
		logger.Info(logkeys.Message, "sending request", logkeys.Error, err)
		return nil, fmt.Errorf("sending %s: %w", req.Type, err)
	}
	c.metrics.CommandSent(string(req.Type), expectsReply)
	logger.Debug(logkeys.Message, "sent request", "expects_reply", expectsReply)

	if p == nil {
		return nil, nil
	}
	return &Call{c: c, s: s, p: p, req: req}, nil
}

// ID returns the correlation id of the call.
func (call *Call) ID() string {
	return call.p.ID
}

// Wait blocks until the reply arrives, the deadline passes, ctx is done
// or the session closes. A reply is delivered at most once.
func (call *Call) Wait(ctx context.Context) (*protocol.Message, error) {
	for {
		timer := time.NewTimer(time.Until(call.p.Deadline()))
		select {
		case <-call.p.Done():
			timer.Stop()
			return call.p.Result()
		case <-ctx.Done():
			timer.Stop()
			call.s.Settle(call.p.ID, nil, ctx.Err())
		case <-timer.C:
			if time.Now().Before(call.p.Deadline()) {
				// extended by a progress event
				continue
			}
			if call.s.Settle(call.p.ID, nil, ErrCommandTimeout) {
				call.c.timedOut(call.s, call.p)
			}
		}
		// settled by us or by a racing reply
		<-call.p.Done()
		return call.p.Result()
	}
}

func (c *Correlator) timedOut(s *session.Session, p *session.Pending) {
	c.metrics.CommandTimeouts.WithLabelValues(string(p.RequestType)).Inc()
	c.logger.Info(
		logkeys.Message, "request timed out",
		logkeys.SessionID, s.ID(),
		logkeys.RequestType, p.RequestType,
		logkeys.CorrelationID, p.ID,
	)
}

// Resolve settles the outstanding request of s matching the correlation
// id of msg. Only responses settle requests. It returns false if msg is
// not a response, carries no id or none is outstanding, in which case
// msg should be routed as an ordinary event.
func (c *Correlator) Resolve(s *session.Session, msg *protocol.Message) bool {
	if msg.Kind != protocol.KindResponse || msg.ID == "" {
		return false
	}
	p, ok := s.Lookup(msg.ID)
	if !ok {
		c.metrics.Unclaimed.Inc()
		c.logger.Debug(
			logkeys.Message, "unclaimed response",
			logkeys.SessionID, s.ID(),
			logkeys.CorrelationID, msg.ID,
			logkeys.EventType, msg.Type,
		)
		return false
	}
	switch {
	case msg.IsError():
		c.metrics.CommandFailures.WithLabelValues(string(p.RequestType)).Inc()
		return s.Settle(msg.ID, nil, fmt.Errorf("%w: %s: %s", ErrCommandFailed, p.RequestType, msg.ErrorText()))
	case p.WaitPromptStop:
		// the response names the prompt to wait on
		return s.Hold(msg.ID, msg.String("id"), msg)
	default:
		return s.Settle(msg.ID, msg, nil)
	}
}

// Observe applies prompt and progress events to outstanding requests of
// s. The request is found by the correlation id of msg, then by its
// "id" field. Observed events are still routed to the workflow.
func (c *Correlator) Observe(s *session.Session, msg *protocol.Message) {
	if msg.Kind != protocol.KindEvent {
		return
	}
	key, ok := observedKey(s, msg)
	if !ok {
		return
	}
	switch msg.Event() {
	case protocol.EventProgress:
		s.Extend(key)
	case protocol.EventPrompt:
		switch msg.String("type") {
		case protocol.PromptStopped:
			s.Release(key)
		case protocol.PromptFailed:
			if p, ok := s.Lookup(key); ok && p.WaitPromptStop {
				c.metrics.CommandFailures.WithLabelValues(string(p.RequestType)).Inc()
				s.Settle(key, nil, fmt.Errorf("%w: %s: prompt failed", ErrCommandFailed, p.RequestType))
			}
		}
	}
}

func observedKey(s *session.Session, msg *protocol.Message) (string, bool) {
	for _, key := range []string{msg.ID, msg.String("id")} {
		if key == "" {
			continue
		}
		if _, ok := s.Lookup(key); ok {
			return key, true
		}
	}
	return "", false
}

// Sweep fails every request in r whose deadline is before now with
// ErrCommandTimeout and returns the count.
func (c *Correlator) Sweep(r *session.Registry, now time.Time) int {
	n := 0
	for _, s := range r.Sessions() {
		for _, p := range s.Expire(now, ErrCommandTimeout) {
			c.timedOut(s, p)
			n++
		}
	}
	return n
}
