package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/relaypro/relay-go/engine/storage"
	"github.com/relaypro/relay-go/logkeys"
	"github.com/relaypro/relay-go/protocol"
	"github.com/relaypro/relay-go/relay"
	"github.com/relaypro/relay-go/session"
	"github.com/relaypro/relay-go/workflow"

	"github.com/micromdm/nanolib/log"
)

// ReasonClosed is the stop reason recorded when the connection ends
// without a stop event.
const ReasonClosed = "connection closed"

// item is a queued event along with the session state it was routed to.
type item struct {
	msg *protocol.Message
	s   *session.Session
	w   *workflow.Workflow
	r   *relay.Relay
}

// Conn dispatches the messages of one connection.
// A connection carries at most one session whose id is the connection id.
type Conn struct {
	e       *Engine
	id      string
	builder workflow.Builder
	t       Transport
	logger  log.Logger

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []item
	closed    bool
	reason    string
	started   bool
	stopping  bool
	s         *session.Session
	w         *workflow.Workflow
	r         *relay.Relay
	cancelCur context.CancelFunc

	// closedSession is the session stopped by Close.
	closedSession *session.Session

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(e *Engine, id string, b workflow.Builder, t Transport) *Conn {
	c := &Conn{
		e:       e,
		id:      id,
		builder: b,
		t:       t,
		logger: e.logger.With(
			logkeys.SessionID, id,
			logkeys.WorkflowName, b.Name(),
		),
		done: make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	go c.run()
	return c
}

// ID returns the connection id, which is also the session id.
func (c *Conn) ID() string {
	return c.id
}

// Session returns the live session of the connection, if any.
func (c *Conn) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}

// OnMessage handles one inbound message. Replies are settled before
// OnMessage returns; events are queued for the workflow.
// Messages must be passed in arrival order from a single goroutine.
func (c *Conn) OnMessage(raw []byte) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		c.e.metrics.ProtocolErrors.Inc()
		c.logger.Info(
			logkeys.Message, "dropping message",
			logkeys.Error, err,
		)
		return
	}

	s := c.Session()
	if s != nil && c.e.correlator.Resolve(s, msg) {
		return
	}
	if msg.Kind == protocol.KindResponse {
		if s == nil {
			c.e.metrics.Unclaimed.Inc()
		}
		c.logger.Debug(
			logkeys.Message, "dropping response",
			logkeys.EventType, msg.Type,
			logkeys.CorrelationID, msg.ID,
		)
		return
	}
	if s != nil {
		c.e.correlator.Observe(s, msg)
	}

	switch msg.Event() {
	case protocol.EventStart:
		c.start(msg)
	case protocol.EventStop:
		c.stop(msg)
	default:
		c.enqueue(msg)
	}
}

func (c *Conn) start(msg *protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.started && (c.s == nil || c.stopping) {
		c.reject("ended", fmt.Errorf("%w: %s", ErrSessionEnded, c.id))
		return
	}
	if c.started {
		c.reject("duplicate", fmt.Errorf("%w: %s", session.ErrDuplicateSession, c.id))
		return
	}
	s, err := c.e.registry.Start(c.id, c.builder.Name(), c.t)
	if err != nil {
		c.reject("duplicate", err)
		return
	}
	c.started = true
	c.s = s
	c.w = c.builder.NewWorkflow()
	c.r = relay.New(
		s,
		c.e.correlator,
		relay.WithLogger(c.e.logger.With(logkeys.WorkflowName, c.builder.Name())),
		relay.WithInventory(c.e.inventory),
	)
	c.e.metrics.SessionsStarted.WithLabelValues(c.builder.Name()).Inc()
	c.push(msg)
}

// reject logs a refused start. Callers must hold c.mu.
func (c *Conn) reject(reason string, err error) {
	c.e.metrics.SessionsRejected.WithLabelValues(reason).Inc()
	c.logger.Info(
		logkeys.Message, "rejecting start",
		logkeys.Error, err,
	)
}

func (c *Conn) stop(msg *protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.s == nil || c.stopping {
		c.logger.Debug(
			logkeys.Message, "dropping stop",
			logkeys.EventType, msg.Type,
		)
		return
	}
	c.stopping = true
	// unblock a callback waiting on a reply so that the stop is reached
	c.s.Fail(fmt.Errorf("%w: %s", session.ErrSessionClosed, c.id))
	if c.cancelCur != nil {
		c.cancelCur()
	}
	c.push(msg)
}

func (c *Conn) enqueue(msg *protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.s == nil || c.stopping {
		c.logger.Debug(
			logkeys.Message, "dropping event",
			logkeys.EventType, msg.Type,
		)
		return
	}
	c.push(msg)
}

// push queues msg for the current session. Callers must hold c.mu.
func (c *Conn) push(msg *protocol.Message) {
	c.queue = append(c.queue, item{msg: msg, s: c.s, w: c.w, r: c.r})
	c.cond.Signal()
}

// next blocks until an item is queued. It returns false once the
// connection is closed and the queue is drained.
func (c *Conn) next() (item, context.Context, context.CancelFunc, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.queue) < 1 && !c.closed {
		c.cond.Wait()
	}
	if len(c.queue) < 1 {
		return item{}, nil, nil, false
	}
	it := c.queue[0]
	c.queue[0] = item{}
	c.queue = c.queue[1:]
	ctx, cancel := context.WithCancel(context.Background())
	switch {
	case it.msg.Event() == protocol.EventStop:
		// the stop callback is never interrupted
		c.cancelCur = nil
	case c.stopping:
		// events queued ahead of a stop run with commands cancelled
		cancel()
	default:
		c.cancelCur = cancel
	}
	return it, ctx, cancel, true
}

func (c *Conn) run() {
	defer close(c.done)
	for {
		it, ctx, cancel, ok := c.next()
		if !ok {
			break
		}
		if it.msg.Event() == protocol.EventStart {
			c.recordStarted(it)
		}
		c.dispatch(ctx, it)
		if it.msg.Event() == protocol.EventStop {
			var ev protocol.StopEvent
			_ = it.msg.Unmarshal(&ev)
			c.recordStopped(c.endSession(), string(ev.Reason))
		}
		c.mu.Lock()
		c.cancelCur = nil
		c.mu.Unlock()
		cancel()
	}
	c.mu.Lock()
	s, reason := c.closedSession, c.reason
	c.mu.Unlock()
	c.recordStopped(s, reason)
	c.logger.Debug(logkeys.Message, "connection finished")
}

// endSession removes the session from the registry, failing its
// outstanding commands. The removed session is returned, nil if the
// connection holds none.
func (c *Conn) endSession() *session.Session {
	c.mu.Lock()
	s := c.s
	c.s = nil
	c.mu.Unlock()
	if s != nil {
		c.e.registry.Stop(s.ID())
	}
	return s
}

// dispatch invokes the callback registered for the event type of it.
func (c *Conn) dispatch(ctx context.Context, it item) {
	ev := it.msg.Event()
	fn, ok := it.w.Handler(ev)
	if !ok {
		return
	}
	c.e.metrics.Events.WithLabelValues(string(ev)).Inc()
	if err := invoke(ctx, fn, it.r, it.msg); err != nil {
		err = &CallbackError{SessionID: c.id, EventType: ev, Err: err}
		c.e.metrics.CallbackErrors.WithLabelValues(string(ev)).Inc()
		c.logger.Info(
			logkeys.Message, "workflow callback",
			logkeys.EventType, ev,
			logkeys.Error, err,
		)
	}
}

// errPanic wraps a recovered callback panic.
var errPanic = errors.New("panic")

func invoke(ctx context.Context, fn workflow.Handler, r *relay.Relay, msg *protocol.Message) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v\n%s", errPanic, p, debug.Stack())
		}
	}()
	return fn(ctx, r, msg)
}

func (c *Conn) recordStarted(it item) {
	if c.e.storage == nil {
		return
	}
	var ev protocol.StartEvent
	_ = it.msg.Unmarshal(&ev)
	err := c.e.storage.RecordSessionStarted(context.Background(), &storage.Status{
		ID:        c.id,
		Workflow:  c.builder.Name(),
		Trigger:   string(ev.Trigger.Type),
		SourceURI: ev.SourceURI(),
		Started:   it.s.Created(),
	})
	if err != nil {
		logAndError(err, c.logger, "recording session start")
	}
}

func (c *Conn) recordStopped(s *session.Session, reason string) {
	if c.e.storage == nil || s == nil {
		return
	}
	if err := c.e.storage.RecordSessionStopped(context.Background(), s.ID(), reason, time.Now()); err != nil {
		logAndError(err, c.logger, "recording session stop")
	}
}

// Close ends the connection. The session, if live, is stopped without
// a stop callback and queued events are drained with commands failing.
// Close does not close the transport. It is safe to call more than once.
func (c *Conn) Close(reason string) {
	c.closeOnce.Do(func() {
		s := c.endSession()
		c.mu.Lock()
		c.closed = true
		c.reason = reason
		c.closedSession = s
		if c.cancelCur != nil {
			c.cancelCur()
		}
		c.cond.Broadcast()
		c.mu.Unlock()
		if s != nil {
			c.logger.Debug(
				logkeys.Message, "stopped session",
				"reason", reason,
			)
		}
	})
}

// Done is closed once the connection is closed and every queued event
// has been dispatched.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until Done is closed or ctx is done.
func (c *Conn) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
