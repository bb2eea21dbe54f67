// Package websocket binds Relay server WebSocket connections to the engine.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/relaypro/relay-go/engine"
	"github.com/relaypro/relay-go/http/api"
	"github.com/relaypro/relay-go/logkeys"
	"github.com/relaypro/relay-go/utils/uuid"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
	"golang.org/x/net/websocket"
)

const (
	DefaultParam        = "workflow"
	DefaultWriteTimeout = 10 * time.Second
	DefaultDrainTimeout = 30 * time.Second
	DefaultMaxPayload   = 1 << 20
)

// Acceptor binds connections to registered workflows.
type Acceptor interface {
	WorkflowRegistered(name string) bool
	Accept(id, name string, t engine.Transport) (*engine.Conn, error)
}

// Handler upgrades requests to WebSocket connections and feeds their
// messages to the engine. The workflow name is taken from a flow route
// parameter.
type Handler struct {
	a      Acceptor
	logger log.Logger
	ider   uuid.IDer
	param  string

	writeTimeout time.Duration
	drainTimeout time.Duration
	maxPayload   int
	dump         *dumper
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithIDer sets the generator of connection ids.
func WithIDer(ider uuid.IDer) Option {
	return func(h *Handler) {
		h.ider = ider
	}
}

// WithParam sets the route parameter naming the workflow.
func WithParam(param string) Option {
	return func(h *Handler) {
		h.param = param
	}
}

// WithWriteTimeout bounds each outbound write.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.writeTimeout = d
	}
}

// WithDrainTimeout bounds the wait for queued callbacks after the
// connection closes.
func WithDrainTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.drainTimeout = d
	}
}

// WithMaxPayload sets the largest accepted inbound frame in bytes.
func WithMaxPayload(n int) Option {
	return func(h *Handler) {
		h.maxPayload = n
	}
}

// WithDump writes every inbound and outbound frame to output,
// one per line.
func WithDump(output io.Writer) Option {
	return func(h *Handler) {
		h.dump = &dumper{output: output}
	}
}

// New creates a new Handler accepting connections into a.
func New(a Acceptor, opts ...Option) *Handler {
	h := &Handler{
		a:            a,
		logger:       log.NopLogger,
		ider:         uuid.NewUUID(),
		param:        DefaultParam,
		writeTimeout: DefaultWriteTimeout,
		drainTimeout: DefaultDrainTimeout,
		maxPayload:   DefaultMaxPayload,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request for a registered workflow.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := flow.Param(r.Context(), h.param)
	logger := ctxlog.Logger(r.Context(), h.logger).With(logkeys.WorkflowName, name)
	if !h.a.WorkflowRegistered(name) {
		err := engine.NewErrNoSuchWorkflow(name)
		logger.Info(logkeys.Message, "upgrading connection", logkeys.Error, err)
		api.JSONError(w, err, http.StatusNotFound)
		return
	}
	srv := websocket.Server{
		Handler: func(ws *websocket.Conn) {
			h.serve(ws, name, logger)
		},
	}
	srv.ServeHTTP(w, r)
}

func (h *Handler) serve(ws *websocket.Conn, name string, logger log.Logger) {
	ws.MaxPayloadBytes = h.maxPayload
	t := &conn{ws: ws, timeout: h.writeTimeout, dump: h.dump}
	defer t.Close()

	id := h.ider.ID()
	logger = logger.With(logkeys.SessionID, id)
	c, err := h.a.Accept(id, name, t)
	if err != nil {
		logger.Info(logkeys.Message, "accepting connection", logkeys.Error, err)
		return
	}
	logger.Debug(logkeys.Message, "connection opened")

	reason := engine.ReasonClosed
	for {
		var raw []byte
		if err := websocket.Message.Receive(ws, &raw); err != nil {
			if !errors.Is(err, io.EOF) {
				reason = fmt.Sprintf("%s: %v", engine.ReasonClosed, err)
				logger.Info(logkeys.Message, "reading message", logkeys.Error, err)
			}
			break
		}
		h.dump.write(raw)
		c.OnMessage(raw)
	}

	c.Close(reason)
	ctx, cancel := context.WithTimeout(context.Background(), h.drainTimeout)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		logger.Info(logkeys.Message, "draining callbacks", logkeys.Error, err)
		return
	}
	logger.Debug(logkeys.Message, "connection closed")
}

// conn is the engine transport of one WebSocket connection.
type conn struct {
	mu      sync.Mutex // serializes writes
	ws      *websocket.Conn
	timeout time.Duration
	dump    *dumper
}

// Send writes msg as a single text frame.
func (c *conn) Send(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := websocket.Message.Send(c.ws, string(msg)); err != nil {
		return err
	}
	c.dump.write(msg)
	return nil
}

// Close closes the underlying connection.
func (c *conn) Close() error {
	return c.ws.Close()
}

// dumper serializes frame output of every connection of a Handler.
type dumper struct {
	mu     sync.Mutex
	output io.Writer
}

func (d *dumper) write(raw []byte) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.output.Write(raw)
	d.output.Write([]byte{'\n'})
}
