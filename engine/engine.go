// Package engine implements the Relay workflow engine.
//
// The engine accepts connections for registered workflows, decodes
// inbound messages, hands replies to the correlator and routes events
// to the callbacks of the session's workflow.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/relaypro/relay-go/correlate"
	"github.com/relaypro/relay-go/engine/storage"
	"github.com/relaypro/relay-go/logkeys"
	"github.com/relaypro/relay-go/metrics"
	"github.com/relaypro/relay-go/protocol"
	"github.com/relaypro/relay-go/relay"
	"github.com/relaypro/relay-go/session"
	invstorage "github.com/relaypro/relay-go/subsystem/inventory/storage"
	"github.com/relaypro/relay-go/workflow"

	"github.com/micromdm/nanolib/log"
)

var (
	ErrNoSuchWorkflow = errors.New("no such workflow")

	// ErrSessionEnded is returned for a start on a connection whose
	// session has already stopped.
	ErrSessionEnded = errors.New("session ended")
)

func NewErrNoSuchWorkflow(name string) error {
	return fmt.Errorf("%w: %s", ErrNoSuchWorkflow, name)
}

// CallbackError is a failed or panicking workflow callback.
type CallbackError struct {
	SessionID string
	EventType protocol.EventType
	Err       error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback %s in session %s: %v", e.EventType, e.SessionID, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// Transport is a connection to the Relay server.
type Transport interface {
	session.Transport
	Close() error
}

// SessionInfo describes a live session.
type SessionInfo struct {
	ID       string    `json:"id"`
	Workflow string    `json:"workflow"`
	Created  time.Time `json:"created"`
	Pending  int       `json:"pending"`
}

// Engine coordinates workflows with Relay server connections.
type Engine struct {
	workflowsMu sync.RWMutex
	workflows   map[string]workflow.Builder

	registry   *session.Registry
	correlator *correlate.Correlator
	storage    storage.Storage
	inventory  invstorage.Storage
	metrics    *metrics.Metrics

	logger log.Logger
}

// Options configure the engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger log.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStorage records session history in s.
func WithStorage(s storage.Storage) Option {
	return func(e *Engine) {
		e.storage = s
	}
}

// WithInventory records device info replies in s.
func WithInventory(s invstorage.Storage) Option {
	return func(e *Engine) {
		e.inventory = s
	}
}

// WithMetrics sets the collectors updated by the engine.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithRegistry sets the session registry.
func WithRegistry(r *session.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithCorrelator sets the correlator used for commands.
// By default one is created with the engine logger and metrics.
func WithCorrelator(c *correlate.Correlator) Option {
	return func(e *Engine) {
		e.correlator = c
	}
}

// New creates a new engine with default configurations.
func New(opts ...Option) *Engine {
	e := &Engine{
		workflows: make(map[string]workflow.Builder),
		logger:    log.NopLogger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.New(nil)
	}
	if e.registry == nil {
		e.registry = session.NewRegistry()
	}
	if e.correlator == nil {
		e.correlator = correlate.New(
			correlate.WithLogger(e.logger.With("service", "correlator")),
			correlate.WithMetrics(e.metrics),
		)
	}
	e.metrics.Gauges(e.registry.Len, e.registry.PendingCount)
	return e
}

// Registry returns the session registry.
func (e *Engine) Registry() *session.Registry {
	return e.registry
}

// Correlator returns the correlator.
func (e *Engine) Correlator() *correlate.Correlator {
	return e.correlator
}

// Accept binds a new connection with id to the workflow name.
// Inbound messages are fed to the returned Conn.
func (e *Engine) Accept(id, name string, t Transport) (*Conn, error) {
	b := e.Workflow(name)
	if b == nil {
		e.metrics.SessionsRejected.WithLabelValues("no_workflow").Inc()
		return nil, NewErrNoSuchWorkflow(name)
	}
	c := newConn(e, id, b, t)
	c.logger.Debug(logkeys.Message, "accepted connection")
	return c, nil
}

// Sessions returns the live sessions, oldest first.
func (e *Engine) Sessions() []SessionInfo {
	var infos []SessionInfo
	for _, s := range e.registry.Sessions() {
		infos = append(infos, SessionInfo{
			ID:       s.ID(),
			Workflow: s.Workflow(),
			Created:  s.Created(),
			Pending:  s.PendingCount(),
		})
	}
	return infos
}

// Terminate asks the Relay server to end the live session id.
func (e *Engine) Terminate(ctx context.Context, id string) error {
	s, err := e.registry.Lookup(id)
	if err != nil {
		return err
	}
	return relay.New(s, e.correlator, relay.WithLogger(e.logger)).Terminate(ctx)
}

func logAndError(err error, logger log.Logger, msg string) error {
	logger.Info(
		logkeys.Message, msg,
		logkeys.Error, err,
	)
	return fmt.Errorf("%s: %w", msg, err)
}
