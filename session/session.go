// Package session tracks live workflow sessions and the commands each
// session is waiting on.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relaypro/relay-go/protocol"
)

var (
	ErrDuplicateSession = errors.New("duplicate session")
	ErrNotFound         = errors.New("session not found")
	ErrSessionClosed    = errors.New("session closed")
	ErrDuplicateID      = errors.New("duplicate correlation id")
)

// Transport sends text messages to the far end of a session.
type Transport interface {
	Send(ctx context.Context, msg []byte) error
}

// Pending is an outstanding command awaiting a reply.
type Pending struct {
	ID          string
	RequestType protocol.RequestType
	Created     time.Time
	Timeout     time.Duration

	// WaitPromptStop holds the pending open after its response until the
	// prompt it started reports stopped.
	WaitPromptStop bool

	deadline atomic.Int64 // unix nanos

	// guarded by the owning session's mutex
	keys     []string
	response *protocol.Message
	released bool

	done   chan struct{}
	result *protocol.Message
	err    error
}

// NewPending creates a pending command with a deadline of timeout from now.
func NewPending(id string, reqType protocol.RequestType, timeout time.Duration) *Pending {
	now := time.Now()
	p := &Pending{
		ID:          id,
		RequestType: reqType,
		Created:     now,
		Timeout:     timeout,
		done:        make(chan struct{}),
	}
	p.deadline.Store(now.Add(timeout).UnixNano())
	return p
}

// Deadline returns the time after which p is considered timed out.
func (p *Pending) Deadline() time.Time {
	return time.Unix(0, p.deadline.Load())
}

// Done is closed once p is settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result returns the settled reply or failure. Only valid after Done is closed.
func (p *Pending) Result() (*protocol.Message, error) {
	return p.result, p.err
}

// Session is one workflow execution over one transport connection.
type Session struct {
	id        string
	workflow  string
	transport Transport
	created   time.Time

	mu      sync.Mutex
	closed  bool
	pending map[string]*Pending
}

// New creates a new session.
func New(id, workflow string, t Transport) *Session {
	return &Session{
		id:        id,
		workflow:  workflow,
		transport: t,
		created:   time.Now(),
		pending:   make(map[string]*Pending),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Workflow returns the name of the workflow running in the session.
func (s *Session) Workflow() string { return s.workflow }

// Created returns the session creation time.
func (s *Session) Created() time.Time { return s.created }

// Send transmits msg over the session transport.
func (s *Session) Send(ctx context.Context, msg []byte) error {
	if s.Closed() {
		return fmt.Errorf("%w: %s", ErrSessionClosed, s.id)
	}
	return s.transport.Send(ctx, msg)
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// PendingCount returns the number of outstanding commands.
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, p := range s.pending {
		// aliases share a pending; count it once
		if k == p.ID {
			n++
		}
	}
	return n
}

// Track registers p as outstanding.
func (s *Session) Track(p *Pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: %s", ErrSessionClosed, s.id)
	}
	if _, ok := s.pending[p.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
	}
	p.keys = []string{p.ID}
	s.pending[p.ID] = p
	return nil
}

// Lookup returns the outstanding command registered under key.
func (s *Session) Lookup(key string) (*Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[key]
	return p, ok
}

// settle completes p and removes every key it is registered under.
// Callers must hold s.mu.
func (s *Session) settle(p *Pending, msg *protocol.Message, err error) {
	for _, k := range p.keys {
		delete(s.pending, k)
	}
	p.result, p.err = msg, err
	close(p.done)
}

// Settle completes the command registered under key with msg or err.
// It returns false if no such command is outstanding.
func (s *Session) Settle(key string, msg *protocol.Message, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[key]
	if !ok {
		return false
	}
	s.settle(p, msg, err)
	return true
}

// Hold records msg as the response of the command registered under key
// without settling it, and additionally registers the command under
// alias. It returns false if no such command is outstanding.
func (s *Session) Hold(key, alias string, msg *protocol.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[key]
	if !ok {
		return false
	}
	if p.released {
		s.settle(p, msg, nil)
		return true
	}
	p.response = msg
	if alias != "" && alias != key {
		if _, taken := s.pending[alias]; !taken {
			s.pending[alias] = p
			p.keys = append(p.keys, alias)
		}
	}
	return true
}

// Release settles the prompt-waiting command registered under key with
// its held response. If no response is held yet the command settles as
// soon as one is. It returns false if no prompt-waiting command is
// registered under key.
func (s *Session) Release(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[key]
	if !ok || !p.WaitPromptStop {
		return false
	}
	if p.response == nil {
		p.released = true
		return true
	}
	s.settle(p, p.response, nil)
	return true
}

// Extend pushes the deadline of the command registered under key out
// by its timeout.
func (s *Session) Extend(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[key]
	if !ok {
		return false
	}
	p.deadline.Store(time.Now().Add(p.Timeout).UnixNano())
	return true
}

// Expire fails every command whose deadline is before now with err and
// returns them.
func (s *Session) Expire(now time.Time, err error) []*Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []*Pending
	for k, p := range s.pending {
		if k != p.ID || !now.After(p.Deadline()) {
			continue
		}
		expired = append(expired, p)
	}
	for _, p := range expired {
		s.settle(p, nil, err)
	}
	return expired
}

// Fail fails every outstanding command with err and returns the count.
func (s *Session) Fail(err error) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failAll(err)
}

func (s *Session) failAll(err error) int {
	n := 0
	for k, p := range s.pending {
		if k != p.ID {
			continue
		}
		// settle deletes from the map; deleting during range is safe
		s.settle(p, nil, err)
		n++
	}
	return n
}

// close marks the session closed and fails every outstanding command
// with ErrSessionClosed. Commands can no longer be tracked afterwards.
func (s *Session) close() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	s.closed = true
	return s.failAll(fmt.Errorf("%w: %s", ErrSessionClosed, s.id))
}
