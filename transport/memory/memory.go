// Package memory implements an in-process transport that records what
// is sent over it. Useful for tests and for driving workflows without
// a network connection.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

var ErrClosed = errors.New("memory: transport closed")

// Transport records sent messages and hands them to readers of Next.
type Transport struct {
	id string

	mu     sync.Mutex
	sent   [][]byte
	err    error
	closed bool

	ch     chan []byte
	closeC chan struct{}
}

// New creates a new transport identified by id.
func New(id string) *Transport {
	return &Transport{
		id:     id,
		ch:     make(chan []byte, 256),
		closeC: make(chan struct{}),
	}
}

// ID returns the transport id.
func (t *Transport) ID() string { return t.id }

// Send records msg. It fails once the transport is closed or after FailWith.
func (t *Transport) Send(ctx context.Context, msg []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.err != nil {
		err := t.err
		t.mu.Unlock()
		return err
	}
	b := append([]byte(nil), msg...)
	t.sent = append(t.sent, b)
	t.mu.Unlock()

	select {
	case t.ch <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FailWith makes subsequent sends fail with err.
func (t *Transport) FailWith(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

// Close closes the transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.closeC)
	}
	return nil
}

// Closed is closed when the transport is closed.
func (t *Transport) Closed() <-chan struct{} {
	return t.closeC
}

// Sent returns every message sent so far.
func (t *Transport) Sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.sent...)
}

// Next waits for the next sent message.
func (t *Transport) Next(ctx context.Context) ([]byte, error) {
	select {
	case b := <-t.ch:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// NextRequest waits for the next sent message and decodes it.
func (t *Transport) NextRequest(ctx context.Context) (map[string]interface{}, error) {
	b, err := t.Next(ctx)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	return m, json.Unmarshal(b, &m)
}
