// Package storage defines types and interfaces for recording the
// history of workflow sessions.
package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session status not found")

// Status describes one session, live or finished.
type Status struct {
	ID       string `json:"id"`
	Workflow string `json:"workflow"`

	// Trigger is the type of trigger that started the workflow.
	Trigger string `json:"trigger,omitempty"`

	// SourceURI is the device that triggered the workflow, if any.
	SourceURI string `json:"source_uri,omitempty"`

	Started time.Time  `json:"started"`
	Stopped *time.Time `json:"stopped,omitempty"`

	// Reason is the stop reason given by the server or transport.
	Reason string `json:"reason,omitempty"`
}

// SearchOptions filters session statuses.
type SearchOptions struct {
	Workflow string // only sessions of this workflow, if set
	Limit    int    // at most this many most recently started, if > 0
}

type ReadStorage interface {
	// RetrieveSession returns the status of session id.
	// ErrNotFound is returned for unknown sessions.
	RetrieveSession(ctx context.Context, id string) (*Status, error)

	// RetrieveSessions returns statuses matching opt, most recently started first.
	RetrieveSessions(ctx context.Context, opt *SearchOptions) ([]*Status, error)
}

type Storage interface {
	ReadStorage

	// RecordSessionStarted stores a newly started session.
	RecordSessionStarted(ctx context.Context, s *Status) error

	// RecordSessionStopped marks session id stopped at at for reason.
	// ErrNotFound is returned for unknown sessions.
	RecordSessionStopped(ctx context.Context, id string, reason string, at time.Time) error
}
