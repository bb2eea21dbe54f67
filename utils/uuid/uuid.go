// Package uuid provides identifier generation and test utilities.
package uuid

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// IDers generate identifiers.
type IDer interface {
	ID() string
}

// UUID is an ID generator utilizing a UUID.
type UUID struct{}

// NewUUID creates a new UUID ID generator.
func NewUUID() *UUID {
	return &UUID{}
}

// ID generates a new UUID ID.
func (u *UUID) ID() string {
	return uuid.NewString()
}

// Hex is an ID generator producing 16 lower-case hex characters taken
// from a random UUID. This is the shape the Relay server uses for
// request ids.
type Hex struct{}

// NewHex creates a new short hex ID generator.
func NewHex() *Hex {
	return &Hex{}
}

// ID generates a new 16 character hex ID.
func (h *Hex) ID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// StaticIDs is an ID generator thats cycles through provided IDs.
// It is safe for concurrent use.
type StaticIDs struct {
	mu  sync.Mutex
	ids []string
	i   int
}

// NewStaticIDs creates a new static ID generator.
func NewStaticIDs(ids ...string) *StaticIDs {
	return &StaticIDs{ids: ids}
}

// ID returns the next ID.
// It will continually cycle through the IDs.
func (s *StaticIDs) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.ids[s.i%len(s.ids)]
	s.i++
	return id
}
