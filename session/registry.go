package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spaolacci/murmur3"
)

// DefaultShards is the default number of registry shards.
const DefaultShards = 32

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// Registry maps session ids to live sessions.
// Sessions are spread over independently locked shards.
type Registry struct {
	shards []*shard
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithShards sets the number of shards. Values below one are ignored.
func WithShards(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.shards = make([]*shard, n)
		}
	}
}

// NewRegistry creates a new empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{shards: make([]*shard, DefaultShards)}
	for _, opt := range opts {
		opt(r)
	}
	for i := range r.shards {
		r.shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	return r
}

func (r *Registry) shard(id string) *shard {
	h := murmur3.New32()
	h.Write([]byte(id))
	return r.shards[h.Sum32()%uint32(len(r.shards))]
}

// Start creates and registers a new session.
// ErrDuplicateSession is returned if id is already registered.
func (r *Registry) Start(id, workflow string, t Transport) (*Session, error) {
	sh := r.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.sessions[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSession, id)
	}
	s := New(id, workflow, t)
	sh.sessions[id] = s
	return s, nil
}

// Lookup returns the live session registered under id.
func (r *Registry) Lookup(id string) (*Session, error) {
	sh := r.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Stop removes the session registered under id and fails its
// outstanding commands with ErrSessionClosed in the same step.
// The removed session is returned; nil if id was not registered.
func (r *Registry) Stop(id string) *Session {
	sh := r.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	s, ok := sh.sessions[id]
	if !ok {
		return nil
	}
	delete(sh.sessions, id)
	s.close()
	return s
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

// PendingCount returns the number of outstanding commands over all sessions.
func (r *Registry) PendingCount() int {
	n := 0
	for _, s := range r.Sessions() {
		n += s.PendingCount()
	}
	return n
}

// Sessions returns a snapshot of the live sessions ordered by creation time.
func (r *Registry) Sessions() []*Session {
	var sessions []*Session
	for _, sh := range r.shards {
		sh.mu.RLock()
		for _, s := range sh.sessions {
			sessions = append(sessions, s)
		}
		sh.mu.RUnlock()
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].created.Before(sessions[j].created)
	})
	return sessions
}
