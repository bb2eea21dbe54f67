// Package kv implements a session status storage backend using a key-value store.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/relaypro/relay-go/engine/storage"

	"github.com/micromdm/nanolib/storage/kv"
)

// KV is a session status storage backend using a key-value store.
type KV struct {
	mu sync.Mutex // serializes read-modify-write of records
	b  kv.KeysPrefixTraversingBucket
}

// New creates a new session status backend.
func New(b kv.KeysPrefixTraversingBucket) *KV {
	return &KV{b: b}
}

func (s *KV) get(ctx context.Context, id string) (*storage.Status, error) {
	raw, err := s.b.Get(ctx, id)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("getting status %s: %w", id, err)
	}
	st := new(storage.Status)
	if err = json.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("unmarshal status %s: %w", id, err)
	}
	return st, nil
}

func (s *KV) set(ctx context.Context, st *storage.Status) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal status %s: %w", st.ID, err)
	}
	return s.b.Set(ctx, st.ID, raw)
}

// RetrieveSession returns the status of session id.
func (s *KV) RetrieveSession(ctx context.Context, id string) (*storage.Status, error) {
	return s.get(ctx, id)
}

// RetrieveSessions returns statuses matching opt, most recently started first.
func (s *KV) RetrieveSessions(ctx context.Context, opt *storage.SearchOptions) ([]*storage.Status, error) {
	if opt == nil {
		opt = &storage.SearchOptions{}
	}
	var ids []string
	for id := range s.b.Keys(ctx, ctx.Done()) {
		ids = append(ids, id)
	}
	var statuses []*storage.Status
	for _, id := range ids {
		st, err := s.get(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			// deleted while iterating
			continue
		} else if err != nil {
			return nil, err
		}
		if opt.Workflow != "" && st.Workflow != opt.Workflow {
			continue
		}
		statuses = append(statuses, st)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Started.After(statuses[j].Started)
	})
	if opt.Limit > 0 && len(statuses) > opt.Limit {
		statuses = statuses[:opt.Limit]
	}
	return statuses, nil
}

// RecordSessionStarted stores a newly started session.
func (s *KV) RecordSessionStarted(ctx context.Context, st *storage.Status) error {
	if st == nil || st.ID == "" {
		return errors.New("missing session id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set(ctx, st)
}

// RecordSessionStopped marks session id stopped.
func (s *KV) RecordSessionStopped(ctx context.Context, id string, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	st.Stopped = &at
	st.Reason = reason
	return s.set(ctx, st)
}
