// Package inmem implements an in-memory session status storage backend.
package inmem

import (
	"github.com/relaypro/relay-go/engine/storage/kv"

	"github.com/micromdm/nanolib/storage/kv/kvmap"
)

// InMem is an in-memory session status storage backend.
type InMem struct {
	*kv.KV
}

// New creates a new in-memory session status storage backend.
func New() *InMem {
	return &InMem{KV: kv.New(kvmap.New())}
}
