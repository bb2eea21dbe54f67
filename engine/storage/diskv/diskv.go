// Package diskv implements a diskv-backed session status storage backend.
package diskv

import (
	"path/filepath"

	"github.com/relaypro/relay-go/engine/storage/kv"

	"github.com/micromdm/nanolib/storage/kv/kvdiskv"
	"github.com/peterbourgon/diskv/v3"
)

// Diskv is an on-disk session status storage backend.
type Diskv struct {
	*kv.KV
}

// New creates a new session status storage backend under path.
func New(path string) *Diskv {
	return &Diskv{
		KV: kv.New(kvdiskv.New(diskv.New(diskv.Options{
			BasePath:     filepath.Join(path, "sessions"),
			Transform:    kvdiskv.FlatTransform,
			CacheSizeMax: 1024 * 1024,
		}))),
	}
}
