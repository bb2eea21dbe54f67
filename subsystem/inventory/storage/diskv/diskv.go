// Package diskv implements a diskv-backed inventory subsystem storage backend.
package diskv

import (
	"github.com/relaypro/relay-go/subsystem/inventory/storage/kv"

	"github.com/micromdm/nanolib/storage/kv/kvdiskv"
	"github.com/peterbourgon/diskv/v3"
)

// Diskv is an on-disk inventory data store keyed by device URN.
type Diskv struct {
	*kv.KV
}

// New creates a new initialized inventory data store at path.
func New(path string) *Diskv {
	return &Diskv{
		KV: kv.New(kvdiskv.New(diskv.New(diskv.Options{
			BasePath:     path,
			Transform:    kvdiskv.FlatTransform,
			CacheSizeMax: 1024 * 1024,
		}))),
	}
}
