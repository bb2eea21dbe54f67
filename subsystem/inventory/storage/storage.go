// Package storage defines types and interfaces to support the inventory
// subsystem: the last known device info values per device URN.
package storage

import (
	"context"
	"errors"
)

var ErrNoIDs = errors.New("no IDs")

// SearchOptions is a basic query for inventory of device URNs.
type SearchOptions struct {
	IDs []string // slice of device URNs to query against
}

// Values maps inventory storage keys to values.
type Values map[string]interface{}

type ReadStorage interface {
	// RetrieveInventory queries and returns the inventory values mapped by device URN.
	RetrieveInventory(ctx context.Context, opt *SearchOptions) (map[string]Values, error)
}

type Storage interface {
	ReadStorage

	// StoreInventoryValues merges values into the existing values of id.
	StoreInventoryValues(ctx context.Context, id string, values Values) error

	DeleteInventory(ctx context.Context, id string) error
}
