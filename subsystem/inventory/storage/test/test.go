package test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/relaypro/relay-go/subsystem/inventory/storage"
)

// TestStorage runs the inventory storage conformance tests against a new storage.
func TestStorage(t *testing.T, newStorage func() storage.Storage) {
	s := newStorage()
	ctx := context.Background()

	id := "urn:relay-resource:name:device:Bob"

	_, err := s.RetrieveInventory(ctx, &storage.SearchOptions{})
	if !errors.Is(err, storage.ErrNoIDs) {
		t.Errorf("want ErrNoIDs, have: %v", err)
	}

	err = s.StoreInventoryValues(ctx, id, storage.Values{storage.KeyBattery: 87})
	if err != nil {
		t.Fatal(err)
	}

	// merged with existing values
	err = s.StoreInventoryValues(ctx, id, storage.Values{storage.KeyName: "Bob"})
	if err != nil {
		t.Fatal(err)
	}

	q := &storage.SearchOptions{IDs: []string{id, "urn:relay-resource:name:device:nobody"}}
	idVals, err := s.RetrieveInventory(ctx, q)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := len(idVals), 1; have != want {
		t.Fatalf("result count: have: %v, want: %v", have, want)
	}

	vals, ok := idVals[id]
	if !ok {
		t.Fatal("expected id in id values map")
	}

	if have, want := vals[storage.KeyName], "Bob"; have != want {
		t.Errorf("name: have: %v, want: %v", have, want)
	}

	// JSON numbers decode as float64
	if have, want := vals[storage.KeyBattery], float64(87); have != want {
		t.Errorf("battery: have: %v, want: %v", have, want)
	}

	// concurrent merges into one device keep every value
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.StoreInventoryValues(ctx, id, storage.Values{fmt.Sprintf("k%d", i): i}); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()
	idVals, err = s.RetrieveInventory(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if have, want := len(idVals[id]), 10; have != want {
		t.Errorf("values after concurrent merge: have: %v, want: %v", have, want)
	}

	err = s.DeleteInventory(ctx, id)
	if err != nil {
		t.Fatal(err)
	}

	idVals, err = s.RetrieveInventory(ctx, q)
	if err != nil {
		t.Error(err)
	}

	if _, ok = idVals[id]; ok {
		t.Error("expected id to be missing in id values map")
	}
}
