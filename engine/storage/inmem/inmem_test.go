package inmem

import (
	"testing"

	"github.com/relaypro/relay-go/engine/storage"
	"github.com/relaypro/relay-go/engine/storage/test"
)

func TestInmemStorage(t *testing.T) {
	test.TestStorage(t, func() storage.Storage { return New() })
}
