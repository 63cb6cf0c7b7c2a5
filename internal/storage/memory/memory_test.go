package memory

import (
	"testing"

	"github.com/goodtune/cortes/internal/storage"
	"github.com/goodtune/cortes/internal/storage/storagetest"
)

func TestIdentifierStore(t *testing.T) {
	storagetest.RunIdentifierStoreTests(t, func(t *testing.T) storage.IdentifierStore {
		return New().Identifiers()
	})
}
