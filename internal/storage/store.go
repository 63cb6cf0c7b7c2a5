package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Identifiers() IdentifierStore
}

// IdentifierStore manages the saved identifier list. Identifiers are unique
// and listed in the order they were first saved.
type IdentifierStore interface {
	// Save adds an identifier. It returns false when the identifier was
	// already saved, in which case the stored record is left untouched.
	Save(ctx context.Context, ident SavedIdentifier) (bool, error)
	Get(ctx context.Context, id string) (*SavedIdentifier, error)
	List(ctx context.Context) ([]SavedIdentifier, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) (int, error)
	MarkRefreshed(ctx context.Context, id string, at time.Time, windows int) error
}
