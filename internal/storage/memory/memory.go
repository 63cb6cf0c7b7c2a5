package memory

import (
	"context"
	"sync"
	"time"

	"github.com/goodtune/cortes/internal/storage"
)

// Store is a process-local storage.Store. Nothing survives a restart.
type Store struct {
	identifiers *identifierStore
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		identifiers: &identifierStore{records: make(map[string]*storage.SavedIdentifier)},
	}
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Identifiers returns the IdentifierStore implementation
func (s *Store) Identifiers() storage.IdentifierStore {
	return s.identifiers
}

type identifierStore struct {
	mu      sync.RWMutex
	order   []string
	records map[string]*storage.SavedIdentifier
}

func (s *identifierStore) Save(ctx context.Context, ident storage.SavedIdentifier) (bool, error) {
	if err := ident.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[ident.ID]; ok {
		return false, nil
	}
	if ident.SavedAt.IsZero() {
		ident.SavedAt = time.Now()
	}
	s.records[ident.ID] = &ident
	s.order = append(s.order, ident.ID)
	return true, nil
}

func (s *identifierStore) Get(ctx context.Context, id string) (*storage.SavedIdentifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (s *identifierStore) List(ctx context.Context) ([]storage.SavedIdentifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storage.SavedIdentifier, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.records[id])
	}
	return out, nil
}

func (s *identifierStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.records, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *identifierStore) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.order)
	s.order = nil
	s.records = make(map[string]*storage.SavedIdentifier)
	return n, nil
}

func (s *identifierStore) MarkRefreshed(ctx context.Context, id string, at time.Time, windows int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return storage.ErrNotFound
	}
	rec.RefreshedAt = at
	rec.Windows = windows
	return nil
}
