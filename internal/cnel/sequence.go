package cnel

import "sync"

// Sequencer orders overlapping queries for the same key. Each query takes a
// ticket before it starts; when it finishes, only the holder of the most
// recently issued ticket may apply its result.
type Sequencer struct {
	mu     sync.Mutex
	issued map[string]uint64
}

// Ticket identifies one issued query.
type Ticket struct {
	Key string
	Seq uint64
}

// NewSequencer creates an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{issued: make(map[string]uint64)}
}

// Issue hands out a new ticket for key, superseding all earlier ones.
func (s *Sequencer) Issue(key string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[key]++
	return Ticket{Key: key, Seq: s.issued[key]}
}

// Current reports whether t is still the latest ticket for its key.
func (s *Sequencer) Current(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued[t.Key] == t.Seq
}
