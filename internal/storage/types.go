package storage

import (
	"fmt"
	"strings"
	"time"
)

// SavedIdentifier is an identifier the user asked to remember.
type SavedIdentifier struct {
	ID          string    `json:"id"`
	Criterion   string    `json:"criterion"`
	SavedAt     time.Time `json:"saved_at"`
	RefreshedAt time.Time `json:"refreshed_at,omitempty"`
	Windows     int       `json:"windows"`
}

// Validate checks the fields every backend relies on.
func (s SavedIdentifier) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("identifier is required")
	}
	if s.Criterion == "" {
		return fmt.Errorf("criterion is required")
	}
	return nil
}
