package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/cortes/internal/storage"
)

// parseSavedIdentifier converts a Redis hash to SavedIdentifier
func parseSavedIdentifier(data map[string]string) (*storage.SavedIdentifier, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	savedAt, err := time.Parse(time.RFC3339Nano, data["saved_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse saved_at: %w", err)
	}

	var refreshedAt time.Time
	if v := data["refreshed_at"]; v != "" {
		refreshedAt, err = time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse refreshed_at: %w", err)
		}
	}

	windows := 0
	if v := data["windows"]; v != "" {
		windows, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse windows: %w", err)
		}
	}

	return &storage.SavedIdentifier{
		ID:          data["id"],
		Criterion:   data["criterion"],
		SavedAt:     savedAt,
		RefreshedAt: refreshedAt,
		Windows:     windows,
	}, nil
}
