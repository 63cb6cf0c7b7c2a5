package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/cortes/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	identifiersKey      = "cortes:identifiers"
	identifierKeyPrefix = "cortes:identifier:"
)

var (
	saveScript          = redis.NewScript(saveIdentifierScript)
	deleteScript        = redis.NewScript(deleteIdentifierScript)
	clearScript         = redis.NewScript(clearIdentifiersScript)
	markRefreshedScript = redis.NewScript(markIdentifierRefreshedScript)
)

type identifierStore struct {
	client *redis.Client
}

func identifierKey(id string) string {
	return identifierKeyPrefix + id
}

// Save adds an identifier unless it is already saved
func (s *identifierStore) Save(ctx context.Context, ident storage.SavedIdentifier) (bool, error) {
	if err := ident.Validate(); err != nil {
		return false, err
	}
	if ident.SavedAt.IsZero() {
		ident.SavedAt = time.Now()
	}

	added, err := saveScript.Run(ctx, s.client,
		[]string{identifiersKey, identifierKey(ident.ID)},
		ident.ID,
		ident.Criterion,
		ident.SavedAt.Format(time.RFC3339Nano),
		ident.SavedAt.UnixMicro(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to save identifier: %w", err)
	}

	return added == 1, nil
}

// Get retrieves a saved identifier
func (s *identifierStore) Get(ctx context.Context, id string) (*storage.SavedIdentifier, error) {
	data, err := s.client.HGetAll(ctx, identifierKey(id)).Result()
	if err != nil {
		return nil, err
	}

	return parseSavedIdentifier(data)
}

// List retrieves all saved identifiers in save order
func (s *identifierStore) List(ctx context.Context) ([]storage.SavedIdentifier, error) {
	ids, err := s.client.ZRange(ctx, identifiersKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []storage.SavedIdentifier{}, nil
	}

	// Use pipeline for batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, identifierKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	out := make([]storage.SavedIdentifier, 0, len(ids))
	for _, cmd := range cmds {
		rec, err := parseSavedIdentifier(cmd.Val())
		if err == storage.ErrNotFound {
			// Record vanished between ZRANGE and HGETALL
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}

	return out, nil
}

// Delete removes a saved identifier
func (s *identifierStore) Delete(ctx context.Context, id string) error {
	removed, err := deleteScript.Run(ctx, s.client,
		[]string{identifiersKey, identifierKey(id)},
		id,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to delete identifier: %w", err)
	}
	if removed == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Clear removes all saved identifiers and returns how many there were
func (s *identifierStore) Clear(ctx context.Context) (int, error) {
	n, err := clearScript.Run(ctx, s.client,
		[]string{identifiersKey},
		identifierKeyPrefix,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to clear identifiers: %w", err)
	}
	return n, nil
}

// MarkRefreshed records the outcome of the latest scheduled refresh
func (s *identifierStore) MarkRefreshed(ctx context.Context, id string, at time.Time, windows int) error {
	ok, err := markRefreshedScript.Run(ctx, s.client,
		[]string{identifiersKey, identifierKey(id)},
		id,
		at.Format(time.RFC3339Nano),
		strconv.Itoa(windows),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to mark identifier refreshed: %w", err)
	}
	if ok == 0 {
		return storage.ErrNotFound
	}
	return nil
}
