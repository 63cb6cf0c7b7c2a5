// Package storagetest holds behaviour tests shared by every storage backend.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goodtune/cortes/internal/storage"
)

// RunIdentifierStoreTests exercises an IdentifierStore. newStore must return
// an empty store for every call.
func RunIdentifierStoreTests(t *testing.T, newStore func(t *testing.T) storage.IdentifierStore) {
	t.Run("SaveDeduplicates", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		added, err := s.Save(ctx, storage.SavedIdentifier{ID: "0912345678", Criterion: "IDENTIFICACION"})
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if !added {
			t.Error("Expected first save to add the identifier")
		}

		added, err = s.Save(ctx, storage.SavedIdentifier{ID: "0912345678", Criterion: "CUEN"})
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if added {
			t.Error("Expected duplicate save to be ignored")
		}

		got, err := s.Get(ctx, "0912345678")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Criterion != "IDENTIFICACION" {
			t.Errorf("Expected original criterion to be kept, got %s", got.Criterion)
		}
		if got.SavedAt.IsZero() {
			t.Error("Expected SavedAt to be set")
		}
	})

	t.Run("ListKeepsSaveOrder", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		base := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
		ids := []string{"3", "1", "2"}
		for i, id := range ids {
			if _, err := s.Save(ctx, storage.SavedIdentifier{
				ID:        id,
				Criterion: "IDENTIFICACION",
				SavedAt:   base.Add(time.Duration(i) * time.Second),
			}); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
		}

		list, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != len(ids) {
			t.Fatalf("Expected %d identifiers, got %d", len(ids), len(list))
		}
		for i, id := range ids {
			if list[i].ID != id {
				t.Errorf("Position %d: expected %s, got %s", i, id, list[i].ID)
			}
		}
	})

	t.Run("DeleteOne", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, id := range []string{"1", "2"} {
			if _, err := s.Save(ctx, storage.SavedIdentifier{ID: id, Criterion: "IDENTIFICACION"}); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
		}

		if err := s.Delete(ctx, "1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := s.Get(ctx, "1"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
		if err := s.Delete(ctx, "1"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
		}

		list, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 1 || list[0].ID != "2" {
			t.Errorf("Expected only identifier 2 to remain, got %+v", list)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, id := range []string{"1", "2", "3"} {
			if _, err := s.Save(ctx, storage.SavedIdentifier{ID: id, Criterion: "IDENTIFICACION"}); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
		}

		n, err := s.Clear(ctx)
		if err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		if n != 3 {
			t.Errorf("Expected 3 cleared, got %d", n)
		}

		list, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 0 {
			t.Errorf("Expected empty list, got %d", len(list))
		}

		// Saving again after a clear works.
		added, err := s.Save(ctx, storage.SavedIdentifier{ID: "1", Criterion: "IDENTIFICACION"})
		if err != nil || !added {
			t.Errorf("Expected save after clear to succeed, got added=%v err=%v", added, err)
		}
	})

	t.Run("MarkRefreshed", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.Save(ctx, storage.SavedIdentifier{ID: "1", Criterion: "IDENTIFICACION"}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		at := time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)
		if err := s.MarkRefreshed(ctx, "1", at, 4); err != nil {
			t.Fatalf("MarkRefreshed failed: %v", err)
		}

		got, err := s.Get(ctx, "1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !got.RefreshedAt.Equal(at) {
			t.Errorf("Expected RefreshedAt %s, got %s", at, got.RefreshedAt)
		}
		if got.Windows != 4 {
			t.Errorf("Expected 4 windows, got %d", got.Windows)
		}

		if err := s.MarkRefreshed(ctx, "missing", at, 1); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound for unknown identifier, got %v", err)
		}
	})

	t.Run("RejectsInvalid", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Save(context.Background(), storage.SavedIdentifier{ID: " ", Criterion: "IDENTIFICACION"}); err == nil {
			t.Error("Expected error for blank identifier")
		}
		if _, err := s.Save(context.Background(), storage.SavedIdentifier{ID: "1"}); err == nil {
			t.Error("Expected error for missing criterion")
		}
	})
}
