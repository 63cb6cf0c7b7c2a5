package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/cortes/internal/config"
	"github.com/goodtune/cortes/internal/storage"
	"github.com/goodtune/cortes/internal/storage/storagetest"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	// miniredis.Addr() returns "host:port", so Port stays 0
	cfg := config.RedisConfig{
		Host:         mr.Addr(),
		Port:         0,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 1,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestIdentifierStore(t *testing.T) {
	storagetest.RunIdentifierStoreTests(t, func(t *testing.T) storage.IdentifierStore {
		store, _ := setupTestStore(t)
		return store.Identifiers()
	})
}

func TestIdentifierStore_KeyLayout(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Identifiers().Save(ctx, storage.SavedIdentifier{ID: "0912345678", Criterion: "IDENTIFICACION"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	members, err := mr.ZMembers("cortes:identifiers")
	if err != nil {
		t.Fatalf("ZMembers failed: %v", err)
	}
	if len(members) != 1 || members[0] != "0912345678" {
		t.Errorf("Unexpected index members: %v", members)
	}
	if got := mr.HGet("cortes:identifier:0912345678", "criterion"); got != "IDENTIFICACION" {
		t.Errorf("Expected criterion IDENTIFICACION in record, got %q", got)
	}

	if err := store.Identifiers().Delete(ctx, "0912345678"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if mr.Exists("cortes:identifier:0912345678") {
		t.Error("Expected record to be removed with the identifier")
	}
}

func TestIdentifierStore_ListSkipsOrphanedIndexEntries(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2"} {
		if _, err := store.Identifiers().Save(ctx, storage.SavedIdentifier{ID: id, Criterion: "CUEN"}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	mr.Del("cortes:identifier:1")

	list, err := store.Identifiers().List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != "2" {
		t.Errorf("Expected only identifier 2, got %+v", list)
	}
}

func TestOpen_InvalidTimeout(t *testing.T) {
	_, err := Open(config.RedisConfig{Host: "localhost", DialTimeout: "soon", ReadTimeout: "1s", WriteTimeout: "1s"})
	if err == nil {
		t.Error("Expected error for invalid dial_timeout")
	}
}

func TestOpen_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Open(config.RedisConfig{Host: addr, DialTimeout: "200ms", ReadTimeout: "200ms", WriteTimeout: "200ms"})
	if err == nil {
		t.Error("Expected connection error")
	}
}
