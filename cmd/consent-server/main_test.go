package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mysehat/consent/internal/config"
	"github.com/mysehat/consent/internal/platform/kvstore"
)

func TestOpenStore_Memory(t *testing.T) {
	cfg := &config.Config{StoreBackend: config.BackendMemory}

	store, cleanup, err := openStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()

	if _, ok := store.(*kvstore.Memory); !ok {
		t.Errorf("expected *kvstore.Memory, got %T", store)
	}
}

func TestOpenStore_File(t *testing.T) {
	cfg := &config.Config{
		StoreBackend: config.BackendFile,
		StorePath:    filepath.Join(t.TempDir(), "consent-data.json"),
	}

	ctx := context.Background()
	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()

	if err := store.Set(ctx, "marker", []byte("1")); err != nil {
		t.Fatalf("set on file store: %v", err)
	}
	v, ok, err := store.Get(ctx, "marker")
	if err != nil || !ok {
		t.Fatalf("get on file store: ok=%v err=%v", ok, err)
	}
	if string(v) != "1" {
		t.Errorf("expected %q, got %q", "1", v)
	}
}

func TestOpenStore_FileBadPath(t *testing.T) {
	cfg := &config.Config{
		StoreBackend: config.BackendFile,
		StorePath:    filepath.Join(t.TempDir(), "missing", "nested", "consent-data.json"),
	}

	ctx := context.Background()
	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()

	// The parent directory does not exist, so the first write must fail.
	if err := store.Set(ctx, "marker", []byte("1")); err == nil {
		t.Fatal("expected error writing under a missing directory")
	}
}
