package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"plotledger/internal/blob/core"
)

func TestFilesystemStoreRoundTrip(t *testing.T) {
	root := filepath.Join(t.TempDir(), "content")
	store, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if store.Root() != root || store.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected store config")
	}
	ctx := context.Background()
	info, err := store.Put(ctx, bytes.NewReader([]byte("zone art")), "image/png")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 8 || info.ContentType != "image/png" {
		t.Fatalf("unexpected info %+v", info)
	}
	digest, _ := core.Digest(info.Ref)
	if _, err := os.Stat(filepath.Join(root, digest[:2], digest[2:])); err != nil {
		t.Fatalf("expected sharded layout: %v", err)
	}

	dup, err := store.Put(ctx, bytes.NewReader([]byte("zone art")), "")
	if err != nil || dup.Ref != info.Ref || dup.ContentType != "image/png" {
		t.Fatalf("expected idempotent put, got %+v %v", dup, err)
	}

	got, rc, err := store.Get(ctx, info.Ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "zone art" || got.Ref != info.Ref {
		t.Fatalf("unexpected payload %q", data)
	}
	if ok, err := store.Has(ctx, info.Ref); err != nil || !ok {
		t.Fatalf("expected has, got %v %v", ok, err)
	}

	if _, err := store.Put(ctx, bytes.NewReader([]byte("other")), "text/plain"); err != nil {
		t.Fatalf("put other: %v", err)
	}
	list, err := store.List(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %v %d", err, len(list))
	}
	if list[0].Ref > list[1].Ref {
		t.Fatalf("list not sorted")
	}
}

func TestFilesystemStoreMissingAndInvalid(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	missing := core.RefFor(make([]byte, 32))
	if _, _, err := store.Get(ctx, missing); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if ok, err := store.Has(ctx, missing); err != nil || ok {
		t.Fatalf("expected has false, got %v %v", ok, err)
	}
	if _, _, err := store.Get(ctx, "../../etc/passwd"); !errors.Is(err, core.ErrInvalidRef) {
		t.Fatalf("expected invalid ref, got %v", err)
	}
}
