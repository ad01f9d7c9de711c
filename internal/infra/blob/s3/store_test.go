package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"plotledger/internal/blob/core"
)

func TestMockStoreRoundTrip(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	if store.Driver() != core.DriverS3 || store.Bucket() != "mock-bucket" {
		t.Fatalf("unexpected store identity")
	}
	info, err := store.Put(ctx, bytes.NewReader([]byte("hello zone")), "text/plain")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len("hello zone")) || info.ContentType != "text/plain" {
		t.Fatalf("unexpected info %+v", info)
	}
	again, err := store.Put(ctx, bytes.NewReader([]byte("hello zone")), "text/plain")
	if err != nil || again.Ref != info.Ref {
		t.Fatalf("expected idempotent put, got %+v %v", again, err)
	}
	got, rc, err := store.Get(ctx, info.Ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "hello zone" || got.Ref != info.Ref {
		t.Fatalf("unexpected payload %q", data)
	}
	if ok, err := store.Has(ctx, info.Ref); err != nil || !ok {
		t.Fatalf("expected has true, got %v %v", ok, err)
	}
	list, err := store.List(ctx)
	if err != nil || len(list) != 1 || list[0].Ref != info.Ref {
		t.Fatalf("unexpected list %+v %v", list, err)
	}
}

func TestMockStoreMissing(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	missing := core.RefFor(make([]byte, 32))
	if ok, err := store.Has(ctx, missing); err != nil || ok {
		t.Fatalf("expected has false, got %v %v", ok, err)
	}
	if _, _, err := store.Get(ctx, missing); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Has(ctx, "nope"); !errors.Is(err, core.ErrInvalidRef) {
		t.Fatalf("expected invalid ref, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
	store, err := New(context.Background(), Config{Bucket: "b", Endpoint: "http://localhost:9000", PathStyle: true, AccessKeyID: "a", SecretAccessKey: "s"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if store.prefix != DefaultPrefix {
		t.Fatalf("expected default prefix, got %q", store.prefix)
	}
}
