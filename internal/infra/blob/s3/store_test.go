package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"statuscore/internal/infra/blob/core"
)

func TestMockRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()

	if store.Driver() != core.DriverS3 {
		t.Fatalf("unexpected driver %s", store.Driver())
	}

	payload := `{"records":[]}`
	info, err := store.Put(ctx, "snapshots/a.json", strings.NewReader(payload), core.PutOptions{
		ContentType: "application/json",
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "snapshots/a.json" || info.Size != int64(len(payload)) {
		t.Fatalf("unexpected info %+v", info)
	}

	got, rc, err := store.Get(ctx, "snapshots/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != payload {
		t.Fatalf("unexpected content %q", data)
	}
	if got.ContentType != "application/json" {
		t.Fatalf("content type lost: %+v", got)
	}
}

func TestPutIsCreateOnly(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	if _, err := store.Put(ctx, "k", strings.NewReader("a"), core.PutOptions{}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := store.Put(ctx, "k", strings.NewReader("b"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	store := NewMockForTests()
	if _, _, err := store.Get(context.Background(), "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	for _, key := range []string{"snapshots/b.json", "snapshots/a.json", "other/c.json"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	infos, err := store.List(ctx, "snapshots/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "snapshots/a.json" || infos[1].Key != "snapshots/b.json" {
		t.Fatalf("unexpected listing %+v", infos)
	}

	if _, err := store.Delete(ctx, "snapshots/a.json"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	infos, err = store.List(ctx, "snapshots/")
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected one key after delete, got %+v", infos)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
}
