package blob

import (
	"context"
	"testing"

	"statuscore/internal/infra/blob/core"
)

func TestOpenDefaultsToFilesystem(t *testing.T) {
	store, err := Open(context.Background(), Config{FSRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != core.DriverFilesystem {
		t.Fatalf("expected fs driver, got %s", store.Driver())
	}
}

func TestOpenMemory(t *testing.T) {
	store, err := Open(context.Background(), Config{Driver: core.DriverMemory})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != core.DriverMemory {
		t.Fatalf("expected memory driver, got %s", store.Driver())
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "tape"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestOpenFromEnv(t *testing.T) {
	t.Setenv("STATUSCORE_BLOB_DRIVER", "memory")
	store, err := OpenFromEnv(context.Background())
	if err != nil {
		t.Fatalf("open from env: %v", err)
	}
	if store.Driver() != core.DriverMemory {
		t.Fatalf("expected memory driver, got %s", store.Driver())
	}
}

func TestOpenFromEnvS3RequiresBucket(t *testing.T) {
	t.Setenv("STATUSCORE_BLOB_DRIVER", "s3")
	t.Setenv("STATUSCORE_BLOB_S3_BUCKET", "")
	if _, err := OpenFromEnv(context.Background()); err == nil {
		t.Fatalf("expected error when bucket unset")
	}
}
