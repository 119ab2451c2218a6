package memory

import (
	"context"
	"testing"

	"statuscore/internal/infra/storage/storagetest"
	"statuscore/pkg/domain"
)

func TestContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) domain.RecordStore { return New() })
}

func TestPayloadIsolation(t *testing.T) {
	store := New()
	ctx := context.Background()
	payload := []byte(`{"v":1}`)
	if err := store.PutRecord(ctx, "a", "client1", payload, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	payload[1] = 'X'

	got, _, err := store.GetRecord(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"v":1}` {
		t.Fatalf("stored payload shared caller memory: %s", got)
	}
	got[1] = 'Y'
	again, _, _ := store.GetRecord(ctx, "a")
	if string(again) != `{"v":1}` {
		t.Fatalf("returned payload shared store memory: %s", again)
	}
}
