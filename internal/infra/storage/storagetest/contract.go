// Package storagetest exercises the record storage contract against any
// backend so every implementation honors identical semantics.
package storagetest

import (
	"bytes"
	"context"
	"testing"

	"statuscore/pkg/domain"
)

// Run drives the shared contract suite against a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) domain.RecordStore) {
	t.Helper()

	t.Run("create and read record", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		payload := []byte(`{"status":{"status_id":"a"}}`)

		if err := store.PutRecord(ctx, "a", "client1", payload, 0); err != nil {
			t.Fatalf("create: %v", err)
		}
		got, version, err := store.GetRecord(ctx, "a")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("payload = %s", got)
		}
		if version != 1 {
			t.Fatalf("version = %d, want 1", version)
		}
	})

	t.Run("create rejects existing key", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		if err := store.PutRecord(ctx, "a", "client1", []byte("{}"), 0); err != nil {
			t.Fatalf("first create: %v", err)
		}
		err := store.PutRecord(ctx, "a", "client1", []byte("{}"), 0)
		if !domain.IsDuplicateKey(err) {
			t.Fatalf("expected duplicate key, got %v", err)
		}
	})

	t.Run("compare and swap", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		if err := store.PutRecord(ctx, "a", "client1", []byte(`{"v":1}`), 0); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := store.PutRecord(ctx, "a", "client1", []byte(`{"v":2}`), 1); err != nil {
			t.Fatalf("cas: %v", err)
		}
		_, version, err := store.GetRecord(ctx, "a")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if version != 2 {
			t.Fatalf("version = %d, want 2", version)
		}

		err = store.PutRecord(ctx, "a", "client1", []byte(`{"v":3}`), 1)
		if !domain.IsVersionConflict(err) {
			t.Fatalf("expected version conflict, got %v", err)
		}
		got, _, err := store.GetRecord(ctx, "a")
		if err != nil {
			t.Fatalf("get after conflict: %v", err)
		}
		if !bytes.Equal(got, []byte(`{"v":2}`)) {
			t.Fatalf("conflicting write must not apply, payload = %s", got)
		}
	})

	t.Run("cas on missing record", func(t *testing.T) {
		store := newStore(t)
		err := store.PutRecord(context.Background(), "ghost", "client1", []byte("{}"), 3)
		if !domain.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("get missing record", func(t *testing.T) {
		store := newStore(t)
		_, _, err := store.GetRecord(context.Background(), "ghost")
		if !domain.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("index entries", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		if err := store.PutIndexEntry(ctx, domain.IndexTrackingID, "ST-AAAAA-230615", "a"); err != nil {
			t.Fatalf("claim: %v", err)
		}
		// Idempotent re-claim of the same target.
		if err := store.PutIndexEntry(ctx, domain.IndexTrackingID, "ST-AAAAA-230615", "a"); err != nil {
			t.Fatalf("re-claim: %v", err)
		}
		err := store.PutIndexEntry(ctx, domain.IndexTrackingID, "ST-AAAAA-230615", "b")
		if !domain.IsDuplicateKey(err) {
			t.Fatalf("expected duplicate key, got %v", err)
		}

		target, err := store.GetIndexEntry(ctx, domain.IndexTrackingID, "ST-AAAAA-230615")
		if err != nil {
			t.Fatalf("get index: %v", err)
		}
		if target != "a" {
			t.Fatalf("target = %q", target)
		}

		// Same key under a different index name is independent.
		if err := store.PutIndexEntry(ctx, domain.IndexSourceID, "ST-AAAAA-230615", "b"); err != nil {
			t.Fatalf("other index claim: %v", err)
		}

		if err := store.DeleteIndexEntry(ctx, domain.IndexTrackingID, "ST-AAAAA-230615"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := store.GetIndexEntry(ctx, domain.IndexTrackingID, "ST-AAAAA-230615"); !domain.IsNotFound(err) {
			t.Fatalf("expected not found after delete, got %v", err)
		}
		// Deleting a missing entry is not an error.
		if err := store.DeleteIndexEntry(ctx, domain.IndexTrackingID, "ghost"); err != nil {
			t.Fatalf("delete missing: %v", err)
		}
	})

	t.Run("scans", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		seed := map[string]string{"a": "client1", "b": "client1", "c": "client2"}
		for key, partition := range seed {
			if err := store.PutRecord(ctx, key, partition, []byte(`{"key":"`+key+`"}`), 0); err != nil {
				t.Fatalf("seed %s: %v", key, err)
			}
		}

		partition, err := store.ScanPartition(ctx, "client1")
		if err != nil {
			t.Fatalf("scan partition: %v", err)
		}
		if len(partition) != 2 {
			t.Fatalf("partition size = %d, want 2", len(partition))
		}

		empty, err := store.ScanPartition(ctx, "unknown")
		if err != nil {
			t.Fatalf("scan empty partition: %v", err)
		}
		if len(empty) != 0 {
			t.Fatalf("unknown partition should be empty, got %d", len(empty))
		}

		all, err := store.ScanAll(ctx)
		if err != nil {
			t.Fatalf("scan all: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("scan all size = %d, want 3", len(all))
		}
	})
}
