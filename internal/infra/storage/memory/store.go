// Package memory provides an in-memory implementation of the record storage
// contract used for tests and ephemeral environments.
package memory

import (
	"context"
	"sync"

	"statuscore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.RecordStore = (*Store)(nil)

type storedRecord struct {
	partition string
	payload   []byte
	version   int64
}

// Store keeps records and index entries in process memory behind a mutex.
// Payload bytes are copied on the way in and out so callers never share
// backing arrays with the store.
type Store struct {
	mu      sync.RWMutex
	records map[string]storedRecord
	indexes map[string]map[string]string
}

// New returns an empty in-memory record store.
func New() *Store {
	return &Store{
		records: make(map[string]storedRecord),
		indexes: make(map[string]map[string]string),
	}
}

// PutRecord creates or replaces a record under compare-and-swap semantics.
func (s *Store) PutRecord(_ context.Context, key, partition string, value []byte, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.records[key]
	if expectedVersion == 0 {
		if exists {
			return domain.DuplicateKeyError{Index: "records", Key: key}
		}
		s.records[key] = storedRecord{partition: partition, payload: cloneBytes(value), version: 1}
		return nil
	}
	if !exists {
		return domain.NotFoundError{Kind: "record", Key: key}
	}
	if current.version != expectedVersion {
		return domain.VersionConflictError{Key: key, Expected: expectedVersion, Actual: current.version}
	}
	s.records[key] = storedRecord{partition: partition, payload: cloneBytes(value), version: expectedVersion + 1}
	return nil
}

// GetRecord returns the stored payload and version.
func (s *Store) GetRecord(_ context.Context, key string) ([]byte, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, 0, domain.NotFoundError{Kind: "record", Key: key}
	}
	return cloneBytes(rec.payload), rec.version, nil
}

// PutIndexEntry claims index[key] = target. Re-claiming the same target is
// idempotent so retried creates converge.
func (s *Store) PutIndexEntry(_ context.Context, index, key, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.indexes[index]
	if !ok {
		entries = make(map[string]string)
		s.indexes[index] = entries
	}
	if existing, exists := entries[key]; exists && existing != target {
		return domain.DuplicateKeyError{Index: index, Key: key}
	}
	entries[key] = target
	return nil
}

// GetIndexEntry resolves index[key].
func (s *Store) GetIndexEntry(_ context.Context, index, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	target, ok := s.indexes[index][key]
	if !ok {
		return "", domain.NotFoundError{Kind: index, Key: key}
	}
	return target, nil
}

// DeleteIndexEntry removes an advisory index entry if present.
func (s *Store) DeleteIndexEntry(_ context.Context, index, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entries, ok := s.indexes[index]; ok {
		delete(entries, key)
	}
	return nil
}

// ScanPartition returns payload copies for every record in the partition.
func (s *Store) ScanPartition(_ context.Context, partition string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out [][]byte
	for _, rec := range s.records {
		if rec.partition == partition {
			out = append(out, cloneBytes(rec.payload))
		}
	}
	return out, nil
}

// ScanAll returns payload copies for every record in the store.
func (s *Store) ScanAll(_ context.Context) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][]byte, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, cloneBytes(rec.payload))
	}
	return out, nil
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
