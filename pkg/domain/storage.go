package domain

import "context"

// Secondary index names maintained alongside status records.
const (
	// IndexTrackingID maps a human-friendly tracking ID to a status ID.
	IndexTrackingID = "tracking_id"
	// IndexSourceID maps an external origin system's ID to a status ID.
	IndexSourceID = "source_id"
)

// RecordStore is the narrow storage collaborator contract the engine
// persists through. Implementations must provide per-record compare-and-swap
// semantics on PutRecord and unique-key semantics on PutIndexEntry.
//
// Index entries follow a write-ahead convention: the engine claims index
// entries before committing the record, treats them as advisory, and
// reconciles index lookups against the fetched record on read. Backends
// therefore never need cross-key transactions.
//
// Transient backend failures are reported as StorageUnavailableError so the
// engine can distinguish them from the typed client errors.
type RecordStore interface {
	// PutRecord writes a record document under key within partition.
	// expectedVersion 0 creates the record (the key must not exist);
	// expectedVersion n replaces the record only if the stored version is n,
	// returning VersionConflictError otherwise.
	PutRecord(ctx context.Context, key, partition string, value []byte, expectedVersion int64) error

	// GetRecord returns the stored document and its version, or
	// NotFoundError.
	GetRecord(ctx context.Context, key string) ([]byte, int64, error)

	// PutIndexEntry claims index[key] = target. Claiming an existing key with
	// a different target fails with DuplicateKeyError; re-claiming the same
	// target is idempotent.
	PutIndexEntry(ctx context.Context, index, key, target string) error

	// GetIndexEntry resolves index[key] to a target key, or NotFoundError.
	GetIndexEntry(ctx context.Context, index, key string) (string, error)

	// DeleteIndexEntry removes an advisory index entry. Missing entries are
	// not an error.
	DeleteIndexEntry(ctx context.Context, index, key string) error

	// ScanPartition returns all record documents within one partition.
	ScanPartition(ctx context.Context, partition string) ([][]byte, error)

	// ScanAll returns every record document in the store.
	ScanAll(ctx context.Context) ([][]byte, error)
}

// SearchCriteria selects statuses for the search operation. Zero-valued
// fields are ignored; populated filters combine with logical AND.
type SearchCriteria struct {
	ClientID   string
	AdvisorID  string
	StatusType string
	Priority   string
	Category   string

	// TextSearch matches case-insensitively as a substring of the summary,
	// category, sub-category, tag values, and required/completed actions.
	TextSearch string
}
