package domain

import (
	"errors"
	"fmt"
)

// NotFoundError reports that an operation targeted a key that does not exist.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// DuplicateKeyError reports a unique-constraint violation on create.
type DuplicateKeyError struct {
	Index string
	Key   string
}

func (e DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %q in index %s", e.Key, e.Index)
}

// IsDuplicateKey reports whether err carries a DuplicateKeyError.
func IsDuplicateKey(err error) bool {
	var dup DuplicateKeyError
	return errors.As(err, &dup)
}

// VersionConflictError reports a concurrent-update race detected by the
// storage collaborator's compare-and-swap. Safe to retry with a fresh read.
type VersionConflictError struct {
	Key      string
	Expected int64
	Actual   int64
}

func (e VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on %q: expected %d, stored %d", e.Key, e.Expected, e.Actual)
}

// IsVersionConflict reports whether err carries a VersionConflictError.
func IsVersionConflict(err error) bool {
	var vc VersionConflictError
	return errors.As(err, &vc)
}

// ValidationError reports malformed or missing required input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// StorageUnavailableError reports a transient storage collaborator failure.
// The engine retries these with backoff before surfacing them.
type StorageUnavailableError struct {
	Op  string
	Err error
}

func (e StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable during %s: %v", e.Op, e.Err)
}

func (e StorageUnavailableError) Unwrap() error { return e.Err }

// IsStorageUnavailable reports whether err carries a StorageUnavailableError.
func IsStorageUnavailable(err error) bool {
	var su StorageUnavailableError
	return errors.As(err, &su)
}
