// Package sqlite persists status records and index entries in an embedded
// SQLite database using the pure Go driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"statuscore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.RecordStore = (*Store)(nil)

// Store maps the record storage contract onto two tables: one for record
// documents with their version counter, one for unique secondary index
// entries. Compare-and-swap is a conditional UPDATE on the version column.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (or creates) the database at path. An empty path defaults to
// statuscore.db in the working directory.
func New(path string) (*Store, error) {
	if path == "" {
		path = "statuscore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (
		key TEXT PRIMARY KEY,
		partition TEXT NOT NULL,
		payload BLOB NOT NULL,
		version INTEGER NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create records table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS records_partition ON records(partition)`); err != nil {
		return nil, fmt.Errorf("create partition index: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS index_entries (
		index_name TEXT NOT NULL,
		index_key TEXT NOT NULL,
		target TEXT NOT NULL,
		PRIMARY KEY (index_name, index_key)
	)`); err != nil {
		return nil, fmt.Errorf("create index table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// PutRecord creates or conditionally replaces a record document.
func (s *Store) PutRecord(ctx context.Context, key, partition string, value []byte, expectedVersion int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("put_record", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var current int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM records WHERE key = ?`, key).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if expectedVersion != 0 {
			return domain.NotFoundError{Kind: "record", Key: key}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records(key, partition, payload, version) VALUES(?,?,?,1)`,
			key, partition, value); err != nil {
			return storageErr("put_record", err)
		}
	case err != nil:
		return storageErr("put_record", err)
	default:
		if expectedVersion == 0 {
			return domain.DuplicateKeyError{Index: "records", Key: key}
		}
		if current != expectedVersion {
			return domain.VersionConflictError{Key: key, Expected: expectedVersion, Actual: current}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE records SET partition = ?, payload = ?, version = version + 1 WHERE key = ? AND version = ?`,
			partition, value, key, expectedVersion); err != nil {
			return storageErr("put_record", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storageErr("put_record", err)
	}
	committed = true
	return nil
}

// GetRecord fetches a record document and its version.
func (s *Store) GetRecord(ctx context.Context, key string) ([]byte, int64, error) {
	var payload []byte
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, version FROM records WHERE key = ?`, key).Scan(&payload, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, domain.NotFoundError{Kind: "record", Key: key}
	}
	if err != nil {
		return nil, 0, storageErr("get_record", err)
	}
	return payload, version, nil
}

// PutIndexEntry claims index[key] = target; re-claiming the same target is
// idempotent.
func (s *Store) PutIndexEntry(ctx context.Context, index, key, target string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO index_entries(index_name, index_key, target) VALUES(?,?,?)
		 ON CONFLICT(index_name, index_key) DO NOTHING`,
		index, key, target)
	if err != nil {
		return storageErr("put_index_entry", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr("put_index_entry", err)
	}
	if affected == 1 {
		return nil
	}
	existing, err := s.GetIndexEntry(ctx, index, key)
	if err != nil {
		return storageErr("put_index_entry", err)
	}
	if existing != target {
		return domain.DuplicateKeyError{Index: index, Key: key}
	}
	return nil
}

// GetIndexEntry resolves index[key].
func (s *Store) GetIndexEntry(ctx context.Context, index, key string) (string, error) {
	var target string
	err := s.db.QueryRowContext(ctx,
		`SELECT target FROM index_entries WHERE index_name = ? AND index_key = ?`,
		index, key).Scan(&target)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.NotFoundError{Kind: index, Key: key}
	}
	if err != nil {
		return "", storageErr("get_index_entry", err)
	}
	return target, nil
}

// DeleteIndexEntry removes an advisory index entry if present.
func (s *Store) DeleteIndexEntry(ctx context.Context, index, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM index_entries WHERE index_name = ? AND index_key = ?`,
		index, key); err != nil {
		return storageErr("delete_index_entry", err)
	}
	return nil
}

// ScanPartition returns all record documents in a partition.
func (s *Store) ScanPartition(ctx context.Context, partition string) ([][]byte, error) {
	return s.scan(ctx, `SELECT payload FROM records WHERE partition = ? ORDER BY key`, partition)
}

// ScanAll returns every record document.
func (s *Store) ScanAll(ctx context.Context) ([][]byte, error) {
	return s.scan(ctx, `SELECT payload FROM records ORDER BY key`)
}

func (s *Store) scan(ctx context.Context, query string, args ...any) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("scan", err)
	}
	defer func() { _ = rows.Close() }()

	var out [][]byte
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, storageErr("scan", err)
		}
		out = append(out, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("scan", err)
	}
	return out, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func storageErr(op string, err error) error {
	return domain.StorageUnavailableError{Op: op, Err: err}
}
