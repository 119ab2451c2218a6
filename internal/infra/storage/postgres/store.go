// Package postgres provides a PostgreSQL-backed implementation of the record
// storage contract, registered through the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"statuscore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.RecordStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/statuscore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store maps the record storage contract onto a records table (JSONB payload
// plus version counter) and a unique index-entry table.
type Store struct {
	db *sql.DB
}

// New opens a Postgres-backed store using the provided DSN (falls back to a
// local default) and ensures the schema exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, domain.StorageUnavailableError{Op: "ping", Err: err}
	}
	if err := ensureSchema(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS records (
			key TEXT PRIMARY KEY,
			partition TEXT NOT NULL,
			payload JSONB NOT NULL,
			version BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS records_partition ON records(partition)`,
		`CREATE TABLE IF NOT EXISTS index_entries (
			index_name TEXT NOT NULL,
			index_key TEXT NOT NULL,
			target TEXT NOT NULL,
			PRIMARY KEY (index_name, index_key)
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// PutRecord creates or conditionally replaces a record document.
func (s *Store) PutRecord(ctx context.Context, key, partition string, value []byte, expectedVersion int64) error {
	if expectedVersion == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO records(key, partition, payload, version) VALUES($1,$2,$3,1)
			 ON CONFLICT (key) DO NOTHING`,
			key, partition, value)
		if err != nil {
			return storageErr("put_record", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return storageErr("put_record", err)
		}
		if affected == 0 {
			return domain.DuplicateKeyError{Index: "records", Key: key}
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET partition = $1, payload = $2, version = version + 1
		 WHERE key = $3 AND version = $4`,
		partition, value, key, expectedVersion)
	if err != nil {
		return storageErr("put_record", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr("put_record", err)
	}
	if affected == 1 {
		return nil
	}

	var current int64
	err = s.db.QueryRowContext(ctx, `SELECT version FROM records WHERE key = $1`, key).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{Kind: "record", Key: key}
	}
	if err != nil {
		return storageErr("put_record", err)
	}
	return domain.VersionConflictError{Key: key, Expected: expectedVersion, Actual: current}
}

// GetRecord fetches a record document and its version.
func (s *Store) GetRecord(ctx context.Context, key string) ([]byte, int64, error) {
	var payload []byte
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, version FROM records WHERE key = $1`, key).Scan(&payload, &version)
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
		`INSERT INTO index_entries(index_name, index_key, target) VALUES($1,$2,$3)
		 ON CONFLICT (index_name, index_key) DO NOTHING`,
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
		`SELECT target FROM index_entries WHERE index_name = $1 AND index_key = $2`,
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
		`DELETE FROM index_entries WHERE index_name = $1 AND index_key = $2`,
		index, key); err != nil {
		return storageErr("delete_index_entry", err)
	}
	return nil
}

// ScanPartition returns all record documents in a partition.
func (s *Store) ScanPartition(ctx context.Context, partition string) ([][]byte, error) {
	return s.scan(ctx, `SELECT payload FROM records WHERE partition = $1 ORDER BY key`, partition)
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

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore
// function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

func storageErr(op string, err error) error {
	return domain.StorageUnavailableError{Op: op, Err: err}
}
