package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"statuscore/internal/infra/storage/storagetest"
	"statuscore/pkg/domain"
)

func TestNewAppliesSchema(t *testing.T) {
	store, conn := newStubStore(t)
	defer func() { _ = store.Close() }()

	wantDDL := []string{
		"CREATE TABLE IF NOT EXISTS records",
		"CREATE INDEX IF NOT EXISTS records_partition",
		"CREATE TABLE IF NOT EXISTS index_entries",
	}
	for _, want := range wantDDL {
		var saw bool
		for _, stmt := range conn.execs {
			if strings.Contains(stmt, want) {
				saw = true
				break
			}
		}
		if !saw {
			t.Fatalf("expected %q in applied DDL, got execs: %v", want, conn.execs)
		}
	}
}

func TestNewOpenError(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) {
		return nil, fmt.Errorf("boom")
	})
	defer restore()

	if _, err := New(context.Background(), ""); err == nil {
		t.Fatal("expected open error")
	}
}

func TestNewPingErrorIsStorageUnavailable(t *testing.T) {
	db, conn := newStubDB()
	conn.failPing = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	_, err := New(context.Background(), "")
	if !domain.IsStorageUnavailable(err) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}

func TestNewSchemaError(t *testing.T) {
	db, conn := newStubDB()
	conn.failExec = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	_, err := New(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "ensure schema") {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestPutRecordCreateRejectsExistingKey(t *testing.T) {
	store, _ := newStubStore(t)
	ctx := context.Background()

	if err := store.PutRecord(ctx, "a", "client1", []byte(`{"v":1}`), 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := store.PutRecord(ctx, "a", "client1", []byte(`{"v":1}`), 0)
	if !domain.IsDuplicateKey(err) {
		t.Fatalf("expected duplicate key, got %v", err)
	}
}

func TestPutRecordDisambiguatesFailedCAS(t *testing.T) {
	store, _ := newStubStore(t)
	ctx := context.Background()

	if err := store.PutRecord(ctx, "a", "client1", []byte(`{"v":1}`), 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.PutRecord(ctx, "a", "client1", []byte(`{"v":2}`), 1); err != nil {
		t.Fatalf("cas: %v", err)
	}
	payload, version, err := store.GetRecord(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if version != 2 || string(payload) != `{"v":2}` {
		t.Fatalf("after cas: version=%d payload=%s", version, payload)
	}

	// Zero rows affected plus an existing row means a version conflict.
	var conflict domain.VersionConflictError
	err = store.PutRecord(ctx, "a", "client1", []byte(`{"v":3}`), 1)
	if !errors.As(err, &conflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	if conflict.Expected != 1 || conflict.Actual != 2 {
		t.Fatalf("conflict = %+v", conflict)
	}

	// Zero rows affected with no row at all means the record is missing.
	err = store.PutRecord(ctx, "ghost", "client1", []byte(`{}`), 4)
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExecFailuresSurfaceAsStorageUnavailable(t *testing.T) {
	store, conn := newStubStore(t)
	ctx := context.Background()

	conn.failExec = true
	if err := store.PutRecord(ctx, "a", "client1", []byte(`{}`), 0); !domain.IsStorageUnavailable(err) {
		t.Fatalf("put record: expected storage unavailable, got %v", err)
	}
	if err := store.PutIndexEntry(ctx, domain.IndexTrackingID, "ST-AAAAA-230615", "a"); !domain.IsStorageUnavailable(err) {
		t.Fatalf("put index entry: expected storage unavailable, got %v", err)
	}
	if err := store.DeleteIndexEntry(ctx, domain.IndexTrackingID, "ST-AAAAA-230615"); !domain.IsStorageUnavailable(err) {
		t.Fatalf("delete index entry: expected storage unavailable, got %v", err)
	}

	conn.failExec = false
	conn.failQuery = true
	if _, _, err := store.GetRecord(ctx, "a"); !domain.IsStorageUnavailable(err) {
		t.Fatalf("get record: expected storage unavailable, got %v", err)
	}
	if _, err := store.GetIndexEntry(ctx, domain.IndexTrackingID, "ST-AAAAA-230615"); !domain.IsStorageUnavailable(err) {
		t.Fatalf("get index entry: expected storage unavailable, got %v", err)
	}
	if _, err := store.ScanAll(ctx); !domain.IsStorageUnavailable(err) {
		t.Fatalf("scan all: expected storage unavailable, got %v", err)
	}
}

func TestDBExposesHandle(t *testing.T) {
	store, _ := newStubStore(t)
	if store.DB() == nil {
		t.Fatal("expected underlying handle")
	}
}

func TestContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) domain.RecordStore {
		store, _ := newStubStore(t)
		return store
	})
}

func newStubStore(t *testing.T) (*Store, *stubConn) {
	t.Helper()
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := New(context.Background(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store, conn
}

// stubDriver serves an in-process database/sql connection implementing the
// statements the store issues, so the SQL mapping is testable without a
// server.
type stubDriver struct {
	conn *stubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

type storedRecord struct {
	partition string
	payload   []byte
	version   int64
}

type stubConn struct {
	execs     []string
	records   map[string]*storedRecord
	indexes   map[string]string
	failPing  bool
	failExec  bool
	failQuery bool
}

var stubSeq atomic.Int64

func newStubDB() (*sql.DB, *stubConn) {
	conn := &stubConn{
		records: make(map[string]*storedRecord),
		indexes: make(map[string]string),
	}
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error)           { return nil, fmt.Errorf("not implemented") }

func (c *stubConn) Ping(_ context.Context) error {
	if c.failPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

func indexKey(index, key string) string { return index + "\x00" + key }

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.execs = append(c.execs, query)
	if c.failExec {
		return nil, fmt.Errorf("exec fail")
	}
	switch {
	case strings.HasPrefix(strings.TrimSpace(query), "CREATE "):
		return driver.RowsAffected(0), nil
	case strings.Contains(query, "INSERT INTO records"):
		key := argString(args[0])
		if _, exists := c.records[key]; exists {
			return driver.RowsAffected(0), nil
		}
		c.records[key] = &storedRecord{
			partition: argString(args[1]),
			payload:   argBytes(args[2]),
			version:   1,
		}
		return driver.RowsAffected(1), nil
	case strings.Contains(query, "UPDATE records"):
		key := argString(args[2])
		rec, exists := c.records[key]
		if !exists || rec.version != argInt64(args[3]) {
			return driver.RowsAffected(0), nil
		}
		rec.partition = argString(args[0])
		rec.payload = argBytes(args[1])
		rec.version++
		return driver.RowsAffected(1), nil
	case strings.Contains(query, "INSERT INTO index_entries"):
		entry := indexKey(argString(args[0]), argString(args[1]))
		if _, exists := c.indexes[entry]; exists {
			return driver.RowsAffected(0), nil
		}
		c.indexes[entry] = argString(args[2])
		return driver.RowsAffected(1), nil
	case strings.Contains(query, "DELETE FROM index_entries"):
		entry := indexKey(argString(args[0]), argString(args[1]))
		if _, exists := c.indexes[entry]; !exists {
			return driver.RowsAffected(0), nil
		}
		delete(c.indexes, entry)
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("unexpected exec: %s", query)
}

func (c *stubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if c.failQuery {
		return nil, fmt.Errorf("query fail")
	}
	switch {
	case strings.Contains(query, "SELECT payload, version FROM records"):
		rec, exists := c.records[argString(args[0])]
		if !exists {
			return &stubRows{cols: []string{"payload", "version"}}, nil
		}
		return &stubRows{
			cols: []string{"payload", "version"},
			rows: [][]driver.Value{{rec.payload, rec.version}},
		}, nil
	case strings.Contains(query, "SELECT version FROM records"):
		rec, exists := c.records[argString(args[0])]
		if !exists {
			return &stubRows{cols: []string{"version"}}, nil
		}
		return &stubRows{cols: []string{"version"}, rows: [][]driver.Value{{rec.version}}}, nil
	case strings.Contains(query, "SELECT target FROM index_entries"):
		target, exists := c.indexes[indexKey(argString(args[0]), argString(args[1]))]
		if !exists {
			return &stubRows{cols: []string{"target"}}, nil
		}
		return &stubRows{cols: []string{"target"}, rows: [][]driver.Value{{target}}}, nil
	case strings.Contains(query, "SELECT payload FROM records"):
		var partition string
		filtered := strings.Contains(query, "WHERE partition")
		if filtered {
			partition = argString(args[0])
		}
		keys := make([]string, 0, len(c.records))
		for key, rec := range c.records {
			if filtered && rec.partition != partition {
				continue
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)
		rows := make([][]driver.Value, 0, len(keys))
		for _, key := range keys {
			rows = append(rows, []driver.Value{c.records[key].payload})
		}
		return &stubRows{cols: []string{"payload"}, rows: rows}, nil
	}
	return nil, fmt.Errorf("unexpected query: %s", query)
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func argString(v driver.NamedValue) string {
	switch val := v.Value.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

func argBytes(v driver.NamedValue) []byte {
	switch val := v.Value.(type) {
	case []byte:
		out := make([]byte, len(val))
		copy(out, val)
		return out
	case string:
		return []byte(val)
	default:
		return nil
	}
}

func argInt64(v driver.NamedValue) int64 {
	if n, ok := v.Value.(int64); ok {
		return n
	}
	return 0
}
