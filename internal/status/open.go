package status

import (
	"context"
	"fmt"
	"os"

	"statuscore/internal/infra/storage/memory"
	"statuscore/internal/infra/storage/postgres"
	"statuscore/internal/infra/storage/sqlite"
	"statuscore/pkg/domain"
)

// StorageDriver identifies a concrete record storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and parameterizes a record storage backend.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenRecordStore opens the backend named by the config. An empty driver
// defaults to sqlite.
func OpenRecordStore(ctx context.Context, cfg StorageConfig) (domain.RecordStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.New(), nil
	case StorageSQLite:
		return sqlite.New(cfg.SQLitePath)
	case StoragePostgres:
		return postgres.New(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// OpenRecordStoreFromEnv selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	STATUSCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	STATUSCORE_SQLITE_PATH: path to sqlite file (default ./statuscore.db)
//	STATUSCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenRecordStoreFromEnv(ctx context.Context) (domain.RecordStore, error) {
	return OpenRecordStore(ctx, StorageConfig{
		Driver:      StorageDriver(os.Getenv("STATUSCORE_STORAGE_DRIVER")),
		SQLitePath:  os.Getenv("STATUSCORE_SQLITE_PATH"),
		PostgresDSN: os.Getenv("STATUSCORE_POSTGRES_DSN"),
	})
}
