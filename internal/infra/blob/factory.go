// Package blob selects a concrete blob store backend for the snapshot
// archive.
package blob

import (
	"context"
	"fmt"
	"os"

	"statuscore/internal/infra/blob/core"
	"statuscore/internal/infra/blob/fs"
	"statuscore/internal/infra/blob/memory"
	"statuscore/internal/infra/blob/s3"
)

// Config selects and parameterizes a blob backend.
type Config struct {
	Driver   core.Driver
	FSRoot   string
	S3Bucket string
	S3Region string
	// S3Endpoint enables MinIO-style custom endpoints.
	S3Endpoint  string
	S3PathStyle bool
}

// Open opens the backend named by the config. An empty driver defaults to fs.
func Open(ctx context.Context, cfg Config) (core.Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = core.DriverFilesystem
	}
	switch driver {
	case core.DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case core.DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	case core.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// OpenFromEnv selects a backend using environment variables.
//
//	STATUSCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	STATUSCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./archivedata)
//	(S3 specific variables documented in the s3 package)
func OpenFromEnv(ctx context.Context) (core.Store, error) {
	driver := core.Driver(os.Getenv("STATUSCORE_BLOB_DRIVER"))
	if driver == core.DriverS3 {
		return s3.OpenFromEnv(ctx)
	}
	return Open(ctx, Config{
		Driver: driver,
		FSRoot: os.Getenv("STATUSCORE_BLOB_FS_ROOT"),
	})
}
