// Package blob persists registry snapshots as opaque objects so long
// simulations can be resumed or handed to another host. Backends cover
// local development (filesystem), tests (memory) and shared runs (S3 or
// any compatible endpoint such as MinIO).
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Driver identifies a concrete snapshot storage backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverMemory     Driver = "memory"
	DriverS3         Driver = "s3"
)

// ErrNotFound is returned by Get for a key that was never stored.
var ErrNotFound = errors.New("snapshot not found")

// Store is the snapshot persistence abstraction. Keys are flat names;
// Put overwrites, matching snapshot semantics where the latest state of
// a named simulation wins.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	Driver() Driver
}

// Environment variables:
//   RADVF_SNAPSHOT_DRIVER=fs|memory|s3 (default fs)
//   RADVF_SNAPSHOT_DIR=<path>          (fs; default ./snapshots)
//   RADVF_SNAPSHOT_S3_BUCKET=<bucket>  (required for s3)
//   RADVF_SNAPSHOT_S3_REGION=<region>  (default us-east-1)
//   RADVF_SNAPSHOT_S3_ENDPOINT=<url>   (optional, for MinIO)
//   AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY (optional, else default chain)

// Open constructs a snapshot store from process environment.
func Open(ctx context.Context) (Store, error) {
	driver := Driver(strings.ToLower(os.Getenv("RADVF_SNAPSHOT_DRIVER")))
	switch driver {
	case DriverFilesystem, "":
		dir := os.Getenv("RADVF_SNAPSHOT_DIR")
		if dir == "" {
			dir = "snapshots"
		}
		return NewFilesystem(dir)
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		return NewS3FromEnv(ctx)
	default:
		return nil, fmt.Errorf("unknown snapshot driver %q", driver)
	}
}
