package store

import (
	"context"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// OpenSQLite opens (creating if needed) a file-backed SQLite result
// store. The pure-Go driver needs no cgo toolchain.
func OpenSQLite(ctx context.Context, path string) (ResultStore, error) {
	return newSQLStore(ctx, "sqlite", path)
}
