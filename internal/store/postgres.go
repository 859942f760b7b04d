package store

import (
	"context"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

// OpenPostgres opens a PostgreSQL-backed result store from a connection
// string.
func OpenPostgres(ctx context.Context, dsn string) (ResultStore, error) {
	return newSQLStore(ctx, "pgx", dsn)
}
