// Package store archives solved view factors in a relational database so
// downstream thermal analyses can query them without re-running the
// ray-tracing tool. SQLite covers single-host runs; PostgreSQL covers
// shared result pools.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
)

// ViewFactorRecord is one solved emitter->receiver value.
type ViewFactorRecord struct {
	ReceiverID string
	ViewFactor float64
}

// ResultStore persists solved view factors keyed by emitter identifier.
type ResultStore interface {
	SaveViewFactors(ctx context.Context, emitterID string, records []ViewFactorRecord) error
	LoadViewFactors(ctx context.Context, emitterID string) ([]ViewFactorRecord, error)
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS view_factors (
	emitter_id  TEXT NOT NULL,
	receiver_id TEXT NOT NULL,
	view_factor DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (emitter_id, receiver_id)
)`

// sqlStore is the shared database/sql implementation; the sqlite and
// postgres constructors differ only in driver and DSN. Both accept $1
// style placeholders.
type sqlStore struct {
	db *sql.DB
}

func newSQLStore(ctx context.Context, driver, dsn string) (*sqlStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s result store: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s result store: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create view_factors table: %w", err)
	}
	return &sqlStore{db: db}, nil
}

func (s *sqlStore) SaveViewFactors(ctx context.Context, emitterID string, records []ViewFactorRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const upsert = `
INSERT INTO view_factors (emitter_id, receiver_id, view_factor)
VALUES ($1, $2, $3)
ON CONFLICT (emitter_id, receiver_id) DO UPDATE SET view_factor = excluded.view_factor`
	for _, r := range records {
		if _, err := tx.ExecContext(ctx, upsert, emitterID, r.ReceiverID, r.ViewFactor); err != nil {
			return fmt.Errorf("save view factor %s->%s: %w", emitterID, r.ReceiverID, err)
		}
	}
	return tx.Commit()
}

func (s *sqlStore) LoadViewFactors(ctx context.Context, emitterID string) ([]ViewFactorRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT receiver_id, view_factor FROM view_factors WHERE emitter_id = $1 ORDER BY receiver_id`,
		emitterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ViewFactorRecord
	for rows.Next() {
		var r ViewFactorRecord
		if err := rows.Scan(&r.ReceiverID, &r.ViewFactor); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *sqlStore) Close() error { return s.db.Close() }

// Environment variables:
//   RADVF_RESULT_DRIVER=sqlite|postgres (default sqlite)
//   RADVF_RESULT_SQLITE_PATH=<file>     (default radvf_results.db)
//   RADVF_RESULT_POSTGRES_DSN=<dsn>     (required for postgres)

// Open constructs a result store from process environment.
func Open(ctx context.Context) (ResultStore, error) {
	switch driver := strings.ToLower(os.Getenv("RADVF_RESULT_DRIVER")); driver {
	case "sqlite", "":
		path := os.Getenv("RADVF_RESULT_SQLITE_PATH")
		if path == "" {
			path = "radvf_results.db"
		}
		return OpenSQLite(ctx, path)
	case "postgres":
		dsn := os.Getenv("RADVF_RESULT_POSTGRES_DSN")
		if dsn == "" {
			return nil, fmt.Errorf("RADVF_RESULT_POSTGRES_DSN required for postgres driver")
		}
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown result store driver %q", driver)
	}
}
