package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InitSchema creates the service tables. The DDL is valid for both SQLite and
// Postgres; timestamps are stored as unix milliseconds.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createSchedulesQuery := `
	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		created_at BIGINT NOT NULL,
		depart_at BIGINT NOT NULL,
		arrive_at BIGINT NOT NULL,
		safety_score DOUBLE PRECISION NOT NULL,
		body TEXT NOT NULL
	);
	`

	createSchedulesIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_schedules_created_at
	ON schedules(created_at);
	`

	createRouteCacheQuery := `
	CREATE TABLE IF NOT EXISTS route_cache (
		cache_key TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		created_at BIGINT NOT NULL
	);
	`

	createGeocodeCacheQuery := `
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lon DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL
	);
	`

	statements := []string{
		createSchedulesQuery,
		createSchedulesIndexQuery,
		createRouteCacheQuery,
		createGeocodeCacheQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
