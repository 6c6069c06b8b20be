package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"
)

// migrations are applied in order; PRAGMA user_version records how many have run.
// Append only: never edit a released entry.
var migrations = []string{
	// v1: life events and myths
	`CREATE TABLE IF NOT EXISTS life_events (
		id          TEXT PRIMARY KEY,
		owner_id    TEXT NOT NULL,
		title       TEXT NOT NULL CHECK (length(title) > 0),
		description TEXT NOT NULL DEFAULT '',
		category    TEXT NOT NULL DEFAULT 'general',
		occurred_on TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_life_events_owner ON life_events (owner_id, occurred_on DESC, created_at DESC);
	CREATE TABLE IF NOT EXISTS myths (
		id              TEXT PRIMARY KEY,
		owner_id        TEXT NOT NULL,
		title           TEXT NOT NULL,
		label           TEXT NOT NULL CHECK (length(label) > 0),
		narrative       TEXT NOT NULL CHECK (length(narrative) > 0),
		source_event_id TEXT REFERENCES life_events (id),
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_myths_owner ON myths (owner_id, created_at DESC);`,

	// v2: myths by source event
	`CREATE INDEX IF NOT EXISTS idx_myths_source_event ON myths (source_event_id) WHERE source_event_id IS NOT NULL;`,
}

// CurrentSchemaVersion is the user_version of a fully migrated database.
var CurrentSchemaVersion = len(migrations)

// Migrate brings the schema up to CurrentSchemaVersion. Each step runs in its own transaction.
func (s *Store) Migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema v%d is newer than this binary (v%d)", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		if err := s.applyMigration(ctx, i+1, migrations[i]); err != nil {
			return err
		}
		log.Debug("applied migration", "version", i+1)
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, version int, stmt string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("migration v%d: %w", version, err)
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("migration v%d: set version: %w", version, err)
	}
	return tx.Commit()
}

func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
