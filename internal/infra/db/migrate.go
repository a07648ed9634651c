package db

import (
	"database/sql"
)

// MigrateUp creates the halt-audit schema: crawl_halt_events records every
// permanent halt the regulator trips (temporary halts are not recorded
// there), crawl_snapshots stores the
// hourly archival job's point-in-time rate-table dumps.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS crawl_halt_events (
    id          UUID PRIMARY KEY,
    source      TEXT NOT NULL,
    halt_type   VARCHAR(16) NOT NULL,
    reason      TEXT NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS crawl_snapshots (
    id          UUID PRIMARY KEY,
    captured_at TIMESTAMPTZ NOT NULL,
    document    JSONB NOT NULL
)`); err != nil {
		return err
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_crawl_halt_events_source ON crawl_halt_events(source)`,
		`CREATE INDEX IF NOT EXISTS idx_crawl_halt_events_occurred_at ON crawl_halt_events(occurred_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_crawl_snapshots_captured_at ON crawl_snapshots(captured_at DESC)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	return nil
}

// MigrateDown drops the halt-audit schema. Use with caution: this deletes
// every recorded halt event and snapshot.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS crawl_halt_events CASCADE`,
		`DROP TABLE IF EXISTS crawl_snapshots CASCADE`,
	}
	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
