package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

const schemaV1 = `
-- One row per bridge run
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    model_path TEXT,
    joints TEXT NOT NULL,   -- JSON array of relayed joint names
    objects INTEGER NOT NULL DEFAULT 0
);

-- One row per relayed command
CREATE TABLE IF NOT EXISTS steps (
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    call INTEGER NOT NULL,
    sim_time REAL NOT NULL,
    stamp_ns INTEGER NOT NULL,
    duration_ns INTEGER NOT NULL,
    command TEXT,           -- JSON array
    position TEXT,          -- JSON array
    velocity TEXT,          -- JSON array
    gravity_torque TEXT,    -- JSON array
    objects TEXT,           -- JSON array of object poses
    PRIMARY KEY (session_id, call)
);
CREATE INDEX IF NOT EXISTS idx_steps_session ON steps(session_id);

-- Schema version
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema creates the tables on a fresh database and checks the version
// of an existing one.
func InitSchema(ctx context.Context, db *sql.DB) error {
	var version sql.NullInt64
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		// Schema version table doesn't exist yet, create fresh schema
		return createSchema(ctx, db)
	}
	if !version.Valid {
		return createSchema(ctx, db)
	}
	if version.Int64 > SchemaVersion {
		return fmt.Errorf("recording schema version %d is newer than supported version %d", version.Int64, SchemaVersion)
	}
	return nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO schema_version (version, applied_at) VALUES (?, ?)`,
		SchemaVersion, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}
