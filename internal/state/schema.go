package state

import (
	"database/sql"
)

const currentSchemaVersion = 2

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS lastfm_session (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			username TEXT NOT NULL,
			session_key TEXT NOT NULL,
			linked_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			kind TEXT NOT NULL,
			message TEXT NOT NULL,
			run_id TEXT,
			batch_id TEXT,
			payload TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_events_kind ON audit_events(kind, timestamp);

		CREATE TABLE IF NOT EXISTS failed_edits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			artist TEXT NOT NULL,
			track TEXT NOT NULL,
			album TEXT,
			timestamp INTEGER NOT NULL,
			edit TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	// Set initial version if not exists
	_, err = db.Exec(`
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	if err != nil {
		return err
	}

	// Migration: add batch_id column if missing
	_, _ = db.Exec(`ALTER TABLE audit_events ADD COLUMN batch_id TEXT`)

	return nil
}
