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

		CREATE TABLE IF NOT EXISTS queue_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			current_index INTEGER NOT NULL DEFAULT -1
		);

		CREATE TABLE IF NOT EXISTS queue_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			position INTEGER NOT NULL,
			item_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			author TEXT,
			resource_path TEXT,
			resource_url TEXT,
			position_ms INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			UNIQUE(position)
		);

		CREATE INDEX IF NOT EXISTS idx_queue_items_position ON queue_items(position);

		CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			rate REAL NOT NULL DEFAULT 1.0,
			auto_advance INTEGER NOT NULL DEFAULT 1
		);
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	if err != nil {
		return err
	}

	// Migration: add resume-position columns if missing
	_, _ = db.Exec(`ALTER TABLE queue_items ADD COLUMN position_ms INTEGER NOT NULL DEFAULT 0`)
	_, _ = db.Exec(`ALTER TABLE queue_items ADD COLUMN duration_ms INTEGER NOT NULL DEFAULT 0`)

	return nil
}
