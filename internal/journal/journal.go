// Package journal provides a SQLite-backed log of sync outcomes: one row
// per record per run, queryable from the status command.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sync_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	guid        TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL,
	external_id INTEGER NOT NULL DEFAULT 0,
	detail      TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sync_events_guid ON sync_events(guid);
`

// Actions recorded per sync outcome.
const (
	ActionPublished = "published"
	ActionSkipped   = "skipped"
	ActionFailed    = "failed"
	ActionDryRun    = "dry-run"
)

// Event is one sync outcome.
type Event struct {
	GUID       string
	Title      string
	Action     string
	ExternalID int
	Detail     string
	CreatedAt  time.Time
}

// DB wraps a sql.DB with journal-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the journal database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Record appends one sync outcome.
func (db *DB) Record(ev Event) error {
	created := ev.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO sync_events (guid, title, action, external_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.GUID, ev.Title, ev.Action, ev.ExternalID, ev.Detail, created)
	if err != nil {
		return fmt.Errorf("journal: record event: %w", err)
	}
	return nil
}

// Recent returns the most recent events, newest first.
func (db *DB) Recent(limit int) ([]Event, error) {
	rows, err := db.conn.Query(`
		SELECT guid, title, action, external_id, detail, created_at
		FROM sync_events ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.GUID, &ev.Title, &ev.Action, &ev.ExternalID, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// LastAction returns the most recent action recorded for a note, or empty
// string when the note was never synced.
func (db *DB) LastAction(guid string) (string, error) {
	var action string
	err := db.conn.QueryRow(`
		SELECT action FROM sync_events WHERE guid = ? ORDER BY id DESC LIMIT 1
	`, guid).Scan(&action)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("journal: last action: %w", err)
	}
	return action, nil
}
