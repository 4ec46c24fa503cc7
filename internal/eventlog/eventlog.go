package eventlog

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // CGO-free SQLite
	"sitebeam/agent/internal/telemetry"
)

// Log is the durable, bounded rendition of the session event log: append-only,
// trimmed to the newest maxRows entries.
type Log struct {
	db      *sql.DB
	maxRows int
}

const defaultMaxRows = 1000

func Open(path string) (*Log, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Log{db: db, maxRows: defaultMaxRows}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS events(
	  id         INTEGER PRIMARY KEY,
	  event_id   TEXT    NOT NULL,
	  session_id TEXT    NOT NULL,
	  user_id    TEXT,
	  name       TEXT    NOT NULL,
	  ts_ms      INTEGER NOT NULL,
	  props_json TEXT    NOT NULL CHECK (json_valid(props_json))
	);
	CREATE INDEX IF NOT EXISTS idx_events_name    ON events(name);
	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
	CREATE INDEX IF NOT EXISTS idx_events_ts      ON events(ts_ms);
	`)
	if err != nil {
		return fmt.Errorf("failed to create event log tables: %w", err)
	}
	return nil
}

func (l *Log) Close() error {
	return l.db.Close()
}

// Append writes one event and trims the log to the newest maxRows rows in the
// same transaction.
func (l *Log) Append(evt telemetry.Event) error {
	if evt.Name == "" {
		return fmt.Errorf("event name cannot be empty")
	}
	props, err := json.Marshal(evt.Props)
	if err != nil {
		return fmt.Errorf("failed to marshal event props: %w", err)
	}
	if evt.Props == nil {
		props = []byte("{}")
	}

	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO events(event_id, session_id, user_id, name, ts_ms, props_json) VALUES(?,?,?,?,?,json(?))`,
		evt.ID, evt.SessionID, evt.UserID, evt.Name, evt.TsMs, string(props),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to insert event: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM events WHERE id NOT IN (SELECT id FROM events ORDER BY id DESC LIMIT ?)`,
		l.maxRows,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to trim event log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event: %w", err)
	}
	return nil
}

// List returns up to limit events in insertion order, oldest first. limit <= 0
// returns everything retained.
func (l *Log) List(limit int) ([]telemetry.Event, error) {
	q := `SELECT event_id, session_id, user_id, name, ts_ms, props_json FROM events ORDER BY id ASC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = l.db.Query(q+` LIMIT ?`, limit)
	} else {
		rows, err = l.db.Query(q)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query event log: %w", err)
	}
	defer rows.Close()

	var out []telemetry.Event
	for rows.Next() {
		var evt telemetry.Event
		var user sql.NullString
		var propsJSON string
		if err := rows.Scan(&evt.ID, &evt.SessionID, &user, &evt.Name, &evt.TsMs, &propsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		evt.UserID = user.String
		if err := json.Unmarshal([]byte(propsJSON), &evt.Props); err != nil {
			return nil, fmt.Errorf("failed to decode event props: %w", err)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (l *Log) Count() (int, error) {
	var n int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
