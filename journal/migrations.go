package journal

import (
	"database/sql"
	"fmt"
	"time"
)

type migration struct {
	version     int
	description string
	stmts       []string
}

var migrations = []migration{
	{
		version:     1,
		description: "sessions, transitions and cycles",
		stmts: []string{
			`CREATE TABLE sessions (
				id         TEXT PRIMARY KEY,
				started_at TIMESTAMP NOT NULL,
				ended_at   TIMESTAMP
			)`,
			`CREATE TABLE transitions (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL REFERENCES sessions(id),
				at         TIMESTAMP NOT NULL,
				from_state TEXT NOT NULL,
				to_state   TEXT NOT NULL
			)`,
			`CREATE TABLE cycles (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL REFERENCES sessions(id),
				at         TIMESTAMP NOT NULL,
				outcome    TEXT NOT NULL
			)`,
			`CREATE INDEX idx_transitions_session ON transitions(session_id)`,
			`CREATE INDEX idx_cycles_session ON cycles(session_id)`,
		},
	},
}

func (db *DB) migrate() error {
	if _, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version     INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at  TIMESTAMP NOT NULL
	)`); err != nil {
		return fmt.Errorf("journal: schema_version: %w", err)
	}
	current, err := db.Version()
	if err != nil {
		return fmt.Errorf("journal: current version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := db.ExecTx(func(tx *sql.Tx) error {
			for _, s := range m.stmts {
				if _, err := tx.Exec(s); err != nil {
					return err
				}
			}
			_, err := tx.Exec(`INSERT INTO schema_version (version, description, applied_at) VALUES (?, ?, ?)`,
				m.version, m.description, time.Now().UTC())
			return err
		})
		if err != nil {
			return fmt.Errorf("journal: migration %d: %w", m.version, err)
		}
	}
	return nil
}
