// Package sqlite backs the stores with an embedded SQLite database for
// standalone mode. The schema is created on open; no external migration step
// is needed.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/teleflow/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	name       TEXT PRIMARY KEY,
	token      TEXT NOT NULL,
	enabled    INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS forward_rules (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	account       TEXT NOT NULL,
	sources       TEXT NOT NULL DEFAULT '[]',
	destinations  TEXT NOT NULL DEFAULT '[]',
	mode          TEXT NOT NULL DEFAULT 'forward',
	filters       TEXT NOT NULL DEFAULT '{}',
	modify        TEXT NOT NULL DEFAULT '{}',
	enabled       INTEGER NOT NULL DEFAULT 1,
	forward_count INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_forward_rules_account ON forward_rules(account);
`

// NewStores opens (creating if needed) the SQLite database at cfg.SQLitePath
// and returns stores backed by it.
func NewStores(cfg store.StoreConfig) (*store.Stores, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = "teleflow.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc/sqlite serializes writes itself; a single connection avoids
	// SQLITE_BUSY under concurrent account engines.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &store.Stores{
		Rules:    NewRuleStore(db),
		Accounts: NewAccountStore(db),
		Close:    db.Close,
	}, nil
}
