package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	conn *sql.DB
}

// Connect opens (and migrates) the sqlite database at dbPath. ":memory:"
// gives a private in-memory database.
func Connect(dbPath string) (*DB, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("database path is empty")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS catalog_items (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		parameters TEXT NOT NULL DEFAULT '',
		created_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_catalog_items_kind ON catalog_items(kind, created_at);
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		panel_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		adapter TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL,
		streaming INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		output TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		started_at DATETIME,
		finished_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return seedCatalog(db)
}

func (db *DB) Close() error {
	return db.conn.Close()
}
