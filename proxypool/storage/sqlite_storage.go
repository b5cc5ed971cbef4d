package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO required)

	"proxyrotation/proxypool/model"
)

const createResultsTableSQL = `
CREATE TABLE IF NOT EXISTS validation_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	endpoint TEXT NOT NULL,
	live INTEGER NOT NULL,
	latency_ms INTEGER NOT NULL,
	checked_at DATETIME NOT NULL
);`

// SQLiteStore records validation results in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens dbPath, creating the directory and schema if needed.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(createResultsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Record(runID string, r model.ValidationResult) error {
	live := 0
	if r.Live {
		live = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO validation_results (run_id, endpoint, live, latency_ms, checked_at)
		VALUES (?, ?, ?, ?, ?)
	`, runID, r.Endpoint.String(), live, r.Latency.Milliseconds(), r.CheckedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert validation result: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
