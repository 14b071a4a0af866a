package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/neha-iitjdh/ChurnShield-AI/internal/domain"
	_ "modernc.org/sqlite"
)

// openSQLite opens the Community-tier SQLite database, creating the parent
// directory on first run. modernc.org/sqlite is pure Go, so the binary
// stays CGO-free.
func openSQLite(cfg domain.RepositoryConfig) (*sql.DB, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = "./predictions.db"
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL keeps readers live during prediction bursts; busy_timeout covers
	// the single-writer window.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return db, nil
}
