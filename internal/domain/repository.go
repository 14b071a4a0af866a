// Package domain defines the core interfaces and types for ChurnShield.
package domain

import (
	"context"
	"time"
)

// HistoryStore is the append-only prediction log.
//
// Writes are serialized by the implementation; concurrent readers observe
// either the pre- or post-write state, never a torn batch.
type HistoryStore interface {
	// Insert appends one or more records atomically and returns the assigned
	// identifiers, unique and strictly increasing in insertion order. The
	// CreatedAt of each record is set by the store.
	Insert(ctx context.Context, records []*PredictionRecord) ([]int64, error)

	// List returns records most recent first. Limits <= 0 fall back to the
	// default page size.
	List(ctx context.Context, limit int) ([]*PredictionRecord, error)

	// Delete removes exactly one record, or ErrNotFound.
	Delete(ctx context.Context, id int64) error

	// DeleteAll clears the log and returns the number of records removed.
	DeleteAll(ctx context.Context) (int64, error)

	// Stats recomputes aggregate statistics from the current log state.
	Stats(ctx context.Context) (*HistoryStats, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for history store initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
