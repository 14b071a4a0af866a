// Package repository persists the prediction history log.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/neha-iitjdh/ChurnShield-AI/internal/domain"
)

var (
	// ErrNotFound is returned when a delete target does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrPersistence wraps storage-layer faults. Inserts are atomic per
	// call, so a wrapped error guarantees no partial record was written.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvalidInput is returned for malformed arguments.
	ErrInvalidInput = errors.New("invalid input")
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// SQLStore implements domain.HistoryStore using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// New creates a new history store based on configuration.
func New(cfg domain.RepositoryConfig) (domain.HistoryStore, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	store := &SQLStore{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *SQLStore) migrate() error {
	for _, schema := range Schemas(s.driver) {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// Insert appends records atomically in one transaction. Identifiers are
// assigned by the database and are strictly increasing in insertion order.
// On success each record's ID and CreatedAt are also filled in.
func (s *SQLStore) Insert(ctx context.Context, records []*domain.PredictionRecord) ([]int64, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: at least one record is required", ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrPersistence, err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO predictions (
			customer_id, customer_data, churn_probability,
			risk_level, will_churn, prediction_type, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	ids := make([]int64, 0, len(records))

	for _, rec := range records {
		customerData, err := json.Marshal(rec.CustomerData)
		if err != nil {
			return nil, fmt.Errorf("%w: encode customer data: %v", ErrInvalidInput, err)
		}

		willChurn := 0
		if rec.WillChurn {
			willChurn = 1
		}

		var id int64
		if s.driver == "postgres" {
			err = tx.QueryRowContext(ctx, s.rebind(query)+" RETURNING id",
				rec.CustomerID, string(customerData), rec.Probability,
				rec.RiskLevel, willChurn, rec.PredictionType, now,
			).Scan(&id)
			if err != nil {
				return nil, fmt.Errorf("%w: insert: %v", ErrPersistence, err)
			}
		} else {
			res, err := tx.ExecContext(ctx, query,
				rec.CustomerID, string(customerData), rec.Probability,
				rec.RiskLevel, willChurn, rec.PredictionType, now,
			)
			if err != nil {
				return nil, fmt.Errorf("%w: insert: %v", ErrPersistence, err)
			}
			id, err = res.LastInsertId()
			if err != nil {
				return nil, fmt.Errorf("%w: insert id: %v", ErrPersistence, err)
			}
		}

		rec.ID = id
		rec.CreatedAt = now
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrPersistence, err)
	}

	return ids, nil
}

// List returns records most recent first.
func (s *SQLStore) List(ctx context.Context, limit int) ([]*domain.PredictionRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `
		SELECT id, customer_id, customer_data, churn_probability,
			   risk_level, will_churn, prediction_type, created_at
		FROM predictions
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var records []*domain.PredictionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Delete removes exactly one record by id.
func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM predictions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("%w: delete: %v", ErrPersistence, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: delete: %v", ErrPersistence, err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteAll clears the log and returns the prior record count.
func (s *SQLStore) DeleteAll(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", ErrPersistence, err)
	}
	defer tx.Rollback()

	var count int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrPersistence, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM predictions`); err != nil {
		return 0, fmt.Errorf("%w: delete all: %v", ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", ErrPersistence, err)
	}

	return count, nil
}

// Stats recomputes aggregate statistics from the current log state. Nothing
// here is cached; every call reflects the log as of call time.
func (s *SQLStore) Stats(ctx context.Context) (*domain.HistoryStats, error) {
	stats := &domain.HistoryStats{
		RiskDistribution: make(map[string]int),
	}

	var churnRate, avgProb float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			   COALESCE(AVG(will_churn), 0) * 100,
			   COALESCE(AVG(churn_probability), 0)
		FROM predictions
	`).Scan(&stats.TotalPredictions, &churnRate, &avgProb)
	if err != nil {
		return nil, fmt.Errorf("%w: stats: %v", ErrPersistence, err)
	}
	stats.OverallChurnRate = round2(churnRate)
	stats.AverageProbability = round2(avgProb)

	rows, err := s.db.QueryContext(ctx, `
		SELECT risk_level, COUNT(*)
		FROM predictions
		GROUP BY risk_level
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: stats: %v", ErrPersistence, err)
	}
	defer rows.Close()

	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("%w: stats: %v", ErrPersistence, err)
		}
		stats.RiskDistribution[level] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: stats: %v", ErrPersistence, err)
	}

	trend, err := s.trend(ctx)
	if err != nil {
		return nil, err
	}
	stats.RecentTrend = trend

	return stats, nil
}

// trend buckets the log by UTC calendar day of created_at. Days with no
// predictions are omitted, not zero-filled.
func (s *SQLStore) trend(ctx context.Context) ([]domain.TrendBucket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT created_at, churn_probability
		FROM predictions
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: trend: %v", ErrPersistence, err)
	}
	defer rows.Close()

	type daySum struct {
		count int
		total float64
	}
	days := make(map[string]*daySum)

	for rows.Next() {
		var createdAt time.Time
		var prob float64
		if err := rows.Scan(&createdAt, &prob); err != nil {
			return nil, fmt.Errorf("%w: trend: %v", ErrPersistence, err)
		}
		date := createdAt.UTC().Format("2006-01-02")
		d, ok := days[date]
		if !ok {
			d = &daySum{}
			days[date] = d
		}
		d.count++
		d.total += prob
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: trend: %v", ErrPersistence, err)
	}

	dates := make([]string, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	trend := make([]domain.TrendBucket, 0, len(dates))
	for _, date := range dates {
		d := days[date]
		trend = append(trend, domain.TrendBucket{
			Date:               date,
			Count:              d.count,
			AverageProbability: round2(d.total / float64(d.count)),
		})
	}

	return trend, nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func scanRecord(rows *sql.Rows) (*domain.PredictionRecord, error) {
	var rec domain.PredictionRecord
	var customerID sql.NullString
	var customerData string
	var willChurn int

	if err := rows.Scan(
		&rec.ID, &customerID, &customerData, &rec.Probability,
		&rec.RiskLevel, &willChurn, &rec.PredictionType, &rec.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("%w: scan: %v", ErrPersistence, err)
	}

	rec.CustomerID = customerID.String
	rec.WillChurn = willChurn == 1
	if customerData != "" {
		if err := json.Unmarshal([]byte(customerData), &rec.CustomerData); err != nil {
			return nil, fmt.Errorf("%w: decode customer data for record %d: %v", ErrPersistence, rec.ID, err)
		}
	}

	return &rec, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
