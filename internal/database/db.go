// Package database archives finished scan runs in PostgreSQL. The archive
// is a sink only; no computation reads it back.
package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vkulagin/stockscan/internal/model"
)

// DB represents a database connection
type DB struct {
	*sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ScanRun summarizes one finished scan for archiving.
type ScanRun struct {
	Setup     string
	StartedAt time.Time
	Elapsed   time.Duration
	Submitted int
	Matched   int
	Failed    int
}

// New creates a new database connection
func New(params ConnectionParams) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		params.Host, params.Port, params.User, params.Password, params.DBName, params.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Check connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS scan_runs (
			id SERIAL PRIMARY KEY,
			setup_name TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			elapsed_ms BIGINT NOT NULL,
			submitted INT NOT NULL,
			matched INT NOT NULL,
			failed INT NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS scan_matches (
			id SERIAL PRIMARY KEY,
			run_id INT NOT NULL REFERENCES scan_runs(id),
			code TEXT NOT NULL,
			name TEXT NOT NULL,
			close NUMERIC NOT NULL,
			pct_change NUMERIC NOT NULL,
			turnover_rate NUMERIC NOT NULL,
			up_run INT NOT NULL,
			longest_up_run INT NOT NULL,
			signal_date DATE NOT NULL
		)
	`)

	return err
}

// SaveRun stores one scan run and its matched rows in a single transaction,
// returning the run id.
func (db *DB) SaveRun(run ScanRun, rows []model.MatchRow) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var runID int64
	err = tx.QueryRow(`
		INSERT INTO scan_runs (setup_name, started_at, elapsed_ms, submitted, matched, failed)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		run.Setup, run.StartedAt, run.Elapsed.Milliseconds(), run.Submitted, run.Matched, run.Failed,
	).Scan(&runID)
	if err != nil {
		return 0, err
	}

	for _, row := range rows {
		_, err := tx.Exec(`
			INSERT INTO scan_matches (
				run_id, code, name, close, pct_change, turnover_rate,
				up_run, longest_up_run, signal_date
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			runID, row.Symbol, row.Name, row.Close, row.PctChange, row.TurnoverRate,
			row.UpRun, row.LongestUpRun, row.SignalDate,
		)
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return runID, nil
}

// LatestRuns returns the most recent archived runs, newest first.
func (db *DB) LatestRuns(limit int) ([]ScanRun, error) {
	rows, err := db.Query(`
		SELECT setup_name, started_at, elapsed_ms, submitted, matched, failed
		FROM scan_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ScanRun
	for rows.Next() {
		var run ScanRun
		var elapsedMs int64
		if err := rows.Scan(&run.Setup, &run.StartedAt, &elapsedMs, &run.Submitted, &run.Matched, &run.Failed); err != nil {
			return nil, err
		}
		run.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
