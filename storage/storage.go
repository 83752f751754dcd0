package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("not found")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusEmpty     = "empty"
)

// Run is one pipeline execution.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       string
	EventCount   int
	ClusterCount int
	Error        string
}

// DB wraps the SQLite database connection and provides storage operations.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection, creating parent directories
// and initializing the schema as needed.
func NewDB(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS titles (
		url TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		fetched_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		status TEXT NOT NULL,
		event_count INTEGER NOT NULL DEFAULT 0,
		cluster_count INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// GetTitle returns the cached page title for a URL.
func (db *DB) GetTitle(ctx context.Context, url string) (string, error) {
	query := `SELECT title FROM titles WHERE url = ?`
	var title string
	err := db.conn.QueryRowContext(ctx, query, url).Scan(&title)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return title, err
}

// SaveTitle stores or refreshes the cached title for a URL.
func (db *DB) SaveTitle(ctx context.Context, url, title string) error {
	query := `
	INSERT INTO titles (url, title, fetched_at) VALUES (?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		title = excluded.title,
		fetched_at = excluded.fetched_at
	`
	_, err := db.conn.ExecContext(ctx, query, url, title, time.Now())
	return err
}

// TitleCount returns the number of cached titles.
func (db *DB) TitleCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM titles`).Scan(&count)
	return count, err
}

// StartRun inserts a new run in the running state and returns its id.
func (db *DB) StartRun(ctx context.Context, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	query := `INSERT INTO runs (id, started_at, status) VALUES (?, ?, ?)`
	if _, err := db.conn.ExecContext(ctx, query, id, startedAt, StatusRunning); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun records a run's terminal state.
func (db *DB) FinishRun(ctx context.Context, id, status string, eventCount, clusterCount int, errText string) error {
	query := `
	UPDATE runs SET
		finished_at = ?,
		status = ?,
		event_count = ?,
		cluster_count = ?,
		error = ?
	WHERE id = ?
	`
	res, err := db.conn.ExecContext(ctx, query, time.Now(), status, eventCount, clusterCount, errText, id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRun retrieves a run by id.
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
	SELECT id, started_at, finished_at, status, event_count, cluster_count, error
	FROM runs WHERE id = ?
	`
	run, err := scanRun(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return run, err
}

// RecentRuns returns the most recently started runs, newest first.
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
	SELECT id, started_at, finished_at, status, event_count, cluster_count, error
	FROM runs ORDER BY started_at DESC LIMIT ?
	`
	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var finishedAt sql.NullTime
	var errText sql.NullString

	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&finishedAt,
		&run.Status,
		&run.EventCount,
		&run.ClusterCount,
		&errText,
	)
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	if errText.Valid {
		run.Error = errText.String
	}
	return run, nil
}
