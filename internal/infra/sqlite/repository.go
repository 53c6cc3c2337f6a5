// Package sqlite persists the history of admitted download jobs.
// The in-memory job state stays authoritative for the running job; rows
// here are write-behind bookkeeping that survives restarts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/streamsaavy/streamsaavy-go/internal/domain"
	_ "modernc.org/sqlite"
)

// Repository provides database operations for job history.
type Repository struct {
	db *sql.DB
}

// NewRepository opens (creating if needed) the history database in dataDir.
func NewRepository(dataDir string) (*Repository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "jobs.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; SQLite handles this best with one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := configureDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	slog.Info("job history database initialized", "path", dbPath)

	return &Repository{db: db}, nil
}

func configureDB(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			mode TEXT NOT NULL,
			phase TEXT DEFAULT 'running',
			percent REAL DEFAULT 0,
			output_path TEXT,
			download_url TEXT,
			error TEXT,
			error_kind TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			completed_at DATETIME
		);

		CREATE INDEX IF NOT EXISTS idx_jobs_phase ON jobs(phase);
		CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Create inserts a new job record.
func (r *Repository) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (id, url, mode, phase, percent, output_path, download_url, error, error_kind, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.URL,
		string(job.Mode),
		string(job.Phase),
		job.Percent,
		job.OutputPath,
		job.DownloadURL,
		job.Error,
		string(job.ErrorKind),
		job.CreatedAt,
		job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job record: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a job record.
func (r *Repository) Update(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE jobs
		SET phase = ?, percent = ?, output_path = ?, download_url = ?, error = ?, error_kind = ?, completed_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		string(job.Phase),
		job.Percent,
		job.OutputPath,
		job.DownloadURL,
		job.Error,
		string(job.ErrorKind),
		job.CompletedAt,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("job record not found: %s", job.ID)
	}
	return nil
}

// UpdateProgress updates only the percent column.
func (r *Repository) UpdateProgress(ctx context.Context, id string, percent float64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE jobs SET percent = ? WHERE id = ?`, percent, id)
	return err
}

// GetByID retrieves one job record, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, url, mode, phase, percent, output_path, download_url, error, error_kind, created_at, completed_at
		FROM jobs
		WHERE id = ?
	`, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job record: %w", err)
	}
	return job, nil
}

// ListRecent returns the most recent job records, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, url, mode, phase, percent, output_path, download_url, error, error_kind, created_at, completed_at
		FROM jobs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list job records: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job record: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkInterrupted flags records left in the running phase by a previous
// process as failed. Called once at startup; the orchestrator holds no
// cross-restart job state, so those jobs cannot be resumed.
func (r *Repository) MarkInterrupted(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET phase = ?, error = 'interrupted by restart', error_kind = ?, completed_at = CURRENT_TIMESTAMP
		WHERE phase = ?
	`, string(domain.PhaseFailed), string(domain.KindEngineExit), string(domain.PhaseRunning))
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted jobs: %w", err)
	}
	return result.RowsAffected()
}

// Delete removes one job record.
func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	return err
}

// DeleteOlderThan deletes job records older than the given age.
func (r *Repository) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	threshold := time.Now().Add(-age)
	result, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE created_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old job records: %w", err)
	}
	return result.RowsAffected()
}

// Count returns the total number of job records.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&count)
	return count, err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*domain.Job, error) {
	job := &domain.Job{}
	var mode, phase, outputPath, downloadURL, errMsg, errKind sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.URL,
		&mode,
		&phase,
		&job.Percent,
		&outputPath,
		&downloadURL,
		&errMsg,
		&errKind,
		&job.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Mode = domain.Mode(mode.String)
	job.Phase = domain.Phase(phase.String)
	job.OutputPath = outputPath.String
	job.DownloadURL = downloadURL.String
	job.Error = errMsg.String
	job.ErrorKind = domain.ErrorKind(errKind.String)
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return job, nil
}
