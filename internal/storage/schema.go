package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/subtitle-pipeline/shared/database"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id                TEXT PRIMARY KEY,
		filename          TEXT NOT NULL,
		input_path        TEXT NOT NULL,
		input_type        TEXT NOT NULL,
		output_type       TEXT,
		output_path       TEXT,
		result_text       TEXT,
		status            TEXT NOT NULL,
		error             TEXT,
		model_name        TEXT,
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL,
		started_at        TIMESTAMPTZ,
		last_heartbeat_at TIMESTAMPTZ,
		duration_seconds  DOUBLE PRECISION
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS job_events (
		id         BIGSERIAL PRIMARY KEY,
		job_id     TEXT NOT NULL,
		event      TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_job_events_job_id ON job_events (job_id, id)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id                TEXT PRIMARY KEY,
		filename          TEXT NOT NULL,
		input_path        TEXT NOT NULL,
		input_type        TEXT NOT NULL,
		output_type       TEXT,
		output_path       TEXT,
		result_text       TEXT,
		status            TEXT NOT NULL,
		error             TEXT,
		model_name        TEXT,
		created_at        DATETIME NOT NULL,
		updated_at        DATETIME NOT NULL,
		started_at        DATETIME,
		last_heartbeat_at DATETIME,
		duration_seconds  REAL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS job_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id     TEXT NOT NULL,
		event      TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_job_events_job_id ON job_events (job_id, id)`,
}

// Migrate creates the jobs and job_events tables when they do not exist yet.
func (s *Storage) Migrate(ctx context.Context) error {
	statements := postgresSchema
	if s.db.DriverName() == database.DriverSQLite {
		statements = sqliteSchema
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	s.logger.Info("Database schema ready",
		slog.String("driver", s.db.DriverName()),
	)
	return nil
}
