package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/subtitle-pipeline/internal/domain"
	"github.com/jmoiron/sqlx"
)

const jobColumns = `id, filename, input_path, input_type, output_type, output_path,
	result_text, status, error, model_name, created_at, updated_at,
	started_at, last_heartbeat_at, duration_seconds`

// Storage handles all database operations for jobs and their events.
// Queries are written with ? placeholders and rebound for the active driver.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

type jobRow struct {
	ID              string          `db:"id"`
	Filename        string          `db:"filename"`
	InputPath       string          `db:"input_path"`
	InputType       string          `db:"input_type"`
	OutputType      sql.NullString  `db:"output_type"`
	OutputPath      sql.NullString  `db:"output_path"`
	ResultText      sql.NullString  `db:"result_text"`
	Status          string          `db:"status"`
	Error           sql.NullString  `db:"error"`
	ModelName       sql.NullString  `db:"model_name"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
	StartedAt       sql.NullTime    `db:"started_at"`
	LastHeartbeatAt sql.NullTime    `db:"last_heartbeat_at"`
	DurationSeconds sql.NullFloat64 `db:"duration_seconds"`
}

func (r *jobRow) toDomain() *domain.Job {
	job := &domain.Job{
		ID:         r.ID,
		Filename:   r.Filename,
		InputPath:  r.InputPath,
		InputType:  domain.InputKind(r.InputType),
		OutputType: domain.OutputKind(r.OutputType.String),
		OutputPath: r.OutputPath.String,
		ResultText: r.ResultText.String,
		Status:     domain.Status(r.Status),
		Error:      r.Error.String,
		ModelName:  r.ModelName.String,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time.UTC()
		job.StartedAt = &t
	}
	if r.LastHeartbeatAt.Valid {
		t := r.LastHeartbeatAt.Time.UTC()
		job.LastHeartbeatAt = &t
	}
	if r.DurationSeconds.Valid {
		d := r.DurationSeconds.Float64
		job.DurationSeconds = &d
	}
	return job
}

// CreateJob inserts a new job together with its first event
func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO jobs (
			id, filename, input_path, input_type,
			status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, tx.Rebind(query),
		job.ID,
		job.Filename,
		job.InputPath,
		string(job.InputType),
		string(job.Status),
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	if err := appendEvent(ctx, tx, job.ID, job.Status, job.CreatedAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job creation: %w", err)
	}

	s.logger.Info("Job created",
		slog.String("job_id", job.ID),
		slog.String("input_type", string(job.InputType)),
	)
	return nil
}

// GetJobByID retrieves a job from the database by its ID
func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	return getJob(ctx, s.db, jobID)
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func getJob(ctx context.Context, q queryer, jobID string) (*domain.Job, error) {
	var row jobRow
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`

	err := sqlx.GetContext(ctx, q, &row, q.Rebind(query), jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{JobID: jobID}
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return row.toDomain(), nil
}

// Update carries the columns written alongside a status transition.
// Nil fields are left untouched.
type Update struct {
	At              time.Time
	OutputType      *domain.OutputKind
	ModelName       *string
	StartedAt       *time.Time
	ResultText      *string
	OutputPath      *string
	Error           *string
	DurationSeconds *float64
}

// Transition moves a job from one status to the next with a compare-and-set
// and appends the matching event in the same transaction. Exactly one of
// several concurrent callers observing the same from status wins; the others
// get a ConflictError carrying the status they lost to.
func (s *Storage) Transition(ctx context.Context, jobID string, from, to domain.Status, upd Update) (*domain.Job, error) {
	if !domain.CanTransition(from, to) {
		return nil, fmt.Errorf("illegal transition %s -> %s", from, to)
	}

	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{string(to), upd.At}

	if upd.OutputType != nil {
		sets = append(sets, "output_type = ?")
		args = append(args, string(*upd.OutputType))
	}
	if upd.ModelName != nil {
		sets = append(sets, "model_name = ?")
		args = append(args, *upd.ModelName)
	}
	if upd.StartedAt != nil {
		sets = append(sets, "started_at = ?", "last_heartbeat_at = ?")
		args = append(args, *upd.StartedAt, *upd.StartedAt)
	}
	if upd.ResultText != nil {
		sets = append(sets, "result_text = ?")
		args = append(args, *upd.ResultText)
	}
	if upd.OutputPath != nil {
		sets = append(sets, "output_path = ?")
		args = append(args, *upd.OutputPath)
	}
	if upd.Error != nil {
		sets = append(sets, "error = ?")
		args = append(args, *upd.Error)
	}
	if upd.DurationSeconds != nil {
		sets = append(sets, "duration_seconds = ?")
		args = append(args, *upd.DurationSeconds)
	}

	query := `UPDATE jobs SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND status = ?`
	args = append(args, jobID, string(from))

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update job status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var current string
		err := tx.GetContext(ctx, &current, tx.Rebind(`SELECT status FROM jobs WHERE id = ?`), jobID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{JobID: jobID}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read job status: %w", err)
		}

		s.logger.Warn("Job transition lost - status changed concurrently",
			slog.String("job_id", jobID),
			slog.String("expected", string(from)),
			slog.String("actual", current),
			slog.String("target", string(to)),
		)
		return nil, &domain.ConflictError{
			JobID:   jobID,
			Status:  domain.Status(current),
			Message: fmt.Sprintf("cannot move to %s", to),
		}
	}

	if err := appendEvent(ctx, tx, jobID, to, upd.At); err != nil {
		return nil, err
	}

	job, err := getJob(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit job transition: %w", err)
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", string(to)),
	)
	return job, nil
}

func appendEvent(ctx context.Context, tx *sqlx.Tx, jobID string, status domain.Status, at time.Time) error {
	query := `INSERT INTO job_events (job_id, event, created_at) VALUES (?, ?, ?)`
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), jobID, status.EventLabel(), at); err != nil {
		return fmt.Errorf("failed to append job event: %w", err)
	}
	return nil
}

// UpdateJobHeartbeat updates the last_heartbeat_at timestamp for a running job
func (s *Storage) UpdateJobHeartbeat(ctx context.Context, jobID string, at time.Time) error {
	query := `
		UPDATE jobs
		SET last_heartbeat_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), at, jobID, string(domain.StatusRunning))
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Job heartbeat update - no rows affected (job may not be running)",
			slog.String("job_id", jobID),
		)
	}

	return nil
}

// ListEvents returns the events of a job in the order they were appended.
func (s *Storage) ListEvents(ctx context.Context, jobID string, limit int) ([]domain.JobEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, job_id, event, created_at
		FROM job_events
		WHERE job_id = ?
		ORDER BY id ASC
		LIMIT ?
	`

	var rows []struct {
		ID        int64     `db:"id"`
		JobID     string    `db:"job_id"`
		Event     string    `db:"event"`
		CreatedAt time.Time `db:"created_at"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), jobID, limit); err != nil {
		return nil, fmt.Errorf("failed to list job events: %w", err)
	}

	events := make([]domain.JobEvent, len(rows))
	for i, row := range rows {
		events[i] = domain.JobEvent{
			ID:        row.ID,
			JobID:     row.JobID,
			Event:     row.Event,
			CreatedAt: row.CreatedAt.UTC(),
		}
	}
	return events, nil
}
