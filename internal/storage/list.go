package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cuongbtq/subtitle-pipeline/internal/domain"
)

// JobFilter narrows ListJobs. PageSize rows are requested plus one so the
// caller can tell whether another page exists.
type JobFilter struct {
	Status     string
	OutputType string
	PageSize   int
	Cursor     *JobCursor
}

// JobCursor is the keyset position of the last job of the previous page.
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

const recentJobs = 20

// ListJobs lists jobs newest first.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	return s.listJobs(ctx, filter, filter.PageSize+1)
}

func (s *Storage) listJobs(ctx context.Context, filter JobFilter, limit int) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	if filter.OutputType != "" {
		query += " AND output_type = ?"
		args = append(args, filter.OutputType)
	}

	if filter.Cursor != nil {
		query += " AND (created_at < ? OR (created_at = ? AND id < ?))"
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.JobID)
	}

	// Order by created_at DESC, id DESC for consistent pagination
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]domain.Job, len(rows))
	for i := range rows {
		jobs[i] = *rows[i].toDomain()
	}
	return jobs, nil
}

type groupCount struct {
	Label sql.NullString `db:"label"`
	Count int            `db:"count"`
}

func (s *Storage) countBy(ctx context.Context, column, where string, args ...any) (map[string]int, int, error) {
	query := fmt.Sprintf(`SELECT %s AS label, COUNT(*) AS count FROM jobs %s GROUP BY %s`, column, where, column)

	var rows []groupCount
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs by %s: %w", column, err)
	}

	counts := make(map[string]int, len(rows))
	total := 0
	for _, row := range rows {
		label := row.Label.String
		if !row.Label.Valid || label == "" {
			label = "unknown"
		}
		counts[label] += row.Count
		total += row.Count
	}
	return counts, total, nil
}

// Metrics aggregates the job table for the admin dashboard.
func (s *Storage) Metrics(ctx context.Context) (*domain.Metrics, error) {
	var m domain.Metrics
	var err error

	if err = s.db.GetContext(ctx, &m.TotalJobs, `SELECT COUNT(*) FROM jobs`); err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}

	err = s.db.GetContext(ctx, &m.AverageDurationSeconds,
		`SELECT COALESCE(AVG(duration_seconds), 0) FROM jobs WHERE duration_seconds IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to average job duration: %w", err)
	}

	if m.ByType, _, err = s.countBy(ctx, "output_type", ""); err != nil {
		return nil, err
	}
	if m.ByStatus, _, err = s.countBy(ctx, "status", ""); err != nil {
		return nil, err
	}
	if m.FailedByType, m.FailedTotal, err = s.countBy(ctx, "output_type", "WHERE status = ?", string(domain.StatusFailed)); err != nil {
		return nil, err
	}
	m.PendingByType, m.PendingTotal, err = s.countBy(ctx, "output_type", "WHERE status IN (?, ?, ?)",
		string(domain.StatusPending), string(domain.StatusQueued), string(domain.StatusRunning))
	if err != nil {
		return nil, err
	}

	if m.Recent, err = s.listJobs(ctx, JobFilter{}, recentJobs); err != nil {
		return nil, err
	}

	return &m, nil
}
