package domain

import "time"

// Job is one request to transcribe a media file and produce a specific artifact.
type Job struct {
	ID              string
	Filename        string
	InputPath       string
	InputType       InputKind
	OutputType      OutputKind
	ModelName       string
	Status          Status
	ResultText      string
	OutputPath      string
	Error           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	LastHeartbeatAt *time.Time
	DurationSeconds *float64
}

// JobEvent is one append-only audit record of a status transition.
type JobEvent struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"job_id"`
	Event     string    `json:"event"`
	CreatedAt time.Time `json:"created_at"`
}

// Result is what a successful pipeline run produced.
// Text output only fills Text; every other output kind only fills OutputPath.
type Result struct {
	Text       string
	OutputPath string
}

// Metrics summarises the job table for the admin view.
type Metrics struct {
	TotalJobs              int            `json:"total_jobs"`
	AverageDurationSeconds float64        `json:"average_duration_seconds"`
	ByType                 map[string]int `json:"by_type"`
	ByStatus               map[string]int `json:"by_status"`
	FailedByType           map[string]int `json:"failed_by_type"`
	PendingByType          map[string]int `json:"pending_by_type"`
	PendingTotal           int            `json:"pending_total"`
	FailedTotal            int            `json:"failed_total"`
	Recent                 []Job          `json:"-"`
}
