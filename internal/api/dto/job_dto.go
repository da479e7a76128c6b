package dto

type UploadResponse struct {
	JobID string `json:"job_id"`
}

type RunJobRequest struct {
	OutputType string `json:"output_type" binding:"required"`
	ModelName  string `json:"model_name"`
}

type RunJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type JobStatusResponse struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	OutputType string `json:"output_type,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	ResultText string `json:"result_text,omitempty"`
	Error      string `json:"error,omitempty"`
}

type TextResultResponse struct {
	Text string `json:"text"`
}

type ListJobsRequest struct {
	Status     string `form:"status"`
	OutputType string `form:"output_type"`
	PageSize   int    `form:"page_size"`
	Cursor     string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID           string   `json:"job_id"`
	Filename        string   `json:"filename"`
	InputType       string   `json:"input_type"`
	OutputType      string   `json:"output_type,omitempty"`
	ModelName       string   `json:"model_name,omitempty"`
	Status          string   `json:"status"`
	Error           string   `json:"error,omitempty"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
}

type MetricsResponse struct {
	TotalJobs              int            `json:"total_jobs"`
	AverageDurationSeconds float64        `json:"average_duration_seconds"`
	ByType                 map[string]int `json:"by_type"`
	ByStatus               map[string]int `json:"by_status"`
	FailedByType           map[string]int `json:"failed_by_type"`
	PendingByType          map[string]int `json:"pending_by_type"`
	PendingTotal           int            `json:"pending_total"`
	FailedTotal            int            `json:"failed_total"`
	Recent                 []JobDTO       `json:"recent"`
}

type JobEventDTO struct {
	Event     string `json:"event"`
	CreatedAt string `json:"created_at"`
}

type JobLogsResponse struct {
	JobID  string        `json:"job_id"`
	Events []JobEventDTO `json:"events"`
}
