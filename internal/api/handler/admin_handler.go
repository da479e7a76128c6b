package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/subtitle-pipeline/internal/api/dto"
	"github.com/cuongbtq/subtitle-pipeline/internal/domain"
	"github.com/cuongbtq/subtitle-pipeline/internal/storage"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Metrics handles GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	m, err := h.jobs.Metrics(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	recent := make([]dto.JobDTO, len(m.Recent))
	for i, job := range m.Recent {
		recent[i] = toJobDTO(job)
	}

	c.JSON(http.StatusOK, dto.MetricsResponse{
		TotalJobs:              m.TotalJobs,
		AverageDurationSeconds: m.AverageDurationSeconds,
		ByType:                 m.ByType,
		ByStatus:               m.ByStatus,
		FailedByType:           m.FailedByType,
		PendingByType:          m.PendingByType,
		PendingTotal:           m.PendingTotal,
		FailedTotal:            m.FailedTotal,
		Recent:                 recent,
	})
}

// ListJobs handles GET /api/admin/jobs
// Lists jobs newest first with optional filtering and keyset pagination
func (h *AdminHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	if req.Status != "" && !domain.Status(req.Status).IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid status filter",
		})
		return
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Warn("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	jobs, err := h.jobs.List(c.Request.Context(), storage.JobFilter{
		Status:     req.Status,
		OutputType: req.OutputType,
		PageSize:   req.PageSize,
		Cursor:     cursor,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	items := make([]dto.JobDTO, len(jobs))
	for i, job := range jobs {
		items[i] = toJobDTO(job)
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       items,
		NextCursor: nextCursor,
	})
}

// JobLogs handles GET /api/admin/jobs/:job_id/logs
func (h *AdminHandler) JobLogs(c *gin.Context) {
	jobID := c.Param("job_id")

	events, err := h.jobs.Events(c.Request.Context(), jobID, 0)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	items := make([]dto.JobEventDTO, len(events))
	for i, e := range events {
		items[i] = dto.JobEventDTO{
			Event:     e.Event,
			CreatedAt: e.CreatedAt.Format(time.RFC3339Nano),
		}
	}

	c.JSON(http.StatusOK, dto.JobLogsResponse{
		JobID:  jobID,
		Events: items,
	})
}
