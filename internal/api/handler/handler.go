package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/subtitle-pipeline/internal/api/dto"
	"github.com/cuongbtq/subtitle-pipeline/internal/domain"
	"github.com/cuongbtq/subtitle-pipeline/internal/jobs"
	"github.com/gin-gonic/gin"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger         *slog.Logger
	Jobs           *jobs.Service
	AdminUsername  string
	AdminPassword  string
	MaxUploadBytes int64
	HealthChecks   map[string]HealthCheck
}

// JobHandler handles the client-facing job endpoints
type JobHandler struct {
	logger *slog.Logger
	jobs   *jobs.Service
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
	}
}

// AdminHandler handles the admin endpoints
type AdminHandler struct {
	logger *slog.Logger
	jobs   *jobs.Service
}

// NewAdminHandler creates a new AdminHandler instance
func NewAdminHandler(deps *Dependencies) *AdminHandler {
	return &AdminHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
	}
}

// respondError maps domain errors to HTTP status codes
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var validationErr *domain.ValidationError
	var notFoundErr *domain.NotFoundError
	var conflictErr *domain.ConflictError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":  conflictErr.Error(),
			"status": string(conflictErr.Status),
		})
	default:
		logger.Error("Request failed",
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func toJobDTO(job domain.Job) dto.JobDTO {
	return dto.JobDTO{
		JobID:           job.ID,
		Filename:        job.Filename,
		InputType:       string(job.InputType),
		OutputType:      string(job.OutputType),
		ModelName:       job.ModelName,
		Status:          string(job.Status),
		Error:           job.Error,
		CreatedAt:       job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       job.UpdatedAt.Format(time.RFC3339),
		DurationSeconds: job.DurationSeconds,
	}
}
