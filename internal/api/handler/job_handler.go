package handler

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cuongbtq/subtitle-pipeline/internal/api/dto"
	"github.com/cuongbtq/subtitle-pipeline/internal/domain"
	"github.com/gin-gonic/gin"
)

// Upload handles POST /api/upload
// Stores the uploaded media file and creates a PENDING job for it
func (h *JobHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.logger.Warn("Upload without file", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "file is required",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer file.Close()

	job, err := h.jobs.Upload(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Job uploaded",
		slog.String("job_id", job.ID),
		slog.String("filename", job.Filename),
	)

	c.JSON(http.StatusOK, dto.UploadResponse{JobID: job.ID})
}

// RunJob handles POST /api/jobs/:job_id/run
// Queues a PENDING job for the requested output type
func (h *JobHandler) RunJob(c *gin.Context) {
	jobID := c.Param("job_id")

	var req dto.RunJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "output_type is required",
		})
		return
	}

	job, err := h.jobs.Enqueue(c.Request.Context(), jobID, req.OutputType, req.ModelName)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.RunJobResponse{
		JobID:  job.ID,
		Status: string(job.Status),
	})
}

// GetStatus handles GET /api/jobs/:job_id/status
func (h *JobHandler) GetStatus(c *gin.Context) {
	view, err := h.jobs.Status(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.JobStatusResponse{
		JobID:      view.JobID,
		Status:     string(view.Status),
		OutputType: string(view.OutputType),
		OutputPath: view.OutputPath,
		ResultText: view.ResultText,
		Error:      view.Error,
	})
}

// GetResult handles GET /api/jobs/:job_id/result
// Text jobs return the transcript as JSON, every other output is sent as a file
func (h *JobHandler) GetResult(c *gin.Context) {
	job, err := h.jobs.Result(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if job.OutputType == domain.OutputText {
		c.JSON(http.StatusOK, dto.TextResultResponse{Text: job.ResultText})
		return
	}

	if job.OutputPath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
		return
	}
	if _, err := os.Stat(job.OutputPath); err != nil {
		h.logger.Warn("Result artifact missing",
			slog.String("job_id", job.ID),
			slog.String("path", job.OutputPath),
		)
		c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
		return
	}

	c.FileAttachment(job.OutputPath, filepath.Base(job.OutputPath))
}

// Preview handles GET /api/jobs/:job_id/preview
// Renders a small HTML page for a finished job
func (h *JobHandler) Preview(c *gin.Context) {
	job, err := h.jobs.Result(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.HTML(http.StatusOK, previewTemplate, gin.H{
		"JobID":      job.ID,
		"Filename":   job.Filename,
		"OutputType": string(job.OutputType),
		"IsText":     job.OutputType == domain.OutputText,
		"Text":       job.ResultText,
	})
}
