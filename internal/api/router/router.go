package router

import (
	"github.com/cuongbtq/subtitle-pipeline/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.SetHTMLTemplate(handler.PreviewTemplate)

	// Health check endpoint
	r.GET("/health", handler.NewHealthHandler(deps).Health)

	jobHandler := handler.NewJobHandler(deps)
	adminHandler := handler.NewAdminHandler(deps)

	api := r.Group("/api")
	{
		// POST /api/upload - Store a media file and create a job
		api.POST("/upload", BodyLimitMiddleware(deps.MaxUploadBytes), jobHandler.Upload)

		jobs := api.Group("/jobs")
		{
			// POST /api/jobs/:job_id/run - Queue a job
			jobs.POST("/:job_id/run", jobHandler.RunJob)

			// GET /api/jobs/:job_id/status - Job status
			jobs.GET("/:job_id/status", jobHandler.GetStatus)

			// GET /api/jobs/:job_id/result - Transcript or result file
			jobs.GET("/:job_id/result", jobHandler.GetResult)

			// GET /api/jobs/:job_id/preview - HTML preview
			jobs.GET("/:job_id/preview", jobHandler.Preview)
		}

		admin := api.Group("/admin", AdminAuthMiddleware(deps.AdminUsername, deps.AdminPassword))
		{
			admin.GET("/metrics", adminHandler.Metrics)
			admin.GET("/jobs", adminHandler.ListJobs)
			admin.GET("/jobs/:job_id/logs", adminHandler.JobLogs)
		}
	}

	return r
}
