package server

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuongbtq/subtitle-pipeline/internal/api/router"
	"github.com/cuongbtq/subtitle-pipeline/internal/inference"
	"github.com/gin-gonic/gin"
)

const (
	defaultModelName    = "whisper"
	defaultModelVersion = inference.DefaultVersion
)

// Handler serves transcription requests from the model registry.
type Handler struct {
	registry *inference.Registry
	logger   *slog.Logger
}

// NewHandler creates a new inference Handler
func NewHandler(registry *inference.Registry, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// SetupRouter configures the inference service routes
func SetupRouter(h *Handler) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(router.LoggerMiddleware(h.logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/infer", h.Infer)

	return r
}

// Infer handles POST /infer with multipart fields file, model_name and model_version.
func (h *Handler) Infer(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	if strings.ToLower(filepath.Ext(fileHeader.Filename)) != ".wav" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .wav files are accepted"})
		return
	}

	modelName := c.DefaultPostForm("model_name", defaultModelName)
	modelVersion := c.DefaultPostForm("model_version", defaultModelVersion)

	model, err := h.registry.Lookup(modelName, modelVersion)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dir, err := os.MkdirTemp("", "infer-*")
	if err != nil {
		h.logger.Error("Failed to create temp dir", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return
	}
	defer os.RemoveAll(dir)

	audioPath := filepath.Join(dir, filepath.Base(fileHeader.Filename))
	if err := c.SaveUploadedFile(fileHeader, audioPath); err != nil {
		h.logger.Error("Failed to save upload", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return
	}

	t, err := model.Transcribe(c.Request.Context(), audioPath)
	if err != nil {
		h.logger.Error("Transcription failed",
			slog.String("model", modelName),
			slog.String("version", modelVersion),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, t)
}
