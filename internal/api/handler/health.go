package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether a backing service is usable.
type HealthCheck func(ctx context.Context) error

// HealthHandler serves the readiness endpoint
type HealthHandler struct {
	logger *slog.Logger
	checks map[string]HealthCheck
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(deps *Dependencies) *HealthHandler {
	return &HealthHandler{
		logger: deps.Logger,
		checks: deps.HealthChecks,
	}
}

// Health runs every check and answers 503 when any of them fails.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	code := http.StatusOK
	status := "ok"
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("Health check failed",
				slog.String("check", name),
				slog.String("error", err.Error()),
			)
			results[name] = err.Error()
			code = http.StatusServiceUnavailable
			status = "unavailable"
			continue
		}
		results[name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":  status,
		"service": "subtitle-api-service",
		"checks":  results,
	})
}
