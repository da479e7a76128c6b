package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/subtitle-pipeline/internal/config"
	"github.com/cuongbtq/subtitle-pipeline/internal/inference"
	"github.com/cuongbtq/subtitle-pipeline/internal/inference/server"
	"github.com/cuongbtq/subtitle-pipeline/shared/logger"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("INFERENCE_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/inference-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateInference(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(&logger.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cfg.Logging.Output,
		EnableSource: cfg.Logging.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting inference service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	registry := initRegistry(cfg, appLogger.Logger)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := server.SetupRouter(server.NewHandler(registry, appLogger.Logger))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	appLogger.Info("Inference service is running",
		slog.String("address", addr),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		appLogger.Error("Server failed to start", slog.Any("error", err))
		return err
	}

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initRegistry declares the locally served models. Without an explicit list
// the default model runs on whisper.cpp when a model file is configured.
func initRegistry(cfg *config.Config, logger *slog.Logger) *inference.Registry {
	var models []inference.ModelConfig
	for _, m := range cfg.Inference.Models {
		models = append(models, inference.ModelConfig{
			Name:      m.Name,
			Version:   m.Version,
			Kind:      m.Kind,
			ModelPath: m.ModelPath,
		})
	}
	if len(models) == 0 && cfg.Media.WhisperModelPath != "" {
		models = append(models, inference.ModelConfig{
			Name: cfg.Inference.DefaultModel,
			Kind: inference.KindWhisperCPP,
		})
	}

	registry := inference.NewRegistry(models)
	registry.RegisterKind(inference.KindWhisperCPP,
		inference.WhisperCPPFactory(cfg.Media.WhisperPath, cfg.Media.WhisperModelPath, nil, logger))

	logger.Info("Model registry ready", slog.Int("models", len(models)))
	return registry
}
