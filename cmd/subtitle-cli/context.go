package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuongbtq/subtitle-pipeline/internal/artifact"
	"github.com/cuongbtq/subtitle-pipeline/internal/config"
	"github.com/cuongbtq/subtitle-pipeline/internal/inference"
	"github.com/cuongbtq/subtitle-pipeline/internal/jobs"
	"github.com/cuongbtq/subtitle-pipeline/internal/media"
	"github.com/cuongbtq/subtitle-pipeline/internal/output"
	"github.com/cuongbtq/subtitle-pipeline/internal/pipeline"
	"github.com/cuongbtq/subtitle-pipeline/internal/queue"
	"github.com/cuongbtq/subtitle-pipeline/internal/storage"
	"github.com/cuongbtq/subtitle-pipeline/shared/database"
	"github.com/cuongbtq/subtitle-pipeline/shared/logger"
)

const defaultDBPath = "subtitles.db"

type commandContext struct {
	configFlag   string
	dbFlag       string
	storageFlag  string
	logLevelFlag string
}

// app is the monolithic variant: SQLite store, in-process queue and
// in-process worker sharing one job service.
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	queue    *queue.Memory
	jobs     *jobs.Service
	pipeline *pipeline.Pipeline
}

func (c *commandContext) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if path := strings.TrimSpace(c.configFlag); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	dbPath := defaultDBPath
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path != "" {
		dbPath = cfg.Database.Path
	}
	if c.dbFlag != "" {
		dbPath = c.dbFlag
	}
	cfg.Database = config.DatabaseConfig{Driver: database.DriverSQLite, Path: dbPath}

	if c.storageFlag != "" {
		cfg.Storage.BaseDir = c.storageFlag
		cfg.Storage.UploadDir = filepath.Join(c.storageFlag, "uploads")
		cfg.Storage.ResultDir = filepath.Join(c.storageFlag, "results")
	}
	if c.logLevelFlag != "" {
		cfg.Logging.Level = c.logLevelFlag
	}
	if cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *commandContext) withApp(ctx context.Context, fn func(*app) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	appLogger, err := logger.New(&logger.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cfg.Logging.Output,
		EnableSource: cfg.Logging.EnableCaller,
		TimeFormat:   time.Kitchen,
	})
	if err != nil {
		return err
	}
	defer appLogger.Close()

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dbClient, err := database.NewClient(&database.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
	}, appLogger.Logger)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	store := storage.NewStorage(dbClient.GetDB(), appLogger.Logger)
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	layout := artifact.NewLayout(cfg.Storage.UploadDir, cfg.Storage.ResultDir)
	memQueue := queue.NewMemory(16)

	a := &app{
		cfg:    cfg,
		logger: appLogger,
		queue:  memQueue,
		jobs: jobs.NewService(store, memQueue, layout, jobs.Config{
			AllowedExtensions: cfg.Storage.AllowedExtensions,
			DefaultModel:      cfg.Inference.DefaultModel,
		}, appLogger.Logger),
		pipeline: newPipeline(cfg, layout, appLogger),
	}
	return fn(a)
}

func newPipeline(cfg *config.Config, layout *artifact.Layout, appLogger *logger.Logger) *pipeline.Pipeline {
	log := appLogger.Logger
	ffmpeg := media.NewFFmpeg(cfg.Media.FFmpegPath, nil, log)

	registry := inference.NewRegistry(cliModels(cfg))
	if cfg.Inference.URL != "" {
		registry.RegisterKind(inference.KindRemote,
			inference.RemoteFactory(inference.NewClient(cfg.Inference.URL, cfg.Inference.Timeout, log)))
	}
	registry.RegisterKind(inference.KindWhisperCPP,
		inference.WhisperCPPFactory(cfg.Media.WhisperPath, cfg.Media.WhisperModelPath, nil, log))

	return pipeline.New(ffmpeg, registry, output.NewAssembler(layout, ffmpeg, log), layout, cfg.Inference.ChunkLength, log)
}

// cliModels declares the configured models plus the dummy model. Without a
// remote engine the default model runs on whisper.cpp when a model file is set.
func cliModels(cfg *config.Config) []inference.ModelConfig {
	var models []inference.ModelConfig
	hasDummy := false
	for _, m := range cfg.Inference.ResolvedModels() {
		models = append(models, inference.ModelConfig{
			Name:      m.Name,
			Version:   m.Version,
			Kind:      m.Kind,
			ModelPath: m.ModelPath,
		})
		hasDummy = hasDummy || m.Name == "dummy"
	}
	if len(models) == 0 && cfg.Media.WhisperModelPath != "" {
		models = append(models, inference.ModelConfig{Name: cfg.Inference.DefaultModel, Kind: inference.KindWhisperCPP})
	}
	if !hasDummy {
		models = append(models, inference.ModelConfig{Name: "dummy", Kind: inference.KindDummy})
	}
	return models
}
