package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
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
	"github.com/cuongbtq/subtitle-pipeline/internal/worker"
	"github.com/cuongbtq/subtitle-pipeline/shared/database"
	"github.com/cuongbtq/subtitle-pipeline/shared/logger"
	"github.com/cuongbtq/subtitle-pipeline/shared/rabbitmq"
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

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorker(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize database client
	dbClient, err := initDatabase(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	store := storage.NewStorage(dbClient.GetDB(), appLogger.Logger)
	if err := store.Migrate(context.Background()); err != nil {
		return err
	}

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	appLogger.Info("RabbitMQ connection established")

	layout := artifact.NewLayout(cfg.Storage.UploadDir, cfg.Storage.ResultDir)
	if err := layout.Ensure(); err != nil {
		return err
	}

	amqpQueue := queue.NewAMQP(rabbitClient)
	jobService := jobs.NewService(store, amqpQueue, layout, jobs.Config{
		AllowedExtensions: cfg.Storage.AllowedExtensions,
		DefaultModel:      cfg.Inference.DefaultModel,
	}, appLogger.Logger)

	jobPipeline := initPipeline(cfg, layout, appLogger.Logger)

	// Create worker instance
	workerInstance := worker.NewWorker(&worker.Config{
		Logger:            appLogger.Logger,
		Consumer:          amqpQueue,
		Jobs:              jobService,
		Pipeline:          jobPipeline,
		Concurrency:       cfg.Worker.Concurrency,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
	})

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	// Cancel context to stop consuming; in-flight jobs keep running
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initPipeline wires the model registry, ffmpeg and the output assembler
func initPipeline(cfg *config.Config, layout *artifact.Layout, logger *slog.Logger) *pipeline.Pipeline {
	ffmpeg := media.NewFFmpeg(cfg.Media.FFmpegPath, nil, logger)

	models := toModelConfigs(cfg.Inference.ResolvedModels())
	if len(models) == 0 && cfg.Media.WhisperModelPath != "" {
		models = append(models, inference.ModelConfig{
			Name: cfg.Inference.DefaultModel,
			Kind: inference.KindWhisperCPP,
		})
	}

	registry := inference.NewRegistry(models)
	if cfg.Inference.URL != "" {
		client := inference.NewClient(cfg.Inference.URL, cfg.Inference.Timeout, logger)
		registry.RegisterKind(inference.KindRemote, inference.RemoteFactory(client))
	}
	registry.RegisterKind(inference.KindWhisperCPP,
		inference.WhisperCPPFactory(cfg.Media.WhisperPath, cfg.Media.WhisperModelPath, nil, logger))

	assembler := output.NewAssembler(layout, ffmpeg, logger)
	return pipeline.New(ffmpeg, registry, assembler, layout, cfg.Inference.ChunkLength, logger)
}

func toModelConfigs(models []config.ModelConfig) []inference.ModelConfig {
	out := make([]inference.ModelConfig, len(models))
	for i, m := range models {
		out[i] = inference.ModelConfig{
			Name:      m.Name,
			Version:   m.Version,
			Kind:      m.Kind,
			ModelPath: m.ModelPath,
		}
	}
	return out
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initDatabase initializes the job store database client
func initDatabase(cfg *config.DatabaseConfig, logger *slog.Logger) (*database.Client, error) {
	dbConfig := &database.Config{
		Driver:          cfg.Driver,
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return database.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
