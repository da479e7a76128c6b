package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/subtitle-pipeline/internal/domain"
	"github.com/cuongbtq/subtitle-pipeline/internal/queue"
	"github.com/google/uuid"
)

// DefaultHeartbeatInterval is how often a running job's heartbeat is refreshed.
const DefaultHeartbeatInterval = 30 * time.Second

// JobService is the part of the job lifecycle the worker drives.
type JobService interface {
	Get(ctx context.Context, jobID string) (*domain.Job, error)
	Start(ctx context.Context, jobID string) (*domain.Job, error)
	Heartbeat(ctx context.Context, jobID string) error
	Complete(ctx context.Context, jobID string, result domain.Result) (*domain.Job, error)
	Fail(ctx context.Context, jobID, message string) (*domain.Job, error)
}

// Runner executes the media pipeline for a claimed job.
type Runner interface {
	Run(ctx context.Context, job *domain.Job) (domain.Result, error)
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Consumer          queue.Consumer
	Jobs              JobService
	Pipeline          Runner
	Concurrency       int
	HeartbeatInterval time.Duration
	WorkerID          string
}

// Worker consumes tasks and drives each job to a terminal state
type Worker struct {
	logger            *slog.Logger
	consumer          queue.Consumer
	jobs              JobService
	pipeline          Runner
	concurrency       int
	heartbeatInterval time.Duration
	workerID          string

	jobsChan chan *message
	wg       sync.WaitGroup
	done     chan struct{}
}

// message is a decoded delivery on its way to a worker goroutine
type message struct {
	task     queue.Task
	delivery queue.Delivery
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.NewString()[:8])
	}

	return &Worker{
		logger:            cfg.Logger.With(slog.String("worker_id", workerID)),
		consumer:          cfg.Consumer,
		jobs:              cfg.Jobs,
		pipeline:          cfg.Pipeline,
		concurrency:       concurrency,
		heartbeatInterval: heartbeat,
		workerID:          workerID,
		jobsChan:          make(chan *message),
		done:              make(chan struct{}),
	}
}

// Start consumes tasks until ctx is canceled, then waits for in-flight jobs
// to reach a terminal state before returning.
func (w *Worker) Start(ctx context.Context) error {
	defer close(w.done)

	w.logger.Info("Starting worker",
		slog.Int("concurrency", w.concurrency),
		slog.Duration("heartbeat_interval", w.heartbeatInterval),
	)

	deliveries, err := w.consumer.Consume(ctx, w.workerID)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	close(w.jobsChan)
	w.wg.Wait()

	w.logger.Info("Worker drained")
	return nil
}

// Stop waits until Start has returned
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	<-w.done
	w.logger.Info("Worker stopped")
}
