package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop runs one job at a time until jobsChan is closed. Closing the
// channel, not ctx, stops the loop so a job that was handed over is always
// finished and settled.
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for msg := range w.jobsChan {
		w.logger.Info("Worker received job",
			slog.String("worker_name", workerName),
			slog.String("job_id", msg.task.JobID),
		)

		err := w.processJob(ctx, msg.task)
		w.settle(workerName, msg, err)
	}

	w.logger.Debug("Worker goroutine stopping - jobsChan closed",
		slog.String("worker_name", workerName),
	)
}

// settle acks or nacks the delivery according to the processing outcome
func (w *Worker) settle(workerName string, msg *message, err error) {
	if err == nil || errors.Is(err, ErrJobAlreadyClaimed) {
		if err != nil {
			w.logger.Info("Duplicate delivery acknowledged",
				slog.String("worker_name", workerName),
				slog.String("job_id", msg.task.JobID),
			)
		}
		if ackErr := msg.delivery.Ack(); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("worker_name", workerName),
				slog.String("job_id", msg.task.JobID),
				slog.String("error", ackErr.Error()),
			)
		}
		return
	}

	requeue := shouldRequeueJob(err)
	w.logger.Error("Job processing failed",
		slog.String("worker_name", workerName),
		slog.String("job_id", msg.task.JobID),
		slog.String("error", err.Error()),
		slog.Bool("requeue", requeue),
	)

	if nackErr := msg.delivery.Nack(requeue); nackErr != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("worker_name", workerName),
			slog.String("job_id", msg.task.JobID),
			slog.String("error", nackErr.Error()),
		)
	}
}

// shouldRequeueJob determines if a job should be requeued based on the error type
func shouldRequeueJob(err error) bool {
	if errors.Is(err, ErrJobAlreadyClaimed) {
		return false
	}

	if errors.Is(err, ErrInvalidPayload) {
		return false
	}

	// Requeue for transient/retryable errors
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return true
	}

	// Default: don't requeue for unknown errors
	return false
}
