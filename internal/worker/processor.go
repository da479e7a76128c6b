package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/subtitle-pipeline/internal/domain"
	"github.com/cuongbtq/subtitle-pipeline/internal/queue"
)

// processJob claims the job, runs the pipeline and records the outcome.
// Once the job is RUNNING every failure is recorded on the job and nil is
// returned, so the message is acknowledged. Only when the failure itself
// cannot be recorded is the delivery requeued.
func (w *Worker) processJob(ctx context.Context, task queue.Task) error {
	// In-flight work is not interrupted by shutdown
	runCtx := context.WithoutCancel(ctx)

	job, err := w.jobs.Get(runCtx, task.JobID)
	if err != nil {
		if domain.IsNotFound(err) {
			w.logger.Warn("Job missing, dropping task",
				slog.String("job_id", task.JobID),
			)
			return nil
		}
		return NewRetryableError(fmt.Errorf("failed to load job: %w", err))
	}

	if job.Status != domain.StatusQueued {
		w.logger.Warn("Job not queued, skipping",
			slog.String("job_id", job.ID),
			slog.String("status", string(job.Status)),
		)
		return fmt.Errorf("%w: status is %s", ErrJobAlreadyClaimed, job.Status)
	}

	// Step 1: Claim job (QUEUED → RUNNING)
	job, err = w.jobs.Start(runCtx, task.JobID)
	if err != nil {
		switch {
		case domain.IsConflict(err):
			w.logger.Warn("Job already claimed, skipping",
				slog.String("job_id", task.JobID),
			)
			return fmt.Errorf("%w: %v", ErrJobAlreadyClaimed, err)
		case domain.IsNotFound(err):
			w.logger.Warn("Job vanished before claim",
				slog.String("job_id", task.JobID),
			)
			return nil
		}
		return NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	w.logger.Info("Processing job",
		slog.String("job_id", job.ID),
		slog.String("output_type", string(job.OutputType)),
		slog.String("model", job.ModelName),
	)

	// Step 2: Heartbeat while the pipeline runs
	heartbeatDone := make(chan struct{})
	go w.sendJobHeartbeat(runCtx, job.ID, heartbeatDone)

	// Step 3: Run the pipeline with the stored output type and model
	start := time.Now()
	result, runErr := w.pipeline.Run(runCtx, job)
	close(heartbeatDone)

	// Step 4: Record the terminal state
	if runErr != nil {
		w.logger.Error("Job execution failed",
			slog.String("job_id", job.ID),
			slog.String("error", runErr.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return w.recordFailure(runCtx, job.ID, runErr.Error())
	}

	if _, err := w.jobs.Complete(runCtx, job.ID, result); err != nil {
		w.logger.Error("Failed to update job status to SUCCEEDED",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return w.recordFailure(runCtx, job.ID, "record result: "+err.Error())
	}

	w.logger.Info("Job completed successfully",
		slog.String("job_id", job.ID),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// recordFailure moves a running job to FAILED. A store error is returned as
// retryable so the delivery is not lost.
func (w *Worker) recordFailure(ctx context.Context, jobID, message string) error {
	if _, err := w.jobs.Fail(ctx, jobID, message); err != nil {
		w.logger.Error("Failed to update job status to FAILED",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return NewRetryableError(fmt.Errorf("failed to record job failure: %w", err))
	}
	return nil
}

// sendJobHeartbeat periodically updates the job's heartbeat timestamp
func (w *Worker) sendJobHeartbeat(ctx context.Context, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case <-ticker.C:
			if err := w.jobs.Heartbeat(ctx, jobID); err != nil {
				w.logger.Warn("Failed to update job heartbeat",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			} else {
				w.logger.Debug("Job heartbeat updated",
					slog.String("job_id", jobID),
				)
			}
		}
	}
}
