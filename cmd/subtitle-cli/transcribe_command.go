package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cuongbtq/subtitle-pipeline/internal/domain"
	"github.com/cuongbtq/subtitle-pipeline/internal/worker"
	"github.com/spf13/cobra"
)

const pollInterval = 100 * time.Millisecond

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var outputType string
	var modelName string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "transcribe FILE",
		Short: "Upload a media file, run it through the pipeline and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := commandCtx(cmd)
			if timeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(runCtx, timeout)
				defer cancel()
			}

			return ctx.withApp(runCtx, func(a *app) error {
				job, err := transcribe(runCtx, a, args[0], outputType, modelName)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if job.Status == domain.StatusFailed {
					return fmt.Errorf("job %s failed: %s", job.ID, job.Error)
				}

				fmt.Fprintf(out, "Job %s succeeded in %.2fs\n", job.ID, derefDuration(job.DurationSeconds))
				if job.OutputType == domain.OutputText {
					fmt.Fprintln(out, job.ResultText)
				} else {
					fmt.Fprintf(out, "Result: %s\n", job.OutputPath)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputType, "output", "o", string(domain.OutputText), "Output type (text, subtitle, metadata_video, embedded_video)")
	cmd.Flags().StringVarP(&modelName, "model", "m", "", "Model name (defaults to the configured default model)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up waiting after this long (0 waits forever)")

	return cmd
}

// transcribe creates and queues a job, then runs an in-process worker until
// the job reaches a terminal status.
func transcribe(ctx context.Context, a *app, path, outputType, modelName string) (*domain.Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	job, err := a.jobs.Upload(ctx, filepath.Base(path), f)
	if err != nil {
		return nil, err
	}
	if _, err := a.jobs.Enqueue(ctx, job.ID, outputType, modelName); err != nil {
		return nil, err
	}

	w := worker.NewWorker(&worker.Config{
		Logger:            a.logger.Logger,
		Consumer:          a.queue,
		Jobs:              a.jobs,
		Pipeline:          a.pipeline,
		Concurrency:       1,
		HeartbeatInterval: a.cfg.Worker.HeartbeatInterval,
		WorkerID:          "cli",
	})

	workerCtx, stopWorker := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- w.Start(workerCtx)
	}()
	defer func() {
		stopWorker()
		w.Stop()
	}()

	a.logger.Debug("Waiting for job", slog.String("job_id", job.ID))
	return waitForJob(ctx, a, job.ID, errChan)
}

func waitForJob(ctx context.Context, a *app, jobID string, workerErr <-chan error) (*domain.Job, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		job, err := a.jobs.Get(context.WithoutCancel(ctx), jobID)
		if err != nil {
			return nil, err
		}
		if job.Status.IsTerminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("job %s still %s after timeout", jobID, job.Status)
			}
			return nil, ctx.Err()
		case err := <-workerErr:
			if err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("worker stopped before job %s finished", jobID)
		case <-ticker.C:
		}
	}
}

func derefDuration(d *float64) float64 {
	if d == nil {
		return 0
	}
	return *d
}
