package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/subtitle-pipeline/internal/queue"
	"github.com/google/uuid"
)

// startMessageDispatcher decodes deliveries and hands them to the worker pool.
// It returns when ctx is canceled or the delivery channel closes.
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan queue.Delivery) {
	w.logger.Info("Message dispatcher started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("Delivery channel closed")
				return
			}

			task, err := decodeTask(delivery.Body())
			if err != nil {
				w.logger.Error("Dropping invalid task",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body())),
				)
				// NACK without requeue - a malformed message never becomes valid
				if nackErr := delivery.Nack(false); nackErr != nil {
					w.logger.Error("Failed to NACK invalid message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			select {
			case w.jobsChan <- &message{task: task, delivery: delivery}:
				w.logger.Debug("Job dispatched to worker pool",
					slog.String("job_id", task.JobID),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching job")
				// NACK the message so it can be reprocessed
				if nackErr := delivery.Nack(true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return
			}
		}
	}
}

// decodeTask parses a message body and checks the job id is a UUID
func decodeTask(body []byte) (queue.Task, error) {
	var task queue.Task
	if err := json.Unmarshal(body, &task); err != nil {
		return queue.Task{}, fmt.Errorf("%w: malformed JSON: %v", ErrInvalidPayload, err)
	}
	if _, err := uuid.Parse(task.JobID); err != nil {
		return queue.Task{}, fmt.Errorf("%w: job_id %q is not a UUID", ErrInvalidPayload, task.JobID)
	}
	return task, nil
}
