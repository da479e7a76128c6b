package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// Task is the message published for every enqueued job.
type Task struct {
	JobID      string `json:"job_id"`
	OutputType string `json:"output_type"`
	ModelName  string `json:"model_name"`
}

// Encode serialises the task as JSON.
func (t Task) Encode() ([]byte, error) {
	body, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task: %w", err)
	}
	return body, nil
}

// Delivery is one received message. Exactly one of Ack or Nack must be called.
type Delivery interface {
	Body() []byte
	Ack() error
	Nack(requeue bool) error
}

// Publisher hands tasks to the queue.
type Publisher interface {
	Publish(ctx context.Context, task Task) error
}

// Consumer streams deliveries until ctx is cancelled or the queue closes.
type Consumer interface {
	Consume(ctx context.Context, consumerTag string) (<-chan Delivery, error)
}
