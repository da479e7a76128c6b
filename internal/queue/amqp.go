package queue

import (
	"context"
	"fmt"

	"github.com/cuongbtq/subtitle-pipeline/shared/rabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
)

const contentTypeJSON = "application/json"

// AMQP is the durable queue backed by RabbitMQ.
type AMQP struct {
	client *rabbitmq.Client
}

// NewAMQP wraps a connected RabbitMQ client.
func NewAMQP(client *rabbitmq.Client) *AMQP {
	return &AMQP{client: client}
}

// Publish sends the task as a persistent message, retrying with backoff.
func (q *AMQP) Publish(ctx context.Context, task Task) error {
	body, err := task.Encode()
	if err != nil {
		return err
	}
	return q.client.PublishWithRetry(ctx, body, contentTypeJSON)
}

// Consume starts a manual-ack consumer.
func (q *AMQP) Consume(ctx context.Context, consumerTag string) (<-chan Delivery, error) {
	msgs, err := q.client.Consume(consumerTag)
	if err != nil {
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- &amqpDelivery{msg: msg}:
				case <-ctx.Done():
					// not handed to a worker; let the broker redeliver it
					msg.Nack(false, true)
					return
				}
			}
		}
	}()

	return out, nil
}

type amqpDelivery struct {
	msg amqp.Delivery
}

func (d *amqpDelivery) Body() []byte { return d.msg.Body }

func (d *amqpDelivery) Ack() error { return d.msg.Ack(false) }

func (d *amqpDelivery) Nack(requeue bool) error { return d.msg.Nack(false, requeue) }
