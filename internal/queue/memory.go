package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadySettled is returned when a delivery is acked or nacked twice.
var ErrAlreadySettled = errors.New("delivery already settled")

// Memory is an in-process queue with the same delivery contract as AMQP:
// a nack with requeue puts the message back for any consumer.
type Memory struct {
	messages chan []byte

	mu     sync.Mutex
	acked  int
	nacked int
}

// NewMemory creates a queue holding up to capacity undelivered messages.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Memory{messages: make(chan []byte, capacity)}
}

// Publish enqueues the task, blocking while the queue is full.
func (m *Memory) Publish(ctx context.Context, task Task) error {
	body, err := task.Encode()
	if err != nil {
		return err
	}
	return m.PublishRaw(ctx, body)
}

// PublishRaw enqueues an arbitrary body.
func (m *Memory) PublishRaw(ctx context.Context, body []byte) error {
	select {
	case m.messages <- body:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume delivers messages until ctx is cancelled. Several consumers
// compete for the same messages.
func (m *Memory) Consume(ctx context.Context, consumerTag string) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case body := <-m.messages:
				select {
				case out <- &memoryDelivery{queue: m, body: body}:
				case <-ctx.Done():
					m.requeue(body)
					return
				}
			}
		}
	}()
	return out, nil
}

// Len returns the number of undelivered messages.
func (m *Memory) Len() int {
	return len(m.messages)
}

// Settled returns how many deliveries were acked and nacked.
func (m *Memory) Settled() (acked, nacked int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acked, m.nacked
}

func (m *Memory) requeue(body []byte) {
	select {
	case m.messages <- body:
	default:
		// full: hand off so the caller never blocks on its own queue
		go func() { m.messages <- body }()
	}
}

type memoryDelivery struct {
	queue *Memory
	body  []byte

	mu      sync.Mutex
	settled bool
}

func (d *memoryDelivery) Body() []byte { return d.body }

func (d *memoryDelivery) settle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settled {
		return ErrAlreadySettled
	}
	d.settled = true
	return nil
}

func (d *memoryDelivery) Ack() error {
	if err := d.settle(); err != nil {
		return err
	}
	d.queue.mu.Lock()
	d.queue.acked++
	d.queue.mu.Unlock()
	return nil
}

func (d *memoryDelivery) Nack(requeue bool) error {
	if err := d.settle(); err != nil {
		return err
	}
	d.queue.mu.Lock()
	d.queue.nacked++
	d.queue.mu.Unlock()
	if requeue {
		d.queue.requeue(d.body)
	}
	return nil
}
