package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/davidZal1992/soccer-automation-registry-ai/internal/domain"
)

// RabbitFlushQueue implements the flush-job queue over AMQP.
type RabbitFlushQueue struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	queue      string
	deliveries <-chan amqp.Delivery
}

// NewRabbitFlushQueue dials the broker and declares a durable queue.
func NewRabbitFlushQueue(amqpURL, queue string) (*RabbitFlushQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitFlushQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue publishes a job.
func (q *RabbitFlushQueue) Enqueue(ctx context.Context, job domain.FlushJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Pop blocks until a job is delivered.
func (q *RabbitFlushQueue) Pop(ctx context.Context) (domain.FlushJob, error) {
	if q.deliveries == nil {
		deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
		if err != nil {
			return domain.FlushJob{}, fmt.Errorf("consume: %w", err)
		}
		q.deliveries = deliveries
	}
	select {
	case <-ctx.Done():
		return domain.FlushJob{}, ctx.Err()
	case d, ok := <-q.deliveries:
		if !ok {
			return domain.FlushJob{}, errors.New("rabbitmq queue: channel closed")
		}
		var job domain.FlushJob
		if err := json.Unmarshal(d.Body, &job); err != nil {
			_ = d.Nack(false, false)
			return domain.FlushJob{}, fmt.Errorf("decode job: %w", err)
		}
		if err := d.Ack(false); err != nil {
			return domain.FlushJob{}, fmt.Errorf("ack job: %w", err)
		}
		return job, nil
	}
}

// Close releases the channel and connection.
func (q *RabbitFlushQueue) Close() error {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
