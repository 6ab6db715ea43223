// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/samber/oops"
)

// DefaultQueue is the queue consumed by the mail service.
const DefaultQueue = "email_jobs"

// Publisher publishes AMQP messages. *amqp.Channel implements it.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes EmailJobs as persistent JSON messages on a
// durable queue.
type AMQPNotifier struct {
	pub   Publisher
	queue string
	now   func() time.Time
	close func() error
}

// NewAMQPNotifier creates an AMQPNotifier publishing to queue through pub.
// The queue must already exist.
func NewAMQPNotifier(pub Publisher, queue string) (*AMQPNotifier, error) {
	if pub == nil {
		return nil, oops.Errorf("publisher is required")
	}
	if queue == "" {
		queue = DefaultQueue
	}
	return &AMQPNotifier{pub: pub, queue: queue, now: time.Now}, nil
}

// DialAMQP connects to url, declares the durable queue, and returns a
// notifier owning the connection.
func DialAMQP(url, queue string) (*AMQPNotifier, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, oops.Code("NOTIFY_AMQP_DIAL_FAILED").Wrap(err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, oops.Code("NOTIFY_AMQP_CHANNEL_FAILED").Wrap(err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, oops.Code("NOTIFY_AMQP_DECLARE_FAILED").With("queue", queue).Wrap(err)
	}

	n, err := NewAMQPNotifier(ch, queue)
	if err != nil {
		return nil, err
	}
	n.close = func() error {
		chErr := ch.Close()
		connErr := conn.Close()
		if chErr != nil {
			return oops.Code("NOTIFY_AMQP_CLOSE_FAILED").Wrap(chErr)
		}
		if connErr != nil {
			return oops.Code("NOTIFY_AMQP_CLOSE_FAILED").Wrap(connErr)
		}
		return nil
	}
	return n, nil
}

// Send publishes one EmailJob.
func (n *AMQPNotifier) Send(ctx context.Context, address, subject, body string) error {
	job := newEmailJob(address, subject, body, n.now())
	payload, err := json.Marshal(job)
	if err != nil {
		return oops.Code("NOTIFY_ENCODE_FAILED").Wrap(err)
	}

	err = n.pub.PublishWithContext(ctx, "", n.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.CreatedAt,
		Body:         payload,
	})
	if err != nil {
		return oops.Code("NOTIFY_PUBLISH_FAILED").
			With("queue", n.queue).
			With("job_id", job.ID).
			Wrap(err)
	}
	return nil
}

// Close releases the connection opened by DialAMQP. It is a no-op for
// notifiers built with NewAMQPNotifier.
func (n *AMQPNotifier) Close() error {
	if n.close == nil {
		return nil
	}
	return n.close()
}
