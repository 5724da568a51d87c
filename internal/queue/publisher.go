package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/levitt-app/levitt/internal/logging"
)

// Publisher sends events to a durable RabbitMQ queue, opening a fresh
// connection for every publish.
type Publisher struct {
	url   string
	queue string
	log   logging.Logger
}

// NewPublisher does not dial; the connection is opened on first publish.
func NewPublisher(url, queue string, log logging.Logger) *Publisher {
	return &Publisher{url: url, queue: queue, log: log}
}

// PublishPasswordReset publishes ev as a persistent JSON message. Errors are
// logged and returned so the caller can choose to ignore them.
func (p *Publisher) PublishPasswordReset(ctx context.Context, ev PasswordResetRequestedEvent) error {
	pub, err := newPublishing(ev)
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn(ctx, "rabbitmq: dial failed", "err", err)
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn(ctx, "rabbitmq: channel open failed", "err", err)
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declare(ch, p.queue); err != nil {
		p.log.Warn(ctx, "rabbitmq: queue declare failed", "queue", p.queue, "err", err)
		return err
	}

	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		p.log.Warn(ctx, "rabbitmq: publish failed", "queue", p.queue, "err", err)
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func newPublishing(ev PasswordResetRequestedEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Type:         "PasswordResetRequested",
		Body:         body,
	}, nil
}

// declare makes sure the durable queue exists (idempotent).
func declare(ch *amqp.Channel, name string) error {
	if _, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}

// Inline hands events straight to a Handler in-process. It stands in for
// Publisher when no broker is configured.
type Inline Handler

// PublishPasswordReset runs the handler synchronously.
func (f Inline) PublishPasswordReset(ctx context.Context, ev PasswordResetRequestedEvent) error {
	return f(ctx, ev)
}
