package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/levitt-app/levitt/internal/logging"
	"github.com/levitt-app/levitt/internal/mailer"
)

// Handler processes one decoded reset event.
type Handler func(ctx context.Context, ev PasswordResetRequestedEvent) error

// MailHandler renders the reset email for each event and sends it.
func MailHandler(sender mailer.Sender, linkBase string) Handler {
	return func(ctx context.Context, ev PasswordResetRequestedEvent) error {
		msg, err := mailer.PasswordResetMessage(ctx, ev.Email, ev.FullName, ev.Token, linkBase, ev.ExpiresAt)
		if err != nil {
			return err
		}
		return sender.Send(ctx, msg)
	}
}

// Consumer drains the reset queue, reconnecting with exponential backoff.
type Consumer struct {
	url    string
	queue  string
	handle Handler
	log    logging.Logger
}

// NewConsumer returns a Consumer that hands each delivery on queue to h.
func NewConsumer(url, queue string, h Handler, log logging.Logger) *Consumer {
	return &Consumer{url: url, queue: queue, handle: h, log: log.With("component", "mail-consumer")}
}

// Run keeps consuming until ctx is cancelled. Messages that fail to process
// are rejected without requeue so a poison message cannot loop.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn(ctx, "failed to dial broker", "err", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn(ctx, "consume loop ended; reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		c.log.Warn(ctx, "set QoS failed", "err", err)
	}
	if err := declare(ch, c.queue); err != nil {
		return err
	}

	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.process(ctx, d.Body); err != nil {
				c.log.Error(ctx, "handle message failed", "err", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) process(ctx context.Context, body []byte) error {
	var ev PasswordResetRequestedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Email == "" || ev.Token == "" {
		return errors.New("event missing email or token")
	}
	if err := c.handle(ctx, ev); err != nil {
		return err
	}
	c.log.Info(ctx, "password reset mail sent", "account_id", ev.AccountID)
	return nil
}

// sleep waits for d or ctx; false means ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
