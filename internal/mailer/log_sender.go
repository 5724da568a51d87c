package mailer

import (
	"context"

	"github.com/levitt-app/levitt/internal/logging"
)

// LogSender writes messages to the log instead of sending them. Used in dev.
type LogSender struct {
	log logging.Logger
}

// NewLogSender writes messages to log instead of delivering them.
func NewLogSender(log logging.Logger) *LogSender { return &LogSender{log: log} }

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.log.Info(ctx, "mail not sent (log sender)", "to", msg.To, "subject", msg.Subject, "tag", msg.Tag, "body", msg.TextBody)
	return nil
}
