// Package mailer delivers transactional email. The server uses Postmark in
// production and falls back to a logging sender when no tokens are set.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/levitt-app/levitt/internal/mailer/templates"
)

var (
	ErrInvalidConfig  = errors.New("mailer: invalid config")
	ErrInvalidMessage = errors.New("mailer: invalid message")
	ErrSendFailed     = errors.New("mailer: send failed")
)

// Message is one outgoing email.
type Message struct {
	To       string
	Subject  string
	Tag      string
	TextBody string
	HTMLBody string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	if m.TextBody == "" && m.HTMLBody == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	return nil
}

// Sender sends a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// PasswordResetMessage renders the reset email. linkBase is prefixed to the
// URL-escaped token; it comes from server config and is trusted as a URL.
func PasswordResetMessage(ctx context.Context, to, fullName, token, linkBase string, expiresAt time.Time) (Message, error) {
	name := strings.TrimSpace(fullName)
	if name == "" {
		name = "there"
	}
	link := linkBase + url.QueryEscape(token)
	expires := expiresAt.UTC().Format(time.RFC1123)

	html, err := templates.Render(ctx, templates.PasswordReset(name, templ.SafeURL(link), token, expires))
	if err != nil {
		return Message{}, fmt.Errorf("render reset email: %w", err)
	}
	text := fmt.Sprintf(
		"Hi %s,\n\nWe received a request to reset your Levitt password.\n\n"+
			"Open this link to choose a new one:\n%s\n\n"+
			"Or paste this code into the app: %s\n\n"+
			"The link expires at %s. If you did not ask for a reset you can ignore this email.\n",
		name, link, token, expires)
	return Message{
		To:       to,
		Subject:  "Reset your Levitt password",
		Tag:      "password-reset",
		TextBody: text,
		HTMLBody: html,
	}, nil
}
