// Package service holds the credential flows that span more than one store
// call: reset-token issuance and consumption, and federated account linking.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/levitt-app/levitt/internal/logging"
	"github.com/levitt-app/levitt/internal/model"
	"github.com/levitt-app/levitt/internal/queue"
	"github.com/levitt-app/levitt/internal/repository"
	"github.com/levitt-app/levitt/internal/utils"
)

// ErrResetTokenInvalid is returned for unknown, expired, consumed or empty tokens.
var ErrResetTokenInvalid = errors.New("reset token invalid or expired")

// resetTokenBytes is the entropy of a reset token before hex encoding.
const resetTokenBytes = 32

// backgroundTimeout bounds one background reset request.
const backgroundTimeout = 30 * time.Second

// ResetPublisher hands reset events to the mail pipeline.
type ResetPublisher interface {
	PublishPasswordReset(ctx context.Context, ev queue.PasswordResetRequestedEvent) error
}

// ResetTokenManager issues and consumes single-use password-reset tokens.
// Only the SHA-256 of a token is stored.
type ResetTokenManager struct {
	store repository.AccountStore
	ttl   time.Duration
	cost  int
	pub   ResetPublisher
	log   logging.Logger
	now   func() time.Time

	wg sync.WaitGroup
}

// NewResetTokenManager issues tokens valid for ttl and hashes new passwords
// at bcryptCost. pub receives one event per issued token.
func NewResetTokenManager(store repository.AccountStore, ttl time.Duration, bcryptCost int, pub ResetPublisher, log logging.Logger) *ResetTokenManager {
	return &ResetTokenManager{store: store, ttl: ttl, cost: bcryptCost, pub: pub, log: log, now: time.Now}
}

// WithClock replaces the time source.
func (m *ResetTokenManager) WithClock(now func() time.Time) *ResetTokenManager {
	m.now = now
	return m
}

// Issue creates a token for acc, replacing any earlier one, and returns the
// plaintext with its expiry.
func (m *ResetTokenManager) Issue(ctx context.Context, acc model.Account) (string, time.Time, error) {
	raw, err := utils.NewOpaqueToken(resetTokenBytes)
	if err != nil {
		return "", time.Time{}, err
	}
	exp := m.now().UTC().Add(m.ttl).Truncate(time.Second)
	if err := m.store.SetResetToken(ctx, acc.ID, utils.HashOpaqueToken(raw), exp); err != nil {
		return "", time.Time{}, fmt.Errorf("store reset token: %w", err)
	}
	return raw, exp, nil
}

// RequestReset issues a token for the account registered under email and
// publishes the mail event. Unknown emails are a silent no-op. Publish
// failures are logged and not returned.
func (m *ResetTokenManager) RequestReset(ctx context.Context, email string) error {
	acc, err := m.store.GetByEmail(ctx, model.NormalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	raw, exp, err := m.Issue(ctx, acc)
	if err != nil {
		return err
	}

	if m.pub == nil {
		m.log.Warn(ctx, "no reset publisher configured; reset mail not queued", "account_id", acc.ID)
		return nil
	}
	ev := queue.PasswordResetRequestedEvent{
		AccountID:   acc.ID,
		Email:       acc.Email,
		FullName:    acc.FullName,
		Token:       raw,
		ExpiresAt:   exp,
		RequestedAt: m.now().UTC(),
	}
	if err := m.pub.PublishPasswordReset(ctx, ev); err != nil {
		m.log.Error(ctx, "publish password reset failed", "account_id", acc.ID, "err", err)
	}
	return nil
}

// RequestResetAsync runs RequestReset on a background goroutine with a
// context detached from ctx, so the caller returns before any store or
// publisher work happens for a registered email.
func (m *ResetTokenManager) RequestResetAsync(ctx context.Context, email string) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundTimeout)
		defer cancel()
		if err := m.RequestReset(bg, email); err != nil {
			m.log.Error(bg, "password reset request failed", "err", err)
		}
	}()
}

// Wait blocks until every RequestResetAsync call has finished.
func (m *ResetTokenManager) Wait() { m.wg.Wait() }

// Consume sets newPassword on the account owning token and invalidates the
// token. The password must already be validated.
func (m *ResetTokenManager) Consume(ctx context.Context, token, newPassword string) (model.Account, error) {
	if token == "" {
		return model.Account{}, ErrResetTokenInvalid
	}
	hash, err := utils.HashPassword(newPassword, m.cost)
	if err != nil {
		return model.Account{}, err
	}
	acc, err := m.store.ConsumeResetToken(ctx, utils.HashOpaqueToken(token), hash, m.now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		return model.Account{}, ErrResetTokenInvalid
	}
	if err != nil {
		return model.Account{}, err
	}
	return acc, nil
}
