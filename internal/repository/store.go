package repository

import (
	"context"
	"time"

	"github.com/levitt-app/levitt/internal/model"
)

// AccountStore persists accounts, their password digests and reset-token
// state. Emails and usernames are expected to be normalized by the caller;
// implementations normalize again before comparing.
type AccountStore interface {
	// Create inserts a; a.ID must be set. Duplicate keys yield
	// ErrEmailExists or ErrUsernameExists.
	Create(ctx context.Context, a *model.Account) error
	GetByID(ctx context.Context, id string) (model.Account, error)
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	GetByUsername(ctx context.Context, username string) (model.Account, error)
	// FindConflict returns FieldEmail or FieldUsername when an existing
	// account already uses one of them, or "" when both are free.
	FindConflict(ctx context.Context, email, username string) (string, error)
	// SetResetToken stores a reset-token hash and expiry, replacing any
	// previous token of the account.
	SetResetToken(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) error
	// ConsumeResetToken atomically swaps in passwordHash and clears the
	// reset state of the account whose token hash matches and whose expiry
	// is after now. ErrNotFound otherwise.
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (model.Account, error)
	// SetAvatar updates the avatar reference of an account.
	SetAvatar(ctx context.Context, accountID, avatarURL string) error
	Ping(ctx context.Context) error
}
