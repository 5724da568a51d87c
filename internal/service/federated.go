package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"github.com/levitt-app/levitt/internal/federated"
	"github.com/levitt-app/levitt/internal/logging"
	"github.com/levitt-app/levitt/internal/model"
	"github.com/levitt-app/levitt/internal/repository"
)

const (
	usernameMinLen   = 3
	usernameBaseMax  = 20
	usernameAttempts = 5
)

// Linker maps a verified federated identity to a local account, creating
// one on first sign-in.
type Linker struct {
	store  repository.AccountStore
	log    logging.Logger
	suffix func() string
}

// NewLinker returns a Linker over store.
func NewLinker(store repository.AccountStore, log logging.Logger) *Linker {
	return &Linker{
		store:  store,
		log:    log,
		suffix: func() string { return fmt.Sprintf("%04d", rand.IntN(10000)) },
	}
}

// Resolve returns the account for the claims' email. created reports whether
// it was made by this call. An existing account without an avatar takes the
// provider picture; nothing else is changed. Claims whose email the provider
// has not verified are rejected.
func (l *Linker) Resolve(ctx context.Context, c federated.Claims) (model.Account, bool, error) {
	email := model.NormalizeEmail(c.Email)
	if email == "" || !c.EmailVerified {
		return model.Account{}, false, federated.ErrTokenInvalid
	}

	acc, err := l.store.GetByEmail(ctx, email)
	if err == nil {
		return l.fillAvatar(ctx, acc, c.Picture), false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Account{}, false, err
	}

	acc, err = l.create(ctx, email, c)
	if errors.Is(err, repository.ErrEmailExists) {
		// Lost a race with a concurrent sign-in for the same email.
		acc, err = l.store.GetByEmail(ctx, email)
		if err != nil {
			return model.Account{}, false, err
		}
		return acc, false, nil
	}
	if err != nil {
		return model.Account{}, false, err
	}
	l.log.Info(ctx, "federated account created", "account_id", acc.ID)
	return acc, true, nil
}

func (l *Linker) fillAvatar(ctx context.Context, acc model.Account, picture string) model.Account {
	if picture == "" || (acc.AvatarURL != nil && *acc.AvatarURL != "") {
		return acc
	}
	if err := l.store.SetAvatar(ctx, acc.ID, picture); err != nil {
		l.log.Warn(ctx, "fill avatar failed", "account_id", acc.ID, "err", err)
		return acc
	}
	acc.AvatarURL = &picture
	return acc
}

func (l *Linker) create(ctx context.Context, email string, c federated.Claims) (model.Account, error) {
	local, _, _ := strings.Cut(email, "@")
	base := UsernameBase(local)

	fullName := strings.TrimSpace(c.Name)
	if fullName == "" {
		fullName = local
	}
	var avatar *string
	if c.Picture != "" {
		p := c.Picture
		avatar = &p
	}

	candidate := base
	for attempt := 0; attempt < usernameAttempts; attempt++ {
		if attempt > 0 {
			candidate = base + "_" + l.suffix()
		}
		if _, err := l.store.GetByUsername(ctx, candidate); err == nil {
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return model.Account{}, err
		}

		acc := model.Account{
			ID:        uuid.NewString(),
			FullName:  fullName,
			Email:     email,
			Username:  candidate,
			AvatarURL: avatar,
		}
		err := l.store.Create(ctx, &acc)
		if errors.Is(err, repository.ErrUsernameExists) {
			continue
		}
		if err != nil {
			return model.Account{}, err
		}
		return acc, nil
	}
	return model.Account{}, fmt.Errorf("no free username for %q after %d attempts", base, usernameAttempts)
}

// UsernameBase derives a username stem from an email local part: lower-cased,
// restricted to [a-z0-9._], at most 20 characters and at least 3.
func UsernameBase(local string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '.' || r == '_' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > usernameBaseMax {
		s = s[:usernameBaseMax]
	}
	if len(s) < usernameMinLen {
		s = "user" + s
	}
	return s
}
