package repository

import (
	"context"
	"sync"
	"time"

	"github.com/levitt-app/levitt/internal/model"
)

// MemoryStore is an in-process AccountStore used by tests and by the
// server when STORE_DRIVER=memory. All operations hold a single mutex, so
// ConsumeResetToken is trivially atomic.
type MemoryStore struct {
	mu         sync.Mutex
	byID       map[string]*model.Account
	byEmail    map[string]string
	byUsername map[string]string
	now        func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]*model.Account),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
		now:        time.Now,
	}
}

var _ AccountStore = (*MemoryStore)(nil)

func (m *MemoryStore) Create(_ context.Context, a *model.Account) error {
	a.Email = model.NormalizeEmail(a.Email)
	a.Username = model.NormalizeUsername(a.Username)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[a.Email]; ok {
		return ErrEmailExists
	}
	if _, ok := m.byUsername[a.Username]; ok {
		return ErrUsernameExists
	}
	now := m.now().UTC().Truncate(time.Second)
	a.CreatedAt, a.UpdatedAt = now, now
	cp := cloneAccount(*a)
	m.byID[a.ID] = &cp
	m.byEmail[a.Email] = a.ID
	m.byUsername[a.Username] = a.ID
	return nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return model.Account{}, ErrNotFound
	}
	return cloneAccount(*a), nil
}

func (m *MemoryStore) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	m.mu.Lock()
	id, ok := m.byEmail[model.NormalizeEmail(email)]
	m.mu.Unlock()
	if !ok {
		return model.Account{}, ErrNotFound
	}
	return m.GetByID(ctx, id)
}

func (m *MemoryStore) GetByUsername(ctx context.Context, username string) (model.Account, error) {
	m.mu.Lock()
	id, ok := m.byUsername[model.NormalizeUsername(username)]
	m.mu.Unlock()
	if !ok {
		return model.Account{}, ErrNotFound
	}
	return m.GetByID(ctx, id)
}

// FindConflict reports the email first when both fields are taken.
func (m *MemoryStore) FindConflict(_ context.Context, email, username string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[model.NormalizeEmail(email)]; ok {
		return FieldEmail, nil
	}
	if _, ok := m.byUsername[model.NormalizeUsername(username)]; ok {
		return FieldUsername, nil
	}
	return "", nil
}

func (m *MemoryStore) SetResetToken(_ context.Context, accountID, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[accountID]
	if !ok {
		return ErrNotFound
	}
	exp := expiresAt.UTC()
	a.ResetTokenHash = &tokenHash
	a.ResetTokenExpiresAt = &exp
	a.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryStore) ConsumeResetToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.ResetTokenHash == nil || *a.ResetTokenHash != tokenHash {
			continue
		}
		if a.ResetTokenExpiresAt == nil || !a.ResetTokenExpiresAt.After(now) {
			return model.Account{}, ErrNotFound
		}
		pw := passwordHash
		a.PasswordHash = &pw
		a.ResetTokenHash = nil
		a.ResetTokenExpiresAt = nil
		a.UpdatedAt = m.now().UTC()
		return cloneAccount(*a), nil
	}
	return model.Account{}, ErrNotFound
}

func (m *MemoryStore) SetAvatar(_ context.Context, accountID, avatarURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[accountID]
	if !ok {
		return ErrNotFound
	}
	u := avatarURL
	a.AvatarURL = &u
	a.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// cloneAccount copies the pointer fields so callers cannot mutate stored state.
func cloneAccount(a model.Account) model.Account {
	out := a
	if a.AvatarURL != nil {
		v := *a.AvatarURL
		out.AvatarURL = &v
	}
	if a.PasswordHash != nil {
		v := *a.PasswordHash
		out.PasswordHash = &v
	}
	if a.ResetTokenHash != nil {
		v := *a.ResetTokenHash
		out.ResetTokenHash = &v
	}
	if a.ResetTokenExpiresAt != nil {
		v := *a.ResetTokenExpiresAt
		out.ResetTokenExpiresAt = &v
	}
	return out
}
