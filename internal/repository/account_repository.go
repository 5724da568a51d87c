package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/levitt-app/levitt/internal/model"
)

const accountColumns = "id,full_name,email,username,avatar_url,password_hash,reset_token_hash,reset_token_expires_at,created_at,updated_at"

// mysqlDuplicateKey is the MySQL error number for unique-key violations.
const mysqlDuplicateKey = 1062

// AccountRepo is the MySQL-backed AccountStore. Timestamps are stored in UTC.
type AccountRepo struct{ DB *sql.DB }

// NewAccountRepo wraps an open MySQL handle.
func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

var _ AccountStore = (*AccountRepo)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (model.Account, error) {
	var (
		a         model.Account
		avatar    sql.NullString
		pwHash    sql.NullString
		resetHash sql.NullString
		resetExp  sql.NullTime
	)
	err := row.Scan(&a.ID, &a.FullName, &a.Email, &a.Username, &avatar, &pwHash, &resetHash, &resetExp, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, fmt.Errorf("db error: %w", err)
	}
	if avatar.Valid {
		a.AvatarURL = &avatar.String
	}
	if pwHash.Valid {
		a.PasswordHash = &pwHash.String
	}
	if resetHash.Valid {
		a.ResetTokenHash = &resetHash.String
	}
	if resetExp.Valid {
		t := resetExp.Time.UTC()
		a.ResetTokenExpiresAt = &t
	}
	return a, nil
}

// Create inserts the account row.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	a.Email = model.NormalizeEmail(a.Email)
	a.Username = model.NormalizeUsername(a.Username)
	now := time.Now().UTC().Truncate(time.Second)
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO accounts (id,full_name,email,username,avatar_url,password_hash,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)",
		a.ID, a.FullName, a.Email, a.Username, nullString(a.AvatarURL), nullString(a.PasswordHash), now, now)
	if err != nil {
		return mapDuplicate(err)
	}
	a.CreatedAt, a.UpdatedAt = now, now
	return nil
}

// mapDuplicate turns a 1062 error into the sentinel naming the violated key.
func mapDuplicate(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateKey {
		if strings.Contains(me.Message, "uq_accounts_username") {
			return ErrUsernameExists
		}
		return ErrEmailExists
	}
	return fmt.Errorf("db error: %w", err)
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id string) (model.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id=? LIMIT 1", id))
}

// GetByEmail fetches an account by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1", model.NormalizeEmail(email)))
}

// GetByUsername fetches an account by normalized username.
func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (model.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE username=? LIMIT 1", model.NormalizeUsername(username)))
}

// FindConflict reports which of email/username is already in use.
func (r *AccountRepo) FindConflict(ctx context.Context, email, username string) (string, error) {
	email = model.NormalizeEmail(email)
	var gotEmail, gotUsername string
	err := r.DB.QueryRowContext(ctx,
		"SELECT email,username FROM accounts WHERE email=? OR username=? LIMIT 1",
		email, model.NormalizeUsername(username)).Scan(&gotEmail, &gotUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	if gotEmail == email {
		return FieldEmail, nil
	}
	return FieldUsername, nil
}

// SetResetToken overwrites the reset state of the account.
func (r *AccountRepo) SetResetToken(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET reset_token_hash=?, reset_token_expires_at=? WHERE id=?",
		tokenHash, expiresAt.UTC(), accountID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

// ConsumeResetToken locks the matching row, sets the new password hash and
// clears the token in one transaction.
func (r *AccountRepo) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (model.Account, error) {
	var out model.Account
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		a, err := scanAccount(tx.QueryRowContext(ctx,
			"SELECT "+accountColumns+" FROM accounts WHERE reset_token_hash=? AND reset_token_expires_at > ? LIMIT 1 FOR UPDATE",
			tokenHash, now.UTC()))
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE accounts SET password_hash=?, reset_token_hash=NULL, reset_token_expires_at=NULL WHERE id=? AND reset_token_hash=?",
			passwordHash, a.ID, tokenHash)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		a.PasswordHash = &passwordHash
		a.ResetTokenHash = nil
		a.ResetTokenExpiresAt = nil
		out = a
		return nil
	})
	return out, err
}

// SetAvatar updates avatar_url.
func (r *AccountRepo) SetAvatar(ctx context.Context, accountID, avatarURL string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE accounts SET avatar_url=? WHERE id=?", avatarURL, accountID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

// Ping verifies the database connection.
func (r *AccountRepo) Ping(ctx context.Context) error { return r.DB.PingContext(ctx) }

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}
