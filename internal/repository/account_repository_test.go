package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/levitt-app/levitt/internal/model"
)

func newRepoWithMock(t *testing.T) (*AccountRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAccountRepo(db), mock
}

var cols = []string{"id", "full_name", "email", "username", "avatar_url", "password_hash", "reset_token_hash", "reset_token_expires_at", "created_at", "updated_at"}

func accountRow(id, email, username string, pw any) *sqlmock.Rows {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return sqlmock.NewRows(cols).AddRow(id, "Ada Levitt", email, username, nil, pw, nil, nil, now, now)
}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`^INSERT INTO accounts \(id,full_name,email,username,avatar_url,password_hash,created_at,updated_at\)`).
		WithArgs("a-1", "Ada", "ada@example.com", "ada", nil, "hash", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	pw := "hash"
	a := &model.Account{ID: "a-1", FullName: "Ada", Email: " Ada@Example.com ", Username: "ADA", PasswordHash: &pw}
	require.NoError(t, repo.Create(context.Background(), a))
	assert.Equal(t, "ada@example.com", a.Email)
	assert.Equal(t, "ada", a.Username)
	assert.False(t, a.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateKeys(t *testing.T) {
	cases := []struct {
		name string
		msg  string
		want error
	}{
		{"email", "Duplicate entry 'ada@example.com' for key 'accounts.uq_accounts_email'", ErrEmailExists},
		{"username", "Duplicate entry 'ada' for key 'accounts.uq_accounts_username'", ErrUsernameExists},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			mock.ExpectExec(`^INSERT INTO accounts`).
				WillReturnError(&mysql.MySQLError{Number: 1062, Message: tc.msg})

			err := repo.Create(context.Background(), &model.Account{ID: "a-1", Email: "ada@example.com", Username: "ada"})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`^INSERT INTO accounts`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &model.Account{ID: "a-1", Email: "a@b.c", Username: "abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: db down")
}

func TestGetByEmail_FoundAndNotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`^SELECT .* FROM accounts WHERE email=\? LIMIT 1$`).
		WithArgs("ada@example.com").
		WillReturnRows(accountRow("a-1", "ada@example.com", "ada", "hash"))
	got, err := repo.GetByEmail(context.Background(), "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "a-1", got.ID)
	assert.True(t, got.HasPassword())
	assert.Nil(t, got.AvatarURL)

	mock.ExpectQuery(`^SELECT .* FROM accounts WHERE email=\? LIMIT 1$`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetByUsername_NullPassword(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`^SELECT .* FROM accounts WHERE username=\? LIMIT 1$`).
		WithArgs("ada").
		WillReturnRows(accountRow("a-1", "ada@example.com", "ada", nil))
	got, err := repo.GetByUsername(context.Background(), "Ada")
	require.NoError(t, err)
	assert.False(t, got.HasPassword())
}

func TestFindConflict(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	q := `^SELECT email,username FROM accounts WHERE email=\? OR username=\? LIMIT 1$`

	mock.ExpectQuery(q).WithArgs("ada@example.com", "ada").
		WillReturnRows(sqlmock.NewRows([]string{"email", "username"}).AddRow("ada@example.com", "other"))
	field, err := repo.FindConflict(context.Background(), "ada@example.com", "ada")
	require.NoError(t, err)
	assert.Equal(t, FieldEmail, field)

	mock.ExpectQuery(q).WithArgs("new@example.com", "ada").
		WillReturnRows(sqlmock.NewRows([]string{"email", "username"}).AddRow("ada@example.com", "ada"))
	field, err = repo.FindConflict(context.Background(), "new@example.com", "ada")
	require.NoError(t, err)
	assert.Equal(t, FieldUsername, field)

	mock.ExpectQuery(q).WithArgs("new@example.com", "new").WillReturnError(sql.ErrNoRows)
	field, err = repo.FindConflict(context.Background(), "new@example.com", "new")
	require.NoError(t, err)
	assert.Empty(t, field)
}

func TestSetResetToken_UnknownAccount(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`^UPDATE accounts SET reset_token_hash=\?, reset_token_expires_at=\? WHERE id=\?$`).
		WithArgs("h", sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetResetToken(context.Background(), "missing", "h", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsumeResetToken_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`^SELECT .* FROM accounts WHERE reset_token_hash=\? AND reset_token_expires_at > \? LIMIT 1 FOR UPDATE$`).
		WithArgs("tokhash", sqlmock.AnyArg()).
		WillReturnRows(accountRow("a-1", "ada@example.com", "ada", "old"))
	mock.ExpectExec(`^UPDATE accounts SET password_hash=\?, reset_token_hash=NULL, reset_token_expires_at=NULL WHERE id=\? AND reset_token_hash=\?$`).
		WithArgs("new", "a-1", "tokhash").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := repo.ConsumeResetToken(context.Background(), "tokhash", "new", now)
	require.NoError(t, err)
	require.NotNil(t, got.PasswordHash)
	assert.Equal(t, "new", *got.PasswordHash)
	assert.Nil(t, got.ResetTokenHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeResetToken_UnknownRollsBack(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE$`).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.ConsumeResetToken(context.Background(), "nope", "new", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetAvatar(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`^UPDATE accounts SET avatar_url=\? WHERE id=\?$`).
		WithArgs("https://img/a.png", "a-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetAvatar(context.Background(), "a-1", "https://img/a.png"))
}
