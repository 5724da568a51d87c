package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_JSONNeverCarriesSecrets(t *testing.T) {
	hash := "$2a$10$abc"
	reset := "deadbeef"
	exp := time.Now()
	a := Account{ID: "1", FullName: "Jane Doe", Email: "jane@x.com", Username: "janed",
		PasswordHash: &hash, ResetTokenHash: &reset, ResetTokenExpiresAt: &exp}

	for _, v := range []any{a, a.Public()} {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		assert.NotContains(t, string(b), "password")
		assert.NotContains(t, string(b), hash)
		assert.NotContains(t, string(b), reset)
		assert.Contains(t, string(b), `"fullName":"Jane Doe"`)
	}
}

func TestAccount_HasPassword(t *testing.T) {
	empty := ""
	hash := "$2a$10$abc"
	assert.False(t, Account{}.HasPassword())
	assert.False(t, Account{PasswordHash: &empty}.HasPassword())
	assert.True(t, Account{PasswordHash: &hash}.HasPassword())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "jane@x.com", NormalizeEmail("  Jane@X.com "))
	assert.Equal(t, "janed", NormalizeUsername("JaneD"))
}
