package utils

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrHashing is returned when the bcrypt transform itself fails.
var ErrHashing = errors.New("password hashing failed")

// HashPassword returns a bcrypt digest of plain using the given cost. The
// digest embeds salt and cost so older digests stay verifiable after the cost
// is raised.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashing, err)
	}
	return string(b), nil
}

// VerifyPassword safely compares a bcrypt digest and a plain password. An
// empty or malformed digest never matches.
func VerifyPassword(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
