package utils // package utils provides helpers for token creation and hashing

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures and foreign issuers.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired means the signature is valid but the token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// SessionToken is a signed bearer token along with its expiry.
type SessionToken struct {
	Token     string    // the serialized JWT string
	ExpiresAt time.Time // UTC expiration time
}

// TokenIssuer signs and verifies HS256 session tokens. Any instance holding
// the same secret and issuer can verify tokens issued by another.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns an issuer producing tokens valid for ttl.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source; used by tests.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	i.now = now
	return i
}

// Issue signs a token for accountID using the default TTL.
func (i *TokenIssuer) Issue(accountID string) (SessionToken, error) {
	return i.IssueWithTTL(accountID, i.ttl)
}

// IssueWithTTL signs a token binding accountID to an absolute expiry of
// now+ttl. The token carries sub, iss, iat, exp and a random jti.
func (i *TokenIssuer) IssueWithTTL(accountID string, ttl time.Duration) (SessionToken, error) {
	if strings.TrimSpace(accountID) == "" {
		return SessionToken{}, errors.New("account id is required")
	}
	now := i.now()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    i.issuer,
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, ExpiresAt: exp.Truncate(time.Second)}, nil
}

// Verify checks the signature, issuer and expiry of raw and returns the
// account id it was issued for.
func (i *TokenIssuer) Verify(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrTokenInvalid
	}
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		// Only HMAC-signed tokens are accepted.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return i.secret, nil
	},
		jwt.WithTimeFunc(i.now),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	if !tok.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}
