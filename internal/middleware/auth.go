package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/levitt-app/levitt/internal/utils"
)

// Rejection reasons, used both as error codes and as metric labels.
const (
	ReasonTokenMissing = "token_missing"
	ReasonTokenInvalid = "token_invalid"
	ReasonTokenExpired = "token_expired"
)

// BearerAuth gates protected routes on a valid session token. The verified
// account id is stored in the context under ContextKeyAccountID. m may be nil.
func BearerAuth(issuer *utils.TokenIssuer, m *Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return reject(c, m, ReasonTokenMissing, "missing bearer token")
			}

			accountID, err := issuer.Verify(raw)
			switch {
			case errors.Is(err, utils.ErrTokenExpired):
				return reject(c, m, ReasonTokenExpired, "session expired")
			case err != nil:
				return reject(c, m, ReasonTokenInvalid, "invalid token")
			}

			c.Set(ContextKeyAccountID, accountID)
			return next(c)
		}
	}
}

// bearerToken extracts the token of a "Bearer <token>" header. The scheme is
// matched case-insensitively.
func bearerToken(h string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func reject(c echo.Context, m *Metrics, reason, msg string) error {
	if m != nil {
		m.TokenRejections.WithLabelValues(reason).Inc()
	}
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": reason, "message": msg})
}
