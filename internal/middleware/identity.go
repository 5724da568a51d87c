package middleware

import "github.com/labstack/echo/v4"

// ContextKeyAccountID is where BearerAuth stores the verified account id.
const ContextKeyAccountID = "account_id"

// AccountID returns the authenticated account id, or "" outside BearerAuth.
func AccountID(c echo.Context) string {
	id, _ := c.Get(ContextKeyAccountID).(string)
	return id
}
