package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/levitt-app/levitt/internal/verse"
)

// DailyVerse returns the verse of the day. Public and cached by the router.
func DailyVerse(c echo.Context) error {
	return c.JSON(http.StatusOK, verse.Today())
}
