package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/levitt-app/levitt/internal/logging"
)

func render(err error) *httptest.ResponseRecorder {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	ErrorHandler(logging.Discard())(err, c)
	return rec
}

func TestErrorHandler_APIError(t *testing.T) {
	rec := render(ConflictError("email"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"conflict","message":"email already in use","field":"email"}`, rec.Body.String())

	rec = render(ErrInvalidCredentials)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid_credentials","message":"invalid credentials"}`, rec.Body.String())
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	rec := render(errors.New("dial tcp 10.0.0.1:3306: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal_error","message":"internal error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "3306")
}

func TestErrorHandler_EchoErrors(t *testing.T) {
	rec := render(echo.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not_found","message":"Not Found"}`, rec.Body.String())

	rec = render(echo.ErrMethodNotAllowed)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "method_not_allowed")

	rec = render(echo.NewHTTPError(http.StatusBadGateway, "upstream"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestErrorHandler_WrappedAPIError(t *testing.T) {
	rec := render(errors.Join(errors.New("ctx"), ErrResetTokenInvalid))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeResetTokenInvalid)
}
