package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/levitt-app/levitt/internal/logging"
	"github.com/levitt-app/levitt/internal/middleware"
)

// APIError is the error body every endpoint returns:
// {"error": code, "message": text} plus "field" for conflicts.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Error implements error.
func (e *APIError) Error() string { return e.Code + ": " + e.Message }

// HTTPStatus lets middleware see the status before the response is written.
func (e *APIError) HTTPStatus() int { return e.Status }

// Error codes.
const (
	CodeValidation            = "validation_error"
	CodeConflict              = "conflict"
	CodeInvalidCredentials    = "invalid_credentials"
	CodeResetTokenInvalid     = "reset_token_invalid"
	CodeFederatedTokenInvalid = "federated_token_invalid"
	CodeNotFound              = "not_found"
	CodeInternal              = "internal_error"
)

// ValidationError is a 400 carrying the first failed field's message.
func ValidationError(msg string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: CodeValidation, Message: msg}
}

// ConflictError names the already-used field.
func ConflictError(field string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    CodeConflict,
		Message: fmt.Sprintf("%s already in use", field),
		Field:   field,
	}
}

// ErrInvalidCredentials is shared by every login failure so responses are
// byte-identical whatever the cause.
var ErrInvalidCredentials = &APIError{Status: http.StatusBadRequest, Code: CodeInvalidCredentials, Message: "invalid credentials"}

// ErrResetTokenInvalid covers unknown, expired and already-used reset tokens.
var ErrResetTokenInvalid = &APIError{Status: http.StatusBadRequest, Code: CodeResetTokenInvalid, Message: "reset token is invalid or has expired"}

// ErrFederatedTokenInvalid is returned when a provider ID token fails verification.
var ErrFederatedTokenInvalid = &APIError{Status: http.StatusUnauthorized, Code: CodeFederatedTokenInvalid, Message: "identity provider token is invalid"}

// ErrAccountNotFound is returned when a valid session names a deleted account.
var ErrAccountNotFound = &APIError{Status: http.StatusNotFound, Code: CodeNotFound, Message: "account not found"}

// ErrInternal hides unexpected failures from clients.
var ErrInternal = &APIError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal error"}

// ErrorHandler renders APIError values and maps echo's own errors onto the
// same body. Anything else is logged with the request id and hidden behind
// internal_error.
func ErrorHandler(log logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var apiErr *APIError
		var he *echo.HTTPError
		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &he):
			apiErr = fromHTTPError(he)
		default:
			apiErr = ErrInternal
		}

		if apiErr.Status >= http.StatusInternalServerError {
			log.Error(c.Request().Context(), "request failed",
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
				"method", c.Request().Method,
				"path", c.Path(),
				"account_id", middleware.AccountID(c),
				"err", err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(apiErr.Status)
		} else {
			err = c.JSON(apiErr.Status, apiErr)
		}
		if err != nil {
			log.Error(c.Request().Context(), "write error response", "err", err)
		}
	}
}

func fromHTTPError(he *echo.HTTPError) *APIError {
	msg := http.StatusText(he.Code)
	if s, ok := he.Message.(string); ok && s != "" {
		msg = s
	}
	switch {
	case he.Code == http.StatusNotFound:
		return &APIError{Status: he.Code, Code: CodeNotFound, Message: msg}
	case he.Code >= http.StatusInternalServerError:
		return ErrInternal
	case he.Code == http.StatusBadRequest:
		return &APIError{Status: he.Code, Code: CodeValidation, Message: msg}
	default:
		return &APIError{Status: he.Code, Code: toCode(he.Code), Message: msg}
	}
}

func toCode(status int) string {
	switch status {
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	default:
		return "http_error"
	}
}
