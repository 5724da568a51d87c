package handler

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var usernameRe = regexp.MustCompile(`^[a-z0-9._]{3,30}$`)

const (
	passwordMinBytes = 8
	passwordMaxBytes = 72 // bcrypt ignores input beyond 72 bytes
)

// Validator adapts go-playground/validator to echo.Validator and reports the
// first failing field by its JSON name.
type Validator struct {
	v *validator.Validate
}

// NewValidator reports fields by their json names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		n := len(fl.Field().String())
		return n >= passwordMinBytes && n <= passwordMaxBytes
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ValidationError("invalid request")
	}
	return ValidationError(describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", f)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", f)
	case "username":
		return fmt.Sprintf("%s must be 3-30 characters of a-z, 0-9, '.' or '_'", f)
	case "password":
		return fmt.Sprintf("%s must be between %d and %d bytes", f, passwordMinBytes, passwordMaxBytes)
	case "max":
		return fmt.Sprintf("%s is too long", f)
	default:
		return fmt.Sprintf("%s is invalid", f)
	}
}
