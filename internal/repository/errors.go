// Package repository defines the credential store and the error values
// shared by its implementations. Handlers and services translate these
// sentinels into API errors.
package repository

import "errors"

// ErrNotFound is returned when no account matches the lookup. For reset
// tokens it also covers expired tokens so callers cannot tell them apart.
var ErrNotFound = errors.New("account not found")

// ErrEmailExists is returned when creating an account whose email is taken.
var ErrEmailExists = errors.New("email already exists")

// ErrUsernameExists is returned when creating an account whose username is taken.
var ErrUsernameExists = errors.New("username already exists")

// Conflict fields reported by FindConflict.
const (
	FieldEmail    = "email"
	FieldUsername = "username"
)
