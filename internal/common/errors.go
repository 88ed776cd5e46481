// Package common defines shared constants, sentinel errors and small helpers
// used across keybud server layers. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrInvalidReference is returned when a write points at a row that does
	// not exist (foreign-key violation), e.g. a message for an unknown
	// conversation or a conversation with an unknown member.
	ErrInvalidReference = errors.New("invalid reference")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorValidation   = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
