// Package apperr defines the error taxonomy shared across certhub.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation wraps input that fails a required-field or format check.
	ErrValidation = errors.New("validation failed")

	// ErrTransport is the synthetic fault raised by simulated collaborators.
	ErrTransport = errors.New("simulated transport failure")

	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)
