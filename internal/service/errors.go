package service

import (
	"errors"
	"fmt"
)

// Error kinds returned by the messaging service. Callers match them with
// errors.Is; the HTTP layer maps them to status codes.
var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrAuthorization = errors.New("not authorized")
	ErrConflict      = errors.New("conflict")
	ErrTransient     = errors.New("transient error")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func transient(err error) error {
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
