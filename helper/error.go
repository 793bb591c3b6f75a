package helper

import (
	"errors"
	"fmt"
)

// ErrMissingConfig is returned when a required configuration value is not set.
var ErrMissingConfig = errors.New("missing configuration")

// Error wraps an error with the operation that failed.
type Error struct {
	Operation string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with the failed operation. It returns nil if err is nil.
func NewError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Operation: operation, Err: err}
}

// NewMissingConfigError reports the names of unset configuration variables.
func NewMissingConfigError(names ...string) error {
	return NewError("configuration", fmt.Errorf("%w: %v must be set", ErrMissingConfig, names))
}
