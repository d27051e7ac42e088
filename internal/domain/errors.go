package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an id does not exist in a store.
	ErrNotFound = errors.New("not found")

	// ErrMissingField is wrapped by ValidationError when a required field is empty.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidField is wrapped by ValidationError when a field has an unusable value.
	ErrInvalidField = errors.New("invalid field")
)

// ValidationError describes a rejected input field. Field uses the external
// (camelCase) name callers submit.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// MissingField reports an absent or blank required field.
func MissingField(field string) error {
	return &ValidationError{Field: field, Message: "is required", Err: ErrMissingField}
}

// InvalidField reports a field whose value is present but unacceptable.
func InvalidField(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Err: ErrInvalidField}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
