package submitter

import "errors"

// ErrValidation is matched by every ValidationError
var ErrValidation = errors.New("validation failed")

// ValidationError rejects a request before anything is submitted
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, message string, cause error) error {
	return &ValidationError{Field: field, Message: message, Err: cause}
}
