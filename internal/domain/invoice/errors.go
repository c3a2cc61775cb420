package invoice

import (
	"errors"
	"fmt"
)

// ErrInvalidAmount is returned for zero, negative, fractional or oversized amounts
var ErrInvalidAmount = errors.New("amount must be a positive whole number")

// ErrDuplicateID indicates an invoice with the same id was already created
type ErrDuplicateID struct {
	ID ID
}

func (e ErrDuplicateID) Error() string {
	return "invoice already exists: " + e.ID.Hex()
}

// Is matches any ErrDuplicateID when the target carries a zero id
func (e ErrDuplicateID) Is(target error) bool {
	t, ok := target.(ErrDuplicateID)
	if !ok {
		return false
	}
	return t.ID.IsZero() || t.ID == e.ID
}

// ErrNotFound indicates no invoice exists for the id
type ErrNotFound struct {
	ID ID
}

func (e ErrNotFound) Error() string {
	return "invoice not found: " + e.ID.Hex()
}

// Is matches any ErrNotFound when the target carries a zero id
func (e ErrNotFound) Is(target error) bool {
	t, ok := target.(ErrNotFound)
	if !ok {
		return false
	}
	return t.ID.IsZero() || t.ID == e.ID
}

// ErrAlreadyPaid indicates a second payment attempt
type ErrAlreadyPaid struct {
	ID ID
}

func (e ErrAlreadyPaid) Error() string {
	return "invoice already paid: " + e.ID.Hex()
}

// Is matches any ErrAlreadyPaid when the target carries a zero id
func (e ErrAlreadyPaid) Is(target error) bool {
	t, ok := target.(ErrAlreadyPaid)
	if !ok {
		return false
	}
	return t.ID.IsZero() || t.ID == e.ID
}

// ErrExpired indicates a payment attempt after the due time
type ErrExpired struct {
	ID    ID
	DueAt uint64
	Now   uint64
}

func (e ErrExpired) Error() string {
	return fmt.Sprintf("invoice expired: %s (due at %d, now %d)", e.ID.Hex(), e.DueAt, e.Now)
}

// Is matches any ErrExpired when the target carries a zero id
func (e ErrExpired) Is(target error) bool {
	t, ok := target.(ErrExpired)
	if !ok {
		return false
	}
	return t.ID.IsZero() || t.ID == e.ID
}

// IsInvariantViolation reports whether err is one of the store's synchronous
// rejections. These are never retried.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrDuplicateID{}) ||
		errors.Is(err, ErrNotFound{}) ||
		errors.Is(err, ErrAlreadyPaid{}) ||
		errors.Is(err, ErrExpired{})
}
