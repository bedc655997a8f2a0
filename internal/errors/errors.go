package errors

import (
	"errors"
	"fmt"
)

var ErrUnauthorized = errors.New("user is not authorized")
var ErrForbidden = errors.New("operation is forbidden for user")

// Error kinds returned by the booking core. Handlers map them to HTTP codes with errors.Is.
var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrNotFound              = errors.New("not found")
	ErrConflictingBooking    = errors.New("user already has an ongoing booking")
	ErrCarUnavailable        = errors.New("car is not available for booking")
	ErrInvalidTransition     = errors.New("invalid booking status transition")
	ErrInvalidDuration       = errors.New("invalid booking duration")
	ErrPaymentRecordNotFound = errors.New("booking payment not found")
	ErrPaymentNotSucceeded   = errors.New("payment not completed successfully")
	ErrUpstream              = errors.New("upstream failure")
)

// Refinements keep their parent kind reachable through errors.Is.
var (
	ErrAlreadyApproved     = refine("booking is already approved", ErrInvalidTransition)
	ErrNotFoundOrForbidden = refine("booking not found or you are not authorized", ErrNotFound)
	ErrNoFieldsProvided    = refine("no valid fields provided for update", ErrInvalidRequest)
	ErrInvalidAmount       = refine("invalid amount", ErrInvalidRequest)
	ErrMissingIntentID     = refine("payment intent id is required", ErrInvalidRequest)
)

type kindError struct {
	msg    string
	parent error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.parent }

func refine(msg string, parent error) error {
	return &kindError{msg: msg, parent: parent}
}

// Upstream marks a store or payment provider failure. The cause stays reachable.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}

// Wrap attaches a human readable message to an error kind.
func Wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
