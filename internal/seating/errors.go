package seating

import (
	"errors"
	"fmt"
)

// Validation reasons surfaced verbatim to the admin UI.
const (
	ReasonMissingSelection      = "missing selection"
	ReasonGuestNotFound         = "guest not found"
	ReasonGuestAlreadyAssigned  = "guest already assigned"
	ReasonTableFull             = "table full"
	ReasonTableNameRequired     = "table name required"
	ReasonCapacityNotPositive   = "capacity must be positive"
	ReasonCapacityBelowAssigned = "capacity below assigned guests"
	ReasonContactRequired       = "contact info required"
	ReasonGuestNameRequired     = "guest name required"
	ReasonTooManyGuests         = "too many guests"
	ReasonContactTooLong        = "contact info too long"
	ReasonGuestNameTooLong      = "guest name too long"
	ReasonTableNameTooLong      = "table name too long"
)

var (
	// ErrRecordMissing is returned by store implementations when a looked-up or deleted row does not exist.
	ErrRecordMissing = errors.New("seating: record missing")
	// ErrDuplicateOccurrence is returned by store implementations when an occurrence is already seated.
	ErrDuplicateOccurrence = errors.New("seating: occurrence already assigned")

	errMissingRepository = errors.New("repository is required")
	errMissingIDProvider = errors.New("id provider is required")
)

// ValidationError reports bad or missing input, or a violated seating rule.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func newValidationError(reason string) error {
	return &ValidationError{Reason: reason}
}

// Entity names used by NotFoundError.
const (
	EntityRSVP       = "rsvp"
	EntityTable      = "table"
	EntityAssignment = "assignment"
)

// NotFoundError reports a dangling reference to a stored entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("seating: %s %q not found", e.Entity, e.ID)
}

// StoreError reports a failed backing-store call.
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

// Code identifies the failing operation and reason, e.g. "seating.assign_guest.insert_failed".
func (e *StoreError) Code() string {
	return e.code
}

func newStoreError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &StoreError{code: code, err: cause}
}

// IsValidation reports whether err is a ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr, true
	}
	return nil, false
}

// IsNotFound reports whether err is a NotFoundError and returns it.
func IsNotFound(err error) (*NotFoundError, bool) {
	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) {
		return notFoundErr, true
	}
	return nil, false
}
