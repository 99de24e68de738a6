// Package service holds the reservation manager.  It owns the
// one-booking-per-slot rule, booking codes, the pending to confirmed
// transition and the admin-only delete, and it translates repository
// errors into the sentinels below.
package service

import (
	"errors"
	"sort"
	"strings"

	"github.com/iliyamo/hall-calendar/internal/policy"
)

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrSlotTaken is the booking conflict: the hall is already booked for
	// that date and slot.
	ErrSlotTaken = errors.New("slot already booked")

	// ErrNotFound is returned for missing halls and, for administrators,
	// missing bookings.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPassword is returned when the password re-entered for a
	// delete does not match the administrator's account.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrAccessDenied is re-exported so callers only need this package.
	ErrAccessDenied = policy.ErrAccessDenied
)

// ValidationError lists the rejected input fields, keyed by JSON name,
// with the failing rule as value (for example "required" or "max").
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, rule string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: rule}}
}
