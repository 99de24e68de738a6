// Package repository implements persistence for users, halls, bookings
// and refresh tokens on top of database/sql.  Every repository resolves
// its connection through database.Conn, so calls made with a context
// produced by WithTx run inside that transaction.
package repository

import "errors"

var (
	// ErrUserNotFound is returned when no user matches a lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameExists is returned when a username is already taken.
	ErrUsernameExists = errors.New("username already exists")

	// ErrHallNotFound is returned when a hall lookup fails.
	ErrHallNotFound = errors.New("hall not found")

	// ErrHallExists is returned when a hall name is already taken.
	ErrHallExists = errors.New("hall already exists")

	// ErrBookingNotFound is returned when a booking lookup or mutation
	// matches no row.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrSlotTaken signals a collision on (hall, date, time_slot), either
	// found by the pre-insert check or raised by the unique index.
	ErrSlotTaken = errors.New("slot already booked")

	// ErrRefreshInvalid is returned for refresh tokens that are unknown,
	// revoked or expired.
	ErrRefreshInvalid = errors.New("refresh token invalid")

	// ErrDuplicateCode signals that the generated booking code collided
	// with an existing one at insert time.
	ErrDuplicateCode = errors.New("duplicate booking code")
)
