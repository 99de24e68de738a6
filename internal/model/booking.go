package model

import (
	"strings"
	"time"
)

// Slot is one of the two daily booking windows.
type Slot string

const (
	SlotDay   Slot = "day"
	SlotNight Slot = "night"
)

// ParseSlot normalizes a client-supplied slot name.
func ParseSlot(s string) (Slot, bool) {
	switch Slot(strings.ToLower(strings.TrimSpace(s))) {
	case SlotDay:
		return SlotDay, true
	case SlotNight:
		return SlotNight, true
	}
	return "", false
}

// Title returns the slot name with a leading capital, as printed on
// receipts and exports.
func (s Slot) Title() string { return titleCase(string(s)) }

// Status is the lifecycle state of a booking.  The only transition is
// pending -> confirmed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// Title returns the status with a leading capital.
func (s Status) Title() string { return titleCase(string(s)) }

// Financials groups the money columns of a booking.  Amounts are kept in
// minor currency units (paise).  No relationship between the three is
// enforced; they are a free-form ledger maintained by staff.
type Financials struct {
	TotalAmount int64 `json:"total_amount" validate:"gte=0"`
	AdvancePaid int64 `json:"advance_paid" validate:"gte=0"`
	Balance     int64 `json:"balance" validate:"gte=0"`
}

// Booking is a reservation of one hall for one slot on one date.
//
// Fields:
//
//	ID          – storage assigned primary key.
//	Code        – 6 digit human facing booking code (BID), unique.
//	HallID      – hall that owns the date/slot.
//	UserID      – account that created the booking.
//	Date        – calendar date.
//	Slot        – day or night.
//	ClientName  – name of the client.
//	Phone       – client phone number.
//	Address     – client address.
//	Financials  – total, advance and balance amounts.
//	Status      – pending or confirmed.
//	CreatedAt   – insertion time (UTC).
//	ConfirmedAt – confirmation time (UTC), nil while pending.
type Booking struct {
	ID         uint64 `json:"id"`
	Code       string `json:"code"`
	HallID     uint64 `json:"hall_id"`
	UserID     uint64 `json:"user_id"`
	Date       Date   `json:"date"`
	Slot       Slot   `json:"time_slot"`
	ClientName string `json:"client_name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	Financials
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at"`
}

// BookingView is a booking joined with the name of its hall.  Exports and
// listings consume this shape.
type BookingView struct {
	Booking
	HallName string `json:"hall_name"`
}

// BookingFilter narrows hall listings to one of the calendar counters.
type BookingFilter string

const (
	FilterTotal     BookingFilter = "total"
	FilterConfirmed BookingFilter = "confirmed"
	FilterPending   BookingFilter = "pending"
	FilterDay       BookingFilter = "day"
	FilterNight     BookingFilter = "night"
)

// ParseBookingFilter maps a query value onto a filter; empty means total.
func ParseBookingFilter(s string) (BookingFilter, bool) {
	switch f := BookingFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterTotal, true
	case FilterTotal, FilterConfirmed, FilterPending, FilterDay, FilterNight:
		return f, true
	}
	return "", false
}

// Match reports whether b is counted under the filter.
func (f BookingFilter) Match(b Booking) bool {
	switch f {
	case FilterConfirmed:
		return b.Status == StatusConfirmed
	case FilterPending:
		return b.Status == StatusPending
	case FilterDay:
		return b.Slot == SlotDay
	case FilterNight:
		return b.Slot == SlotNight
	}
	return true
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
