// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/iliyamo/hall-calendar/internal/model"
)

// BookingConfirmedQueue is the durable queue confirmations are published to.
const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmedEvent is published when a booking is confirmed.
// It contains enough information for downstream consumers to log or notify
// without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID   uint64 `json:"booking_id"`
	Code        string `json:"code"`
	UserID      uint64 `json:"user_id"`
	HallID      uint64 `json:"hall_id"`
	HallName    string `json:"hall_name"`
	Date        string `json:"date"`
	TimeSlot    string `json:"time_slot"`
	ClientName  string `json:"client_name"`
	ConfirmedAt string `json:"confirmed_at"`
}

// NewBookingConfirmedEvent builds the event for a confirmed booking.  The
// confirmation time is rendered RFC3339 in UTC.
func NewBookingConfirmedEvent(v model.BookingView) BookingConfirmedEvent {
	ev := BookingConfirmedEvent{
		BookingID:  v.ID,
		Code:       v.Code,
		UserID:     v.UserID,
		HallID:     v.HallID,
		HallName:   v.HallName,
		Date:       v.Date.String(),
		TimeSlot:   string(v.Slot),
		ClientName: v.ClientName,
	}
	if v.ConfirmedAt != nil {
		ev.ConfirmedAt = v.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	return ev
}
