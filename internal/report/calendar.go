// Package report turns booking rows into the month views, counters and
// downloadable documents (CSV and PDF) shown to staff.
package report

import (
	"time"

	"github.com/iliyamo/hall-calendar/internal/model"
)

// Stats are the per-month counters shown above a hall calendar.
type Stats struct {
	Total     int `json:"total"`
	Confirmed int `json:"confirmed"`
	Pending   int `json:"pending"`
	Day       int `json:"day"`
	Night     int `json:"night"`
}

// MonthStats counts bookings by status and by slot.
func MonthStats(bookings []model.BookingView) Stats {
	var s Stats
	for _, b := range bookings {
		s.Total++
		switch b.Status {
		case model.StatusConfirmed:
			s.Confirmed++
		case model.StatusPending:
			s.Pending++
		}
		switch b.Slot {
		case model.SlotDay:
			s.Day++
		case model.SlotNight:
			s.Night++
		}
	}
	return s
}

// MonthRange returns the first day of the month and the first day of the
// following month, for half-open range queries.
func MonthRange(year int, month time.Month) (from, to model.Date) {
	from = model.NewDate(year, month, 1)
	to = model.DateOf(from.AddDate(0, 1, 0))
	return from, to
}

// MonthCalendar returns the weeks of a month, Monday first.  Days outside
// the month are 0.
func MonthCalendar(year int, month time.Month) [][]int {
	first, next := MonthRange(year, month)
	days := int(next.Sub(first.Time).Hours() / 24)
	// time.Weekday has Sunday=0; shift so Monday=0.
	lead := (int(first.Weekday()) + 6) % 7

	var weeks [][]int
	week := make([]int, 7)
	col := lead
	for d := 1; d <= days; d++ {
		week[col] = d
		col++
		if col == 7 {
			weeks = append(weeks, week)
			week = make([]int, 7)
			col = 0
		}
	}
	if col > 0 {
		weeks = append(weeks, week)
	}
	return weeks
}

// CalendarDay is one cell of the month grid.  Slots lists only the booked
// slots with their status; client data is never part of it.
type CalendarDay struct {
	Day   int                         `json:"day"`
	Date  string                      `json:"date,omitempty"`
	Slots map[model.Slot]model.Status `json:"slots,omitempty"`
}

// CalendarMonth is the occupancy view of one hall for one month.
type CalendarMonth struct {
	Year      int             `json:"year"`
	Month     int             `json:"month"`
	MonthName string          `json:"month_name"`
	Weeks     [][]CalendarDay `json:"weeks"`
	Stats     Stats           `json:"stats"`
}

// BuildCalendar lays bookings (expected to fall inside the month) onto
// the month grid.
func BuildCalendar(year int, month time.Month, bookings []model.BookingView) CalendarMonth {
	bySlot := make(map[int]map[model.Slot]model.Status)
	for _, b := range bookings {
		if b.Date.Year() != year || b.Date.Month() != month {
			continue
		}
		d := b.Date.Day()
		if bySlot[d] == nil {
			bySlot[d] = make(map[model.Slot]model.Status, 2)
		}
		bySlot[d][b.Slot] = b.Status
	}

	grid := MonthCalendar(year, month)
	weeks := make([][]CalendarDay, 0, len(grid))
	for _, w := range grid {
		row := make([]CalendarDay, 0, 7)
		for _, d := range w {
			cell := CalendarDay{Day: d}
			if d != 0 {
				cell.Date = model.NewDate(year, month, d).String()
				cell.Slots = bySlot[d]
			}
			row = append(row, cell)
		}
		weeks = append(weeks, row)
	}
	return CalendarMonth{
		Year:      year,
		Month:     int(month),
		MonthName: month.String(),
		Weeks:     weeks,
		Stats:     MonthStats(bookings),
	}
}
