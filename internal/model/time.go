package model

import "time"

// IST is the fixed UTC+5:30 offset used when timestamps are shown to
// people.  Storage stays in UTC.
var IST = time.FixedZone("IST", 5*60*60+30*60)

// InIST converts t for display.
func InIST(t time.Time) time.Time { return t.In(IST) }

// TodayIST returns the current calendar date in IST.
func TodayIST(now time.Time) (year int, month time.Month, day int) {
	return now.In(IST).Date()
}
