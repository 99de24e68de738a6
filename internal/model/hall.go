package model

// Hall is a bookable venue.  Halls are seeded once and never edited
// through the API.
//
// Fields:
//
//	ID   – primary key identifier.
//	Name – unique hall name (e.g. "AR Garden").
type Hall struct {
	ID   uint64 `json:"id"`   // halls.id
	Name string `json:"name"` // halls.name
}

// HallSummary is a hall together with the number of bookings recorded
// against it.  It backs the landing page counters.
type HallSummary struct {
	Hall
	Bookings int64 `json:"bookings"`
}

// DefaultHalls are inserted by the seeder when the halls table is empty.
var DefaultHalls = []string{"AR Garden", "Diamond Palace"}
