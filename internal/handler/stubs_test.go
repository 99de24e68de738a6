package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/iliyamo/hall-calendar/internal/backup"
	"github.com/iliyamo/hall-calendar/internal/model"
	"github.com/iliyamo/hall-calendar/internal/report"
	"github.com/iliyamo/hall-calendar/internal/repository"
	"github.com/iliyamo/hall-calendar/internal/service"
)

var (
	testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	quiet   = slog.New(slog.NewTextHandler(io.Discard, nil))
)

func sampleBooking() model.BookingView {
	return model.BookingView{
		Booking: model.Booking{
			ID: 5, Code: "042917", HallID: 1, UserID: 2,
			Date: model.NewDate(2025, 6, 14), Slot: "night",
			ClientName: "Priya", Phone: "9999999999", Address: "Chennai",
			Financials: model.Financials{TotalAmount: 150000, AdvancePaid: 50000, Balance: 100000},
			Status:     "pending", CreatedAt: testNow,
		},
		HallName: "AR Garden",
	}
}

// stubBookings answers every call with booking/err and records the last
// arguments it saw.
type stubBookings struct {
	booking model.BookingView
	rows    []model.BookingView
	err     error

	lastActor    model.Actor
	lastCreate   service.CreateBookingInput
	lastPassword string
	lastYear     int
	lastMonth    time.Month
	lastFilter   model.BookingFilter
	lastQuery    string
}

func (s *stubBookings) Create(_ context.Context, a model.Actor, in service.CreateBookingInput) (model.BookingView, error) {
	s.lastActor, s.lastCreate = a, in
	return s.booking, s.err
}

func (s *stubBookings) Get(_ context.Context, a model.Actor, _ uint64) (model.BookingView, error) {
	s.lastActor = a
	return s.booking, s.err
}

func (s *stubBookings) Update(_ context.Context, a model.Actor, _ uint64, _ service.UpdateBookingInput) (model.BookingView, error) {
	s.lastActor = a
	return s.booking, s.err
}

func (s *stubBookings) Confirm(_ context.Context, a model.Actor, _ uint64) (model.BookingView, error) {
	s.lastActor = a
	return s.booking, s.err
}

func (s *stubBookings) Delete(_ context.Context, a model.Actor, _ uint64, password string) error {
	s.lastActor, s.lastPassword = a, password
	return s.err
}

func (s *stubBookings) Halls(context.Context) ([]model.HallSummary, error) {
	return []model.HallSummary{{Hall: model.Hall{ID: 1, Name: "AR Garden"}, Bookings: 3}}, s.err
}

func (s *stubBookings) Calendar(_ context.Context, hallID uint64, year int, month time.Month) (model.Hall, report.CalendarMonth, error) {
	s.lastYear, s.lastMonth = year, month
	return model.Hall{ID: hallID, Name: "AR Garden"}, report.BuildCalendar(year, month, s.rows), s.err
}

func (s *stubBookings) HallBookings(_ context.Context, a model.Actor, _ uint64, year int, month time.Month, f model.BookingFilter) ([]model.BookingView, error) {
	s.lastActor, s.lastYear, s.lastMonth, s.lastFilter = a, year, month, f
	return s.rows, s.err
}

func (s *stubBookings) Search(_ context.Context, a model.Actor, q string) ([]model.BookingView, error) {
	s.lastActor, s.lastQuery = a, q
	return s.rows, s.err
}

func (s *stubBookings) Export(_ context.Context, a model.Actor) ([]model.BookingView, error) {
	s.lastActor = a
	return s.rows, s.err
}

type stubBackups struct {
	manifest backup.Manifest
	result   backup.RestoreResult
	err      error
	restored *backup.Archive
}

func (s *stubBackups) Backup(_ context.Context, w io.Writer) (backup.Manifest, error) {
	if s.err != nil {
		return backup.Manifest{}, s.err
	}
	_, _ = w.Write([]byte("PK-archive"))
	return s.manifest, nil
}

func (s *stubBackups) Restore(_ context.Context, a backup.Archive) (backup.RestoreResult, error) {
	s.restored = &a
	return s.result, s.err
}

type stubUsers struct {
	users   map[string]model.User
	created []string
}

func (s *stubUsers) Create(_ context.Context, username, _, _ string, _ model.Role, _ int) (uint64, error) {
	if _, ok := s.users[username]; ok {
		return 0, repository.ErrUsernameExists
	}
	s.created = append(s.created, username)
	return uint64(100 + len(s.created)), nil
}

func (s *stubUsers) GetByUsername(_ context.Context, username string) (model.User, error) {
	u, ok := s.users[username]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (s *stubUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

type stubTokens struct {
	valid   map[string]uint64
	err     error
	revoked []string
	all     []uint64
}

func (s *stubTokens) StoreRefresh(_ context.Context, userID uint64, hash string, _ time.Time) error {
	s.valid[hash] = userID
	return nil
}

func (s *stubTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	if s.err != nil {
		return 0, s.err
	}
	id, ok := s.valid[hash]
	if !ok {
		return 0, repository.ErrRefreshInvalid
	}
	return id, nil
}

func (s *stubTokens) RevokeByHash(_ context.Context, hash string) error {
	delete(s.valid, hash)
	s.revoked = append(s.revoked, hash)
	return nil
}

func (s *stubTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	s.all = append(s.all, userID)
	return nil
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("connection refused") }
