package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/iliyamo/hall-calendar/internal/clock"
	"github.com/iliyamo/hall-calendar/internal/model"
	"github.com/iliyamo/hall-calendar/internal/policy"
	"github.com/iliyamo/hall-calendar/internal/queue"
	"github.com/iliyamo/hall-calendar/internal/report"
	"github.com/iliyamo/hall-calendar/internal/repository"
	"github.com/iliyamo/hall-calendar/internal/utils"
)

// BookingStore is the persistence the service needs for bookings.
// *repository.BookingRepo satisfies it.
type BookingStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	SlotTaken(ctx context.Context, hallID uint64, date model.Date, slot model.Slot) (bool, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Insert(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (model.BookingView, error)
	Lock(ctx context.Context, id uint64) error
	UpdateDetails(ctx context.Context, b model.Booking) error
	MarkConfirmed(ctx context.Context, id uint64, at time.Time) error
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context, q repository.ListQuery) ([]model.BookingView, error)
}

type HallStore interface {
	GetByID(ctx context.Context, id uint64) (model.Hall, error)
	ListWithCounts(ctx context.Context) ([]model.HallSummary, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// Publisher delivers confirmation events.  *queue.Publisher satisfies it.
type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, event queue.BookingConfirmedEvent) error
}

type BookingService struct {
	bookings  BookingStore
	halls     HallStore
	users     UserStore
	clock     clock.Clock
	publisher Publisher
	log       *slog.Logger
	newCode   func() (string, error)
}

type BookingServiceOption func(*BookingService)

// WithPublisher enables confirmation events.
func WithPublisher(p Publisher) BookingServiceOption {
	return func(s *BookingService) { s.publisher = p }
}

// WithLogger overrides slog.Default.
func WithLogger(l *slog.Logger) BookingServiceOption {
	return func(s *BookingService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCodeGenerator replaces the random booking code source.
func WithCodeGenerator(fn func() (string, error)) BookingServiceOption {
	return func(s *BookingService) {
		if fn != nil {
			s.newCode = fn
		}
	}
}

func NewBookingService(bookings BookingStore, halls HallStore, users UserStore, clk clock.Clock, opts ...BookingServiceOption) *BookingService {
	s := &BookingService{
		bookings: bookings,
		halls:    halls,
		users:    users,
		clock:    clk,
		log:      slog.Default(),
		newCode:  NewBookingCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var codeSpace = big.NewInt(1_000_000)

// NewBookingCode returns six uniformly random decimal digits.
func NewBookingCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// BookingDetails are the client facing fields that can be set at create
// time and patched later.
type BookingDetails struct {
	ClientName string `json:"client_name" validate:"required,max=100"`
	Phone      string `json:"phone" validate:"required,max=20"`
	Address    string `json:"address" validate:"required,max=200"`
	model.Financials
}

func (d *BookingDetails) trim() {
	d.ClientName = strings.TrimSpace(d.ClientName)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Address = strings.TrimSpace(d.Address)
}

type CreateBookingInput struct {
	HallID uint64     `json:"hall_id" validate:"required"`
	Date   model.Date `json:"date" validate:"-"`
	Slot   string     `json:"time_slot" validate:"required,oneof=day night"`
	BookingDetails
}

// Create books the hall for the given date and slot.  The slot check and
// insert share one transaction; the unique slot index is the final guard.
// A colliding booking code retries the transaction with a fresh code until
// ctx is done.
func (s *BookingService) Create(ctx context.Context, actor model.Actor, in CreateBookingInput) (model.BookingView, error) {
	if err := policy.Authorize(actor, policy.Create, policy.NoOwner); err != nil {
		return model.BookingView{}, err
	}

	in.BookingDetails.trim()
	in.Slot = strings.ToLower(strings.TrimSpace(in.Slot))
	extra := map[string]string{}
	if in.Date.IsZero() {
		extra["date"] = "required"
	}
	if err := validateStruct(in, extra); err != nil {
		return model.BookingView{}, err
	}

	hall, err := s.halls.GetByID(ctx, in.HallID)
	if err != nil {
		if errors.Is(err, repository.ErrHallNotFound) {
			return model.BookingView{}, ErrNotFound
		}
		return model.BookingView{}, fmt.Errorf("load hall: %w", err)
	}

	for {
		b, err := s.insert(ctx, actor, in)
		if errors.Is(err, repository.ErrDuplicateCode) {
			if ctx.Err() != nil {
				return model.BookingView{}, ctx.Err()
			}
			s.log.Debug("booking code collided at insert; retrying", "code", b.Code)
			continue
		}
		if err != nil {
			return model.BookingView{}, err
		}
		return model.BookingView{Booking: b, HallName: hall.Name}, nil
	}
}

func (s *BookingService) insert(ctx context.Context, actor model.Actor, in CreateBookingInput) (model.Booking, error) {
	var b model.Booking
	err := s.bookings.WithTx(ctx, func(txCtx context.Context) error {
		taken, err := s.bookings.SlotTaken(txCtx, in.HallID, in.Date, model.Slot(in.Slot))
		if err != nil {
			return fmt.Errorf("check slot: %w", err)
		}
		if taken {
			return ErrSlotTaken
		}

		code, err := s.uniqueCode(txCtx)
		if err != nil {
			return err
		}

		b = model.Booking{
			Code:       code,
			HallID:     in.HallID,
			UserID:     actor.UserID,
			Date:       in.Date,
			Slot:       model.Slot(in.Slot),
			ClientName: in.ClientName,
			Phone:      in.Phone,
			Address:    in.Address,
			Financials: in.Financials,
			Status:     model.StatusPending,
			CreatedAt:  s.clock.Now().UTC(),
		}
		if err := s.bookings.Insert(txCtx, &b); err != nil {
			switch {
			case errors.Is(err, repository.ErrSlotTaken):
				return ErrSlotTaken
			case errors.Is(err, repository.ErrDuplicateCode):
				return err
			}
			return fmt.Errorf("insert booking: %w", err)
		}
		return nil
	})
	return b, err
}

func (s *BookingService) uniqueCode(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := s.newCode()
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		exists, err := s.bookings.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
}

// load fetches a booking and checks op against its owner.  Non-admins get
// ErrAccessDenied for missing bookings as well, so ids cannot be enumerated.
func (s *BookingService) load(ctx context.Context, actor model.Actor, id uint64, op policy.Operation) (model.BookingView, error) {
	if !actor.Authenticated() {
		return model.BookingView{}, ErrAccessDenied
	}
	v, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			if actor.IsAdmin() {
				return model.BookingView{}, ErrNotFound
			}
			return model.BookingView{}, ErrAccessDenied
		}
		return model.BookingView{}, fmt.Errorf("load booking: %w", err)
	}
	if err := policy.Authorize(actor, op, v.UserID); err != nil {
		return model.BookingView{}, err
	}
	return v, nil
}

// Get returns a booking to its owner or an administrator.
func (s *BookingService) Get(ctx context.Context, actor model.Actor, id uint64) (model.BookingView, error) {
	return s.load(ctx, actor, id, policy.Read)
}

// UpdateBookingInput patches the mutable fields.  Nil means unchanged.
type UpdateBookingInput struct {
	ClientName  *string `json:"client_name"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	TotalAmount *int64  `json:"total_amount"`
	AdvancePaid *int64  `json:"advance_paid"`
	Balance     *int64  `json:"balance"`
}

func (in UpdateBookingInput) apply(b *model.Booking) {
	if in.ClientName != nil {
		b.ClientName = *in.ClientName
	}
	if in.Phone != nil {
		b.Phone = *in.Phone
	}
	if in.Address != nil {
		b.Address = *in.Address
	}
	if in.TotalAmount != nil {
		b.TotalAmount = *in.TotalAmount
	}
	if in.AdvancePaid != nil {
		b.AdvancePaid = *in.AdvancePaid
	}
	if in.Balance != nil {
		b.Balance = *in.Balance
	}
}

// Update applies in to the booking.  Hall, date, slot, code and owner never
// change.  The row is locked before it is read, so concurrent patches of
// different fields do not undo each other.
func (s *BookingService) Update(ctx context.Context, actor model.Actor, id uint64, in UpdateBookingInput) (model.BookingView, error) {
	var out model.BookingView
	err := s.bookings.WithTx(ctx, func(txCtx context.Context) error {
		// A missing row is reported by load, which hides it from non-admins.
		if err := s.bookings.Lock(txCtx, id); err != nil && !errors.Is(err, repository.ErrBookingNotFound) {
			return fmt.Errorf("lock booking: %w", err)
		}
		v, err := s.load(txCtx, actor, id, policy.Update)
		if err != nil {
			return err
		}
		in.apply(&v.Booking)

		details := BookingDetails{ClientName: v.ClientName, Phone: v.Phone, Address: v.Address, Financials: v.Financials}
		details.trim()
		if err := validateStruct(details, nil); err != nil {
			return err
		}
		v.ClientName, v.Phone, v.Address = details.ClientName, details.Phone, details.Address

		if err := s.bookings.UpdateDetails(txCtx, v.Booking); err != nil {
			if errors.Is(err, repository.ErrBookingNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("update booking: %w", err)
		}
		out = v
		return nil
	})
	return out, err
}

// Confirm marks the booking confirmed and stamps confirmed_at.  Confirming
// again re-stamps the time.  The event is published after commit and a
// publish failure is only logged.
func (s *BookingService) Confirm(ctx context.Context, actor model.Actor, id uint64) (model.BookingView, error) {
	var out model.BookingView
	err := s.bookings.WithTx(ctx, func(txCtx context.Context) error {
		v, err := s.load(txCtx, actor, id, policy.Confirm)
		if err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		if err := s.bookings.MarkConfirmed(txCtx, id, now); err != nil {
			if errors.Is(err, repository.ErrBookingNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("confirm booking: %w", err)
		}
		v.Status = model.StatusConfirmed
		v.ConfirmedAt = &now
		out = v
		return nil
	})
	if err != nil {
		return model.BookingView{}, err
	}

	if s.publisher != nil {
		if perr := s.publisher.PublishBookingConfirmed(ctx, queue.NewBookingConfirmedEvent(out)); perr != nil {
			s.log.Warn("publish booking.confirmed failed", "booking_id", out.ID, "err", perr)
		}
	}
	return out, nil
}

// Delete removes a booking.  Only administrators may delete, and they must
// re-enter their own password.
func (s *BookingService) Delete(ctx context.Context, actor model.Actor, id uint64, password string) error {
	if err := policy.Authorize(actor, policy.Delete, policy.NoOwner); err != nil {
		return err
	}
	u, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrAccessDenied
		}
		return fmt.Errorf("load user: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return ErrInvalidPassword
	}
	if err := s.bookings.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete booking: %w", err)
	}
	s.log.Info("booking deleted", "booking_id", id, "by", actor.UserID)
	return nil
}

// Halls lists every hall with its booking count.  Anyone may browse.
func (s *BookingService) Halls(ctx context.Context) ([]model.HallSummary, error) {
	return s.halls.ListWithCounts(ctx)
}

// Calendar returns the public occupancy grid of one hall.
func (s *BookingService) Calendar(ctx context.Context, hallID uint64, year int, month time.Month) (model.Hall, report.CalendarMonth, error) {
	if err := validMonth(year, month); err != nil {
		return model.Hall{}, report.CalendarMonth{}, err
	}
	hall, err := s.hall(ctx, hallID)
	if err != nil {
		return model.Hall{}, report.CalendarMonth{}, err
	}
	from, to := report.MonthRange(year, month)
	rows, err := s.bookings.List(ctx, repository.ListQuery{HallID: hallID, From: from, To: to})
	if err != nil {
		return model.Hall{}, report.CalendarMonth{}, fmt.Errorf("list bookings: %w", err)
	}
	return hall, report.BuildCalendar(year, month, rows), nil
}

// HallBookings lists a hall's bookings in one month narrowed by filter.
// Non-admins only see their own bookings.
func (s *BookingService) HallBookings(ctx context.Context, actor model.Actor, hallID uint64, year int, month time.Month, filter model.BookingFilter) ([]model.BookingView, error) {
	if !actor.Authenticated() {
		return nil, ErrAccessDenied
	}
	if err := validMonth(year, month); err != nil {
		return nil, err
	}
	if _, err := s.hall(ctx, hallID); err != nil {
		return nil, err
	}
	from, to := report.MonthRange(year, month)
	rows, err := s.bookings.List(ctx, repository.ListQuery{HallID: hallID, OwnerID: ownerScope(actor), From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	out := rows[:0]
	for _, r := range rows {
		if filter.Match(r.Booking) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Search treats a month+year query ("June 2025") as a month listing and
// anything else as a substring of code, client name or phone.
func (s *BookingService) Search(ctx context.Context, actor model.Actor, query string) ([]model.BookingView, error) {
	if !actor.Authenticated() {
		return nil, ErrAccessDenied
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalid("q", "required")
	}
	q := repository.ListQuery{OwnerID: ownerScope(actor)}
	if year, month, ok := report.ParseMonthQuery(query); ok {
		q.From, q.To = report.MonthRange(year, month)
	} else {
		q.Term = query
	}
	rows, err := s.bookings.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search bookings: %w", err)
	}
	return rows, nil
}

// Export returns every booking for the administrator exports.
func (s *BookingService) Export(ctx context.Context, actor model.Actor) ([]model.BookingView, error) {
	if err := policy.Authorize(actor, policy.Export, policy.NoOwner); err != nil {
		return nil, err
	}
	rows, err := s.bookings.List(ctx, repository.ListQuery{})
	if err != nil {
		return nil, fmt.Errorf("export bookings: %w", err)
	}
	return rows, nil
}

func (s *BookingService) hall(ctx context.Context, id uint64) (model.Hall, error) {
	h, err := s.halls.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrHallNotFound) {
			return model.Hall{}, ErrNotFound
		}
		return model.Hall{}, fmt.Errorf("load hall: %w", err)
	}
	return h, nil
}

func ownerScope(actor model.Actor) uint64 {
	if actor.IsAdmin() {
		return 0
	}
	return actor.UserID
}

func validMonth(year int, month time.Month) error {
	if month < time.January || month > time.December {
		return invalid("month", "oneof")
	}
	if year < 1000 || year > 9999 {
		return invalid("year", "range")
	}
	return nil
}
