package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/hall-calendar/internal/database"
	"github.com/iliyamo/hall-calendar/internal/model"
	"github.com/iliyamo/hall-calendar/internal/schema"
)

// BookingRepo provides CRUD operations for bookings.  All timestamp
// fields are stored in UTC.  Reads join the hall so callers get the hall
// name without a second query.
type BookingRepo struct {
	db *sql.DB
	d  database.Dialect
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB, d database.Dialect) *BookingRepo {
	return &BookingRepo{db: db, d: d}
}

const bookingViewSelect = `SELECT b.id, b.code, b.hall_id, b.user_id, b.{date}, b.time_slot,
                  b.client_name, b.phone, b.address,
                  b.total_amount, b.advance_paid, b.balance,
                  b.status, b.created_at, b.confirmed_at, h.name
           FROM bookings b
           JOIN halls h ON h.id = b.hall_id`

// sql quotes the date column and rebinds placeholders for the dialect.
func (r *BookingRepo) sql(q string) string {
	return r.d.Rebind(strings.ReplaceAll(q, "{date}", r.d.Quote("date")))
}

func (r *BookingRepo) conn(ctx context.Context) database.Querier { return database.Conn(ctx, r.db) }

// WithTx runs fn in a read-committed transaction.  Repository calls made
// with the context handed to fn join it.
func (r *BookingRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.WithTx(ctx, r.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, fn)
}

// SlotTaken reports whether a booking already exists for the exact
// (hall, date, slot) triple.
func (r *BookingRepo) SlotTaken(ctx context.Context, hallID uint64, date model.Date, slot model.Slot) (bool, error) {
	var one int
	err := r.conn(ctx).QueryRowContext(ctx,
		r.sql("SELECT 1 FROM bookings WHERE hall_id = ? AND {date} = ? AND time_slot = ? LIMIT 1"),
		hallID, date, string(slot)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CodeExists reports whether a booking code is already in use.
func (r *BookingRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var one int
	err := r.conn(ctx).QueryRowContext(ctx,
		r.sql("SELECT 1 FROM bookings WHERE code = ? LIMIT 1"), code).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Insert stores b and sets its ID.  Unique violations are translated to
// ErrSlotTaken or ErrDuplicateCode depending on the violated index.
func (r *BookingRepo) Insert(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (code, hall_id, user_id, {date}, time_slot, client_name, phone, address,
                                  total_amount, advance_paid, balance, status, created_at, confirmed_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := r.d.InsertID(ctx, r.conn(ctx), strings.ReplaceAll(q, "{date}", r.d.Quote("date")),
		b.Code, b.HallID, b.UserID, b.Date, string(b.Slot), b.ClientName, b.Phone, b.Address,
		b.TotalAmount, b.AdvancePaid, b.Balance, string(b.Status), b.CreatedAt, nullTime(b.ConfirmedAt))
	if err != nil {
		if name, dup := database.UniqueViolation(err); dup {
			if name == schema.UniqueBookingCode {
				return ErrDuplicateCode
			}
			// The slot index is the only other unique key on bookings.
			return ErrSlotTaken
		}
		return err
	}
	b.ID = id
	return nil
}

// GetByID returns the booking with its hall name, or ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.BookingView, error) {
	row := r.conn(ctx).QueryRowContext(ctx, r.sql(bookingViewSelect+" WHERE b.id = ?"), id)
	v, err := scanBookingView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BookingView{}, ErrBookingNotFound
	}
	return v, err
}

// Lock takes a row lock on the booking until the surrounding transaction
// ends, so a read-modify-write of the row cannot interleave with another.
// ErrBookingNotFound when the row does not exist.  Outside a transaction
// the lock is released immediately.
func (r *BookingRepo) Lock(ctx context.Context, id uint64) error {
	var got uint64
	err := r.conn(ctx).QueryRowContext(ctx, r.sql("SELECT id FROM bookings WHERE id = ? FOR UPDATE"), id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBookingNotFound
	}
	return err
}

// UpdateDetails writes the mutable client and money columns.  Hall, date,
// slot, code and owner are never touched.
func (r *BookingRepo) UpdateDetails(ctx context.Context, b model.Booking) error {
	res, err := r.conn(ctx).ExecContext(ctx,
		r.sql(`UPDATE bookings
               SET client_name = ?, phone = ?, address = ?, total_amount = ?, advance_paid = ?, balance = ?
               WHERE id = ?`),
		b.ClientName, b.Phone, b.Address, b.TotalAmount, b.AdvancePaid, b.Balance, b.ID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// MarkConfirmed sets status=confirmed and stamps confirmed_at.  Calling it
// on a confirmed booking re-stamps the time.
func (r *BookingRepo) MarkConfirmed(ctx context.Context, id uint64, at time.Time) error {
	res, err := r.conn(ctx).ExecContext(ctx,
		r.sql("UPDATE bookings SET status = ?, confirmed_at = ? WHERE id = ?"),
		string(model.StatusConfirmed), at.UTC(), id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// Delete removes a booking.  ErrBookingNotFound when no row matched.
func (r *BookingRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.conn(ctx).ExecContext(ctx, r.sql("DELETE FROM bookings WHERE id = ?"), id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// ListQuery selects bookings for listings and exports.  Zero values mean
// "no restriction".
type ListQuery struct {
	HallID  uint64
	OwnerID uint64
	From    model.Date // inclusive
	To      model.Date // exclusive
	Term    string     // substring of code, client name or phone
}

// List returns the bookings matching q ordered by date, slot and id.
// An empty result is an empty slice, never an error.
func (r *BookingRepo) List(ctx context.Context, q ListQuery) ([]model.BookingView, error) {
	where := []string{}
	args := []any{}

	if q.HallID != 0 {
		where = append(where, "b.hall_id = ?")
		args = append(args, q.HallID)
	}
	if q.OwnerID != 0 {
		where = append(where, "b.user_id = ?")
		args = append(args, q.OwnerID)
	}
	if !q.From.IsZero() {
		where = append(where, "b.{date} >= ?")
		args = append(args, q.From)
	}
	if !q.To.IsZero() {
		where = append(where, "b.{date} < ?")
		args = append(args, q.To)
	}
	if term := strings.ToLower(strings.TrimSpace(q.Term)); term != "" {
		like := "%" + escapeLike(term) + "%"
		where = append(where, "(LOWER(b.code) LIKE ? OR LOWER(b.client_name) LIKE ? OR LOWER(b.phone) LIKE ?)")
		args = append(args, like, like, like)
	}

	query := bookingViewSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY b.{date}, b.time_slot, b.id"

	rows, err := r.conn(ctx).QueryContext(ctx, r.sql(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.BookingView{}
	for rows.Next() {
		v, err := scanBookingView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBookingView(row rowScanner) (model.BookingView, error) {
	var (
		v           model.BookingView
		slot        string
		status      string
		confirmedAt sql.NullTime
	)
	err := row.Scan(
		&v.ID, &v.Code, &v.HallID, &v.UserID, &v.Date, &slot,
		&v.ClientName, &v.Phone, &v.Address,
		&v.TotalAmount, &v.AdvancePaid, &v.Balance,
		&status, &v.CreatedAt, &confirmedAt, &v.HallName,
	)
	if err != nil {
		return model.BookingView{}, err
	}
	v.Slot = model.Slot(slot)
	v.Status = model.Status(status)
	v.CreatedAt = v.CreatedAt.UTC()
	if confirmedAt.Valid {
		t := confirmedAt.Time.UTC()
		v.ConfirmedAt = &t
	}
	return v, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
