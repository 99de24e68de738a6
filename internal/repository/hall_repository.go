package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/hall-calendar/internal/database"
	"github.com/iliyamo/hall-calendar/internal/model"
)

// HallRepo provides lookups over the halls table.  Halls are created by
// the seeder only.
type HallRepo struct {
	db *sql.DB
	d  database.Dialect
}

// NewHallRepo constructs a HallRepo with the given DB handle.
func NewHallRepo(db *sql.DB, d database.Dialect) *HallRepo {
	return &HallRepo{db: db, d: d}
}

// Create inserts a hall and returns it with its id.
func (r *HallRepo) Create(ctx context.Context, name string) (model.Hall, error) {
	name = strings.TrimSpace(name)
	id, err := r.d.InsertID(ctx, database.Conn(ctx, r.db), "INSERT INTO halls (name) VALUES (?)", name)
	if err != nil {
		if _, dup := database.UniqueViolation(err); dup {
			return model.Hall{}, ErrHallExists
		}
		return model.Hall{}, err
	}
	return model.Hall{ID: id, Name: name}, nil
}

// GetByID retrieves a hall by its ID.  It returns ErrHallNotFound when
// no row is found.
func (r *HallRepo) GetByID(ctx context.Context, id uint64) (model.Hall, error) {
	var h model.Hall
	err := database.Conn(ctx, r.db).QueryRowContext(ctx,
		r.d.Rebind("SELECT id, name FROM halls WHERE id = ?"), id).Scan(&h.ID, &h.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Hall{}, ErrHallNotFound
		}
		return model.Hall{}, err
	}
	return h, nil
}

// List returns every hall ordered by id.
func (r *HallRepo) List(ctx context.Context) ([]model.Hall, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, "SELECT id, name FROM halls ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Hall{}
	for rows.Next() {
		var h model.Hall
		if err := rows.Scan(&h.ID, &h.Name); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ListWithCounts returns every hall with its total number of bookings.
// Halls without bookings report zero.
func (r *HallRepo) ListWithCounts(ctx context.Context) ([]model.HallSummary, error) {
	const q = `SELECT h.id, h.name, COUNT(b.id)
               FROM halls h
               LEFT JOIN bookings b ON b.hall_id = h.id
               GROUP BY h.id, h.name
               ORDER BY h.id`
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.HallSummary{}
	for rows.Next() {
		var s model.HallSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Bookings); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Count returns the number of halls.
func (r *HallRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, "SELECT COUNT(*) FROM halls").Scan(&n)
	return n, err
}
