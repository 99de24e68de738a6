package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/hall-calendar/internal/database"
	"github.com/iliyamo/hall-calendar/internal/model"
	"github.com/iliyamo/hall-calendar/internal/utils"
)

type UserRepo struct {
	db *sql.DB
	d  database.Dialect
}

func NewUserRepo(db *sql.DB, d database.Dialect) *UserRepo { return &UserRepo{db: db, d: d} }

const userColumns = "id, username, name, password_hash, role, created_at"

// Create hashes the password and inserts the user.  Usernames are stored
// trimmed and lower-cased.
func (r *UserRepo) Create(ctx context.Context, username, name, password string, role model.Role, cost int) (uint64, error) {
	username = normalizeUsername(username)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	id, err := r.d.InsertID(ctx, database.Conn(ctx, r.db),
		"INSERT INTO users (username, name, password_hash, role, created_at) VALUES (?,?,?,?,?)",
		username, strings.TrimSpace(name), hash, string(role), time.Now().UTC())
	if err != nil {
		if _, dup := database.UniqueViolation(err); dup {
			return 0, ErrUsernameExists
		}
		return 0, err
	}
	return id, nil
}

// GetByUsername fetches a user by normalized username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	row := database.Conn(ctx, r.db).QueryRowContext(ctx,
		r.d.Rebind("SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1"),
		normalizeUsername(username))
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	row := database.Conn(ctx, r.db).QueryRowContext(ctx,
		r.d.Rebind("SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1"), id)
	return scanUser(row)
}

// Count returns the number of accounts.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u    model.User
		role string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Name, &u.PasswordHash, &role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	// Unknown stored roles degrade to an unauthenticated actor in policy.
	u.Role, _ = model.ParseRole(role)
	return u, nil
}

func normalizeUsername(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
