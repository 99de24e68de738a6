package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// Kind identifies a supported SQL engine.
type Kind string

const (
	KindMySQL    Kind = "mysql"
	KindPostgres Kind = "postgres"
)

// Dialect captures the engine specific bits of SQL the repositories and
// the backup code need.  Queries are written with ? placeholders and
// passed through Rebind.
type Dialect struct {
	Kind Kind
}

var (
	MySQL    = Dialect{Kind: KindMySQL}
	Postgres = Dialect{Kind: KindPostgres}
)

// DialectFor maps a DB_DRIVER value onto a dialect.  Empty means MySQL.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "mysql":
		return MySQL, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("unsupported DB_DRIVER %q", driver)
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d.Kind == KindPostgres {
		return "pgx"
	}
	return "mysql"
}

// Rebind rewrites ? placeholders into $1..$n for PostgreSQL.  Queries in
// this repository never contain a literal question mark.
func (d Dialect) Rebind(q string) string {
	if d.Kind != KindPostgres || !strings.Contains(q, "?") {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// Quote quotes an identifier.
func (d Dialect) Quote(ident string) string {
	if d.Kind == KindPostgres {
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// ReturningID reports whether inserts fetch the new key with
// RETURNING id instead of LastInsertId.
func (d Dialect) ReturningID() bool { return d.Kind == KindPostgres }

// TransactionalDDL reports whether CREATE TABLE participates in the
// surrounding transaction.  MySQL commits implicitly on DDL.
func (d Dialect) TransactionalDDL() bool { return d.Kind == KindPostgres }

// UniqueViolation reports whether err is a unique key violation and, when
// the driver exposes it, the name of the violated constraint.
func UniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return mysqlKeyName(myErr.Message), true
	}
	return "", false
}

// mysqlKeyName extracts the key from "Duplicate entry 'x' for key
// 'bookings.uq_bookings_slot'".  MySQL 8 prefixes the table name.
func mysqlKeyName(msg string) string {
	const marker = "for key '"
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return ""
	}
	key := strings.TrimSuffix(msg[i+len(marker):], "'")
	if dot := strings.LastIndex(key, "."); dot >= 0 {
		key = key[dot+1:]
	}
	return key
}

// InsertID executes an INSERT written with ? placeholders and returns the
// generated id.
func (d Dialect) InsertID(ctx context.Context, q Querier, query string, args ...any) (uint64, error) {
	if d.ReturningID() {
		var id int64
		if err := q.QueryRowContext(ctx, d.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return uint64(id), nil
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}
