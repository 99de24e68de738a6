// Package database opens the SQL connection pool and hides the few
// differences between the supported engines (MySQL and PostgreSQL).
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Options describes how to reach the database.  URL, when set, is used
// verbatim as the driver DSN and the discrete fields are ignored.
type Options struct {
	Driver string // mysql | postgres
	URL    string
	User   string
	Pass   string
	Host   string
	Port   string
	Name   string
}

// DSN renders the connection string for the selected driver.
func (o Options) DSN(d Dialect) string {
	if o.URL != "" {
		return o.URL
	}
	switch d.Kind {
	case KindPostgres:
		u := url.URL{
			Scheme:   "postgres",
			Host:     o.Host + ":" + o.Port,
			Path:     "/" + o.Name,
			RawQuery: "sslmode=disable",
		}
		if o.Pass != "" {
			u.User = url.UserPassword(o.User, o.Pass)
		} else {
			u.User = url.User(o.User)
		}
		return u.String()
	default:
		auth := o.User
		if o.Pass != "" {
			auth = fmt.Sprintf("%s:%s", o.User, o.Pass)
		}
		// parseTime=true -> DATE/DATETIME scan into time.Time | loc=UTC keeps times consistent
		// clientFoundRows=true -> UPDATE reports matched rows, not changed rows
		return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
			auth, o.Host, o.Port, o.Name)
	}
}

// Open connects and verifies the connection.  It returns the pool along
// with the dialect matching the driver.
func Open(o Options) (*sql.DB, Dialect, error) {
	d, err := DialectFor(o.Driver)
	if err != nil {
		return nil, Dialect{}, err
	}
	db, err := sql.Open(d.DriverName(), o.DSN(d))
	if err != nil {
		return nil, Dialect{}, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, Dialect{}, err
	}
	return db, d, nil
}
