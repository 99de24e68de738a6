package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/hall-calendar/internal/database"
)

// CreateStatements renders the idempotent DDL for one table: the CREATE
// TABLE statement followed, on PostgreSQL, by its non-unique indexes.
func CreateStatements(d database.Dialect, t Table) []string {
	var lines []string
	for _, c := range t.Columns {
		lines = append(lines, "  "+d.Quote(c.Name)+" "+columnSQL(d, c))
	}
	lines = append(lines, "  PRIMARY KEY ("+d.Quote("id")+")")
	for _, ix := range t.Indexes {
		switch {
		case ix.Unique:
			lines = append(lines, fmt.Sprintf("  CONSTRAINT %s UNIQUE (%s)", d.Quote(ix.Name), quoteList(d, ix.Columns)))
		case d.Kind == database.KindMySQL:
			lines = append(lines, fmt.Sprintf("  KEY %s (%s)", d.Quote(ix.Name), quoteList(d, ix.Columns)))
		}
	}
	for _, fk := range t.ForeignKeys {
		line := fmt.Sprintf("  CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			d.Quote(fk.Name), d.Quote(fk.Column), d.Quote(fk.RefTable), d.Quote("id"))
		if fk.OnDelete != "" {
			line += " ON DELETE " + fk.OnDelete
		}
		lines = append(lines, line)
	}

	create := "CREATE TABLE IF NOT EXISTS " + d.Quote(t.Name) + " (\n" + strings.Join(lines, ",\n") + "\n)"
	if d.Kind == database.KindMySQL {
		create += " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
	}
	out := []string{create}
	if d.Kind == database.KindPostgres {
		for _, ix := range t.Indexes {
			if ix.Unique {
				continue
			}
			out = append(out, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
				d.Quote(ix.Name), d.Quote(t.Name), quoteList(d, ix.Columns)))
		}
	}
	return out
}

// Render concatenates the DDL of tables into one script, statements
// separated by ";\n\n".
func Render(d database.Dialect, tables []Table) string {
	var b strings.Builder
	for _, t := range tables {
		for _, stmt := range CreateStatements(d, t) {
			b.WriteString(stmt)
			b.WriteString(";\n\n")
		}
	}
	return b.String()
}

// Create executes the DDL of tables on q, in order.
func Create(ctx context.Context, q database.Querier, d database.Dialect, tables []Table) error {
	for _, t := range tables {
		for _, stmt := range CreateStatements(d, t) {
			if _, err := q.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create table %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

// Migrate creates every application table that does not exist yet.
func Migrate(ctx context.Context, db *sql.DB, d database.Dialect) error {
	return database.WithTx(ctx, db, nil, func(ctx context.Context) error {
		return Create(ctx, database.Conn(ctx, db), d, All)
	})
}

func columnSQL(d database.Dialect, c Column) string {
	var typ string
	switch c.Type {
	case TypeID:
		if d.Kind == database.KindPostgres {
			return "BIGINT GENERATED BY DEFAULT AS IDENTITY"
		}
		return "BIGINT UNSIGNED NOT NULL AUTO_INCREMENT"
	case TypeRef:
		typ = "BIGINT UNSIGNED"
		if d.Kind == database.KindPostgres {
			typ = "BIGINT"
		}
	case TypeString:
		typ = fmt.Sprintf("VARCHAR(%d)", c.Size)
	case TypeInt:
		typ = "BIGINT"
	case TypeDate:
		typ = "DATE"
	case TypeTimestamp:
		typ = "DATETIME(6)"
		if d.Kind == database.KindPostgres {
			typ = "TIMESTAMPTZ"
		}
	default:
		typ = "TEXT"
	}
	if c.Nullable {
		typ += " NULL"
	} else {
		typ += " NOT NULL"
	}
	if c.Default != "" {
		typ += " DEFAULT " + c.Default
	}
	return typ
}

func quoteList(d database.Dialect, cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = d.Quote(c)
	}
	return strings.Join(q, ", ")
}
