package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/hall-calendar/internal/clock"
	"github.com/iliyamo/hall-calendar/internal/database"
	"github.com/iliyamo/hall-calendar/internal/model"
	"github.com/iliyamo/hall-calendar/internal/schema"
)

// TimestampLayout is used for timestamp values in data.json.
const TimestampLayout = time.RFC3339Nano

// Service takes and restores backups of the allow-listed tables.
type Service struct {
	db    *sql.DB
	d     database.Dialect
	clock clock.Clock
	log   *slog.Logger
}

func NewService(db *sql.DB, d database.Dialect, clk clock.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, d: d, clock: clk, log: logger}
}

// snapshotTx makes every table dump see the same snapshot.  PostgreSQL
// defaults to READ COMMITTED, where each statement takes a new one.
var snapshotTx = &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead}

// Snapshot reads every allow-listed table inside one read-only
// repeatable-read transaction, so the archive is a consistent point in
// time.
func (s *Service) Snapshot(ctx context.Context) (Archive, error) {
	data := Data{}
	counts := map[string]int{}
	err := database.WithTx(ctx, s.db, snapshotTx, func(ctx context.Context) error {
		q := database.Conn(ctx, s.db)
		for _, t := range schema.BackupTables {
			rows, err := s.dumpTable(ctx, q, t)
			if err != nil {
				return fmt.Errorf("dump %s: %w", t.Name, err)
			}
			data[t.Name] = rows
			counts[t.Name] = len(rows)
		}
		return nil
	})
	if err != nil {
		return Archive{}, err
	}
	return Archive{
		Manifest: Manifest{
			ID:            uuid.NewString(),
			FormatVersion: FormatVersion,
			SchemaVersion: schema.Version,
			Dialect:       string(s.d.Kind),
			CreatedAt:     s.clock.Now().UTC(),
			Tables:        counts,
		},
		Schema: SchemaDoc{Version: schema.Version, Tables: schema.BackupTables},
		Data:   data,
	}, nil
}

// Backup writes a snapshot archive to w and returns its manifest.
func (s *Service) Backup(ctx context.Context, w io.Writer) (Manifest, error) {
	a, err := s.Snapshot(ctx)
	if err != nil {
		return Manifest{}, err
	}
	if err := WriteArchive(w, a, s.d); err != nil {
		return Manifest{}, fmt.Errorf("write archive: %w", err)
	}
	s.log.InfoContext(ctx, "backup created", "id", a.Manifest.ID, "tables", a.Manifest.Tables)
	return a.Manifest, nil
}

func (s *Service) dumpTable(ctx context.Context, q database.Querier, t schema.Table) ([]Row, error) {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = s.d.Quote(c.Name)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(cols, ", "), s.d.Quote(t.Name), s.d.Quote("id"))
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		dest := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			dest[i] = scanTarget(c.Type)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(Row, len(t.Columns))
		for i, c := range t.Columns {
			row[c.Name] = exportValue(dest[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanTarget(typ schema.ColumnType) any {
	switch typ {
	case schema.TypeID, schema.TypeRef, schema.TypeInt:
		return new(sql.NullInt64)
	case schema.TypeDate:
		return new(nullDate)
	case schema.TypeTimestamp:
		return new(sql.NullTime)
	default:
		return new(sql.NullString)
	}
}

// exportValue turns a scan target into its data.json representation.
func exportValue(v any) any {
	switch v := v.(type) {
	case *sql.NullInt64:
		if v.Valid {
			return v.Int64
		}
	case *sql.NullString:
		if v.Valid {
			return v.String
		}
	case *nullDate:
		if v.Valid {
			return v.Date.String()
		}
	case *sql.NullTime:
		if v.Valid {
			return v.Time.UTC().Format(TimestampLayout)
		}
	}
	return nil
}

// nullDate scans a DATE column through model.Date, which accepts both
// time.Time and the textual forms drivers return.
type nullDate struct {
	Date  model.Date
	Valid bool
}

func (n *nullDate) Scan(src any) error {
	if src == nil {
		n.Date, n.Valid = model.Date{}, false
		return nil
	}
	n.Valid = true
	return n.Date.Scan(src)
}
