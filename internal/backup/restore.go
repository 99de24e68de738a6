package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/hall-calendar/internal/database"
	"github.com/iliyamo/hall-calendar/internal/model"
	"github.com/iliyamo/hall-calendar/internal/schema"
)

// RestoreResult lists how many rows were loaded per table and which
// tables of the archive were ignored.
type RestoreResult struct {
	Tables  map[string]int `json:"tables"`
	Skipped []string       `json:"skipped,omitempty"`
}

// tablePlan holds the converted insert arguments of one table, in
// declared column order.
type tablePlan struct {
	table schema.Table
	rows  [][]any
}

// Restore replaces the content of the allow-listed tables with the
// archive.  Everything is validated before the database is touched.
// Phase one creates missing tables; phase two swaps the data in a single
// transaction.  On MySQL phase one cannot be rolled back, which is
// harmless because it only creates tables that do not exist yet.
func (s *Service) Restore(ctx context.Context, a Archive) (RestoreResult, error) {
	plans, res, err := s.prepare(a)
	if err != nil {
		return res, err
	}
	for _, name := range res.Skipped {
		s.log.WarnContext(ctx, "restore: table not in allow-list, skipped", "table", name)
	}

	if err := s.createTables(ctx); err != nil {
		return res, err
	}

	if err := s.loadData(ctx, plans); err != nil {
		return res, err
	}
	for _, p := range plans {
		res.Tables[p.table.Name] = len(p.rows)
	}
	s.log.InfoContext(ctx, "restore completed", "id", a.Manifest.ID, "tables", res.Tables)
	return res, nil
}

// RestoreData loads a bare data document, as used by seeding.  It runs the
// same validation and data phase as Restore.
func (s *Service) RestoreData(ctx context.Context, data Data) (RestoreResult, error) {
	return s.Restore(ctx, Archive{
		Schema: SchemaDoc{Version: schema.Version},
		Data:   data,
	})
}

func (s *Service) prepare(a Archive) ([]tablePlan, RestoreResult, error) {
	res := RestoreResult{Tables: map[string]int{}}
	verr := func(table string, err error) error {
		return &RestoreError{Phase: PhaseValidate, Table: table, Err: err}
	}

	if a.Schema.Version != schema.Version {
		return nil, res, verr("", fmt.Errorf("%w: archive %d, current %d", ErrVersion, a.Schema.Version, schema.Version))
	}
	if a.Manifest.SchemaVersion != 0 && a.Manifest.SchemaVersion != schema.Version {
		return nil, res, verr("", fmt.Errorf("%w: manifest %d, current %d", ErrVersion, a.Manifest.SchemaVersion, schema.Version))
	}

	skipped := map[string]bool{}
	for _, archived := range a.Schema.Tables {
		current, ok := schema.Lookup(archived.Name)
		if !ok {
			skipped[archived.Name] = true
			continue
		}
		if !current.Equal(archived) {
			return nil, res, verr(archived.Name, ErrSchemaMismatch)
		}
	}
	for name := range a.Data {
		if _, ok := schema.Lookup(name); !ok {
			skipped[name] = true
		}
	}
	for name := range skipped {
		res.Skipped = append(res.Skipped, name)
	}
	sort.Strings(res.Skipped)

	plans := make([]tablePlan, 0, len(schema.BackupTables))
	for _, t := range schema.BackupTables {
		p := tablePlan{table: t}
		for i, row := range a.Data[t.Name] {
			args, err := convertRow(t, row)
			if err != nil {
				return nil, res, verr(t.Name, fmt.Errorf("row %d: %w", i, err))
			}
			p.rows = append(p.rows, args)
		}
		plans = append(plans, p)
	}
	return plans, res, nil
}

func (s *Service) createTables(ctx context.Context) error {
	current := ""
	err := database.WithTx(ctx, s.db, nil, func(ctx context.Context) error {
		q := database.Conn(ctx, s.db)
		for _, t := range schema.BackupTables {
			current = t.Name
			if err := schema.Create(ctx, q, s.d, []schema.Table{t}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &RestoreError{Phase: PhaseSchema, Table: current, Err: err}
	}
	return nil
}

func (s *Service) loadData(ctx context.Context, plans []tablePlan) error {
	current := ""
	err := database.WithTx(ctx, s.db, nil, func(ctx context.Context) error {
		q := database.Conn(ctx, s.db)
		if err := s.lockTables(ctx, q); err != nil {
			return err
		}
		for i := len(plans) - 1; i >= 0; i-- {
			current = plans[i].table.Name
			if _, err := q.ExecContext(ctx, "DELETE FROM "+s.d.Quote(current)); err != nil {
				return fmt.Errorf("delete: %w", err)
			}
		}
		for _, p := range plans {
			current = p.table.Name
			stmt := s.d.Rebind(insertSQL(s.d, p.table))
			for i, args := range p.rows {
				if _, err := q.ExecContext(ctx, stmt, args...); err != nil {
					return fmt.Errorf("insert row %d: %w", i, err)
				}
			}
		}
		if s.d.Kind == database.KindPostgres {
			for _, p := range plans {
				current = p.table.Name
				if _, err := q.ExecContext(ctx, resetSequenceSQL(s.d, p.table.Name)); err != nil {
					return fmt.Errorf("reset id sequence: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return &RestoreError{Phase: PhaseData, Table: current, Err: err}
	}
	return nil
}

// lockTables keeps writers out until the swap commits.  PostgreSQL takes
// table locks; MySQL locks every existing row, since LOCK TABLES would
// end the transaction.
func (s *Service) lockTables(ctx context.Context, q database.Querier) error {
	names := make([]string, 0, len(schema.BackupTables))
	for i := len(schema.BackupTables) - 1; i >= 0; i-- {
		names = append(names, s.d.Quote(schema.BackupTables[i].Name))
	}
	if s.d.Kind == database.KindPostgres {
		_, err := q.ExecContext(ctx, "LOCK TABLE "+strings.Join(names, ", ")+" IN ACCESS EXCLUSIVE MODE")
		if err != nil {
			return fmt.Errorf("lock tables: %w", err)
		}
		return nil
	}
	for _, name := range names {
		rows, err := q.QueryContext(ctx, "SELECT "+s.d.Quote("id")+" FROM "+name+" FOR UPDATE")
		if err != nil {
			return fmt.Errorf("lock %s: %w", name, err)
		}
		var id int64
		for rows.Next() && err == nil {
			err = rows.Scan(&id)
		}
		if err == nil {
			err = rows.Err()
		}
		_ = rows.Close()
		if err != nil {
			return fmt.Errorf("lock %s: %w", name, err)
		}
	}
	return nil
}

func insertSQL(d database.Dialect, t schema.Table) string {
	cols := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = d.Quote(c.Name)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(t.Name), strings.Join(cols, ", "), strings.Join(marks, ", "))
}

// resetSequenceSQL moves the serial sequence past the restored ids.
func resetSequenceSQL(d database.Dialect, table string) string {
	return fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)",
		table, d.Quote(table))
}

// convertRow orders the row values by the declared columns and converts
// each one to a driver value.
func convertRow(t schema.Table, row Row) ([]any, error) {
	for name := range row {
		if _, ok := t.Column(name); !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownColumn, name)
		}
	}
	args := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		raw, present := row[c.Name]
		if !present {
			v, err := missingValue(c)
			if err != nil {
				return nil, err
			}
			args[i] = v
			continue
		}
		v, err := convertValue(c, raw)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func missingValue(c schema.Column) (any, error) {
	switch {
	case c.Nullable:
		return nil, nil
	case c.Default != "":
		return convertValue(c, strings.Trim(c.Default, "'"))
	}
	return nil, fmt.Errorf("%w: column %q is missing", ErrBadValue, c.Name)
}

func convertValue(c schema.Column, raw any) (any, error) {
	if raw == nil {
		if c.Nullable {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: column %q is not nullable", ErrBadValue, c.Name)
	}
	bad := func(detail string) error {
		return fmt.Errorf("%w: column %q: %s", ErrBadValue, c.Name, detail)
	}

	switch c.Type {
	case schema.TypeID, schema.TypeRef, schema.TypeInt:
		n, ok := toInt64(raw)
		if !ok {
			return nil, bad(fmt.Sprintf("want integer, got %v", raw))
		}
		if c.Type != schema.TypeInt && n <= 0 {
			return nil, bad("ids must be positive")
		}
		return n, nil
	case schema.TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, bad(fmt.Sprintf("want string, got %T", raw))
		}
		if c.Size > 0 && len([]rune(s)) > c.Size {
			return nil, bad(fmt.Sprintf("longer than %d characters", c.Size))
		}
		return s, nil
	case schema.TypeDate:
		s, ok := raw.(string)
		if !ok {
			return nil, bad(fmt.Sprintf("want date string, got %T", raw))
		}
		d, err := model.ParseDate(s)
		if err != nil {
			return nil, bad(err.Error())
		}
		return d.Time, nil
	case schema.TypeTimestamp:
		switch v := raw.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			t, err := time.Parse(TimestampLayout, v)
			if err != nil {
				return nil, bad(err.Error())
			}
			return t.UTC(), nil
		}
		return nil, bad(fmt.Sprintf("want timestamp string, got %T", raw))
	}
	return nil, bad("unsupported column type " + string(c.Type))
}

func toInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uint64:
		return int64(v), v <= math.MaxInt64
	case float64:
		return int64(v), v == math.Trunc(v) && math.Abs(v) < 1<<53
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}
