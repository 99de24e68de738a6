// Package schema declares the relational schema of the application in
// code.  Migrations, backups and restores all derive their DDL and column
// lists from these definitions, so no code path ever parses SQL text.
package schema

// Version is bumped whenever a table definition below changes.  Backups
// record it and restores refuse archives from a different version.
const Version = 1

// ColumnType is an engine independent column type.
type ColumnType string

const (
	TypeID        ColumnType = "id"        // auto increment primary key
	TypeRef       ColumnType = "ref"       // reference to another table's id
	TypeString    ColumnType = "string"    // VARCHAR(Size)
	TypeInt       ColumnType = "int"       // 64 bit signed integer
	TypeDate      ColumnType = "date"      // calendar date
	TypeTimestamp ColumnType = "timestamp" // instant, stored in UTC
)

// Column describes one column.  Default is a SQL literal valid on every
// supported engine (e.g. '0' or "'pending'").
type Column struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Size     int        `json:"size,omitempty"`
	Nullable bool       `json:"nullable,omitempty"`
	Default  string     `json:"default,omitempty"`
}

// Index is a secondary index; unique indexes are rendered as named
// UNIQUE constraints so their names show up in driver errors.
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique,omitempty"`
}

// ForeignKey links Column to RefTable.id.
type ForeignKey struct {
	Name     string `json:"name"`
	Column   string `json:"column"`
	RefTable string `json:"ref_table"`
	OnDelete string `json:"on_delete,omitempty"`
}

// Table is a full table definition.  The primary key is always the
// TypeID column named "id".
type Table struct {
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	Indexes     []Index      `json:"indexes,omitempty"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`
}

// Constraint names referenced by the repositories.
const (
	UniqueBookingSlot = "uq_bookings_slot"
	UniqueBookingCode = "uq_bookings_code"
	UniqueUsername    = "uq_users_username"
	UniqueHallName    = "uq_halls_name"
)

var Users = Table{
	Name: "users",
	Columns: []Column{
		{Name: "id", Type: TypeID},
		{Name: "username", Type: TypeString, Size: 150},
		{Name: "name", Type: TypeString, Size: 150},
		{Name: "password_hash", Type: TypeString, Size: 256},
		{Name: "role", Type: TypeString, Size: 50, Default: "'user'"},
		{Name: "created_at", Type: TypeTimestamp},
	},
	Indexes: []Index{
		{Name: UniqueUsername, Columns: []string{"username"}, Unique: true},
	},
}

var Halls = Table{
	Name: "halls",
	Columns: []Column{
		{Name: "id", Type: TypeID},
		{Name: "name", Type: TypeString, Size: 100},
	},
	Indexes: []Index{
		{Name: UniqueHallName, Columns: []string{"name"}, Unique: true},
	},
}

var Bookings = Table{
	Name: "bookings",
	Columns: []Column{
		{Name: "id", Type: TypeID},
		{Name: "code", Type: TypeString, Size: 6},
		{Name: "hall_id", Type: TypeRef},
		{Name: "user_id", Type: TypeRef},
		{Name: "date", Type: TypeDate},
		{Name: "time_slot", Type: TypeString, Size: 10},
		{Name: "client_name", Type: TypeString, Size: 100},
		{Name: "phone", Type: TypeString, Size: 20},
		{Name: "address", Type: TypeString, Size: 200},
		{Name: "total_amount", Type: TypeInt, Default: "0"},
		{Name: "advance_paid", Type: TypeInt, Default: "0"},
		{Name: "balance", Type: TypeInt, Default: "0"},
		{Name: "status", Type: TypeString, Size: 20, Default: "'pending'"},
		{Name: "created_at", Type: TypeTimestamp},
		{Name: "confirmed_at", Type: TypeTimestamp, Nullable: true},
	},
	Indexes: []Index{
		{Name: UniqueBookingCode, Columns: []string{"code"}, Unique: true},
		{Name: UniqueBookingSlot, Columns: []string{"hall_id", "date", "time_slot"}, Unique: true},
		{Name: "ix_bookings_hall_date", Columns: []string{"hall_id", "date"}},
		{Name: "ix_bookings_user", Columns: []string{"user_id"}},
	},
	ForeignKeys: []ForeignKey{
		{Name: "fk_bookings_hall", Column: "hall_id", RefTable: "halls"},
		{Name: "fk_bookings_user", Column: "user_id", RefTable: "users"},
	},
}

var RefreshTokens = Table{
	Name: "refresh_tokens",
	Columns: []Column{
		{Name: "id", Type: TypeID},
		{Name: "user_id", Type: TypeRef},
		{Name: "token_hash", Type: TypeString, Size: 64},
		{Name: "expires_at", Type: TypeTimestamp},
		{Name: "revoked_at", Type: TypeTimestamp, Nullable: true},
		{Name: "created_at", Type: TypeTimestamp},
	},
	Indexes: []Index{
		{Name: "uq_refresh_tokens_hash", Columns: []string{"token_hash"}, Unique: true},
		{Name: "ix_refresh_tokens_user", Columns: []string{"user_id"}},
	},
	ForeignKeys: []ForeignKey{
		{Name: "fk_refresh_tokens_user", Column: "user_id", RefTable: "users", OnDelete: "CASCADE"},
	},
}

// All lists every table in creation order, parents first.
var All = []Table{Users, Halls, Bookings, RefreshTokens}

// BackupTables is the allow-list of tables copied by backup and restore,
// parents first.  Deleting happens in reverse order.
var BackupTables = []Table{Halls, Users, Bookings}

// Lookup finds a table of the backup allow-list by name.
func Lookup(name string) (Table, bool) {
	for _, t := range BackupTables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Column finds a column by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Equal compares two definitions field by field.  Nil and empty slices
// are treated alike, which matters after a JSON round trip.
func (t Table) Equal(o Table) bool {
	if t.Name != o.Name || len(t.Columns) != len(o.Columns) ||
		len(t.Indexes) != len(o.Indexes) || len(t.ForeignKeys) != len(o.ForeignKeys) {
		return false
	}
	for i := range t.Columns {
		if t.Columns[i] != o.Columns[i] {
			return false
		}
	}
	for i := range t.Indexes {
		a, b := t.Indexes[i], o.Indexes[i]
		if a.Name != b.Name || a.Unique != b.Unique || len(a.Columns) != len(b.Columns) {
			return false
		}
		for j := range a.Columns {
			if a.Columns[j] != b.Columns[j] {
				return false
			}
		}
	}
	for i := range t.ForeignKeys {
		if t.ForeignKeys[i] != o.ForeignKeys[i] {
			return false
		}
	}
	return true
}
