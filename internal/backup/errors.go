// Package backup dumps the allow-listed tables into a single zip archive
// and restores them in two transactional phases.  Table structure always
// comes from the schema package; archives carry it as JSON for checking
// only, and no DDL text is ever parsed.
package backup

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArchive is returned for archives missing a member or
	// holding undecodable JSON.
	ErrInvalidArchive = errors.New("invalid backup archive")

	// ErrVersion is returned when an archive was written for a different
	// schema version.
	ErrVersion = errors.New("unsupported schema version")

	// ErrSchemaMismatch is returned when an allow-listed table in the
	// archive differs from the current definition.
	ErrSchemaMismatch = errors.New("table definition differs from current schema")

	// ErrUnknownColumn is returned for a row key that is not a declared
	// column.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrBadValue is returned when a value cannot be converted to its
	// column type, or a required column is missing.
	ErrBadValue = errors.New("bad column value")
)

// Restore phases reported in RestoreError.
const (
	PhaseValidate = "validate"
	PhaseSchema   = "schema"
	PhaseData     = "data"
)

// RestoreError reports where a restore stopped.  The phase it names was
// rolled back as a whole.
type RestoreError struct {
	Phase string
	Table string
	Err   error
}

func (e *RestoreError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("restore %s phase failed on table %s: %v", e.Phase, e.Table, e.Err)
	}
	return fmt.Sprintf("restore %s phase failed: %v", e.Phase, e.Err)
}

func (e *RestoreError) Unwrap() error { return e.Err }
