// Package policy holds the single authorization rule set of the
// application.  Handlers and services ask Authorize instead of comparing
// role strings themselves.
package policy

import (
	"errors"

	"github.com/iliyamo/hall-calendar/internal/model"
)

// ErrAccessDenied is returned for every refused operation.  It carries no
// detail about why, so callers cannot learn whether a record exists.
var ErrAccessDenied = errors.New("access denied")

// Operation names an action subject to authorization.
type Operation int

const (
	Browse      Operation = iota // hall list and calendar
	Create                       // new booking
	Read                         // booking detail, receipt, listings
	Update                       // edit client or money fields
	Confirm                      // pending -> confirmed
	Delete                       // remove a booking
	Export                       // CSV/PDF dumps of every booking
	Backup                       // backup and restore
	ManageUsers                  // create accounts
)

var opNames = [...]string{"browse", "create", "read", "update", "confirm", "delete", "export", "backup", "manage_users"}

func (op Operation) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return "unknown"
	}
	return opNames[op]
}

// NoOwner is passed as ownerID for operations that do not target a
// single owned record.
const NoOwner uint64 = 0

// Authorize decides whether actor may perform op on a resource owned by
// ownerID.
//
//   - Browse is open to everyone, including anonymous visitors.
//   - Create needs an authenticated actor.
//   - Read, Update and Confirm need the owner or an admin.
//   - Delete, Export, Backup and ManageUsers are admin only.
func Authorize(actor model.Actor, op Operation, ownerID uint64) error {
	if op == Browse {
		return nil
	}
	if !actor.Authenticated() {
		return ErrAccessDenied
	}
	if actor.IsAdmin() {
		return nil
	}
	switch op {
	case Create:
		return nil
	case Read, Update, Confirm:
		if ownerID != NoOwner && ownerID == actor.UserID {
			return nil
		}
	}
	return ErrAccessDenied
}

// Allowed is Authorize as a boolean.
func Allowed(actor model.Actor, op Operation, ownerID uint64) bool {
	return Authorize(actor, op, ownerID) == nil
}
