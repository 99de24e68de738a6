package policy

import (
	"errors"
	"testing"

	"github.com/iliyamo/hall-calendar/internal/model"
)

func TestAuthorize(t *testing.T) {
	t.Parallel()

	admin := model.Actor{UserID: 1, Role: model.RoleAdmin}
	owner := model.Actor{UserID: 2, Role: model.RoleUser}
	other := model.Actor{UserID: 3, Role: model.RoleUser}
	anon := model.Actor{}
	forged := model.Actor{UserID: 4, Role: model.Role("superuser")}

	tests := []struct {
		name    string
		actor   model.Actor
		op      Operation
		ownerID uint64
		allowed bool
	}{
		{"anonymous may browse", anon, Browse, NoOwner, true},
		{"anonymous may not create", anon, Create, NoOwner, false},
		{"anonymous may not read", anon, Read, 2, false},
		{"user may create", owner, Create, NoOwner, true},
		{"owner reads own booking", owner, Read, 2, true},
		{"owner updates own booking", owner, Update, 2, true},
		{"owner confirms own booking", owner, Confirm, 2, true},
		{"owner may not delete own booking", owner, Delete, 2, false},
		{"other user may not read", other, Read, 2, false},
		{"other user may not update", other, Update, 2, false},
		{"other user may not confirm", other, Confirm, 2, false},
		{"user may not export", owner, Export, NoOwner, false},
		{"user may not back up", owner, Backup, NoOwner, false},
		{"user may not manage users", owner, ManageUsers, NoOwner, false},
		{"user read without owner is refused", owner, Read, NoOwner, false},
		{"admin reads any booking", admin, Read, 2, true},
		{"admin updates any booking", admin, Update, 2, true},
		{"admin confirms any booking", admin, Confirm, 2, true},
		{"admin deletes", admin, Delete, 2, true},
		{"admin exports", admin, Export, NoOwner, true},
		{"admin backs up", admin, Backup, NoOwner, true},
		{"unknown role is anonymous", forged, Read, 4, false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := Authorize(tc.actor, tc.op, tc.ownerID)
			if tc.allowed && err != nil {
				t.Fatalf("expected allowed, got %v", err)
			}
			if !tc.allowed && !errors.Is(err, ErrAccessDenied) {
				t.Fatalf("expected ErrAccessDenied, got %v", err)
			}
			if Allowed(tc.actor, tc.op, tc.ownerID) != tc.allowed {
				t.Fatalf("Allowed disagrees with Authorize")
			}
		})
	}
}

func TestOperationString(t *testing.T) {
	if Delete.String() != "delete" {
		t.Fatalf("unexpected name %q", Delete.String())
	}
	if Operation(99).String() != "unknown" {
		t.Fatalf("expected unknown for out of range operation")
	}
}
