package model

import (
	"strings"
	"time"
)

// Role is the closed set of account roles.  Role checks live in the
// policy package; everything else only carries the value around.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole maps a stored or client-supplied role string onto the
// enumeration.  Unknown values report ok=false.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleUser:
		return RoleUser, true
	}
	return "", false
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

// User represents an account as stored in the `users` table.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Username     – unique login handle.
//	Name         – display name printed on receipts.
//	PasswordHash – bcrypt hash of the password.
//	Role         – admin or user.
//	CreatedAt    – timestamp of creation (UTC).
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	Name         string    // users.name
	PasswordHash string    // users.password_hash
	Role         Role      // users.role
	CreatedAt    time.Time // users.created_at
}

// Actor is the authenticated caller of an operation.  The zero value is
// an anonymous visitor.
type Actor struct {
	UserID uint64
	Role   Role
}

// Authenticated reports whether the actor carries a known role and id.
func (a Actor) Authenticated() bool { return a.UserID != 0 && a.Role.Valid() }

// IsAdmin reports whether the actor is an authenticated administrator.
func (a Actor) IsAdmin() bool { return a.Authenticated() && a.Role == RoleAdmin }

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the token handed to the client is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
