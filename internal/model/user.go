package model

import (
	"sort"
	"strings"
	"time"
)

// UserStatus is the moderation state of an account.
type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
	UserBanned    UserStatus = "banned"
)

// Valid reports whether s is a known status.
func (s UserStatus) Valid() bool {
	switch s {
	case UserActive, UserSuspended, UserBanned:
		return true
	}
	return false
}

// Role is one member of the closed set of platform roles.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleEmployee  Role = "employee"
	RoleAdmin     Role = "admin"
)

var roleBits = map[Role]Roles{
	RolePassenger: 1 << 0,
	RoleDriver:    1 << 1,
	RoleEmployee:  1 << 2,
	RoleAdmin:     1 << 3,
}

// Roles is a set of Role values stored as a bitmask. It maps onto a
// MySQL SET column through String and ParseRoles.
type Roles uint8

// NewRoles builds a set from the given roles. Unknown roles are ignored.
func NewRoles(roles ...Role) Roles {
	var rs Roles
	for _, r := range roles {
		rs = rs.Add(r)
	}
	return rs
}

// ParseRoles parses a comma separated list such as "passenger,driver".
func ParseRoles(s string) Roles {
	var rs Roles
	for _, p := range strings.Split(s, ",") {
		rs = rs.Add(Role(strings.ToLower(strings.TrimSpace(p))))
	}
	return rs
}

func (rs Roles) Add(r Role) Roles { return rs | roleBits[r] }

func (rs Roles) Has(r Role) bool {
	b, ok := roleBits[r]
	return ok && rs&b != 0
}

// Staff reports whether the set grants moderation rights.
func (rs Roles) Staff() bool { return rs.Has(RoleEmployee) || rs.Has(RoleAdmin) }

// List returns the members in a stable order.
func (rs Roles) List() []Role {
	out := make([]Role, 0, len(roleBits))
	for r := range roleBits {
		if rs.Has(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return roleBits[out[i]] < roleBits[out[j]] })
	return out
}

func (rs Roles) String() string {
	list := rs.List()
	parts := make([]string, len(list))
	for i, r := range list {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

// User represents a row of the `users` table.
//
// Credits is owned by the credit ledger; no other component writes it.
type User struct {
	ID           uint64     // users.id
	Email        string     // users.email (unique)
	Pseudo       string     // users.pseudo
	PasswordHash string     // users.password_hash
	Status       UserStatus // users.status
	Roles        Roles      // users.roles (SET)
	Credits      int64      // users.credits, never negative
	CreatedAt    time.Time  // users.created_at
	UpdatedAt    time.Time  // users.updated_at
}

// CanTravel reports whether the user may create or join rides.
func (u *User) CanTravel() bool { return u.Status == UserActive }
