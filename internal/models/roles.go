package models

import "strings"

// Role is the single authoritative permission level of a user.
type Role string

const (
	RoleUser     Role = "USER"
	RoleVerifier Role = "VERIFIER"
	RoleAdmin    Role = "ADMIN"
)

// Roles lists every assignable role.
var Roles = []Role{RoleUser, RoleVerifier, RoleAdmin}

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleVerifier, RoleAdmin:
		return true
	}
	return false
}

// ParseRole matches the exact upper-case role names; anything else is rejected.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.TrimSpace(value))
	return role, role.Valid()
}
