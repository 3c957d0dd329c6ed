// Package entity contains the core business objects of the project.
package entity

import "strings"

// Role represents the authority level granted to an account.
type Role string

const (
	// RoleUser indicates a regular account.
	RoleUser Role = "USER"
	// RoleAdmin indicates an administrator account.
	RoleAdmin Role = "ADMIN"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the Role is a valid value.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole converts a case-insensitive role name into a Role.
// The boolean is false when the name is not a known role.
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))

	return role, role.IsValid()
}
