package permission

import (
	"fmt"
	"strings"
)

// Role is one of the three platform roles.
type Role string

const (
	// RoleStudent books sessions with mentors.
	RoleStudent Role = "student"
	// RoleMentor confirms and runs sessions.
	RoleMentor Role = "mentor"
	// RoleAdmin views platform-wide data.
	RoleAdmin Role = "admin"
)

var roleBits = map[Role]int{
	RoleStudent: 0,
	RoleMentor:  1,
	RoleAdmin:   2,
}

// Roles lists every role in bit order.
func Roles() []Role {
	return []Role{RoleStudent, RoleMentor, RoleAdmin}
}

// ParseRole normalizes s and returns the matching role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleBits[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Valid reports whether r is part of the closed role set.
func (r Role) Valid() bool {
	_, ok := roleBits[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

func (r Role) bit() int {
	if b, ok := roleBits[r]; ok {
		return b
	}
	return -1
}
