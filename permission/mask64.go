package permission

import "strings"

// RoleSet is a 64-bit mask with one bit per [Role].
type RoleSet uint64

// NewRoleSet returns a set containing roles. Unknown roles are ignored.
func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s.Set(r)
	}
	return s
}

// AnyRole contains every platform role.
func AnyRole() RoleSet {
	return NewRoleSet(Roles()...)
}

func (s RoleSet) Has(r Role) bool {
	bit := r.bit()
	if bit < 0 || bit >= 64 {
		return false
	}
	return (s & (1 << bit)) != 0
}

func (s *RoleSet) Set(r Role) {
	bit := r.bit()
	if bit < 0 || bit >= 64 {
		return
	}
	*s |= (1 << bit)
}

func (s *RoleSet) Clear(r Role) {
	bit := r.bit()
	if bit < 0 || bit >= 64 {
		return
	}
	*s &^= (1 << bit)
}

func (s RoleSet) Empty() bool {
	return s == 0
}

// Roles returns the members of s in bit order.
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(roleBits))
	for _, r := range Roles() {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s RoleSet) String() string {
	roles := s.Roles()
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func (s RoleSet) Raw() uint64 {
	return uint64(s)
}
