package domain

import "fmt"

// Role is the capability level carried by a signed-in profile. It is a UX
// filter only; the backend's row-level security is the real boundary.
type Role string

const (
	RoleUnitHead    Role = "unit_head"
	RoleUnitPastor  Role = "unit_pastor"
	RoleAdminPastor Role = "admin_pastor"
	RoleEvangelist  Role = "evangelist"
	RoleSMR         Role = "smr" // Set Man Representative
)

// Executive reports whether the role has cross-unit read/aggregate
// visibility. Executives review finance requests and never track
// announcement unread state.
func (r Role) Executive() bool {
	return r == RoleAdminPastor || r == RoleSMR
}

func (r Role) Valid() bool {
	switch r {
	case RoleUnitHead, RoleUnitPastor, RoleAdminPastor, RoleEvangelist, RoleSMR:
		return true
	}
	return false
}

// ParseRole validates a role string coming off the wire.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
