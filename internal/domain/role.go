package domain

import "fmt"

// Role enumerates the portal populations. The zero value means no role
// (an unauthenticated caller).
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdminStaff Role = "admin_staff"
	RoleUMKMOwner  Role = "umkm_owner"
)

// Roles lists every valid role.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleAdminStaff, RoleUMKMOwner}
}

// ParseRole converts a wire value into a Role, rejecting unknown values.
func ParseRole(value string) (Role, error) {
	role := Role(value)
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", value)
	}
	return role, nil
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdminStaff, RoleUMKMOwner:
		return true
	default:
		return false
	}
}

// IsStaff reports whether r belongs to the back-office population.
func (r Role) IsStaff() bool {
	switch r {
	case RoleSuperAdmin, RoleAdminStaff:
		return true
	case RoleUMKMOwner:
		return false
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}
