package models

// Role is a member's role within an organization.
type Role string

// Roles ordered from most to least privileged.
const (
	RoleOwner  Role = "owner"  // full control, exactly one per organization
	RoleAdmin  Role = "admin"  // manages members below admin
	RoleMember Role = "member" // no management rights
)

// ParseRole converts a role string from the wire to a Role.
// Unknown or empty values map to RoleMember (least privilege).
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleOwner:
		return RoleOwner
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleMember
	}
}

// Rank returns the privilege level of the role, higher is more privileged.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	default:
		return 1
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

func (r Role) String() string {
	return string(r)
}
