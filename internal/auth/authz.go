package auth

import (
	"errors"
	"fmt"

	"github.com/wolfeidau/orgconsole/internal/models"
)

// The policy here is advisory: it decides which actions the client offers.
// The backend enforces the same rules and remains authoritative.

// ErrForbidden is returned when the viewer's role does not permit an action.
var ErrForbidden = errors.New("permission denied")

// Permission represents a membership action.
type Permission string

const (
	PermAddMember          Permission = "members:add"
	PermChangeRole         Permission = "members:role"
	PermRemoveMember       Permission = "members:remove"
	PermUpdateOrganization Permission = "organization:update"
	PermDeleteOrganization Permission = "organization:delete"
)

// CanManageMembers reports whether the viewer may add members, change roles
// or remove members at all.
func CanManageMembers(viewer models.Role) bool {
	return viewer == models.RoleOwner || viewer == models.RoleAdmin
}

// CanManageRole reports whether the viewer may change the role of, or
// remove, a member holding target.
//
// Owners manage everyone except the owner. Admins only manage members.
func CanManageRole(viewer, target models.Role) bool {
	switch viewer {
	case models.RoleOwner:
		return target != models.RoleOwner
	case models.RoleAdmin:
		return target == models.RoleMember
	default:
		return false
	}
}

// RoleOf returns the viewer's role in org, defaulting to member when the
// viewer has no resolvable membership.
func RoleOf(viewerID string, org *models.Organization) models.Role {
	m, ok := org.Member(viewerID)
	if !ok {
		return models.RoleMember
	}
	return m.Role
}

// IsOwner reports whether the member record matching viewerID holds the
// owner role. Updating and deleting an organization are owner-only.
func IsOwner(viewerID string, org *models.Organization) bool {
	m, ok := org.Member(viewerID)
	return ok && m.Role == models.RoleOwner
}

// AssignableRoles lists the roles the viewer may grant when adding a member
// or changing a role. Ownership transfer is not supported.
func AssignableRoles(viewer models.Role) []models.Role {
	if !CanManageMembers(viewer) {
		return nil
	}
	return []models.Role{models.RoleMember, models.RoleAdmin}
}

// CanAssign reports whether the viewer may grant role.
func CanAssign(viewer, role models.Role) bool {
	for _, r := range AssignableRoles(viewer) {
		if r == role {
			return true
		}
	}
	return false
}

// Permissions is the evaluated policy for one viewer and organization.
type Permissions struct {
	ViewerID           string        `json:"viewerId"`
	Role               models.Role   `json:"role"`
	ManageMembers      bool          `json:"manageMembers"`
	UpdateOrganization bool          `json:"updateOrganization"`
	DeleteOrganization bool          `json:"deleteOrganization"`
	AssignableRoles    []models.Role `json:"assignableRoles"`
}

// For evaluates the policy for viewerID against org. It is recomputed from
// current inputs every time, there is no cached state.
func For(viewerID string, org *models.Organization) Permissions {
	role := RoleOf(viewerID, org)
	owner := IsOwner(viewerID, org)
	return Permissions{
		ViewerID:           viewerID,
		Role:               role,
		ManageMembers:      CanManageMembers(role),
		UpdateOrganization: owner,
		DeleteOrganization: owner,
		AssignableRoles:    AssignableRoles(role),
	}
}

// CanManage reports whether the viewer may change the role of, or remove,
// member.
func (p Permissions) CanManage(member models.OrganizationMember) bool {
	return CanManageRole(p.Role, member.Role)
}

// Allows reports whether perm is granted, for actions that don't target a
// specific member.
func (p Permissions) Allows(perm Permission) bool {
	switch perm {
	case PermAddMember, PermChangeRole, PermRemoveMember:
		return p.ManageMembers
	case PermUpdateOrganization:
		return p.UpdateOrganization
	case PermDeleteOrganization:
		return p.DeleteOrganization
	default:
		return false
	}
}

// Require returns ErrForbidden when perm is not granted.
func (p Permissions) Require(perm Permission) error {
	if !p.Allows(perm) {
		return fmt.Errorf("%w: %s requires %s", ErrForbidden, p.Role, perm)
	}
	return nil
}

// RequireMember returns ErrForbidden when the viewer may not apply perm to
// member.
func (p Permissions) RequireMember(perm Permission, member models.OrganizationMember) error {
	if err := p.Require(perm); err != nil {
		return err
	}
	if !p.CanManage(member) {
		return fmt.Errorf("%w: %s cannot %s a member with role %s", ErrForbidden, p.Role, perm, member.Role)
	}
	return nil
}
