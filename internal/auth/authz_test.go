package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/orgconsole/internal/models"
)

func TestCanManageRole(t *testing.T) {
	tests := []struct {
		name           string
		viewer         models.Role
		target         models.Role
		expectedResult bool
	}{
		{name: "owner can manage admin", viewer: models.RoleOwner, target: models.RoleAdmin, expectedResult: true},
		{name: "owner can manage member", viewer: models.RoleOwner, target: models.RoleMember, expectedResult: true},
		{name: "owner cannot manage owner", viewer: models.RoleOwner, target: models.RoleOwner, expectedResult: false},
		{name: "admin can manage member", viewer: models.RoleAdmin, target: models.RoleMember, expectedResult: true},
		{name: "admin cannot manage admin", viewer: models.RoleAdmin, target: models.RoleAdmin, expectedResult: false},
		{name: "admin cannot manage owner", viewer: models.RoleAdmin, target: models.RoleOwner, expectedResult: false},
		{name: "member cannot manage member", viewer: models.RoleMember, target: models.RoleMember, expectedResult: false},
		{name: "member cannot manage admin", viewer: models.RoleMember, target: models.RoleAdmin, expectedResult: false},
		{name: "member cannot manage owner", viewer: models.RoleMember, target: models.RoleOwner, expectedResult: false},
		{name: "unknown viewer cannot manage member", viewer: models.Role("guest"), target: models.RoleMember, expectedResult: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expectedResult, CanManageRole(tt.viewer, tt.target))
		})
	}
}

func TestCanManageMembers(t *testing.T) {
	require.True(t, CanManageMembers(models.RoleOwner))
	require.True(t, CanManageMembers(models.RoleAdmin))
	require.False(t, CanManageMembers(models.RoleMember))
	require.False(t, CanManageMembers(models.Role("")))
}

func testOrganization() *models.Organization {
	return &models.Organization{
		ID:    "org-1",
		Name:  "Acme",
		Owner: "u-owner",
		Members: []models.OrganizationMember{
			{User: models.MemberUser{ID: "u-owner", Name: "Olive"}, Role: models.RoleOwner},
			{User: models.MemberUser{ID: "u-admin", Name: "Adam"}, Role: models.RoleAdmin},
			{User: models.MemberUser{ID: "u-admin2", Name: "Abby"}, Role: models.RoleAdmin},
			{User: models.MemberUser{ID: "u-member", Name: "Mia"}, Role: models.RoleMember},
		},
	}
}

func TestIsOwner(t *testing.T) {
	org := testOrganization()

	require.True(t, IsOwner("u-owner", org))
	require.False(t, IsOwner("u-admin", org))
	require.False(t, IsOwner("u-member", org))
	require.False(t, IsOwner("u-stranger", org))
	require.False(t, IsOwner("", org))
	require.False(t, IsOwner("u-owner", nil))

	// the owner field alone doesn't make someone an owner, the member record does
	org.Owner = "u-member"
	require.False(t, IsOwner("u-member", org))
}

func TestRoleOf(t *testing.T) {
	org := testOrganization()

	require.Equal(t, models.RoleOwner, RoleOf("u-owner", org))
	require.Equal(t, models.RoleAdmin, RoleOf("u-admin", org))
	require.Equal(t, models.RoleMember, RoleOf("u-member", org))
	require.Equal(t, models.RoleMember, RoleOf("u-stranger", org))
	require.Equal(t, models.RoleMember, RoleOf("u-owner", nil))
}

func TestFor(t *testing.T) {
	org := testOrganization()

	t.Run("owner", func(t *testing.T) {
		p := For("u-owner", org)
		assert.Equal(t, models.RoleOwner, p.Role)
		assert.True(t, p.ManageMembers)
		assert.True(t, p.UpdateOrganization)
		assert.True(t, p.DeleteOrganization)
		assert.True(t, p.CanManage(org.Members[1]))
		assert.True(t, p.CanManage(org.Members[3]))
		assert.False(t, p.CanManage(org.Members[0]))
	})

	t.Run("admin", func(t *testing.T) {
		p := For("u-admin", org)
		assert.True(t, p.ManageMembers)
		assert.False(t, p.UpdateOrganization)
		assert.False(t, p.DeleteOrganization)
		assert.True(t, p.CanManage(org.Members[3]))
		assert.False(t, p.CanManage(org.Members[0]))
		assert.False(t, p.CanManage(org.Members[2]))
	})

	t.Run("member", func(t *testing.T) {
		p := For("u-member", org)
		assert.False(t, p.ManageMembers)
		assert.Empty(t, p.AssignableRoles)
		for _, m := range org.Members {
			assert.False(t, p.CanManage(m))
		}
	})

	t.Run("stranger is treated as member", func(t *testing.T) {
		p := For("u-stranger", org)
		assert.Equal(t, models.RoleMember, p.Role)
		assert.False(t, p.ManageMembers)
	})
}

// An admin must never be offered actions against another admin.
func TestAdminCannotRemoveAdmin(t *testing.T) {
	org := testOrganization()
	p := For("u-admin", org)

	target, ok := org.Member("u-admin2")
	require.True(t, ok)

	require.False(t, p.CanManage(target))
	err := p.RequireMember(PermRemoveMember, target)
	require.ErrorIs(t, err, ErrForbidden)
	err = p.RequireMember(PermChangeRole, target)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestPermissions_Require(t *testing.T) {
	org := testOrganization()

	require.NoError(t, For("u-owner", org).Require(PermDeleteOrganization))
	require.NoError(t, For("u-owner", org).Require(PermUpdateOrganization))
	require.ErrorIs(t, For("u-admin", org).Require(PermDeleteOrganization), ErrForbidden)
	require.NoError(t, For("u-admin", org).Require(PermAddMember))
	require.ErrorIs(t, For("u-member", org).Require(PermAddMember), ErrForbidden)
	require.ErrorIs(t, For("u-owner", org).Require(Permission("unknown")), ErrForbidden)

	member, _ := org.Member("u-member")
	require.NoError(t, For("u-admin", org).RequireMember(PermChangeRole, member))
}

func TestAssignableRoles(t *testing.T) {
	require.ElementsMatch(t, []models.Role{models.RoleMember, models.RoleAdmin}, AssignableRoles(models.RoleOwner))
	require.ElementsMatch(t, []models.Role{models.RoleMember, models.RoleAdmin}, AssignableRoles(models.RoleAdmin))
	require.Empty(t, AssignableRoles(models.RoleMember))

	require.False(t, CanAssign(models.RoleOwner, models.RoleOwner))
	require.True(t, CanAssign(models.RoleAdmin, models.RoleMember))
	require.False(t, CanAssign(models.RoleMember, models.RoleMember))
}
