package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/orgconsole/internal/auth"
	"github.com/wolfeidau/orgconsole/internal/models"
)

// MemberCmd manages organization members.
type MemberCmd struct {
	List   MemberListCmd   `cmd:"" help:"List members of an organization"`
	Add    MemberAddCmd    `cmd:"" help:"Add a user to an organization"`
	Remove MemberRemoveCmd `cmd:"" help:"Remove a member from an organization"`
	Role   MemberRoleCmd   `cmd:"" help:"Change a member's role"`
}

// MemberListCmd lists the members of an organization.
type MemberListCmd struct {
	Org string `arg:"" help:"Organization ID"`
}

func (c *MemberListCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireSession(); err != nil {
		return err
	}

	members, err := e.client.ListMembers(ctx, c.Org)
	if err != nil {
		return apiError("list members", err)
	}

	// evaluate against the listed membership, not a cached organization
	perms := auth.For(e.session.UserID(), &models.Organization{ID: c.Org, Members: members})
	printMembers(globals.out(), members, perms)
	return nil
}

// MemberAddCmd adds a user to an organization.
type MemberAddCmd struct {
	Org  string `arg:"" help:"Organization ID"`
	User string `arg:"" help:"User ID to add"`
	Role string `help:"Role to grant (member or admin)" default:"member" enum:"member,admin"`
}

func (c *MemberAddCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireSession(); err != nil {
		return err
	}

	org, err := e.client.GetOrganization(ctx, c.Org)
	if err != nil {
		return apiError("get organization", err)
	}

	perms := auth.For(e.session.UserID(), org)
	if err := perms.Require(auth.PermAddMember); err != nil {
		return err
	}
	role := models.ParseRole(c.Role)
	if !auth.CanAssign(perms.Role, role) {
		return fmt.Errorf("%w: %s cannot grant %s", auth.ErrForbidden, perms.Role, role)
	}
	if _, ok := org.Member(c.User); ok {
		return fmt.Errorf("user %s is already a member of %s", c.User, org.Name)
	}

	if _, err := e.client.AddMember(ctx, org.ID, c.User, role); err != nil {
		return apiError("add member", err)
	}

	fmt.Fprintf(globals.out(), "Added %s to %s as %s\n", c.User, org.Name, role)
	return nil
}

// MemberRemoveCmd removes a member from an organization.
type MemberRemoveCmd struct {
	Org  string `arg:"" help:"Organization ID"`
	User string `arg:"" help:"User ID to remove"`
}

func (c *MemberRemoveCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireSession(); err != nil {
		return err
	}

	org, member, perms, err := loadMember(ctx, e, c.Org, c.User)
	if err != nil {
		return err
	}
	if err := perms.RequireMember(auth.PermRemoveMember, member); err != nil {
		return err
	}

	if err := e.client.RemoveMember(ctx, org.ID, member.User.ID); err != nil {
		return apiError("remove member", err)
	}

	fmt.Fprintf(globals.out(), "Removed %s from %s\n", displayName(member), org.Name)
	return nil
}

// MemberRoleCmd changes a member's role.
type MemberRoleCmd struct {
	Org  string `arg:"" help:"Organization ID"`
	User string `arg:"" help:"User ID"`
	Role string `arg:"" help:"New role (member or admin)" enum:"member,admin"`
}

func (c *MemberRoleCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireSession(); err != nil {
		return err
	}

	org, member, perms, err := loadMember(ctx, e, c.Org, c.User)
	if err != nil {
		return err
	}
	if err := perms.RequireMember(auth.PermChangeRole, member); err != nil {
		return err
	}
	role := models.ParseRole(c.Role)
	if !auth.CanAssign(perms.Role, role) {
		return fmt.Errorf("%w: %s cannot grant %s", auth.ErrForbidden, perms.Role, role)
	}

	if _, err := e.client.UpdateMemberRole(ctx, org.ID, member.User.ID, role); err != nil {
		return apiError("update role", err)
	}

	fmt.Fprintf(globals.out(), "Changed %s's role in %s to %s\n", displayName(member), org.Name, role)
	return nil
}

// loadMember fetches the organization and resolves userID against its
// membership along with the viewer's permissions.
func loadMember(ctx context.Context, e *env, orgID, userID string) (*models.Organization, models.OrganizationMember, auth.Permissions, error) {
	org, err := e.client.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, models.OrganizationMember{}, auth.Permissions{}, apiError("get organization", err)
	}

	member, ok := org.Member(userID)
	if !ok {
		return nil, models.OrganizationMember{}, auth.Permissions{}, fmt.Errorf("user %s is not a member of %s", userID, org.Name)
	}

	return org, member, auth.For(e.session.UserID(), org), nil
}

func displayName(m models.OrganizationMember) string {
	if m.User.Name != "" {
		return m.User.Name
	}
	return m.User.ID
}
