package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/wolfeidau/orgconsole/internal/auth"
	"github.com/wolfeidau/orgconsole/internal/models"
	"github.com/wolfeidau/orgconsole/internal/validate"
)

// DashboardCmd lists the organizations the user belongs to.
type DashboardCmd struct{}

func (d *DashboardCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireSession(); err != nil {
		return err
	}

	orgs, err := e.client.ListOrganizations(ctx)
	if err != nil {
		return apiError("list organizations", err)
	}

	if len(orgs) == 0 {
		fmt.Fprintln(globals.out(), "No organizations found.")
		fmt.Fprintln(globals.out())
		fmt.Fprintln(globals.out(), "To create one:")
		fmt.Fprintln(globals.out(), "  orgctl org create --name <name> --description <description>")
		return nil
	}

	viewerID := e.session.UserID()
	w := tabwriter.NewWriter(globals.out(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMEMBERS\tROLE\tDESCRIPTION")
	for i := range orgs {
		org := &orgs[i]
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			org.ID, org.Name, len(org.Members), auth.RoleOf(viewerID, org), truncate(org.Description, 48))
	}
	return w.Flush()
}

// OrgCmd manages organizations.
type OrgCmd struct {
	Create OrgCreateCmd `cmd:"" help:"Create an organization"`
	Show   OrgShowCmd   `cmd:"" help:"Show an organization and its members"`
	Update OrgUpdateCmd `cmd:"" help:"Update an organization (owner only)"`
	Delete OrgDeleteCmd `cmd:"" help:"Delete an organization (owner only)"`
}

// OrgCreateCmd creates an organization owned by the current user.
type OrgCreateCmd struct {
	Name        string `help:"Organization name" required:""`
	Description string `help:"Organization description" required:""`
	Logo        string `help:"Logo URL"`
}

func (c *OrgCreateCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireSession(); err != nil {
		return err
	}

	req := models.CreateOrganizationRequest{Name: c.Name, Description: c.Description, Logo: c.Logo}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("invalid organization: %w", err)
	}

	org, err := e.client.CreateOrganization(ctx, req)
	if err != nil {
		return apiError("create organization", err)
	}

	if org != nil && org.ID != "" {
		fmt.Fprintf(globals.out(), "Created organization %s (%s)\n", org.Name, org.ID)
		return nil
	}
	fmt.Fprintf(globals.out(), "Created organization %s\n", c.Name)
	return nil
}

// OrgShowCmd shows an organization with its members and what the viewer
// may do to each.
type OrgShowCmd struct {
	ID string `arg:"" help:"Organization ID"`
}

func (c *OrgShowCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireSession(); err != nil {
		return err
	}

	org, err := e.client.GetOrganization(ctx, c.ID)
	if err != nil {
		return apiError("get organization", err)
	}

	perms := auth.For(e.session.UserID(), org)
	printOrganization(globals.out(), org, perms)
	return nil
}

func printOrganization(out io.Writer, org *models.Organization, perms auth.Permissions) {
	fmt.Fprintf(out, "ID:          %s\n", org.ID)
	fmt.Fprintf(out, "Name:        %s\n", org.Name)
	fmt.Fprintf(out, "Description: %s\n", org.Description)
	if org.Logo != "" {
		fmt.Fprintf(out, "Logo:        %s\n", org.Logo)
	}
	fmt.Fprintf(out, "Your role:   %s\n", perms.Role)
	fmt.Fprintln(out)

	printMembers(out, org.Members, perms)
}

func printMembers(out io.Writer, members []models.OrganizationMember, perms auth.Permissions) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER ID\tNAME\tEMAIL\tROLE\tMANAGEABLE")
	for _, m := range members {
		manageable := ""
		if perms.CanManage(m) {
			manageable = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.User.ID, m.User.Name, m.User.Email, m.Role, manageable)
	}
	w.Flush()
}

// OrgUpdateCmd changes an organization's details. Only flags that are set
// are sent.
type OrgUpdateCmd struct {
	ID          string  `arg:"" help:"Organization ID"`
	Name        *string `help:"New name"`
	Description *string `help:"New description"`
	Logo        *string `help:"New logo URL, empty to clear"`
}

func (c *OrgUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireSession(); err != nil {
		return err
	}

	req := models.UpdateOrganizationRequest{Name: c.Name, Description: c.Description, Logo: c.Logo}
	if req.Name == nil && req.Description == nil && req.Logo == nil {
		return fmt.Errorf("nothing to update, set --name, --description or --logo")
	}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("invalid update: %w", err)
	}

	org, err := e.client.GetOrganization(ctx, c.ID)
	if err != nil {
		return apiError("get organization", err)
	}
	if err := auth.For(e.session.UserID(), org).Require(auth.PermUpdateOrganization); err != nil {
		return err
	}

	if _, err := e.client.UpdateOrganization(ctx, org.ID, req); err != nil {
		return apiError("update organization", err)
	}

	fmt.Fprintf(globals.out(), "Updated organization %s\n", org.ID)
	return nil
}

// OrgDeleteCmd deletes an organization.
type OrgDeleteCmd struct {
	ID  string `arg:"" help:"Organization ID"`
	Yes bool   `help:"Confirm deletion" short:"y"`
}

func (c *OrgDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	if !c.Yes {
		return fmt.Errorf("deleting an organization cannot be undone, re-run with --yes to confirm")
	}

	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireSession(); err != nil {
		return err
	}

	org, err := e.client.GetOrganization(ctx, c.ID)
	if err != nil {
		return apiError("get organization", err)
	}
	if err := auth.For(e.session.UserID(), org).Require(auth.PermDeleteOrganization); err != nil {
		return err
	}

	if err := e.client.DeleteOrganization(ctx, org.ID); err != nil {
		return apiError("delete organization", err)
	}

	fmt.Fprintf(globals.out(), "Deleted organization %s\n", org.ID)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
