package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/wolfeidau/orgconsole/internal/models"
)

// UsersCmd lists users.
type UsersCmd struct {
	List      UsersListCmd      `cmd:"" help:"List all users"`
	Remaining UsersRemainingCmd `cmd:"" help:"List users who are not members of an organization"`
}

// UsersListCmd lists every registered user.
type UsersListCmd struct{}

func (c *UsersListCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireSession(); err != nil {
		return err
	}

	users, err := e.client.ListUsers(ctx)
	if err != nil {
		return apiError("list users", err)
	}

	return printUsers(globals.out(), users)
}

// UsersRemainingCmd lists users that can still be added to an organization.
type UsersRemainingCmd struct {
	Org string `arg:"" help:"Organization ID"`
}

func (c *UsersRemainingCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireSession(); err != nil {
		return err
	}

	users, err := e.client.RemainingUsers(ctx, c.Org)
	if err != nil {
		return apiError("list remaining users", err)
	}

	if len(users) == 0 {
		fmt.Fprintln(globals.out(), "No users available to add.")
		return nil
	}
	return printUsers(globals.out(), users)
}

func printUsers(out io.Writer, users []models.User) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\n", u.ID, u.Name, u.Email)
	}
	return w.Flush()
}
