package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/wolfeidau/orgconsole/internal/auth"
	"github.com/wolfeidau/orgconsole/internal/models"
	"github.com/wolfeidau/orgconsole/internal/validate"
	"golang.org/x/term"
)

// LoginCmd exchanges credentials for a session.
type LoginCmd struct {
	Email    string `help:"Account email" required:"" env:"ORGCTL_EMAIL"`
	Password string `help:"Account password, prompted for when omitted" env:"ORGCTL_PASSWORD"`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	password, err := readPassword(l.Password, globals.out())
	if err != nil {
		return err
	}

	req := models.LoginRequest{Email: strings.TrimSpace(l.Email), Password: password}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("invalid login: %w", err)
	}

	user, err := e.session.Login(ctx, e.client, req)
	if err != nil {
		return authError("log in", err)
	}

	fmt.Fprintf(globals.out(), "Logged in as %s <%s>\n", user.Name, user.Email)
	return nil
}

// RegisterCmd creates an account and logs in with it.
type RegisterCmd struct {
	Name     string `help:"Display name" required:""`
	Email    string `help:"Account email" required:"" env:"ORGCTL_EMAIL"`
	Password string `help:"Account password, prompted for when omitted" env:"ORGCTL_PASSWORD"`
}

func (r *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	password, err := readPassword(r.Password, globals.out())
	if err != nil {
		return err
	}

	req := models.RegisterRequest{
		Name:     strings.TrimSpace(r.Name),
		Email:    strings.TrimSpace(r.Email),
		Password: password,
	}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("invalid registration: %w", err)
	}

	user, err := e.session.Register(ctx, e.client, req)
	if err != nil {
		return authError("register", err)
	}

	fmt.Fprintf(globals.out(), "Registered and logged in as %s <%s>\n", user.Name, user.Email)
	return nil
}

// LogoutCmd clears the local session. It never contacts the backend.
type LogoutCmd struct{}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.session.Logout(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	fmt.Fprintln(globals.out(), "Logged out.")
	return nil
}

// ProfileCmd shows the logged in user.
type ProfileCmd struct {
	JSON bool `help:"Print as JSON"`
}

type profileOutput struct {
	User  *models.User    `json:"user"`
	Token *auth.TokenInfo `json:"token,omitempty"`
}

func (p *ProfileCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireSession(); err != nil {
		return err
	}

	out := profileOutput{User: e.session.CurrentUser()}
	if token, ok := e.session.Token(); ok {
		info := auth.InspectToken(token)
		out.Token = &info
	}

	if p.JSON {
		enc := json.NewEncoder(globals.out())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := tabwriter.NewWriter(globals.out(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", out.User.ID)
	fmt.Fprintf(w, "Name:\t%s\n", out.User.Name)
	fmt.Fprintf(w, "Email:\t%s\n", out.User.Email)
	if out.User.ProfilePicture != "" {
		fmt.Fprintf(w, "Picture:\t%s\n", out.User.ProfilePicture)
	}
	fmt.Fprintf(w, "Organizations:\t%d\n", len(out.User.Organizations))
	if out.Token != nil {
		fmt.Fprintf(w, "Token:\t%s\n", out.Token.Fingerprint)
		if !out.Token.ExpiresAt.IsZero() {
			expiry := out.Token.ExpiresAt.Format("2006-01-02 15:04:05")
			if out.Token.Expired() {
				expiry += " (expired)"
			}
			fmt.Fprintf(w, "Expires:\t%s\n", expiry)
		}
	}
	return w.Flush()
}

// readPassword returns password, or prompts for it on the terminal.
func readPassword(password string, prompt io.Writer) (string, error) {
	if password != "" {
		return password, nil
	}

	fmt.Fprint(prompt, "Password: ")

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// authError wraps login and register failures. A 401 here means bad
// credentials, not an expired session.
func authError(action string, err error) error {
	return fmt.Errorf("failed to %s: %w", action, err)
}
