package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/orgconsole/cmd/orgctl/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Login     commands.LoginCmd     `cmd:"" help:"Log in to the organizations backend"`
		Register  commands.RegisterCmd  `cmd:"" help:"Create an account and log in"`
		Logout    commands.LogoutCmd    `cmd:"" help:"Clear the local session"`
		Profile   commands.ProfileCmd   `cmd:"" help:"Show the logged in user"`
		Dashboard commands.DashboardCmd `cmd:"" help:"List your organizations"`
		Org       commands.OrgCmd       `cmd:"" help:"Manage organizations"`
		Member    commands.MemberCmd    `cmd:"" help:"Manage organization members"`
		Users     commands.UsersCmd     `cmd:"" help:"List users"`
		Console   commands.ConsoleCmd   `cmd:"" help:"Serve the local web console"`

		Debug      bool             `help:"Enable debug mode." env:"ORGCTL_DEBUG"`
		API        string           `help:"Backend API base URL" default:"http://localhost:3000/api" env:"ORGCTL_API"`
		SessionDir string           `help:"Directory holding the session file (default ~/.orgctl)" env:"ORGCTL_SESSION_DIR"`
		Cache      bool             `help:"Cache cacheable GET responses" env:"ORGCTL_CACHE"`
		CacheDir   string           `help:"Persist the response cache in this directory" env:"ORGCTL_CACHE_DIR"`
		Timeout    time.Duration    `help:"Backend request timeout, 0 waits indefinitely" default:"0s" env:"ORGCTL_TIMEOUT"`
		Tracing    bool             `help:"Enable OpenTelemetry tracing and metrics" env:"ORGCTL_TRACING"`
		Version    kong.VersionFlag `help:"Show version."`
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("orgctl"),
		kong.Description("Manage organizations, members and roles."),
		kong.Vars{
			"version": version,
		},
		kong.Configuration(commands.YAMLConfig, "~/.orgctl/config.yaml"),
		kong.BindTo(ctx, (*context.Context)(nil)))

	err := cmd.Run(&commands.Globals{
		Debug:      cli.Debug,
		Version:    version,
		API:        cli.API,
		SessionDir: cli.SessionDir,
		Cache:      cli.Cache,
		CacheDir:   cli.CacheDir,
		Timeout:    cli.Timeout,
		Tracing:    cli.Tracing,
	})
	cmd.FatalIfErrorf(err)
}
