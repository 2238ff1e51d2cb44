package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/orgconsole/internal/console"
)

// ConsoleCmd serves the local web console.
type ConsoleCmd struct {
	Listen      string   `help:"Console listen address" default:"127.0.0.1:8080" env:"ORGCTL_CONSOLE_LISTEN"`
	CORSOrigins []string `help:"Allowed CORS origins for /api" default:"http://localhost:8080,http://127.0.0.1:8080" env:"ORGCTL_CONSOLE_CORS_ORIGINS"`
}

func (c *ConsoleCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	srv, err := console.New(console.Config{
		Listen:      c.Listen,
		CORSOrigins: c.CORSOrigins,
		Tracing:     globals.Tracing,
		Logger:      e.log,
	}, e.session, e.client)
	if err != nil {
		return fmt.Errorf("failed to create console: %w", err)
	}

	e.log.Info().Str("version", globals.Version).Str("api", e.client.BaseURL()).Msg("Starting console")
	fmt.Fprintf(globals.out(), "Console listening on http://%s\n", c.Listen)

	return srv.Run(ctx)
}
