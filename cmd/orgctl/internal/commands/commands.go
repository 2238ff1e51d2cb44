package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/orgconsole/internal/client"
	"github.com/wolfeidau/orgconsole/internal/logger"
	"github.com/wolfeidau/orgconsole/internal/session"
	"github.com/wolfeidau/orgconsole/internal/telemetry"
)

// ErrNotLoggedIn is returned by commands that need a session when there is none.
var ErrNotLoggedIn = errors.New("not logged in, run 'orgctl login' first")

type Globals struct {
	Debug      bool
	Version    string
	API        string
	SessionDir string
	Cache      bool
	CacheDir   string
	Timeout    time.Duration
	Tracing    bool

	// Stdout receives command output, os.Stdout when nil.
	Stdout io.Writer
	// Storage overrides the session file, used by tests.
	Storage session.Storage
}

func (g *Globals) out() io.Writer {
	if g.Stdout != nil {
		return g.Stdout
	}
	return os.Stdout
}

// env holds what a command needs to talk to the backend.
type env struct {
	log      zerolog.Logger
	session  *session.Store
	client   *client.Client
	shutdown telemetry.ShutdownFunc
}

func (e *env) Close() {
	if e.shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.shutdown(ctx); err != nil {
		e.log.Error().Err(err).Msg("Failed to shutdown telemetry")
	}
}

// setup creates the session store and API client shared by every command.
func (g *Globals) setup(ctx context.Context) (*env, error) {
	log := logger.Setup(g.Debug)

	e := &env{log: log}

	if g.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:    "orgctl",
			Version:        g.Version,
			MetricInterval: 10 * time.Second,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
		} else {
			e.shutdown = shutdown
		}
	}

	storage := g.Storage
	if storage == nil {
		fs, err := session.NewFileStorage(g.SessionDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize session storage: %w", err)
		}
		storage = fs
	}

	store, err := session.New(storage)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	e.session = store

	cfg := client.DefaultConfig()
	if g.API != "" {
		cfg.BaseURL = g.API
	}
	cfg.Timeout = g.Timeout
	cfg.Cache = g.Cache
	cfg.CacheDir = g.CacheDir
	cfg.Tracing = g.Tracing
	cfg.Debug = g.Debug

	c, err := client.New(cfg, store,
		client.WithLogger(log),
		client.WithUnauthenticatedHandler(func(req *http.Request) {
			log.Warn().Str("path", req.URL.Path).Msg("session expired, run 'orgctl login' to continue")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	e.client = c

	return e, nil
}

// requireSession is the command line guard: without a token and an
// authenticated user any partial state is cleared and ErrNotLoggedIn
// returned.
func (e *env) requireSession() error {
	if _, ok := e.session.Token(); ok && e.session.IsAuthenticated() {
		return nil
	}
	if err := e.session.Logout(); err != nil {
		e.log.Error().Err(err).Msg("failed to clear session")
	}
	return ErrNotLoggedIn
}

// apiError converts client errors into command errors.
func apiError(action string, err error) error {
	if client.IsUnauthorized(err) {
		return fmt.Errorf("%s: session expired: %w", action, ErrNotLoggedIn)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
