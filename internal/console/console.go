package console

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"filippo.io/csrf"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgconsole/internal/logger"
	"github.com/wolfeidau/orgconsole/internal/models"
	"github.com/wolfeidau/orgconsole/internal/session"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Backend is the subset of the REST client the console uses.
type Backend interface {
	session.Authenticator

	ListOrganizations(ctx context.Context) ([]models.Organization, error)
	CreateOrganization(ctx context.Context, req models.CreateOrganizationRequest) (*models.Organization, error)
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	UpdateOrganization(ctx context.Context, id string, req models.UpdateOrganizationRequest) (*models.Organization, error)
	DeleteOrganization(ctx context.Context, id string) error
	RemainingUsers(ctx context.Context, orgID string) ([]models.User, error)
	AddMember(ctx context.Context, orgID, userID string, role models.Role) (*models.Organization, error)
	UpdateMemberRole(ctx context.Context, orgID, userID string, role models.Role) (*models.Organization, error)
	RemoveMember(ctx context.Context, orgID, userID string) error
}

// Config configures the console.
type Config struct {
	Listen      string
	CORSOrigins []string
	Tracing     bool
	Logger      zerolog.Logger
}

// Server is a local, single-user web console over the shared session.
type Server struct {
	cfg      Config
	session  *session.Store
	backend  Backend
	pages    map[string]*template.Template
	removals *inflight
}

// New creates a console server.
func New(cfg Config, store *session.Store, backend Backend) (*Server, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Server{
		cfg:      cfg,
		session:  store,
		backend:  backend,
		pages:    pages,
		removals: newInflight(),
	}, nil
}

// Handler returns the console's HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logger.Middleware(s.cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/", http.RedirectHandler("/dashboard", http.StatusFound).ServeHTTP)

	r.Get("/login", s.loginPage)
	r.Post("/login", s.login)
	r.Get("/register", s.registerPage)
	r.Post("/register", s.register)
	r.Post("/logout", s.logout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession(s.redirectToLogin))

		r.Get("/dashboard", s.dashboard)
		r.Post("/organizations", s.createOrganization)
		r.Get("/profile", s.profile)

		r.Route("/organizations/{orgID}", func(r chi.Router) {
			r.Get("/", s.organization)
			r.Post("/", s.updateOrganization)
			r.Post("/delete", s.deleteOrganization)
			r.Post("/members", s.addMember)
			r.Post("/members/{userID}/role", s.changeRole)
			r.Post("/members/{userID}/remove", s.removeMember)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", s.apiSession)
		r.With(s.requireSession(s.unauthorizedJSON)).
			Get("/organizations/{orgID}/permissions", s.apiPermissions)
	})

	return s.protect(r)
}

// protect applies CORS to /api and cross-origin form protection elsewhere.
func (s *Server) protect(h http.Handler) http.Handler {
	api := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet},
	}).Handler(h)
	pages := csrf.New().Handler(h)

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAPIRoute(r.URL.Path) {
			api.ServeHTTP(w, r)
			return
		}
		pages.ServeHTTP(w, r)
	})

	if s.cfg.Tracing {
		handler = otelhttp.NewHandler(handler, "orgconsole")
	}
	return handler
}

// Run serves the console until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}

	updates, cancel := s.session.Subscribe()
	defer cancel()
	go watchSession(updates)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Listen).Msg("Starting console")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown console: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func watchSession(updates <-chan *models.User) {
	for user := range updates {
		if user == nil {
			log.Info().Msg("console session: logged out")
			continue
		}
		log.Info().Str("userID", user.ID).Msg("console session: logged in")
	}
}

func isAPIRoute(path string) bool {
	return strings.HasPrefix(path, "/api/")
}
