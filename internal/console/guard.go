package console

import (
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// requireSession lets a request through only with a token in storage and an
// authenticated user. Anything less clears the partial state and hands the
// request to deny.
func (s *Server) requireSession(deny http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, hasToken := s.session.Token()
			user := s.session.CurrentUser()

			if !hasToken || user == nil || user.ID == "" || !s.session.IsAuthenticated() {
				zerolog.Ctx(r.Context()).Debug().
					Bool("hasToken", hasToken).
					Bool("hasUser", user != nil).
					Msg("no session, redirecting")

				if err := s.session.Logout(); err != nil {
					zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to clear session")
				}
				deny(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) unauthorizedJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusUnauthorized, map[string]any{
		"success": false,
		"message": "not logged in",
	})
}

// inflight tracks operations that are running, keyed by target.
type inflight struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newInflight() *inflight {
	return &inflight{running: make(map[string]struct{})}
}

// begin marks key as running. It returns false if key already was.
func (f *inflight) begin(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.running[key]; ok {
		return false
	}
	f.running[key] = struct{}{}
	return true
}

func (f *inflight) end(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.running, key)
}

func (f *inflight) active(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.running[key]
	return ok
}

func removalKey(orgID, userID string) string {
	return orgID + "/" + userID
}
