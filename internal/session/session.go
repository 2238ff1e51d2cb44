package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgconsole/internal/models"
	"github.com/wolfeidau/orgconsole/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Sentinel errors
var (
	// ErrAuthRejected is returned when the backend answers with success=false.
	ErrAuthRejected = errors.New("authentication rejected")

	// ErrMalformedAuthResponse is returned when a successful response is
	// missing the token, the user or the user's identifier.
	ErrMalformedAuthResponse = errors.New("malformed authentication response")
)

// Logout reasons recorded in metrics and logs.
const (
	reasonLogout       = "logout"
	reasonUnauthorized = "unauthorized"
	reasonRejected     = "rejected"
	reasonMalformed    = "malformed"
	reasonInvalidStore = "invalid_storage"
)

// Authenticator exchanges credentials with the backend.
type Authenticator interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
}

// Store is the single source of truth for who is logged in. Create one per
// process and share it.
type Store struct {
	storage Storage

	mu      sync.RWMutex
	current *models.User
	subs    map[uint64]chan *models.User
	nextSub uint64
}

// New creates a session store and restores any session held in storage.
// A stored user record that can't be parsed or has no identifier is treated
// as absent and the storage is cleared.
func New(storage Storage) (*Store, error) {
	s := &Store{
		storage: storage,
		subs:    make(map[uint64]chan *models.User),
	}

	if err := s.restore(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) restore() error {
	token, hasToken, err := s.storage.Get(TokenKey)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	raw, hasUser, err := s.storage.Get(UserKey)
	if err != nil {
		return fmt.Errorf("failed to read user: %w", err)
	}

	log.Debug().Bool("hasToken", hasToken && token != "").Bool("hasUser", hasUser).Msg("restoring session")

	if !hasToken || token == "" || !hasUser {
		return nil
	}

	var wire models.WireUser
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		log.Warn().Err(err).Msg("stored user is unreadable, clearing session")
		return s.clear(context.Background(), reasonInvalidStore)
	}

	user := wire.Normalize()
	if user.ID == "" {
		log.Warn().Msg("stored user has no identifier, clearing session")
		return s.clear(context.Background(), reasonInvalidStore)
	}

	s.mu.Lock()
	s.current = user
	s.mu.Unlock()

	log.Debug().Str("userID", user.ID).Msg("session restored")

	return nil
}

// Login sends credentials to the backend and, on a well-formed success,
// persists and publishes the user. Transport errors are returned untouched.
func (s *Store) Login(ctx context.Context, auth Authenticator, req models.LoginRequest) (*models.User, error) {
	log.Debug().Str("email", req.Email).Msg("attempting login")

	resp, err := auth.Login(ctx, req)
	if err != nil {
		return nil, err
	}

	return s.handleAuthResponse(ctx, "login", resp)
}

// Register creates an account and logs in with it, with the same response
// handling as Login.
func (s *Store) Register(ctx context.Context, auth Authenticator, req models.RegisterRequest) (*models.User, error) {
	log.Debug().Str("email", req.Email).Msg("attempting registration")

	resp, err := auth.Register(ctx, req)
	if err != nil {
		return nil, err
	}

	return s.handleAuthResponse(ctx, "register", resp)
}

func (s *Store) handleAuthResponse(ctx context.Context, op string, resp *models.AuthResponse) (*models.User, error) {
	if resp == nil || !resp.Success {
		msg := ""
		if resp != nil {
			msg = resp.Message
		}
		recordLogin(ctx, op, reasonRejected)
		if err := s.clear(ctx, reasonRejected); err != nil {
			log.Error().Err(err).Msg("failed to clear session")
		}
		return nil, fmt.Errorf("%w: %s", ErrAuthRejected, msg)
	}

	if resp.Data == nil || resp.Data.Token == "" || resp.Data.User == nil {
		return nil, s.malformed(ctx, op, "missing token or user")
	}

	user := resp.Data.User.Normalize()
	if user.ID == "" {
		return nil, s.malformed(ctx, op, "user has no identifier")
	}

	encoded, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Set(TokenKey, resp.Data.Token); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}
	if err := s.storage.Set(UserKey, string(encoded)); err != nil {
		// don't leave a token behind without its user
		_ = s.storage.Remove(TokenKey)
		return nil, fmt.Errorf("failed to store user: %w", err)
	}

	s.current = user
	s.publishLocked()

	recordLogin(ctx, op, "success")

	log.Info().Str("userID", user.ID).Str("op", op).Msg("session established")

	return user.Clone(), nil
}

func (s *Store) malformed(ctx context.Context, op, detail string) error {
	recordLogin(ctx, op, reasonMalformed)
	if err := s.clear(ctx, reasonMalformed); err != nil {
		log.Error().Err(err).Msg("failed to clear session")
	}
	return fmt.Errorf("%w: %s", ErrMalformedAuthResponse, detail)
}

// Logout clears storage and publishes "no user". Calling it without a
// session is a no-op apart from the publish.
func (s *Store) Logout() error {
	return s.clear(context.Background(), reasonLogout)
}

// Expire clears the session after the backend rejected the credential.
func (s *Store) Expire(ctx context.Context) error {
	return s.clear(ctx, reasonUnauthorized)
}

func (s *Store) clear(ctx context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	errToken := s.storage.Remove(TokenKey)
	errUser := s.storage.Remove(UserKey)

	hadUser := s.current != nil
	s.current = nil
	s.publishLocked()

	if hadUser {
		telemetry.GetMetrics().SessionLogoutsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("reason", reason)))
		log.Info().Str("reason", reason).Msg("session cleared")
	}

	return errors.Join(errToken, errUser)
}

// CurrentUser returns a snapshot of the logged in user, or nil.
func (s *Store) CurrentUser() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current.Clone()
}

// UserID returns the identifier of the logged in user, or "".
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return ""
	}
	return s.current.ID
}

// Token returns the stored bearer token.
func (s *Store) Token() (string, bool) {
	token, ok, err := s.storage.Get(TokenKey)
	if err != nil {
		log.Error().Err(err).Msg("failed to read token")
		return "", false
	}
	return token, ok && token != ""
}

// IsAuthenticated reports whether a user is present and a token is held in
// storage. If the two have diverged the answer is false.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	hasUser := s.current != nil && s.current.ID != ""
	s.mu.RUnlock()

	if !hasUser {
		return false
	}

	_, hasToken := s.Token()
	return hasToken
}

// Subscribe returns a channel carrying the current user (nil when logged
// out). The current value is delivered immediately, later changes follow in
// order. A subscriber that falls behind only sees the latest value.
// Call cancel to stop receiving, it closes the channel.
func (s *Store) Subscribe() (<-chan *models.User, func()) {
	ch := make(chan *models.User, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.current.Clone()
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}

	return ch, cancel
}

// publishLocked delivers the current user to every subscriber, replacing
// any value they haven't consumed yet. Callers must hold s.mu.
func (s *Store) publishLocked() {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.current.Clone()
	}
}

func recordLogin(ctx context.Context, op, result string) {
	telemetry.GetMetrics().SessionLoginsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("result", result),
		))
}
