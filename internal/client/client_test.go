package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/orgconsole/internal/models"
	"github.com/wolfeidau/orgconsole/internal/session"
)

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

type fakeBackend struct {
	mu       sync.Mutex
	requests []recordedRequest
	handlers map[string]http.HandlerFunc
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{handlers: make(map[string]http.HandlerFunc)}
	srv := httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(srv.Close)
	return fb, srv
}

func (f *fakeBackend) handle(pattern string, h http.HandlerFunc) {
	f.handlers[pattern] = h
}

func (f *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{
		Method: r.Method,
		Path:   r.URL.EscapedPath(),
		Auth:   r.Header.Get("Authorization"),
	}
	if b, _ := io.ReadAll(r.Body); len(b) > 0 {
		_ = json.Unmarshal(b, &rec.Body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	h, ok := f.handlers[r.Method+" "+rec.Path]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"message":"not found"}`))
		return
	}
	h(w, r)
}

func (f *fakeBackend) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newSession(t *testing.T, token string, user *models.User) *session.Store {
	t.Helper()
	storage := session.NewMemoryStorage()
	if token != "" {
		require.NoError(t, storage.Set(session.TokenKey, token))
	}
	if user != nil {
		raw, err := json.Marshal(user)
		require.NoError(t, err)
		require.NoError(t, storage.Set(session.UserKey, string(raw)))
	}
	store, err := session.New(storage)
	require.NoError(t, err)
	return store
}

func newClient(t *testing.T, url string, creds Credentials, opts ...Option) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: url}, creds, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_invalidBaseURL(t *testing.T) {
	_, err := New(Config{}, nil)
	require.Error(t, err)

	_, err = New(Config{BaseURL: "ftp://example.com"}, nil)
	require.Error(t, err)
}

func TestClient_attachesBearerToken(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("GET /organizations/all", respond(http.StatusOK, `{"success":true,"data":[]}`))

	store := newSession(t, "tok-123", &models.User{ID: "u1", Name: "Ada"})
	c := newClient(t, srv.URL, store)

	_, err := c.ListOrganizations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", fb.last().Auth)
}

func TestClient_noTokenNoHeader(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("GET /auth/users", respond(http.StatusOK, `{"success":true,"data":[]}`))

	c := newClient(t, srv.URL, newSession(t, "", nil))

	_, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fb.last().Auth)
}

func TestClient_unauthorizedClearsSession(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("GET /organizations/org1", respond(http.StatusUnauthorized, `{"success":false,"message":"Token expired"}`))

	store := newSession(t, "tok", &models.User{ID: "u1"})
	require.True(t, store.IsAuthenticated())

	var hooked []string
	c := newClient(t, srv.URL, store, WithUnauthenticatedHandler(func(req *http.Request) {
		hooked = append(hooked, req.URL.Path)
	}))

	_, err := c.GetOrganization(context.Background(), "org1")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Token expired", Message(err))

	assert.False(t, store.IsAuthenticated())
	assert.Nil(t, store.CurrentUser())
	_, ok := store.Token()
	assert.False(t, ok)
	assert.Equal(t, []string{"/organizations/org1"}, hooked)
}

func TestClient_unauthorizedWithoutTokenStillHandled(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("GET /auth/users", respond(http.StatusUnauthorized, `{}`))

	calls := 0
	c := newClient(t, srv.URL, newSession(t, "", nil), WithUnauthenticatedHandler(func(*http.Request) {
		calls++
	}))

	_, err := c.ListUsers(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestClient_otherErrorsKeepSession(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("DELETE /organizations/org1", respond(http.StatusForbidden, `{"success":false,"message":"Only the owner can delete"}`))

	store := newSession(t, "tok", &models.User{ID: "u1"})
	c := newClient(t, srv.URL, store)

	err := c.DeleteOrganization(context.Background(), "org1")
	require.Error(t, err)
	assert.True(t, IsForbidden(err))
	assert.Equal(t, "Only the owner can delete", Message(err))
	assert.True(t, store.IsAuthenticated())
}

func TestClient_unsuccessfulEnvelope(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("POST /organizations", respond(http.StatusOK, `{"success":false,"message":"Name taken"}`))

	c := newClient(t, srv.URL, nil)

	_, err := c.CreateOrganization(context.Background(), models.CreateOrganizationRequest{Name: "Acme", Description: "d"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsuccessful))
	assert.Equal(t, "Name taken", Message(err))
}

func TestClient_ListOrganizations_shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bare array", body: `[{"_id":"o1","name":"Acme","members":[]}]`},
		{name: "data array", body: `{"success":true,"data":[{"_id":"o1","name":"Acme"}]}`},
		{name: "data wrapper", body: `{"success":true,"data":{"organizations":[{"id":"o1","name":"Acme"}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb, srv := newFakeBackend(t)
			fb.handle("GET /organizations/all", respond(http.StatusOK, tt.body))

			orgs, err := newClient(t, srv.URL, nil).ListOrganizations(context.Background())
			require.NoError(t, err)
			require.Len(t, orgs, 1)
			assert.Equal(t, "o1", orgs[0].ID)
			assert.Equal(t, "Acme", orgs[0].Name)
		})
	}
}

func TestClient_GetOrganization_normalizesMembers(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("GET /organizations/o1", respond(http.StatusOK, `{
		"success": true,
		"data": {
			"_id": "o1",
			"name": "Acme",
			"owner": "u1",
			"members": [
				{"user": {"_id": "u1", "name": "Ada"}, "role": "owner"},
				{"user": {"id": "u2", "name": "Bob"}, "role": "superuser"}
			]
		}
	}`))

	org, err := newClient(t, srv.URL, nil).GetOrganization(context.Background(), "o1")
	require.NoError(t, err)
	require.Len(t, org.Members, 2)
	assert.Equal(t, "u1", org.Members[0].User.ID)
	assert.Equal(t, models.RoleOwner, org.Members[0].Role)
	assert.Equal(t, "u2", org.Members[1].User.ID)
	assert.Equal(t, models.RoleMember, org.Members[1].Role)
}

func TestClient_RemainingUsers_shapes(t *testing.T) {
	for _, body := range []string{
		`{"success":true,"data":[{"_id":"u3","name":"Cy"}]}`,
		`{"success":true,"data":{"users":[{"_id":"u3","name":"Cy"}]}}`,
	} {
		fb, srv := newFakeBackend(t)
		fb.handle("GET /auth/organizations/o1/remaining-users", respond(http.StatusOK, body))

		users, err := newClient(t, srv.URL, nil).RemainingUsers(context.Background(), "o1")
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "u3", users[0].ID)
	}
}

func TestClient_memberOperations(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("POST /organizations/o1/users/u2", respond(http.StatusOK, `{"success":true,"data":{"_id":"o1"}}`))
	fb.handle("PUT /organizations/o1/users/u2/role", respond(http.StatusOK, `{"success":true}`))

	c := newClient(t, srv.URL, nil)
	ctx := context.Background()

	org, err := c.AddMember(ctx, "o1", "u2", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "o1", org.ID)
	assert.Equal(t, map[string]any{"action": "add", "role": "admin"}, fb.last().Body)

	require.NoError(t, c.RemoveMember(ctx, "o1", "u2"))
	assert.Equal(t, map[string]any{"action": "remove"}, fb.last().Body)

	org, err = c.UpdateMemberRole(ctx, "o1", "u2", models.RoleMember)
	require.NoError(t, err)
	assert.Nil(t, org)
	assert.Equal(t, map[string]any{"role": "member"}, fb.last().Body)
}

func TestClient_escapesPathSegments(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("GET /organizations/a%2Fb", respond(http.StatusOK, `{"success":true,"data":{"_id":"a/b"}}`))

	org, err := newClient(t, srv.URL, nil).GetOrganization(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "a/b", org.ID)
}

func TestClient_UpdateOrganization_sendsOnlySetFields(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("PUT /organizations/o1", respond(http.StatusOK, `{"success":true,"data":{"_id":"o1","name":"New"}}`))

	name := "New"
	org, err := newClient(t, srv.URL, nil).UpdateOrganization(context.Background(), "o1", models.UpdateOrganizationRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "New", org.Name)
	assert.Equal(t, map[string]any{"name": "New"}, fb.last().Body)
}

func TestClient_Login(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("POST /auth/login", respond(http.StatusOK, `{
		"success": true,
		"message": "Login successful",
		"data": {"token": "jwt", "user": {"_id": "u1", "name": "Ada", "email": "ada@example.com"}}
	}`))

	store := newSession(t, "", nil)
	c := newClient(t, srv.URL, store)

	user, err := store.Login(context.Background(), c, models.LoginRequest{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	token, ok := store.Token()
	require.True(t, ok)
	assert.Equal(t, "jwt", token)
	assert.Equal(t, map[string]any{"email": "ada@example.com", "password": "secret1"}, fb.last().Body)
}

func TestClient_Login_rejected(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("POST /auth/login", respond(http.StatusOK, `{"success":false,"message":"Invalid credentials"}`))

	store := newSession(t, "old", &models.User{ID: "u1"})
	c := newClient(t, srv.URL, store)

	_, err := store.Login(context.Background(), c, models.LoginRequest{Email: "a@b.co", Password: "secret1"})
	require.ErrorIs(t, err, session.ErrAuthRejected)
	assert.False(t, store.IsAuthenticated())
}

func TestClient_Login_unauthorizedSkipsHook(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("POST /auth/login", respond(http.StatusUnauthorized, `{"success":false,"message":"Invalid credentials"}`))
	fb.handle("GET /auth/users", respond(http.StatusUnauthorized, `{"success":false,"message":"Token expired"}`))

	store := newSession(t, "old", &models.User{ID: "u1"})
	var hooked []string
	c := newClient(t, srv.URL, store, WithUnauthenticatedHandler(func(req *http.Request) {
		hooked = append(hooked, req.URL.Path)
	}))

	_, err := store.Login(context.Background(), c, models.LoginRequest{Email: "a@b.co", Password: "secret1"})
	require.True(t, IsUnauthorized(err))
	assert.False(t, store.IsAuthenticated())
	assert.Empty(t, hooked, "a rejected login is not an expired session")

	// other endpoints under /auth still report an expired session
	_, err = c.ListUsers(context.Background())
	require.True(t, IsUnauthorized(err))
	assert.Equal(t, []string{"/auth/users"}, hooked)
}

func TestClient_Login_malformed(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("POST /auth/register", respond(http.StatusOK, `{"success":true,"data":{"token":"t"}}`))

	store := newSession(t, "", nil)
	c := newClient(t, srv.URL, store)

	_, err := store.Register(context.Background(), c, models.RegisterRequest{Name: "A", Email: "a@b.co", Password: "secret1"})
	require.ErrorIs(t, err, session.ErrMalformedAuthResponse)
	assert.False(t, store.IsAuthenticated())
}

func TestClient_Login_transportError(t *testing.T) {
	_, srv := newFakeBackend(t)
	url := srv.URL
	srv.Close()

	store := newSession(t, "tok", &models.User{ID: "u1"})
	c := newClient(t, url, store)

	_, err := store.Login(context.Background(), c, models.LoginRequest{Email: "a@b.co", Password: "secret1"})
	require.Error(t, err)
	assert.Zero(t, StatusCode(err))
	assert.True(t, store.IsAuthenticated())
}
