package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgconsole/internal/logger"
	"github.com/wolfeidau/orgconsole/internal/models"
	"github.com/wolfeidau/orgconsole/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 10 << 20

// Config holds common client configuration
type Config struct {
	BaseURL string
	// Timeout is zero by default: the backend's latency is the only bound.
	Timeout time.Duration
	// Cache enables the HTTP cache, on disk when CacheDir is set.
	Cache    bool
	CacheDir string
	Tracing  bool
	Debug    bool
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:3000/api",
	}
}

// Option configures a Client.
type Option func(*options)

type options struct {
	onUnauthenticated UnauthenticatedFunc
	logger            *zerolog.Logger
	base              http.RoundTripper
}

// WithUnauthenticatedHandler sets the hook run after a 401 cleared the session.
func WithUnauthenticatedHandler(fn UnauthenticatedFunc) Option {
	return func(o *options) {
		o.onUnauthenticated = fn
	}
}

// WithLogger logs every API call with logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &l
	}
}

// WithTransport replaces the innermost transport, mainly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.base = rt
	}
}

// Client talks to the organizations backend. All requests go through one
// http.Client whose transport attaches credentials and handles 401s.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// New creates a client for cfg.BaseURL. creds may be nil for anonymous use.
func New(cfg Config, creds Credentials, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", cfg.BaseURL)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// innermost first: cache -> auth -> logging -> tracing
	var rt http.RoundTripper = http.DefaultTransport
	if o.base != nil {
		rt = o.base
	}
	if cfg.Cache {
		rt = NewCachingTransport(rt, cfg.CacheDir)
	}
	rt = &AuthTransport{
		Base:              rt,
		Credentials:       creds,
		OnUnauthenticated: o.onUnauthenticated,
	}
	if o.logger != nil {
		rt = logger.NewRequests(*o.logger, rt)
	}
	if cfg.Tracing {
		rt = otelhttp.NewTransport(rt)
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: rt,
			Timeout:   cfg.Timeout,
		},
	}, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// envelope is the backend's standard response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// endpoint builds a URL from path segments, escaping each one.
func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL.String() + "/" + strings.Join(escaped, "/")
}

// send performs the request and returns the raw body of a 2xx response.
func (c *Client) send(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	m := telemetry.GetMetrics()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		m.APIErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
		return nil, err
	}
	defer resp.Body.Close()

	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status", strconv.Itoa(resp.StatusCode)),
	)
	m.APIRequestsTotal.Add(ctx, 1, attrs)
	m.APIRequestDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.APIErrorsTotal.Add(ctx, 1, attrs)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       req.URL.Path,
			Message:    errorMessage(data),
		}
	}

	return data, nil
}

// do performs the request and returns the data section of the envelope.
// A 2xx response with success=false is returned as an *APIError.
func (c *Client) do(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	data, err := c.send(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	// some list endpoints answer with a bare array
	if trimmed[0] == '[' {
		return trimmed, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !env.Success {
		u, _ := url.Parse(endpoint)
		return nil, &APIError{
			StatusCode: http.StatusOK,
			Method:     method,
			Path:       u.Path,
			Message:    env.Message,
		}
	}

	return env.Data, nil
}

// decodeList decodes data that is either a bare array or an object holding
// the array under key.
func decodeList[T any](data json.RawMessage, key string) ([]T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	if data[0] == '[' {
		var out []T
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", key, err)
		}
		return out, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	inner, ok := wrapped[key]
	if !ok {
		return nil, nil
	}
	return decodeList[T](inner, key)
}

// decodeObject decodes data that is either the object itself or an object
// holding it under key.
func decodeObject[T any](data json.RawMessage, key string) (*T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	if inner, ok := wrapped[key]; ok {
		data = inner
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return &out, nil
}

func (c *Client) authenticate(ctx context.Context, endpoint string, body any) (*models.AuthResponse, error) {
	data, err := c.send(withCredentialExchange(ctx), http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}

	var resp models.AuthResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		// unparseable success responses are malformed, let the session decide
		log.Debug().Err(err).Msg("failed to decode auth response")
		return &models.AuthResponse{Success: true}, nil
	}
	return &resp, nil
}

// Register implements session.Authenticator.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	return c.authenticate(ctx, c.endpoint("auth", "register"), req)
}

// Login implements session.Authenticator.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	return c.authenticate(ctx, c.endpoint("auth", "login"), req)
}

// ListUsers returns every registered user.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	data, err := c.do(ctx, http.MethodGet, c.endpoint("auth", "users"), nil)
	if err != nil {
		return nil, err
	}
	users, err := decodeList[models.WireUser](data, "users")
	if err != nil {
		return nil, err
	}
	return models.NormalizeUsers(users), nil
}

// RemainingUsers returns the users that are not yet members of orgID.
func (c *Client) RemainingUsers(ctx context.Context, orgID string) ([]models.User, error) {
	data, err := c.do(ctx, http.MethodGet, c.endpoint("auth", "organizations", orgID, "remaining-users"), nil)
	if err != nil {
		return nil, err
	}
	users, err := decodeList[models.WireUser](data, "users")
	if err != nil {
		return nil, err
	}
	return models.NormalizeUsers(users), nil
}

// CreateOrganization creates an organization owned by the current user.
func (c *Client) CreateOrganization(ctx context.Context, req models.CreateOrganizationRequest) (*models.Organization, error) {
	data, err := c.do(ctx, http.MethodPost, c.endpoint("organizations"), req)
	if err != nil {
		return nil, err
	}
	return decodeOrganization(data)
}

// ListOrganizations returns the organizations the current user belongs to.
func (c *Client) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	data, err := c.do(ctx, http.MethodGet, c.endpoint("organizations", "all"), nil)
	if err != nil {
		return nil, err
	}
	orgs, err := decodeList[models.WireOrganization](data, "organizations")
	if err != nil {
		return nil, err
	}
	return models.NormalizeOrganizations(orgs), nil
}

// GetOrganization returns one organization including its members.
func (c *Client) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	data, err := c.do(ctx, http.MethodGet, c.endpoint("organizations", id), nil)
	if err != nil {
		return nil, err
	}
	org, err := decodeOrganization(data)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, fmt.Errorf("organization %s: empty response", id)
	}
	return org, nil
}

// UpdateOrganization changes an organization's details. Owner only.
func (c *Client) UpdateOrganization(ctx context.Context, id string, req models.UpdateOrganizationRequest) (*models.Organization, error) {
	data, err := c.do(ctx, http.MethodPut, c.endpoint("organizations", id), req)
	if err != nil {
		return nil, err
	}
	return decodeOrganization(data)
}

// DeleteOrganization deletes an organization. Owner only.
func (c *Client) DeleteOrganization(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, c.endpoint("organizations", id), nil)
	return err
}

// ListMembers returns the members of an organization.
func (c *Client) ListMembers(ctx context.Context, orgID string) ([]models.OrganizationMember, error) {
	data, err := c.do(ctx, http.MethodGet, c.endpoint("organizations", orgID, "members"), nil)
	if err != nil {
		return nil, err
	}
	members, err := decodeList[models.WireMember](data, "members")
	if err != nil {
		return nil, err
	}
	return models.NormalizeMembers(members), nil
}

// UpdateMemberRole changes a member's role. The returned organization may
// be nil if the backend doesn't echo it.
func (c *Client) UpdateMemberRole(ctx context.Context, orgID, userID string, role models.Role) (*models.Organization, error) {
	data, err := c.do(ctx, http.MethodPut, c.endpoint("organizations", orgID, "users", userID, "role"), models.UpdateRoleRequest{Role: role})
	if err != nil {
		return nil, err
	}
	return decodeOrganization(data)
}

// ManageMember adds or removes a member.
func (c *Client) ManageMember(ctx context.Context, orgID, userID string, req models.ManageMemberRequest) (*models.Organization, error) {
	data, err := c.do(ctx, http.MethodPost, c.endpoint("organizations", orgID, "users", userID), req)
	if err != nil {
		return nil, err
	}
	return decodeOrganization(data)
}

// AddMember adds userID to the organization with role.
func (c *Client) AddMember(ctx context.Context, orgID, userID string, role models.Role) (*models.Organization, error) {
	return c.ManageMember(ctx, orgID, userID, models.ManageMemberRequest{Action: models.MemberActionAdd, Role: role})
}

// RemoveMember removes userID from the organization.
func (c *Client) RemoveMember(ctx context.Context, orgID, userID string) error {
	_, err := c.ManageMember(ctx, orgID, userID, models.ManageMemberRequest{Action: models.MemberActionRemove})
	return err
}

func decodeOrganization(data json.RawMessage) (*models.Organization, error) {
	wire, err := decodeObject[models.WireOrganization](data, "organization")
	if err != nil {
		return nil, err
	}
	return wire.Normalize(), nil
}
