package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgconsole/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/oauth2"
)

// RequestIDHeader carries a per-request identifier for correlating client and
// backend logs.
const RequestIDHeader = "X-Request-ID"

// Credentials supplies the bearer token and is told when the backend
// rejects it.
type Credentials interface {
	// Token returns the current bearer token, if any.
	Token() (string, bool)
	// Expire clears the session after a 401.
	Expire(ctx context.Context) error
}

// UnauthenticatedFunc is called after the session was cleared because of a
// 401, e.g. to send the user back to the login entry point. It is not called
// for rejected login or registration attempts.
type UnauthenticatedFunc func(req *http.Request)

type credentialExchangeKey struct{}

// withCredentialExchange marks requests that trade credentials for a token.
// A 401 there means the credentials were wrong, not that a session expired.
func withCredentialExchange(ctx context.Context) context.Context {
	return context.WithValue(ctx, credentialExchangeKey{}, true)
}

func isCredentialExchange(ctx context.Context) bool {
	v, _ := ctx.Value(credentialExchangeKey{}).(bool)
	return v
}

// AuthTransport attaches the bearer token to every outgoing request and
// clears the session on any 401, whichever call triggered it.
type AuthTransport struct {
	Base              http.RoundTripper
	Credentials       Credentials
	OnUnauthenticated UnauthenticatedFunc
}

// RoundTrip implements http.RoundTripper.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	req = req.Clone(req.Context())

	if req.Header.Get(RequestIDHeader) == "" {
		if id, err := uuid.NewV7(); err == nil {
			req.Header.Set(RequestIDHeader, id.String())
		}
	}

	hasToken := false
	if t.Credentials != nil {
		if token, ok := t.Credentials.Token(); ok {
			(&oauth2.Token{AccessToken: token}).SetAuthHeader(req)
			hasToken = true
		}
	}

	log.Debug().
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Bool("hasToken", hasToken).
		Msg("sending request")

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		t.unauthorized(req)
	}

	return resp, nil
}

func (t *AuthTransport) unauthorized(req *http.Request) {
	ctx := req.Context()

	log.Info().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Msg("received 401, clearing session")

	telemetry.GetMetrics().UnauthorizedTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("method", req.Method)))

	if t.Credentials != nil {
		if err := t.Credentials.Expire(ctx); err != nil {
			log.Error().Err(err).Msg("failed to clear session after 401")
		}
	}

	if t.OnUnauthenticated != nil && !isCredentialExchange(ctx) {
		t.OnUnauthenticated(req)
	}
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
