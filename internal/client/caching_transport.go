package client

import (
	"net/http"
	"strings"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
	"github.com/wolfeidau/orgconsole/internal/auth"
)

// cacheScopeHeader carries a fingerprint of the bearer token between the
// cache and the network. It never leaves the process.
const cacheScopeHeader = "X-Orgctl-Cache-Scope"

// NewCachingTransport wraps base with an HTTP cache that honours the
// backend's Cache-Control headers. Only GET responses the backend marks as
// cacheable are stored; the default backend sends none, in which case every
// request goes through.
//
// Entries are scoped to the bearer token they were fetched with, so a
// response cached for one session is never served to another.
//
// If cacheDir is empty an in-memory cache is used.
func NewCachingTransport(base http.RoundTripper, cacheDir string) http.RoundTripper {
	var cache httpcache.Cache
	if cacheDir == "" {
		cache = httpcache.NewMemoryCache()
	} else {
		// Use disk-based cache for persistence across invocations
		cache = diskcache.New(cacheDir)
	}

	if base == nil {
		base = http.DefaultTransport
	}

	transport := httpcache.NewTransport(cache)
	transport.Transport = &varyByScope{next: base}
	return &scopeCache{next: transport}
}

// scopeCache tags requests with the token fingerprint before the cache
// looks them up.
type scopeCache struct {
	next http.RoundTripper
}

func (s *scopeCache) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Del(cacheScopeHeader)

	if token, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer "); ok && token != "" {
		req.Header.Set(cacheScopeHeader, auth.Fingerprint(token))
	}

	return s.next.RoundTrip(req)
}

// varyByScope sits between the cache and the network. It strips the scope
// header from the outgoing request and marks every response as varying on
// it, which makes the cache compare the scope on lookup.
type varyByScope struct {
	next http.RoundTripper
}

func (v *varyByScope) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Header.Del(cacheScopeHeader)

	resp, err := v.next.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	resp.Header.Add("Vary", cacheScopeHeader)
	return resp, nil
}
