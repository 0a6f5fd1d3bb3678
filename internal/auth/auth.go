// Package auth authenticates gateway callers by the X-API-Key header.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/teemow/sheetsgate/internal/instrumentation"
)

// HeaderName is the request header carrying the caller's API key.
const HeaderName = "X-API-Key"

// The messages are part of the HTTP contract and are returned verbatim.
var (
	ErrMissingKey = errors.New("API Key required")
	ErrInvalidKey = errors.New("Invalid API Key")
)

// KeySource provides the current client-id to key mapping.
// *keystore.Store implements it.
type KeySource interface {
	Keys() map[string]string
}

// StaticKeys is a fixed KeySource.
type StaticKeys map[string]string

// Keys implements KeySource.
func (s StaticKeys) Keys() map[string]string { return s }

// Authenticator resolves API keys to client identifiers.
type Authenticator struct {
	keys    KeySource
	metrics *instrumentation.Metrics
}

// New returns an Authenticator over keys. metrics may be nil.
func New(keys KeySource, metrics *instrumentation.Metrics) *Authenticator {
	return &Authenticator{keys: keys, metrics: metrics}
}

// Authenticate returns the client id owning presented.
//
// Every entry is compared in constant time and the scan does not stop at the
// first match, so response timing does not reveal how many keys were checked.
func (a *Authenticator) Authenticate(ctx context.Context, presented string) (string, error) {
	if presented == "" {
		a.metrics.RecordAPIKeyAuth(ctx, instrumentation.AuthResultMissing)
		return "", ErrMissingKey
	}

	var clientID string
	for id, key := range a.keys.Keys() {
		if subtle.ConstantTimeCompare([]byte(key), []byte(presented)) == 1 {
			clientID = id
		}
	}
	if clientID == "" {
		a.metrics.RecordAPIKeyAuth(ctx, instrumentation.AuthResultInvalid)
		return "", ErrInvalidKey
	}

	a.metrics.RecordAPIKeyAuth(ctx, instrumentation.AuthResultSuccess)
	return clientID, nil
}

// AuthenticateRequest authenticates r by its X-API-Key header.
func (a *Authenticator) AuthenticateRequest(r *http.Request) (string, error) {
	return a.Authenticate(r.Context(), r.Header.Get(HeaderName))
}

type contextKey struct{}

// WithClientID returns a copy of ctx carrying clientID.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, contextKey{}, clientID)
}

// ClientIDFromContext returns the authenticated client id, or "" if none.
func ClientIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
