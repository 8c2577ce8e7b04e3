// Package authmw provides a thin JWT/JWKS bearer-auth middleware for the
// hosted HTTP transport. It verifies the token's signature, issuer, and
// audience, then lets the request through unchanged — authorization
// decisions are the caller's concern.
package authmw

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/alennartz/toolscript/pkg/logger"
)

// Config configures the middleware.
type Config struct {
	Issuer   string
	Audience string
	JWKSURL  string
}

// Middleware verifies bearer tokens against a JWKS key set fetched once,
// when the Middleware is constructed. A token whose key ID is not in that
// set is rejected; the set is not refetched.
type Middleware struct {
	cfg Config
	set jwk.Set
}

// New constructs a Middleware that fetches its key set from cfg.JWKSURL.
func New(ctx context.Context, cfg Config) (*Middleware, error) {
	set, err := jwk.Fetch(ctx, cfg.JWKSURL)
	if err != nil {
		return nil, err
	}
	return &Middleware{cfg: cfg, set: set}, nil
}

// Wrap returns an http.Handler that rejects requests lacking a valid
// bearer token before delegating to next.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := m.authenticate(r)
		if err != nil {
			logger.Warnw("rejected request", "error", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_ = token
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) authenticate(r *http.Request) (*jwt.Token, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, errMissingBearer
	}

	return jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		key, found := m.set.LookupKeyID(kid)
		if !found {
			return nil, errUnknownKeyID
		}
		var rawKey any
		if err := jwk.Export(key, &rawKey); err != nil {
			return nil, err
		}
		return rawKey, nil
	},
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithAudience(m.cfg.Audience),
		jwt.WithLeeway(5*time.Second),
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
	)
}

var (
	errMissingBearer = authErr("missing bearer token")
	errUnknownKeyID  = authErr("unknown key id")
)

type authErr string

func (e authErr) Error() string { return string(e) }
