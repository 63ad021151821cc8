// Package middleware holds the chi middleware that sits in front of the API handlers.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/auth"
)

// PrincipalResolver loads the account behind verified token claims.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, claims *auth.Claims) (auth.Principal, error)
}

// ErrorWriter renders err as an HTTP response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Guard authenticates requests from their bearer token and enforces roles.
type Guard struct {
	tokens     *auth.Tokens
	resolver   PrincipalResolver
	writeError ErrorWriter
}

func NewGuard(tokens *auth.Tokens, resolver PrincipalResolver, writeError ErrorWriter) *Guard {
	return &Guard{tokens: tokens, resolver: resolver, writeError: writeError}
}

// BearerToken returns the token of an "Authorization: Bearer" header, or "".
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (g *Guard) authenticate(r *http.Request, raw string) (auth.Principal, error) {
	if raw == "" {
		return auth.Principal{}, apperr.ErrUnauthenticated
	}
	claims, err := g.tokens.Parse(raw)
	if err != nil {
		return auth.Principal{}, err
	}
	return g.resolver.ResolvePrincipal(r.Context(), claims)
}

// Authenticate resolves the caller of r from the Authorization header.
func (g *Guard) Authenticate(r *http.Request) (auth.Principal, error) {
	return g.authenticate(r, BearerToken(r))
}

// AuthenticateSocket also accepts the token as a query parameter, since browsers
// cannot set headers on a websocket handshake.
func (g *Guard) AuthenticateSocket(r *http.Request) (auth.Principal, error) {
	raw := BearerToken(r)
	if raw == "" {
		raw = r.URL.Query().Get("token")
	}
	return g.authenticate(r, raw)
}

func (g *Guard) require(allow func(auth.Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			p, err := g.authenticate(r, raw)
			if err != nil {
				g.writeError(w, r, err)
				return
			}
			if !allow(p) {
				g.writeError(w, r, apperr.New(apperr.ErrForbidden, "Access denied."))
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p, raw)))
		})
	}
}

// AdminOnly admits admins.
func (g *Guard) AdminOnly(next http.Handler) http.Handler {
	return g.require(auth.Principal.IsAdmin)(next)
}

// UserOnly admits regular users.
func (g *Guard) UserOnly(next http.Handler) http.Handler {
	return g.require(func(p auth.Principal) bool { return !p.IsAdmin() })(next)
}

// Any admits every authenticated caller.
func (g *Guard) Any(next http.Handler) http.Handler {
	return g.require(func(auth.Principal) bool { return true })(next)
}

// Optional attaches the principal when a valid token is present and otherwise
// lets the request through anonymously.
func (g *Guard) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := BearerToken(r)
		if raw != "" {
			if p, err := g.authenticate(r, raw); err == nil {
				r = r.WithContext(auth.WithPrincipal(r.Context(), p, raw))
			}
		}
		next.ServeHTTP(w, r)
	})
}
