package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kevinaaaquil/writeups/apperr"
	"github.com/kevinaaaquil/writeups/auth"
	"github.com/kevinaaaquil/writeups/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeResolver struct {
	blocked map[string]bool
}

func (f fakeResolver) ResolvePrincipal(_ context.Context, c *auth.Claims) (auth.Principal, error) {
	if f.blocked[c.ID] {
		return auth.Principal{}, apperr.ErrBlocked
	}
	id, err := primitive.ObjectIDFromHex(c.ID)
	if err != nil {
		return auth.Principal{}, apperr.ErrInvalidToken
	}
	return auth.Principal{ID: id, Role: c.Role}, nil
}

func statusWriter(w http.ResponseWriter, _ *http.Request, err error) {
	w.WriteHeader(apperr.Status(err))
	_, _ = w.Write([]byte(err.Error()))
}

type staticSettings struct{ st models.Settings }

func (s *staticSettings) Current() models.Settings { return s.st }

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if p, found := auth.PrincipalFromContext(r.Context()); found {
		w.Header().Set("X-Role", p.Role)
		w.Header().Set("X-Token", auth.TokenFromContext(r.Context()))
	}
	w.WriteHeader(http.StatusOK)
})

func newGuard(t *testing.T) (*Guard, *auth.Tokens) {
	t.Helper()
	tokens := auth.NewTokens("test-secret")
	return NewGuard(tokens, fakeResolver{}, statusWriter), tokens
}

func issue(t *testing.T, tokens *auth.Tokens, role string, ttl time.Duration) (primitive.ObjectID, string) {
	t.Helper()
	id := primitive.NewObjectID()
	raw, err := tokens.Issue(id, role, ttl)
	require.NoError(t, err)
	return id, raw
}

func serve(h http.Handler, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuardRejectsMissingAndBadTokens(t *testing.T) {
	g, tokens := newGuard(t)
	_, expired := issue(t, tokens, models.RoleUser, -time.Minute)

	rec := serve(g.Any(ok), http.MethodGet, "/api/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "please authenticate", rec.Body.String())

	rec = serve(g.Any(ok), http.MethodGet, "/api/auth/me", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(g.Any(ok), http.MethodGet, "/api/auth/me", expired)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token expired")

	forged, err := auth.NewTokens("other-secret").Issue(primitive.NewObjectID(), models.RoleAdmin, time.Hour)
	require.NoError(t, err)
	rec = serve(g.AdminOnly(ok), http.MethodGet, "/api/admin/me", forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGuardRoles(t *testing.T) {
	g, tokens := newGuard(t)
	_, admin := issue(t, tokens, models.RoleAdmin, time.Hour)
	_, user := issue(t, tokens, models.RoleUser, time.Hour)

	assert.Equal(t, http.StatusOK, serve(g.AdminOnly(ok), http.MethodGet, "/", admin).Code)
	assert.Equal(t, http.StatusForbidden, serve(g.AdminOnly(ok), http.MethodGet, "/", user).Code)
	assert.Equal(t, http.StatusOK, serve(g.UserOnly(ok), http.MethodGet, "/", user).Code)
	assert.Equal(t, http.StatusForbidden, serve(g.UserOnly(ok), http.MethodGet, "/", admin).Code)

	rec := serve(g.Any(ok), http.MethodGet, "/", admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RoleAdmin, rec.Header().Get("X-Role"))
	assert.Equal(t, admin, rec.Header().Get("X-Token"))
}

func TestGuardBlockedUser(t *testing.T) {
	tokens := auth.NewTokens("test-secret")
	id := primitive.NewObjectID()
	raw, err := tokens.Issue(id, models.RoleUser, time.Hour)
	require.NoError(t, err)
	g := NewGuard(tokens, fakeResolver{blocked: map[string]bool{id.Hex(): true}}, statusWriter)

	rec := serve(g.Any(ok), http.MethodGet, "/", raw)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "blocked")
}

func TestGuardOptional(t *testing.T) {
	g, tokens := newGuard(t)
	_, user := issue(t, tokens, models.RoleUser, time.Hour)

	rec := serve(g.Optional(ok), http.MethodPost, "/api/books/1/reads", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Role"))

	rec = serve(g.Optional(ok), http.MethodPost, "/api/books/1/reads", "garbage")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Role"))

	rec = serve(g.Optional(ok), http.MethodPost, "/api/books/1/reads", user)
	assert.Equal(t, models.RoleUser, rec.Header().Get("X-Role"))
}

func TestAuthenticateSocketAcceptsQueryToken(t *testing.T) {
	g, tokens := newGuard(t)
	id, raw := issue(t, tokens, models.RoleUser, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/socket?token="+raw, nil)
	p, err := g.AuthenticateSocket(req)
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)

	_, err = g.Authenticate(req)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestSettingsGateMaintenance(t *testing.T) {
	st := models.DefaultSettings()
	st.MaintenanceMode = true
	h := SettingsGate(&staticSettings{st: st})(ok)

	rec := serve(h, http.MethodGet, "/api/writeups", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["maintenanceMode"])
	assert.NotEmpty(t, body["error"])

	for _, path := range []string{"/api/admin/settings", "/api/admin/login", "/api/auth/login", "/api/health"} {
		assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, path, "").Code, path)
	}
}

func TestSettingsGateToggles(t *testing.T) {
	settings := &staticSettings{st: models.DefaultSettings()}
	h := SettingsGate(settings)(ok)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/api/auth/register", "").Code)

	settings.st.EnableUserRegistration = false
	settings.st.EnableComments = false
	settings.st.EnableRatings = false
	assert.Equal(t, http.StatusForbidden, serve(h, http.MethodPost, "/api/auth/register", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(h, http.MethodGet, "/api/writeups/1/comments", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(h, http.MethodPost, "/api/writeups/1/ratings", "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/api/auth/login", "").Code)
}

func TestLoginLimiter(t *testing.T) {
	st := models.DefaultSettings()
	st.Security.MaxLoginAttempts = 2
	settings := &staticSettings{st: st}
	h := NewLoginLimiter(settings).Handler(ok)

	login := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, login())
	assert.Equal(t, http.StatusOK, login())
	assert.Equal(t, http.StatusTooManyRequests, login())

	// raising the limit rebuilds the limiter
	settings.st.Security.MaxLoginAttempts = 10
	assert.Equal(t, http.StatusOK, login())
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://writeups.example"})(ok)
	req := httptest.NewRequest(http.MethodOptions, "/api/writeups", nil)
	req.Header.Set("Origin", "https://writeups.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://writeups.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/writeups", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
