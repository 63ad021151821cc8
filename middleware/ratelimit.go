package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/kevinaaaquil/writeups/metrics"
)

const loginWindow = time.Minute

// LoginLimiter limits login attempts per client IP to security.maxLoginAttempts
// per minute. The underlying limiter is rebuilt when the setting changes, which
// resets the counters.
type LoginLimiter struct {
	settings SettingsSource

	mu      sync.Mutex
	limit   int
	limiter func(http.Handler) http.Handler
}

func NewLoginLimiter(settings SettingsSource) *LoginLimiter {
	return &LoginLimiter{settings: settings}
}

func (l *LoginLimiter) current() func(http.Handler) http.Handler {
	limit := l.settings.Current().Security.MaxLoginAttempts
	if limit < 1 {
		limit = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limiter == nil || l.limit != limit {
		l.limit = limit
		l.limiter = httprate.Limit(limit, loginWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(tooManyAttempts),
		)
	}
	return l.limiter
}

func (l *LoginLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.current()(next).ServeHTTP(w, r)
	})
}

func tooManyAttempts(w http.ResponseWriter, r *http.Request) {
	route := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		route = rctx.RoutePattern()
	}
	metrics.RateLimitHits.WithLabelValues(route).Inc()
	gateJSON(w, http.StatusTooManyRequests, map[string]interface{}{
		"error": "Too many login attempts. Please try again later.",
	})
}
