// Package logging configures the global zerolog logger and the HTTP request log.
package logging

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Level is one of trace, debug, info, warn, error. Default info.
	Level string
	// Format is json or console. Default json.
	Format string
	Output io.Writer
}

// Init replaces the global logger. Safe to call again to reconfigure.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// WithComponent returns a child of the global logger tagged with component.
func WithComponent(component string) *zerolog.Logger {
	l := log.With().Str("component", component).Logger()
	return &l
}

// Requests returns the middleware chain that attaches a request-scoped logger
// and writes one line per completed request. It expects chi's RequestID to run first.
func Requests() func(http.Handler) http.Handler {
	attach := hlog.NewHandler(log.Logger)
	access := hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		level := zerolog.InfoLevel
		switch {
		case status >= 500:
			level = zerolog.ErrorLevel
		case status >= 400:
			level = zerolog.WarnLevel
		}
		hlog.FromRequest(r).WithLevel(level).Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
	return func(next http.Handler) http.Handler {
		return attach(access(next))
	}
}
