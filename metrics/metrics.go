// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "writeups_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "writeups_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "writeups_rate_limit_hits_total",
			Help: "Requests rejected by the login rate limiter",
		},
		[]string{"route"},
	)

	WriteupReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "writeups_writeup_reads_total",
			Help: "Writeup read requests, by whether the read was counted",
		},
		[]string{"counted"},
	)

	ProgressUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "writeups_progress_updates_total",
			Help: "Reading progress updates by outcome",
		},
		[]string{"outcome"}, // "ok", "invalid", "timeout", "error"
	)

	RealtimeClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "writeups_realtime_clients",
			Help: "Currently connected realtime socket clients",
		},
	)

	RealtimeBroadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "writeups_realtime_broadcasts_total",
			Help: "Events broadcast to realtime clients",
		},
		[]string{"type"},
	)

	DailyResetRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "writeups_daily_reset_runs_total",
			Help: "Daily read counter reset runs by result",
		},
		[]string{"result"}, // "ok", "partial", "error", "skipped"
	)

	DailyResetLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "writeups_daily_reset_last_success_timestamp",
			Help: "Unix timestamp of the last fully successful daily reset",
		},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency labelled by chi route pattern,
// so path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
