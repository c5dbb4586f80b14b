// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sciquest/internal/domain"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sciquest_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sciquest_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	SessionsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sciquest_sessions_completed_total",
			Help: "Quiz sessions completed, by mode",
		},
		[]string{"mode"},
	)

	XPAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sciquest_xp_awarded_total",
			Help: "XP awarded on session completion, by mode",
		},
		[]string{"mode"},
	)

	BadgesAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sciquest_badges_awarded_total",
			Help: "Badges awarded, by badge type",
		},
		[]string{"badge"},
	)

	PowerUpsPurchased = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sciquest_power_ups_purchased_total",
			Help: "Power-ups bought with XP",
		},
		[]string{"power_up"},
	)

	TutorRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sciquest_tutor_requests_total",
			Help: "Lesson and chat requests to the tutor, by outcome",
		},
		[]string{"kind", "outcome"},
	)
)

var registerOnce sync.Once

// Register adds all collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			SessionsCompleted,
			XPAwarded,
			BadgesAwarded,
			PowerUpsPurchased,
			TutorRequests,
		)
	})
}

// SessionCompleted records a completed session and the badges it unlocked.
func SessionCompleted(mode string, xp int, badges []domain.BadgeType) {
	SessionsCompleted.WithLabelValues(mode).Inc()
	XPAwarded.WithLabelValues(mode).Add(float64(xp))
	for _, b := range badges {
		BadgesAwarded.WithLabelValues(string(b)).Inc()
	}
}

func PowerUpPurchased(powerUp string) {
	PowerUpsPurchased.WithLabelValues(powerUp).Inc()
}

func TutorRequest(kind, outcome string) {
	TutorRequests.WithLabelValues(kind, outcome).Inc()
}

// Middleware records request counts and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
