package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"sciquest/internal/domain"
)

func TestSessionCompletedCounts(t *testing.T) {
	before := testutil.ToFloat64(SessionsCompleted.WithLabelValues("competition"))
	beforeXP := testutil.ToFloat64(XPAwarded.WithLabelValues("competition"))
	beforeBadge := testutil.ToFloat64(BadgesAwarded.WithLabelValues(string(domain.BadgeFirstSession)))

	SessionCompleted("competition", 250, []domain.BadgeType{domain.BadgeFirstSession})

	assert.Equal(t, before+1, testutil.ToFloat64(SessionsCompleted.WithLabelValues("competition")))
	assert.Equal(t, beforeXP+250, testutil.ToFloat64(XPAwarded.WithLabelValues("competition")))
	assert.Equal(t, beforeBadge+1, testutil.ToFloat64(BadgesAwarded.WithLabelValues(string(domain.BadgeFirstSession))))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/sessions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := RequestCounter.WithLabelValues(http.MethodGet, "/api/sessions/{id}", "418")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/abc", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestRegisterIsIdempotent(t *testing.T) {
	Register()
	Register()
}
