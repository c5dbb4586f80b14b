// Package http exposes the quiz API over chi and the live leaderboard over
// WebSocket.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"sciquest/internal/app"
	"sciquest/internal/auth"
	"sciquest/internal/domain"
	"sciquest/internal/metrics"
	"sciquest/internal/tutor"
)

type Deps struct {
	Sessions    *app.SessionService
	Leaderboard *app.LeaderboardService
	Competition *app.CompetitionService
	Tutor       *tutor.Service
	Profiles    auth.ProfileGetter
	Verifier    *auth.Verifier
	// TutorLimiter throttles the LLM-backed routes per user.
	TutorLimiter *RateLimiter
	CORSOrigins  []string
	Logger       *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	sessions := NewSessionHandler(d.Sessions, d.Leaderboard, d.Logger)
	rounds := NewRoundHandler(d.Competition, d.Logger)
	tutors := NewTutorHandler(d.Tutor, d.Logger)
	ws := NewWSHandler(d.Leaderboard, d.CORSOrigins, d.Logger)
	limiter := d.TutorLimiter
	if limiter == nil {
		limiter = NewRateLimiter(0)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(d.Verifier))

		// WebSocket connections outlive the request timeout.
		r.Get("/ws/leaderboard", ws.ServeWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Route("/api/sessions", func(r chi.Router) {
				r.Post("/", sessions.Start)
				r.Get("/{id}", sessions.Get)
				r.Post("/{id}/answers", sessions.Answer)
				r.Post("/{id}/complete", sessions.Complete)
				r.Post("/{id}/power-ups", sessions.PowerUps)
			})
			r.Get("/api/me/progress", sessions.Progress)
			r.Get("/api/leaderboard", sessions.Leaderboard)

			r.Route("/api/tutor", func(r chi.Router) {
				r.Use(limiter.Middleware)
				r.Post("/lesson", tutors.Lesson)
				r.Post("/chat", tutors.Chat)
			})

			r.Route("/api/topics/{id}/rounds", func(r chi.Router) {
				r.Use(auth.RequireRole(d.Profiles, domain.RoleTeacher))
				r.Get("/", rounds.List)
				r.Post("/open-all", rounds.OpenAll)
				r.Post("/close-all", rounds.CloseAll)
				r.Post("/{section}/open", rounds.Open)
				r.Post("/{section}/close", rounds.Close)
			})
		})
	})
	return r
}
