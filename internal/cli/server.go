package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sciquest/internal/app"
	"sciquest/internal/auth"
	"sciquest/internal/config"
	"sciquest/internal/domain"
	"sciquest/internal/llm"
	"sciquest/internal/metrics"
	"sciquest/internal/seed"
	transport "sciquest/internal/transport/http"
	"sciquest/internal/tutor"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer logger.Sync()
	metrics.Register()

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return err
		}
	}

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()
	if b.memory != nil {
		if err := seedMemory(ctx, cfg, b, logger); err != nil {
			return err
		}
	}

	provider, err := newProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("auth.jwt_secret is empty; every authenticated request will be rejected")
	}

	leaderboard := app.NewLeaderboardService(b.store, b.feeds, 50, logger)
	sessions := app.NewSessionService(b.store, b.topics, leaderboard, app.SessionConfig{
		PracticeQuestions: cfg.Competition.PracticeQuestions,
		QuestionSeconds:   cfg.Competition.QuestionSeconds,
		Prices: map[domain.PowerUp]int{
			domain.PowerUpFiftyFifty:   cfg.PowerUps.FiftyFifty,
			domain.PowerUpHint:         cfg.PowerUps.Hint,
			domain.PowerUpStreakShield: cfg.PowerUps.StreakShield,
		},
	}, logger)
	tutorSvc := tutor.NewService(provider, b.topics, logger).
		WithTimeout(config.TTLDuration(cfg.LLM.Timeout, 25*time.Second))

	router := transport.NewRouter(transport.Deps{
		Sessions:     sessions,
		Leaderboard:  leaderboard,
		Competition:  app.NewCompetitionService(b.store, b.topics, cfg.Competition.Sections, logger),
		Tutor:        tutorSvc,
		Profiles:     b.profiles,
		Verifier:     auth.NewVerifier(cfg.Auth.JWTSecret),
		TutorLimiter: transport.NewRateLimiter(cfg.Tutor.RequestsPerMinute),
		CORSOrigins:  cfg.Server.CORSOrigins,
		Logger:       logger,
	})

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting sciquest", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case err := <-serverErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func seedMemory(ctx context.Context, cfg config.Config, b *backend, logger *zap.Logger) error {
	data := sampleContent()
	if cfg.Seed.File != "" {
		loaded, err := seed.Load(cfg.Seed.File)
		if err != nil {
			return err
		}
		data = loaded
	} else {
		logger.Info("no seed file configured; loading built-in sample topic")
	}
	return seed.Apply(ctx, b.seedTarget, b.topics, data)
}

func newProvider(ctx context.Context, cfg config.Config, logger *zap.Logger) (llm.Provider, error) {
	if cfg.LLM.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not set; lessons and tutor chat are disabled")
		return nil, nil
	}
	gemini, err := llm.NewGeminiProvider(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		return nil, err
	}
	return llm.WithRetry(gemini, llm.DefaultRetryConfig(cfg.LLM.MaxAttempts)), nil
}
