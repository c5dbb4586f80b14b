package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"sciquest/internal/app"
	"sciquest/internal/domain"
	"sciquest/internal/infra/postgres"
	pgmigrations "sciquest/internal/infra/postgres/migrations"
	infraredis "sciquest/internal/infra/redis"
	"sciquest/internal/seed"
)

type backend struct {
	sessions    *app.SessionService
	competition *app.CompetitionService
	leaderboard *app.LeaderboardService
}

// newBackend starts postgres and redis, migrates, seeds sampleContent and
// wires the services the way the server command does.
func newBackend(t *testing.T, ctx context.Context) backend {
	t.Helper()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisAddr, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)
	store := postgres.NewStore(pool)

	redisClient := goredis.NewClient(&goredis.Options{Addr: redisAddr})
	t.Cleanup(func() { _ = redisClient.Close() })

	logger := zap.NewNop()
	topics := infraredis.NewTopicRepository(redisClient, store, 5*time.Minute, logger)
	if err := seed.Apply(ctx, store, topics, sampleContent()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	leaderboard := app.NewLeaderboardService(store, infraredis.NewFeedStore(redisClient, time.Minute), 50, logger)
	sessions := app.NewSessionService(store, topics, leaderboard, app.SessionConfig{
		PracticeQuestions: 3,
		QuestionSeconds:   15,
		Prices: map[domain.PowerUp]int{
			domain.PowerUpFiftyFifty:   30,
			domain.PowerUpHint:         20,
			domain.PowerUpStreakShield: 100,
		},
	}, logger)
	return backend{
		sessions:    sessions,
		competition: app.NewCompetitionService(store, topics, []string{"8A", "8B"}, logger),
		leaderboard: leaderboard,
	}
}

func TestCompetitionEndToEnd(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, ctx)
	sessions, competition, leaderboard := b.sessions, b.competition, b.leaderboard

	if _, err := competition.OpenRound(ctx, "forces", "8A"); err != nil {
		t.Fatalf("open round: %v", err)
	}
	view, err := sessions.StartSession(ctx, "s1", "forces", domain.ModeCompetition)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(view.Questions) != 2 {
		t.Fatalf("expected competition limit of 2 questions, got %d", len(view.Questions))
	}

	for _, q := range view.Questions {
		res, err := sessions.RecordAnswer(ctx, "s1", view.Session.ID, app.AnswerSubmission{QuestionID: q.ID, SelectedOption: "b"})
		if err != nil {
			t.Fatalf("answer %s: %v", q.ID, err)
		}
		if !res.Correct {
			t.Fatalf("expected %s to be graded correct", q.ID)
		}
	}
	_, err = sessions.RecordAnswer(ctx, "s1", view.Session.ID, app.AnswerSubmission{QuestionID: view.Questions[0].ID, SelectedOption: "a"})
	if !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}

	// Concurrent completion requests: exactly one may apply rewards.
	var wg sync.WaitGroup
	results := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sessions.CompleteSession(ctx, "s1", view.Session.ID, 2, 2)
			results <- err
		}()
	}
	wg.Wait()
	close(results)
	succeeded := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrSessionComplete):
		default:
			t.Fatalf("unexpected completion error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful completion, got %d", succeeded)
	}

	progress, err := sessions.Progress(ctx, "s1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.Stats.TotalSessions != 1 || progress.Stats.StreakWeeks != 1 || progress.Stats.OverallAccuracy != 100 {
		t.Fatalf("unexpected stats after one perfect competition: %+v", progress.Stats)
	}
	if len(progress.Badges) == 0 {
		t.Fatalf("expected first-session badges, got none")
	}

	_, err = sessions.StartSession(ctx, "s1", "forces", domain.ModeCompetition)
	var done *domain.CompetitionDoneError
	if !errors.As(err, &done) || done.SessionID != view.Session.ID {
		t.Fatalf("expected CompetitionDoneError for %s, got %v", view.Session.ID, err)
	}

	lb, err := leaderboard.Top(ctx, "8A", 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].StudentID != "s1" || lb.Entries[0].Rank != 1 {
		t.Fatalf("unexpected leaderboard %+v", lb.Entries)
	}
}

func TestConcurrentFirstCompletionsKeepAllXP(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, ctx)

	var ids []string
	for _, topicID := range []string{"forces", "cells"} {
		view, err := b.sessions.StartSession(ctx, "s2", topicID, domain.ModePractice)
		if err != nil {
			t.Fatalf("start %s: %v", topicID, err)
		}
		ids = append(ids, view.Session.ID)
	}

	// s2 has no stats row yet; both completions must still serialize on it.
	var wg sync.WaitGroup
	earned := make(chan int, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			res, err := b.sessions.CompleteSession(ctx, "s2", id, 3, 3)
			if err != nil {
				t.Errorf("complete %s: %v", id, err)
				return
			}
			earned <- res.XPEarned
		}(id)
	}
	wg.Wait()
	close(earned)

	total := 0
	for xp := range earned {
		if xp <= 0 {
			t.Fatalf("expected practice XP, got %d", xp)
		}
		total += xp
	}
	progress, err := b.sessions.Progress(ctx, "s2")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.Stats.XP != total {
		t.Fatalf("expected %d XP from both sessions, got %d", total, progress.Stats.XP)
	}
}

// startContainer runs image and returns host:port of the mapped port plus
// a cleanup func. Docker being unavailable skips the test.
func startContainer(t *testing.T, ctx context.Context, req tc.ContainerRequest, port nat.Port) (string, func()) {
	t.Helper()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start %s: %v", req.Image, err)
	}
	cleanup := func() { _ = container.Terminate(ctx) }
	host, err := container.Host(ctx)
	if err != nil {
		cleanup()
		t.Fatalf("%s host: %v", req.Image, err)
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		cleanup()
		t.Fatalf("%s port: %v", req.Image, err)
	}
	return net.JoinHostPort(host, mapped.Port()), cleanup
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	addr, cleanup := startContainer(t, ctx, tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "sciquest", "POSTGRES_PASSWORD": "sciquest", "POSTGRES_DB": "sciquest"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}, "5432/tcp")
	return fmt.Sprintf("postgres://sciquest:sciquest@%s/sciquest?sslmode=disable", addr), cleanup
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	addr, cleanup := startContainer(t, ctx, tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}, "6379/tcp")
	return addr, cleanup
}

// migrateDB applies the schema the way the migrate command does. The
// postgres container may accept connections a moment before it is ready,
// so Init is retried briefly.
func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	var err error
	for attempt := 0; attempt < 10; attempt++ {
		if err = migrator.Init(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleContent() seed.File {
	f := seed.File{
		Profiles: []domain.Profile{
			{ID: "s1", Name: "Ana", Role: domain.RoleStudent, ClassSection: "8A"},
			{ID: "s2", Name: "Ben", Role: domain.RoleStudent, ClassSection: "8B"},
			{ID: "t1", Name: "Ms. Ortiz", Role: domain.RoleTeacher},
		},
	}
	for _, topic := range []domain.Topic{
		{ID: "forces", Title: "Forces and Motion", IsActive: true, CompetitionLimit: 2},
		{ID: "cells", Title: "Cells", IsActive: true},
	} {
		for i := 1; i <= 4; i++ {
			topic.Questions = append(topic.Questions, domain.Question{
				ID:            fmt.Sprintf("%s-q%d", topic.ID, i),
				Text:          fmt.Sprintf("Question %d", i),
				Options:       []domain.Option{{Key: "a", Text: "no"}, {Key: "b", Text: "yes"}},
				CorrectOption: "b",
				OrderIndex:    i,
			})
		}
		f.Topics = append(f.Topics, topic)
	}
	return f
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
