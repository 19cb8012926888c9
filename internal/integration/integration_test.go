package integration

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"echo-trivia/internal/app"
	"echo-trivia/internal/domain"
	"echo-trivia/internal/generator"
	"echo-trivia/internal/infra/memory"
	"echo-trivia/internal/infra/postgres"
	pgmigrations "echo-trivia/internal/infra/postgres/migrations"
	infraredis "echo-trivia/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestSurvivalAndFaceoffEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := migrateDB(t, ctx, pgURL)
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	keys := infraredis.NewAnswerKeyStore(redisClient)
	gen := generator.New(memory.NewCannedCompleter(), generator.Options{Logger: log})
	events := memory.NewEventLog()
	core := app.NewCore(app.Core{
		Keys:      keys,
		Evaluator: app.NewEvaluator(keys, infraredis.NewEvaluationStore(redisClient, time.Hour), gen, 0, log),
		States:    infraredis.NewStateStore(redisClient),
		History:   postgres.NewSessionHistory(db),
		Events:    events,
		Source:    gen,
		Log:       log,
	})

	// Survival: canned multiple choice answers are always the second option.
	survival := app.NewSurvivalService(core, []string{"History", "Science"})
	run, err := survival.Start(ctx, "alice", domain.SurvivalMixed, "")
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	for i := 0; i < 2; i++ {
		q, err := survival.NextQuestion(ctx, "alice", run.ID)
		if err != nil {
			t.Fatalf("next question: %v", err)
		}
		res, err := survival.SubmitAnswer(ctx, "alice", run.ID, q.Question.ID, q.Question.Choices[1].Text)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if !res.Verdict.Correct || res.Streak != i+1 {
			t.Fatalf("expected streak %d, got %+v", i+1, res)
		}
	}
	q, err := survival.NextQuestion(ctx, "alice", run.ID)
	if err != nil {
		t.Fatalf("next question: %v", err)
	}
	res, err := survival.SubmitAnswer(ctx, "alice", run.ID, q.Question.ID, q.Question.Choices[0].Text)
	if err != nil {
		t.Fatalf("submit miss: %v", err)
	}
	if res.Status != domain.RunTerminated || res.Standing == nil || res.Standing.Rank != 1 {
		t.Fatalf("expected terminated run ranked first, got %+v", res)
	}

	lb, err := app.NewLeaderboardService(postgres.NewLeaderboard(pool)).Top(ctx, domain.ModeSurvival, "mixed", 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].UserID != "alice" || lb.Entries[0].Score != 2 {
		t.Fatalf("unexpected leaderboard %+v", lb.Entries)
	}

	// Faceoff: challenges live in Postgres behind the Redis cache.
	practice := app.NewPracticeService(core)
	play := app.NewPlayService(core)
	challenges := infraredis.NewChallengeCache(redisClient, postgres.NewChallengeStore(db), time.Minute)
	faceoff := app.NewFaceoffService(core, practice, play, challenges)

	quiz, err := practice.Create(ctx, "alice", domain.QuizSettings{Category: "Science", QuestionType: domain.TrueFalse, Count: 2})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	for _, pq := range quiz.Questions {
		if _, err := practice.Evaluate(ctx, "alice", quiz.ID, pq.ID, "true"); err != nil {
			t.Fatalf("practice answer: %v", err)
		}
	}
	view, err := faceoff.Create(ctx, "alice", quiz.ID)
	if err != nil {
		t.Fatalf("create challenge: %v", err)
	}

	bob, err := faceoff.Start(ctx, "bob", view.ShareCode)
	if err != nil {
		t.Fatalf("bob start: %v", err)
	}
	carol, err := faceoff.Start(ctx, "carol", view.ShareCode)
	if err != nil {
		t.Fatalf("carol start: %v", err)
	}
	first := view.Questions[0].ID
	if a, err := faceoff.SubmitAnswer(ctx, "bob", bob.SessionID, first, "true"); err != nil || !a.Verdict.Correct {
		t.Fatalf("bob answer: %+v %v", a, err)
	}
	if a, err := faceoff.SubmitAnswer(ctx, "carol", carol.SessionID, first, "false"); err != nil || a.Verdict.Correct {
		t.Fatalf("carol answer: %+v %v", a, err)
	}
	if _, err := faceoff.Finish(ctx, "bob", bob.SessionID); err != nil {
		t.Fatalf("bob finish: %v", err)
	}

	if got := len(events.Events()); got != 2 {
		t.Fatalf("expected 2 session events, got %d", got)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "triviadb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/triviadb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
