package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"echo-trivia/internal/app"
	"echo-trivia/internal/auth"
	"echo-trivia/internal/config"
	"echo-trivia/internal/domain"
	"echo-trivia/internal/generator"
	"echo-trivia/internal/infra/memory"
	"echo-trivia/internal/infra/openai"
	"echo-trivia/internal/infra/postgres"
	"echo-trivia/internal/infra/rabbitmq"
	infraredis "echo-trivia/internal/infra/redis"
	"echo-trivia/internal/logging"
	transport "echo-trivia/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.New(os.Stdout, cfg.Log.Format, cfg.Log.Level)
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	slog.SetDefault(log)

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret not configured")
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	deps, cleanup, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	svc := buildServices(cfg, deps, log)
	authSvc := auth.NewService(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))
	handler := transport.NewServer(svc, authSvc, log).Router(cfg.Server.CORSOrigins)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting trivia service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// deps are the collaborators chosen from config: Redis and Postgres when configured,
// in-process stores otherwise.
type deps struct {
	keys        app.AnswerKeyStore
	evals       app.EvaluationStore
	states      app.StateStore
	history     app.SessionHistory
	leaderboard app.LeaderboardReader
	progress    app.ProgressStore
	challenges  app.ChallengeStore
	events      app.EventPublisher
	completer   generator.Completer
}

func buildDeps(ctx context.Context, cfg config.Config, log *slog.Logger) (deps, func(), error) {
	var d deps
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (deps, func(), error) {
		cleanup()
		return deps{}, func() {}, err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fail(fmt.Errorf("redis ping: %w", err))
		}
		d.keys = infraredis.NewAnswerKeyStore(redisClient)
		d.evals = infraredis.NewEvaluationStore(redisClient, config.TTLDuration(cfg.TTL.Evaluation, 24*time.Hour))
		d.states = infraredis.NewStateStore(redisClient)
		log.Info("using redis for ephemeral state", "addr", cfg.Redis.Addr)
	} else {
		d.keys = memory.NewAnswerKeyStore()
		d.evals = memory.NewEvaluationStore()
		d.states = memory.NewStateStore()
		log.Warn("redis not configured, ephemeral state is process-local")
	}

	challengeTTL := config.TTLDuration(cfg.TTL.ChallengeCache, 30*time.Minute)
	if cfg.Postgres.URL != "" {
		db, err := openBun(cfg)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := runMigrations(ctx, db, log); err != nil {
			return fail(err)
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, pool.Close)

		d.history = postgres.NewSessionHistory(db)
		d.leaderboard = postgres.NewLeaderboard(pool)
		d.progress = postgres.NewProgressStore(db)
		backend := postgres.NewChallengeStore(db)
		if redisClient != nil {
			d.challenges = infraredis.NewChallengeCache(redisClient, backend, challengeTTL)
		} else {
			d.challenges = memory.NewChallengeCache(backend, challengeTTL)
			d.evals = postgres.NewEvaluationStore(db)
		}
	} else {
		history := memory.NewSessionHistory()
		d.history = history
		d.leaderboard = history
		d.progress = memory.NewProgressStore()
		d.challenges = memory.NewChallengeStore()
		log.Warn("postgres not configured, history and progress are process-local")
	}

	if cfg.RabbitMQ.URL != "" {
		pub, err := rabbitmq.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = pub.Close() })
		d.events = pub
	} else {
		d.events = memory.NewEventLog()
		log.Warn("rabbitmq not configured, session events stay in process")
	}

	switch cfg.LLM.Provider {
	case "openai":
		c, err := openai.New(openai.Config{
			APIKey:    cfg.LLM.APIKey,
			BaseURL:   cfg.LLM.BaseURL,
			Model:     cfg.LLM.Model,
			MaxTokens: cfg.LLM.MaxTokens,
		})
		if err != nil {
			return fail(err)
		}
		d.completer = c
	case "", "canned":
		d.completer = memory.NewCannedCompleter()
		log.Warn("using canned questions; set llm.provider=openai for generated trivia")
	default:
		return fail(fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider))
	}
	return d, cleanup, nil
}

func buildServices(cfg config.Config, d deps, log *slog.Logger) transport.Services {
	gen := generator.New(d.completer, generator.Options{
		Timeout:     config.TTLDuration(cfg.LLM.Timeout, 20*time.Second),
		Parallelism: cfg.LLM.Parallelism,
		Temperature: cfg.LLM.Temperature,
		Logger:      log,
	})
	core := app.NewCore(app.Core{
		Keys:      d.keys,
		Evaluator: app.NewEvaluator(d.keys, d.evals, gen, cfg.Game.FuzzyThreshold, log),
		States:    d.states,
		History:   d.history,
		Events:    d.events,
		Source:    gen,
		TTL: app.TTLs{
			State:     config.TTLDuration(cfg.TTL.State, 2*time.Hour),
			AnswerKey: config.TTLDuration(cfg.TTL.AnswerKey, 2*time.Hour),
			Claim:     config.TTLDuration(cfg.TTL.PlayClaim, 30*24*time.Hour),
		},
		Log: log,
	})

	categories := cfg.Game.Categories
	if len(categories) == 0 {
		categories = defaultCategories
	}
	towerCategories := cfg.Game.Tower.Categories
	if len(towerCategories) == 0 {
		towerCategories = categories
	}

	practice := app.NewPracticeService(core)
	play := app.NewPlayService(core)
	return transport.Services{
		Practice: practice,
		Daily: app.NewDailyService(core, play, app.DailyOptions{
			Categories: categories,
			Count:      cfg.Game.Daily.Count,
			Difficulty: domain.Difficulty(cfg.Game.Daily.Difficulty),
			TTL:        config.TTLDuration(cfg.TTL.Daily, 48*time.Hour),
		}),
		Survival: app.NewSurvivalService(core, categories),
		Jeopardy: app.NewJeopardyService(core, categories, app.NewLiveHub()),
		Tower: app.NewTowerService(core, d.progress, app.TowerOptions{
			Categories:        towerCategories,
			QuestionsPerFloor: cfg.Game.Tower.QuestionsPerFloor,
			PassRatio:         cfg.Game.Tower.PassRatio,
		}),
		Faceoff:     app.NewFaceoffService(core, practice, play, d.challenges),
		Play:        play,
		Leaderboard: app.NewLeaderboardService(d.leaderboard),
	}
}

var defaultCategories = []string{"History", "Science", "Geography", "Music", "Film", "Sports", "Literature", "Technology"}
