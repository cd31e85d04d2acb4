package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizmaster/internal/app"
	"quizmaster/internal/config"
	"quizmaster/internal/domain"
	"quizmaster/internal/i18n"
	"quizmaster/internal/infra/memory"
	pgloader "quizmaster/internal/infra/postgres"
	infraredis "quizmaster/internal/infra/redis"
	"quizmaster/internal/infra/sqlite"
	"quizmaster/internal/llm"
	transport "quizmaster/internal/transport/http"
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

// backends holds the wired infrastructure shared by the commands.
type backends struct {
	redis   *redis.Client
	pool    *pgxpool.Pool
	storage app.Storage
	closers []io.Closer
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			slog.Warn("close backend", "error", err)
		}
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, b.redis)
	}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
	}

	switch strings.ToLower(cfg.Storage.Driver) {
	case config.DriverRedis:
		b.storage = infraredis.NewStorage(b.redis, cfg.Redis.Prefix)
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.storage = store
		b.closers = append(b.closers, store)
	default:
		b.storage = memory.NewStorage()
	}
	slog.Info("progress storage ready", "driver", cfg.Storage.Driver)
	return b, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := i18n.Init(cfg.I18n.DefaultLang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if b.pool != nil {
		loader = pgloader.NewQuizLoader(b.pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	var store app.SessionRepository
	if b.redis != nil {
		quizRepo = infraredis.NewQuizRepository(b.redis, loader, quizTTL)
		store = infraredis.NewSessionStore(b.redis, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
		sessions := memory.NewSessionStore(config.TTLDuration(cfg.Session.TTL, 2*time.Hour))
		go sessions.Run(ctx, time.Minute)
		store = sessions
	}

	generator := llm.New(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
	service := app.NewQuizService(store, quizRepo, generator, app.NewProgressService(b.storage)).
		WithHintFallback(i18n.HintUnavailable)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.New(service).Router(),
		ReadTimeout: 15 * time.Second,
		// Generation calls can outlast a short write timeout.
		WriteTimeout: 2 * time.Minute,
	}

	go func() {
		slog.Info("starting quiz service", "port", finalPort, "model", cfg.LLM.Model)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		slog.Info("shutting down server")
	case <-ctx.Done():
		slog.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes seeds the library when no Postgres is configured.
func sampleQuizzes() map[string]domain.QuizSet {
	return map[string]domain.QuizSet{
		"sample": {
			ID:       "sample",
			Language: "en",
			Snippets: []string{"Paris is the capital of France. Water boils at 100 degrees Celsius at sea level."},
			Groups: []domain.QuizGroup{{Questions: []domain.Question{
				{
					Type:          domain.QuestionMC,
					Prompt:        "What is the capital of France?",
					Options:       map[string]string{"A": "Lyon", "B": "Paris", "C": "Nice", "D": "Lille"},
					CorrectAnswer: "B",
					Explanation:   "Paris is the capital of France.",
				},
				{
					Type:          domain.QuestionTF,
					Prompt:        "Water boils at 100 degrees Celsius at sea level.",
					Options:       map[string]string{"A": "True", "B": "False"},
					CorrectAnswer: "A",
				},
				{
					Type:          domain.QuestionShort,
					Prompt:        "Which city is the capital of France?",
					CorrectAnswer: "Paris",
				},
			}}},
		},
	}
}
