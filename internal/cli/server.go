package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"quiz-engine/internal/app"
	"quiz-engine/internal/auth"
	"quiz-engine/internal/config"
	"quiz-engine/internal/domain"
	"quiz-engine/internal/infra/memory"
	"quiz-engine/internal/infra/opentdb"
	"quiz-engine/internal/infra/postgres"
	redisstore "quiz-engine/internal/infra/redis"
	"quiz-engine/internal/infra/sqlite"
	transport "quiz-engine/internal/transport/http"
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
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	provider, closeProvider, err := openProvider(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeProvider()

	markers := auth.NewMarkerAuth(store, log)
	service := app.NewQuizService(memory.NewEngineRegistry(), provider, store, markers, serviceSettings(cfg), log)
	defer service.Close()

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewRouter(service, markers, log),
		ReadHeaderTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("port", finalPort).Info("starting quiz engine")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down server...")
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// serviceSettings keeps the played batch fixed; only the tick is tunable.
func serviceSettings(cfg config.Config) app.Settings {
	return app.Settings{
		Batch:        domain.DefaultBatch(),
		TickInterval: config.TTLDuration(cfg.Quiz.Tick, time.Second),
	}
}

// openStore picks the snapshot backend. The returned close function is always non-nil.
func openStore(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (app.KeyValueStore, func(), error) {
	switch cfg.Store.Backend {
	case "", "memory":
		log.Info("using in-memory snapshot store")
		return memory.NewStore(), func() {}, nil
	case "redis":
		if cfg.Redis.Addr == "" {
			return nil, nil, fmt.Errorf("redis store selected but redis.addr is empty")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		ttl := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)
		log.WithFields(logrus.Fields{"addr": cfg.Redis.Addr, "ttl": ttl}).Info("using redis snapshot store")
		return redisstore.NewStore(client, ttl), func() { client.Close() }, nil
	case "sqlite":
		store, err := sqlite.NewStore(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("path", cfg.SQLite.Path).Info("using sqlite snapshot store")
		return store, func() { closeQuietly(store, log) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// openProvider picks the question source. The returned close function is always non-nil.
func openProvider(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (app.QuestionProvider, func(), error) {
	switch cfg.Provider.Kind {
	case "", "opentdb":
		timeout := config.TTLDuration(cfg.Provider.Timeout, 10*time.Second)
		log.WithField("url", cfg.Provider.URL).Info("using open trivia provider")
		return opentdb.NewClient(cfg.Provider.URL, timeout, log), func() {}, nil
	case "postgres":
		if err := runMigrations(ctx, cfg, log); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.Info("using postgres question bank")
		return postgres.NewQuestionBank(pool), pool.Close, nil
	case "static":
		log.Info("using built-in sample questions")
		return memory.NewStaticProvider(memory.SampleQuestions()), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider kind %q", cfg.Provider.Kind)
	}
}

func closeQuietly(c io.Closer, log logrus.FieldLogger) {
	if err := c.Close(); err != nil {
		log.WithError(err).Warn("close")
	}
}
