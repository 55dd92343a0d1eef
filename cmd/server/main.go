package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openbuilders/sepa-collector/internal/api"
	"github.com/openbuilders/sepa-collector/internal/batcher"
	"github.com/openbuilders/sepa-collector/internal/config"
	"github.com/openbuilders/sepa-collector/internal/eligibility"
	"github.com/openbuilders/sepa-collector/internal/generator"
	"github.com/openbuilders/sepa-collector/internal/health"
	"github.com/openbuilders/sepa-collector/internal/i18n"
	"github.com/openbuilders/sepa-collector/internal/log"
	"github.com/openbuilders/sepa-collector/internal/mandate"
	"github.com/openbuilders/sepa-collector/internal/notifier"
	"github.com/openbuilders/sepa-collector/internal/queue"
	"github.com/openbuilders/sepa-collector/internal/repository/postgres"
	"github.com/openbuilders/sepa-collector/internal/reversal"
	"github.com/openbuilders/sepa-collector/internal/runlock"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load configuration", "error", err)
		os.Exit(1)
	}

	log.Setup(cfg.LogLevel)

	// create the context and register signals that could cause its cancellation
	// and graceful shutdown
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("sepa collector exited with an error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("Connecting to Postgres...")

	pg, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer pg.Close()

	db := postgres.New(pg, 1*time.Second)

	if err := db.Ping(ctx); err != nil {
		return err
	}

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
	}

	slog.Info("Connecting to Redis...")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return err
	}

	tr := i18n.New(cfg.Organisation, cfg.ContactPhone, cfg.Location)

	q := queue.New(&queue.Config{
		URL:               cfg.RabbitURL,
		ReconnectInterval: 5 * time.Second,
		ConnectTimeout:    3 * time.Second,
		Queues:            []queue.QueueName{queue.QueueEvents},
	})

	outbox := notifier.New(&notifier.Config{
		BatchSize:    100,
		PollInterval: cfg.OutboxPollInterval,
		DBTimeout:    3 * time.Second,
		Queue:        queue.QueueEvents,
	}, q, db)

	checker := health.NewChecker(redisClient, db, q, &health.Config{
		RedisCheckInterval: 5 * time.Second,
		DBCheckInterval:    5 * time.Second,
		QueueCheckInterval: 5 * time.Second,
		ID:                 cfg.InstanceID,
	})

	server := api.NewServer(&api.Config{
		ListenAddr:   "",
		ListenPort:   cfg.ListenPort,
		MetricsPort:  cfg.MetricsPort,
		ProbesPort:   cfg.ProbesPort,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
		ID:           cfg.InstanceID,
		Location:     cfg.Location,
		Epoch:        cfg.Epoch,
		Prefixes:     cfg.Prefixes,
	}, api.Services{
		Generator: generator.New(&generator.Config{Epoch: cfg.Epoch, Location: cfg.Location}, db, tr),
		Batcher:   batcher.New(&batcher.Config{Location: cfg.Location, Prefixes: cfg.Prefixes}, db, tr),
		Reversals: reversal.New(&reversal.Config{Location: cfg.Location}, db, tr),
		Mandates:  mandate.New(&mandate.Config{Location: cfg.Location}, db),
		Eligibility: eligibility.NewService(&eligibility.Config{
			Windows:  cfg.Windows,
			Epoch:    cfg.Epoch,
			Location: cfg.Location,
		}, db),
		Assignments: db,
		RunLock:     runlock.New(&runlock.Config{TTL: cfg.RunLockTTL, Owner: cfg.InstanceID}, redisClient),
		Health:      checker,
	})

	errGroup, ctx := errgroup.WithContext(ctx)

	errGroup.Go(func() error {
		return q.Start(ctx)
	})

	errGroup.Go(func() error {
		return outbox.Start(ctx)
	})

	errGroup.Go(func() error {
		return checker.Run(ctx)
	})

	errGroup.Go(func() error {
		return server.Start(ctx)
	})

	if err := errGroup.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
