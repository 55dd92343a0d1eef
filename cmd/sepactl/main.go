package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openbuilders/sepa-collector/internal/config"
	"github.com/openbuilders/sepa-collector/internal/log"
	"github.com/openbuilders/sepa-collector/internal/repository/postgres"
	"github.com/openbuilders/sepa-collector/internal/runlock"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sepactl",
		Short:         "Operator and scheduler tool for SEPA direct debit collections",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(proposalsCmd())
	rootCmd.AddCommand(mandatesCmd())
	rootCmd.AddCommand(assignmentsCmd())

	return rootCmd
}

// app holds the connections of a single command invocation.
type app struct {
	cfg   *config.Config
	pool  *pgxpool.Pool
	db    *postgres.Postgres
	redis *redis.Client
}

func connect(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log.Setup(cfg.LogLevel)

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect to Postgres: %w", err)
	}

	db := postgres.New(pool, 1*time.Second)
	if err := db.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &app{cfg: cfg, pool: pool, db: db}, nil
}

// lock connects to Redis on first use.
func (a *app) lock(ctx context.Context) (*runlock.Lock, error) {
	if a.redis == nil {
		a.redis = redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to Redis: %w", err)
		}
	}

	return runlock.New(&runlock.Config{TTL: a.cfg.RunLockTTL, Owner: a.cfg.InstanceID}, a.redis), nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.pool.Close()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.db.Migrate(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	}
}
