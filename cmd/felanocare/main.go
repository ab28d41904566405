package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/app"
	"github.com/Freeeeeet/felanocare/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "felanocare",
		Short:        "FelanoCare availability ledger: HTTP API and Telegram bot",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, the Telegram bot and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, mg *app.Migrator) error {
				return mg.Run(ctx)
			})
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, mg *app.Migrator) error {
				version, err := mg.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Current migration version: %d\n", version)
				return nil
			})
		},
	})

	// migrate down
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback the last migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, mg *app.Migrator) error {
				return mg.Down(ctx)
			})
		},
	})

	return cmd
}

// withMigrator открывает пул по DB_DSN и передаёт мигратор в fn
func withMigrator(ctx context.Context, fn func(context.Context, *app.Migrator) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.UseMemoryStore() {
		return fmt.Errorf("DB_DSN is required for migrations")
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogFile)
	defer func() { _ = logger.Sync() }()

	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	mg, err := app.NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := mg.Close(); err != nil {
			logger.Warn("Failed to close migrator", zap.Error(err))
		}
	}()

	return fn(ctx, mg)
}
