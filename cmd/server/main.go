package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roomcast/roomcast-backend/internal/config"
	"github.com/roomcast/roomcast-backend/internal/di"
	"github.com/roomcast/roomcast-backend/internal/observability"
	"github.com/roomcast/roomcast-backend/internal/repository"
	"github.com/roomcast/roomcast-backend/internal/service"
	"github.com/roomcast/roomcast-backend/internal/tools/common"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	var envFile string

	root := &cobra.Command{
		Use:           "roomcast-server",
		Short:         "Roomcast backend: sessions, accounts and statistics sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return common.LoadEnvFile(envFile)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional env file loaded before config")

	root.AddCommand(newServeCommand(&configPath))
	root.AddCommand(newCleanupCommand(&configPath))
	return root
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			runtime, err := observability.InitRuntime(ctx, cfg)
			if err != nil {
				return fmt.Errorf("init observability: %w", err)
			}
			application, err := di.InitializeApp(cfg, runtime)
			if err != nil {
				return fmt.Errorf("initialize application: %w", err)
			}
			return application.Run(ctx)
		},
	}
}

// newCleanupCommand runs one expiry sweep and exits. Meant for cron or a
// one-off invocation when the in-process sweeper is disabled.
func newCleanupCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-sessions",
		Short: "Delete expired sessions and password reset requests once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			db, err := repository.OpenDatabase(cfg.Database.DSN)
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			sweeper := service.NewCleanupService(
				repository.NewSessionRepository(db),
				repository.NewResetRepository(db),
				logger,
				cfg.Cleanup.Interval,
			)
			sweeper.Sweep(context.Background())
			return nil
		},
	}
}
