package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/polzat/internal/app"
	"github.com/JakeFAU/polzat/internal/config"
	"github.com/JakeFAU/polzat/internal/logging"
	"github.com/JakeFAU/polzat/internal/telemetry"
)

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "polzatd",
		Short: "Priority crawl and scrape daemon",
		Long: `polzatd accepts crawl and scrape tasks over HTTP, orders them in a
priority frontier, and runs them on a bounded worker pool while honouring
robots.txt for every web host.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithFlags(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	cmd.Flags().Int("thread-count", 10, "worker pool size and in-flight ceiling")
	cmd.Flags().Int("port", 12289, "port for the task gateway")
	return cmd
}

func run(parent context.Context, cfg config.Config) error {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "polzatd",
		ProjectID:   cfg.Tracing.ProjectID,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	daemon, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}
	defer daemon.Close()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", cfg.Server.Port, err)
	}
	logger.Info("polzatd starting",
		zap.Int("port", cfg.Server.Port),
		zap.Int("thread_count", cfg.Scheduler.ThreadCount),
	)
	return daemon.Run(ctx, ln)
}
