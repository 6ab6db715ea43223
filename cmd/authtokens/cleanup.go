// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/holomush/authtokens/internal/app"
	"github.com/holomush/authtokens/internal/auth"
	"github.com/holomush/authtokens/internal/jobs"
	"github.com/holomush/authtokens/internal/notify"
	"github.com/holomush/authtokens/internal/observability"
)

const (
	cleanupJobName  = "cleanup"
	shutdownTimeout = 10 * time.Second
)

func newCleanupCmd(deps *Deps) *cobra.Command {
	var scheduled bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired refresh sessions and action tokens",
		Long: `Delete expired refresh sessions and expired action tokens. Runs once
by default; with --schedule it runs on cleanup.schedule until interrupted and
serves /metrics and health probes on observability.metrics_addr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			a, err := deps.AppOpener(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeApp(a, logger)

			if !scheduled {
				report, err := a.Cleanup.Run(cmd.Context())
				if err != nil {
					return err
				}
				cmd.Printf("Deleted %d rows (revoked expired: %d, expired: %d, action tokens: %d)\n",
					report.Total(), report.RevokedExpired, report.Expired, report.ActionTokensExpired)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runScheduledCleanup(ctx, deps, a, logger)
		},
	}

	cmd.Flags().BoolVar(&scheduled, "schedule", false, "run on the configured cron schedule until interrupted")
	cmd.Flags().String("cleanup-schedule", "0 0 * * * *", "cron spec with seconds field (overrides cleanup.schedule)")
	cmd.Flags().String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")

	return cmd
}

func runScheduledCleanup(ctx context.Context, deps *Deps, a *app.App, logger *slog.Logger) error {
	var srv ObservabilityServer
	if addr := a.Config.Observability.MetricsAddr; addr != "" {
		collectors := append(auth.Collectors(), notify.Collectors()...)
		srv = deps.ObservabilityServerFactory(addr, func() bool { return ctx.Err() == nil }, collectors...)
		errCh, err := srv.Start()
		if err != nil {
			return err
		}
		srv.Metrics().BuildInfo.WithLabelValues(version).Set(1)
		go monitorServerErrors(ctx, errCh, logger)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Stop(stopCtx); err != nil {
				logger.Warn("stopping observability server failed", "error", err)
			}
		}()
	}

	var metrics *observability.Metrics
	if srv != nil {
		metrics = srv.Metrics()
	}
	sched := jobs.NewScheduler(metrics, logger)
	if err := sched.Add(cleanupJobName, a.Config.Cleanup.Schedule, func(ctx context.Context) error {
		_, err := a.Cleanup.Run(ctx)
		return err
	}); err != nil {
		return err
	}

	sched.Start()
	logger.Info("cleanup scheduled", "schedule", a.Config.Cleanup.Schedule)
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return sched.Stop(stopCtx)
}

func monitorServerErrors(ctx context.Context, errCh <-chan error, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			logger.Error("observability server failed", "error", err)
		}
	case <-ctx.Done():
	}
}

func closeApp(a *app.App, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}
}
