// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package app

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/authtokens/internal/auth"
	"github.com/holomush/authtokens/internal/auth/postgres"
	"github.com/holomush/authtokens/internal/config"
	"github.com/holomush/authtokens/internal/notify"
	"github.com/holomush/authtokens/internal/ratelimit"
	"github.com/holomush/authtokens/internal/store"
)

// Open connects to PostgreSQL and, when configured, Redis and RabbitMQ,
// then builds the App. Callers must Close it.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (a *App, err error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var closers []func(context.Context) error
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i](context.Background())
			}
		}
	}()

	pool, err := store.Open(ctx, store.PoolConfig{URL: cfg.Database.URL, MaxConns: cfg.Database.MaxConns})
	if err != nil {
		return nil, err
	}
	closers = append(closers, func(context.Context) error { pool.Close(); return nil })

	storage := Storage{
		Accounts: postgres.NewAccountRepository(pool),
		Sessions: postgres.NewRefreshSessionRepository(pool),
		Actions:  postgres.NewActionTokenRepository(pool),
		Tx:       postgres.NewTransactor(pool),
	}

	notifier, closeNotifier, err := openNotifier(cfg.Notify, logger)
	if err != nil {
		return nil, err
	}
	closers = append(closers, closeNotifier)

	var limiter auth.RequestLimiter
	if cfg.RateLimit.RedisAddr != "" {
		client, err := ratelimit.Dial(ctx, cfg.RateLimit.RedisAddr)
		if err != nil {
			return nil, err
		}
		closers = append(closers, func(context.Context) error { return client.Close() })
		if limiter, err = ratelimit.New(client, ratelimit.Config{
			Window:      cfg.RateLimit.Window,
			MaxRequests: cfg.RateLimit.MaxRequests,
		}); err != nil {
			return nil, err
		}
	}

	a, err = Build(cfg, storage, notifier, limiter, logger)
	if err != nil {
		return nil, err
	}
	for _, c := range closers {
		a.OnClose(c)
	}
	return a, nil
}

// openNotifier builds the configured driver behind a Dispatcher. The
// returned closer drains the dispatcher before closing the driver.
func openNotifier(cfg config.NotifyConfig, logger *slog.Logger) (auth.Notifier, func(context.Context) error, error) {
	var (
		base        auth.Notifier
		closeDriver = func() error { return nil }
	)
	switch cfg.Driver {
	case config.NotifyDriverAMQP:
		n, err := notify.DialAMQP(cfg.AMQPURL, cfg.Queue)
		if err != nil {
			return nil, nil, err
		}
		base, closeDriver = n, n.Close
	case config.NotifyDriverLog, "":
		base = notify.NewLogNotifier(logger)
	default:
		return nil, nil, oops.Code("CONFIG_INVALID").With("key", "notify.driver").Errorf("unknown notify driver %q", cfg.Driver)
	}

	d, err := notify.NewDispatcher(base, notify.DispatcherConfig{
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
	}, logger)
	if err != nil {
		_ = closeDriver()
		return nil, nil, err
	}
	return d, func(ctx context.Context) error {
		drainErr := d.Close(ctx)
		if err := closeDriver(); err != nil {
			return err
		}
		return drainErr
	}, nil
}
