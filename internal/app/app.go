// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package app assembles the token lifecycle components from configuration.
package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/authtokens/internal/auth"
	"github.com/holomush/authtokens/internal/auth/bearer"
	"github.com/holomush/authtokens/internal/config"
)

// Storage is the persistence the components run on.
type Storage struct {
	Accounts auth.AccountDirectory
	Sessions auth.RefreshSessionRepository
	Actions  auth.ActionTokenRepository
	Tx       auth.Transactor
}

func (s Storage) validate() error {
	switch {
	case s.Accounts == nil:
		return oops.Errorf("account directory is required")
	case s.Sessions == nil:
		return oops.Errorf("refresh session repository is required")
	case s.Actions == nil:
		return oops.Errorf("action token repository is required")
	case s.Tx == nil:
		return oops.Errorf("transactor is required")
	}
	return nil
}

// App holds the assembled components.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Codec             *bearer.Codec
	Refresh           *auth.RefreshSessionManager
	Resets            *auth.ActionTokenManager
	Verifications     *auth.ActionTokenManager
	Service           *auth.Service
	PasswordReset     *auth.PasswordResetService
	EmailVerification *auth.EmailVerificationService
	Cleanup           *auth.CleanupJob

	storage Storage
	closers []func(context.Context) error
}

// Build wires the components over storage. limiter may be nil.
func Build(cfg *config.Config, storage Storage, notifier auth.Notifier, limiter auth.RequestLimiter, logger *slog.Logger, extra ...auth.Option) (*App, error) {
	if err := storage.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := append([]auth.Option{auth.WithLogger(logger)}, extra...)
	if limiter != nil {
		opts = append(opts, auth.WithLimiter(limiter))
	}

	keys, err := cfg.BearerKeys()
	if err != nil {
		return nil, err
	}
	codec, err := bearer.NewCodec(keys, bearer.Options{
		Issuer:   cfg.Bearer.Issuer,
		Audience: cfg.Bearer.Audience,
		Leeway:   cfg.Bearer.Leeway,
	})
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, Codec: codec, storage: storage}

	a.Refresh, err = auth.NewRefreshSessionManager(storage.Sessions, storage.Tx, auth.RefreshConfig{
		TTL:                   cfg.Refresh.TTL,
		MaxSessionsPerAccount: cfg.Refresh.MaxSessionsPerAccount,
		PersistPlaintext:      cfg.Refresh.PersistPlaintext,
	}, opts...)
	if err != nil {
		return nil, err
	}
	if a.Resets, err = auth.NewActionTokenManager(auth.PurposePasswordReset, storage.Actions, storage.Tx, opts...); err != nil {
		return nil, err
	}
	if a.Verifications, err = auth.NewActionTokenManager(auth.PurposeEmailVerification, storage.Actions, storage.Tx, opts...); err != nil {
		return nil, err
	}

	hasher := auth.NewArgon2idHasher()
	a.Service, err = auth.NewService(storage.Accounts, a.Refresh, codec, hasher,
		auth.ServiceConfig{AccessTTL: cfg.Bearer.AccessTTL}, opts...)
	if err != nil {
		return nil, err
	}

	a.PasswordReset, err = auth.NewPasswordResetService(storage.Accounts, a.Resets, a.Refresh, hasher, notifier,
		auth.PasswordResetConfig{
			TTL:                cfg.PasswordReset.TTL,
			FrontendURL:        cfg.PasswordReset.FrontendURL,
			MinRequestDuration: cfg.PasswordReset.MinRequestDuration,
		}, opts...)
	if err != nil {
		return nil, err
	}

	a.EmailVerification, err = auth.NewEmailVerificationService(storage.Accounts, a.Verifications, notifier,
		auth.EmailVerificationConfig{
			TTL:              cfg.EmailVerification.TTL,
			BackendVerifyURL: cfg.EmailVerification.BackendVerifyURL,
			SuccessURL:       cfg.EmailVerification.SuccessURL,
			ErrorURL:         cfg.EmailVerification.ErrorURL,
		}, opts...)
	if err != nil {
		return nil, err
	}

	if a.Cleanup, err = auth.NewCleanupJob(storage.Sessions, storage.Actions, opts...); err != nil {
		return nil, err
	}
	return a, nil
}

// Backfill returns a legacy hash backfill over the app's storage.
func (a *App) Backfill(cfg auth.BackfillConfig) (*auth.LegacyHashBackfill, error) {
	return auth.NewLegacyHashBackfill(a.storage.Sessions, a.storage.Tx, cfg, auth.WithLogger(a.Logger))
}

// OnClose registers fn to run on Close, in reverse registration order.
func (a *App) OnClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases everything Open acquired.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		return oops.Code("APP_CLOSE_FAILED").Wrap(err)
	}
	return nil
}
