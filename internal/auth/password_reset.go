// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Password reset defaults.
const (
	DefaultPasswordResetTTL = 15 * time.Minute
	DefaultFrontendURL      = "http://localhost:5173"
)

const resetMailSubject = "Reset your password"

// PasswordResetConfig configures a PasswordResetService.
type PasswordResetConfig struct {
	TTL         time.Duration
	FrontendURL string
	// MinRequestDuration pads RequestReset so known and unknown addresses
	// take the same time.
	MinRequestDuration time.Duration
}

// PasswordResetService handles password reset operations.
type PasswordResetService struct {
	accounts AccountDirectory
	tokens   *ActionTokenManager
	sessions *RefreshSessionManager
	hasher   PasswordHasher
	notifier Notifier
	cfg      PasswordResetConfig
	limiter  RequestLimiter
	logger   *slog.Logger
}

// NewPasswordResetService creates a PasswordResetService.
// Returns an error if any dependency is nil or tokens serves another purpose.
func NewPasswordResetService(
	accounts AccountDirectory,
	tokens *ActionTokenManager,
	sessions *RefreshSessionManager,
	hasher PasswordHasher,
	notifier Notifier,
	cfg PasswordResetConfig,
	opts ...Option,
) (*PasswordResetService, error) {
	if accounts == nil {
		return nil, oops.Errorf("account directory is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("action token manager is required")
	}
	if tokens.Purpose() != PurposePasswordReset {
		return nil, oops.With("purpose", string(tokens.Purpose())).Errorf("action token manager must serve password resets")
	}
	if sessions == nil {
		return nil, oops.Errorf("refresh session manager is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultPasswordResetTTL
	}
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = DefaultFrontendURL
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	o := buildOptions(opts)
	return &PasswordResetService{
		accounts: accounts,
		tokens:   tokens,
		sessions: sessions,
		hasher:   hasher,
		notifier: notifier,
		cfg:      cfg,
		limiter:  o.limiter,
		logger:   o.logger,
	}, nil
}

// RequestReset mails a reset link to the account registered under email.
// Unknown addresses and throttled requests succeed silently so the caller
// cannot learn which addresses exist.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	start := time.Now()
	defer padDuration(ctx, start, s.cfg.MinRequestDuration)

	addr := NormalizeEmail(email)
	if addr == "" {
		return nil
	}
	if !allowRequest(ctx, s.limiter, s.logger, "password_reset:"+addr) {
		return nil
	}

	account, err := s.accounts.GetByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Same entropy work as the known-account path.
			_, _, _ = GenerateOpaqueToken(ActionTokenBytes) //nolint:errcheck // result unused
			return nil
		}
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "lookup account").
			Wrap(err)
	}

	raw, err := s.tokens.Issue(ctx, account.ID, s.cfg.TTL)
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "issue token").
			With("account_id", account.ID).
			Wrap(err)
	}

	link, err := withToken(s.cfg.FrontendURL+"/reset-password", raw)
	if err != nil {
		return err
	}
	body, err := renderMail(resetMailTemplate, link, s.cfg.TTL)
	if err != nil {
		return err
	}
	if err := s.notifier.Send(ctx, account.Email, resetMailSubject, body); err != nil {
		s.logger.WarnContext(ctx, "password reset mail not sent",
			"account_id", account.ID, "error", err)
	}
	return nil
}

// ValidateToken reports whether raw is a consumable reset token.
// Fails with ErrNotFound, ErrAlreadyUsed, or ErrExpired.
func (s *PasswordResetService) ValidateToken(ctx context.Context, raw string) error {
	_, err := s.tokens.Lookup(ctx, raw)
	return err
}

// ResetPassword consumes raw, stores newPassword, and revokes every refresh
// session of the account, all in one transaction.
func (s *PasswordResetService) ResetPassword(ctx context.Context, raw, newPassword string) error {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").With("operation", "hash password").Wrap(err)
	}

	token, err := s.tokens.Consume(ctx, raw, func(ctx context.Context, token *ActionToken) error {
		if err := s.accounts.UpdatePassword(ctx, token.AccountID, hash); err != nil {
			return err
		}
		return s.sessions.RevokeAll(ctx, token.AccountID)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password reset completed", "account_id", token.AccountID)
	return nil
}
