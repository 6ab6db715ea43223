// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Email verification defaults.
const (
	DefaultEmailVerificationTTL = 24 * time.Hour
	DefaultVerifiedURL          = DefaultFrontendURL + "/verified"
	DefaultVerifyErrorURL       = DefaultFrontendURL + "/verify-error"
)

const verifyMailSubject = "Verify your email"

// EmailVerificationConfig configures an EmailVerificationService.
type EmailVerificationConfig struct {
	TTL time.Duration
	// BackendVerifyURL, when set, is the link target in verification mails.
	// Otherwise the frontend verify page next to SuccessURL is used.
	BackendVerifyURL string
	SuccessURL       string
	ErrorURL         string
}

// EmailVerificationService handles email verification operations.
type EmailVerificationService struct {
	accounts AccountDirectory
	tokens   *ActionTokenManager
	notifier Notifier
	cfg      EmailVerificationConfig
	limiter  RequestLimiter
	logger   *slog.Logger
}

// NewEmailVerificationService creates an EmailVerificationService.
func NewEmailVerificationService(
	accounts AccountDirectory,
	tokens *ActionTokenManager,
	notifier Notifier,
	cfg EmailVerificationConfig,
	opts ...Option,
) (*EmailVerificationService, error) {
	if accounts == nil {
		return nil, oops.Errorf("account directory is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("action token manager is required")
	}
	if tokens.Purpose() != PurposeEmailVerification {
		return nil, oops.With("purpose", string(tokens.Purpose())).Errorf("action token manager must serve email verification")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultEmailVerificationTTL
	}
	if cfg.SuccessURL == "" {
		cfg.SuccessURL = DefaultVerifiedURL
	}
	if cfg.ErrorURL == "" {
		cfg.ErrorURL = DefaultVerifyErrorURL
	}
	cfg.BackendVerifyURL = strings.TrimSpace(cfg.BackendVerifyURL)

	o := buildOptions(opts)
	return &EmailVerificationService{
		accounts: accounts,
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg,
		limiter:  o.limiter,
		logger:   o.logger,
	}, nil
}

// Send issues a verification token for account and mails the link. Prior
// unused verification tokens of the account stop working.
func (s *EmailVerificationService) Send(ctx context.Context, account *AccountRef) error {
	if account == nil {
		return oops.Code("VERIFICATION_SEND_FAILED").Errorf("account is required")
	}
	if !allowRequest(ctx, s.limiter, s.logger, "email_verification:"+NormalizeEmail(account.Email)) {
		return nil
	}

	raw, err := s.tokens.Issue(ctx, account.ID, s.cfg.TTL)
	if err != nil {
		return oops.Code("VERIFICATION_SEND_FAILED").
			With("account_id", account.ID).
			Wrap(err)
	}

	link, err := s.VerifyLink(raw)
	if err != nil {
		return err
	}
	body, err := renderMail(verifyMailTemplate, link, s.cfg.TTL)
	if err != nil {
		return err
	}
	if err := s.notifier.Send(ctx, account.Email, verifyMailSubject, body); err != nil {
		s.logger.WarnContext(ctx, "verification mail not sent",
			"account_id", account.ID, "error", err)
	}
	return nil
}

// Resend looks up an unverified account by email and sends it a fresh
// link. Unknown and already verified addresses succeed silently.
func (s *EmailVerificationService) Resend(ctx context.Context, email string) error {
	account, err := s.accounts.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("VERIFICATION_SEND_FAILED").With("operation", "lookup account").Wrap(err)
	}
	if account.Enabled {
		return nil
	}
	return s.Send(ctx, account)
}

// Confirm consumes raw, enables the account, and deletes the account's
// other unused verification tokens.
// Fails with ErrNotFound, ErrAlreadyUsed, or ErrExpired.
func (s *EmailVerificationService) Confirm(ctx context.Context, raw string) error {
	_, err := s.tokens.Consume(ctx, raw, s.enable)
	return err
}

// ConfirmAndRedirect is Confirm for browser flows. It returns SuccessURL,
// or ErrorURL with a reason query parameter naming the Outcome.
func (s *EmailVerificationService) ConfirmAndRedirect(ctx context.Context, raw string) string {
	outcome := s.tokens.ConsumeOutcome(ctx, raw, s.enable)
	if outcome == OutcomeOK {
		return s.cfg.SuccessURL
	}
	target, err := withQuery(s.cfg.ErrorURL, "reason", string(outcome))
	if err != nil {
		s.logger.ErrorContext(ctx, "invalid verification error URL", "error", err)
		return s.cfg.ErrorURL
	}
	return target
}

// VerifyLink builds the link mailed for raw. Without BackendVerifyURL the
// link is SuccessURL with its last path segment replaced by "verify".
func (s *EmailVerificationService) VerifyLink(raw string) (string, error) {
	if s.cfg.BackendVerifyURL != "" {
		return withToken(s.cfg.BackendVerifyURL, raw)
	}
	u, err := url.Parse(s.cfg.SuccessURL)
	if err != nil {
		return "", oops.Code("MAIL_LINK_INVALID").With("base", s.cfg.SuccessURL).Wrap(err)
	}
	u.Path = path.Join(path.Dir("/"+strings.Trim(u.Path, "/")), "verify")
	u.RawPath = ""
	u.Fragment = ""
	return withToken(u.String(), raw)
}

func (s *EmailVerificationService) enable(ctx context.Context, token *ActionToken) error {
	if err := s.accounts.SetEnabled(ctx, token.AccountID, true); err != nil {
		return err
	}
	if _, err := s.tokens.DiscardUnused(ctx, token.AccountID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "email verified", "account_id", token.AccountID)
	return nil
}
