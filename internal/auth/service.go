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

	"github.com/holomush/authtokens/internal/auth/bearer"
)

// AccessTokenCodec signs and verifies access tokens. *bearer.Codec
// implements it.
type AccessTokenCodec interface {
	Issue(subject string, claims bearer.Claims, ttl time.Duration) (string, error)
	VerifyDetailed(token string) (*bearer.Claims, bearer.Reason)
}

// TokenTypeBearer is the token type reported with access tokens.
const TokenTypeBearer = "Bearer"

// TokenPair is the credential set returned by Login and Refresh.
type TokenPair struct {
	AccessToken      string
	TokenType        string
	ExpiresIn        time.Duration
	RefreshToken     string
	RefreshExpiresIn time.Duration
	Account          *AccountRef
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	AccessTTL time.Duration
}

// Service provides login, refresh, logout, and bearer authentication.
type Service struct {
	accounts AccountDirectory
	sessions *RefreshSessionManager
	codec    AccessTokenCodec
	hasher   PasswordHasher
	cfg      ServiceConfig
	logger   *slog.Logger
}

// NewService creates a Service.
// Returns an error if any dependency is nil.
func NewService(accounts AccountDirectory, sessions *RefreshSessionManager, codec AccessTokenCodec, hasher PasswordHasher, cfg ServiceConfig, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, oops.Errorf("account directory is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("refresh session manager is required")
	}
	if codec == nil {
		return nil, oops.Errorf("access token codec is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = bearer.DefaultTTL
	}
	o := buildOptions(opts)
	return &Service{
		accounts: accounts,
		sessions: sessions,
		codec:    codec,
		hasher:   hasher,
		cfg:      cfg,
		logger:   o.logger,
	}, nil
}

// dummyPasswordHash is verified when the account doesn't exist so that
// response time does not reveal which usernames are registered.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Login authenticates by username or email and issues a token pair.
// Unknown accounts and wrong passwords fail identically with
// ErrInvalidCredentials. Unverified accounts fail with ErrAccountDisabled.
func (s *Service) Login(ctx context.Context, login, password string) (*TokenPair, error) {
	account, lookupErr := s.lookupLogin(ctx, login)
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "lookup account").
			Wrap(lookupErr)
	}

	targetHash := dummyPasswordHash
	if account != nil {
		targetHash = account.PasswordHash
	}

	// Always verify, even for unknown accounts.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if account == nil {
		return nil, invalidCredentials()
	}
	if verifyErr != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("account_id", account.ID).
			Wrap(verifyErr)
	}
	if !valid {
		return nil, invalidCredentials()
	}

	if !account.Enabled {
		return nil, oops.Code("AUTH_EMAIL_NOT_VERIFIED").
			With("account_id", account.ID).
			Wrap(ErrAccountDisabled)
	}

	if s.hasher.NeedsUpgrade(account.PasswordHash) {
		s.upgradeHash(ctx, account, password)
	}

	pair, err := s.issuePair(ctx, account)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "login succeeded", "account_id", account.ID)
	return pair, nil
}

// Refresh rotates refreshToken and issues a new token pair. Any credential
// failure is ErrUnauthorized.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	rotation, err := s.sessions.Rotate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	access, err := s.issueAccess(rotation.Account)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		TokenType:        TokenTypeBearer,
		ExpiresIn:        s.cfg.AccessTTL,
		RefreshToken:     rotation.Refresh.Token,
		RefreshExpiresIn: rotation.Refresh.ExpiresIn,
		Account:          rotation.Account,
	}, nil
}

// Logout revokes refreshToken. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.sessions.Revoke(ctx, refreshToken)
}

// LogoutAll revokes every session of the account owning refreshToken.
func (s *Service) LogoutAll(ctx context.Context, refreshToken string) error {
	account, err := s.sessions.Validate(ctx, refreshToken)
	if err != nil {
		return err
	}
	return s.sessions.RevokeAll(ctx, account.ID)
}

// Authenticate verifies an access token. Any failure is ErrUnauthorized;
// the reason is only logged.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*bearer.Claims, error) {
	accessToken = strings.TrimSpace(strings.TrimPrefix(accessToken, TokenTypeBearer+" "))
	claims, reason := s.codec.VerifyDetailed(accessToken)
	if reason != bearer.ReasonNone {
		credentialRejections.WithLabelValues("bearer", string(reason)).Inc()
		s.logger.DebugContext(ctx, "access token rejected", "reason", string(reason))
		return nil, errUnauthorized()
	}
	return claims, nil
}

func (s *Service) lookupLogin(ctx context.Context, login string) (*AccountRef, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, ErrNotFound
	}
	if strings.Contains(login, "@") {
		return s.accounts.GetByEmail(ctx, NormalizeEmail(login))
	}
	return s.accounts.GetByUsername(ctx, login)
}

func (s *Service) upgradeHash(ctx context.Context, account *AccountRef, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		return
	}
	if err := s.accounts.UpdatePassword(ctx, account.ID, newHash); err != nil {
		// Login succeeds regardless.
		s.logger.WarnContext(ctx, "password hash upgrade failed", "account_id", account.ID, "error", err)
		return
	}
	account.PasswordHash = newHash
}

func (s *Service) issuePair(ctx context.Context, account *AccountRef) (*TokenPair, error) {
	access, err := s.issueAccess(account)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sessions.Create(ctx, account)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		TokenType:        TokenTypeBearer,
		ExpiresIn:        s.cfg.AccessTTL,
		RefreshToken:     refresh.Token,
		RefreshExpiresIn: refresh.ExpiresIn,
		Account:          account,
	}, nil
}

func (s *Service) issueAccess(account *AccountRef) (string, error) {
	if account == nil {
		return "", oops.Code("AUTH_TOKEN_ISSUE_FAILED").Errorf("account is required")
	}
	token, err := s.codec.Issue(account.Username, bearer.Claims{
		AccountID: account.ID,
		Roles:     account.Roles,
	}, s.cfg.AccessTTL)
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_ISSUE_FAILED").With("account_id", account.ID).Wrap(err)
	}
	return token, nil
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
}
