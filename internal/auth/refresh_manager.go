// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Refresh session defaults.
const (
	DefaultRefreshTTL            = 7 * 24 * time.Hour
	DefaultMaxSessionsPerAccount = 5
)

// RefreshConfig configures a RefreshSessionManager.
type RefreshConfig struct {
	TTL time.Duration
	// MaxSessionsPerAccount caps stored sessions per account. Zero or less
	// disables the cap.
	MaxSessionsPerAccount int
	// PersistPlaintext also stores the raw token. Legacy deployments only.
	PersistPlaintext bool
}

// IssuedRefresh is a freshly created refresh token. Token is the only copy
// of the raw value.
type IssuedRefresh struct {
	Token     string
	ExpiresAt time.Time
	ExpiresIn time.Duration
}

// Rotation is the result of a successful Rotate.
type Rotation struct {
	Account *AccountRef
	Refresh *IssuedRefresh
}

// RefreshSessionManager issues, validates, rotates, and revokes refresh
// sessions.
type RefreshSessionManager struct {
	repo   RefreshSessionRepository
	tx     Transactor
	cfg    RefreshConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewRefreshSessionManager creates a RefreshSessionManager.
// Returns an error if a dependency is nil or the TTL is not positive.
func NewRefreshSessionManager(repo RefreshSessionRepository, tx Transactor, cfg RefreshConfig, opts ...Option) (*RefreshSessionManager, error) {
	if repo == nil {
		return nil, oops.Errorf("refresh session repository is required")
	}
	if tx == nil {
		return nil, oops.Errorf("transactor is required")
	}
	if cfg.TTL <= 0 {
		return nil, oops.Code("REFRESH_CONFIG_INVALID").With("ttl", cfg.TTL).Errorf("refresh TTL must be positive")
	}
	o := buildOptions(opts)
	return &RefreshSessionManager{
		repo:   repo,
		tx:     tx,
		cfg:    cfg,
		logger: o.logger,
		now:    o.now,
	}, nil
}

// ExpiresIn returns the lifetime of newly issued refresh tokens.
func (m *RefreshSessionManager) ExpiresIn() time.Duration {
	return m.cfg.TTL
}

// Create issues a new refresh session for account and enforces the
// per-account cap.
func (m *RefreshSessionManager) Create(ctx context.Context, account *AccountRef) (issued *IssuedRefresh, err error) {
	if account == nil {
		return nil, oops.Code("REFRESH_INVALID_ACCOUNT").Errorf("account is required")
	}

	ctx, span := tracer.Start(ctx, "refresh.create",
		trace.WithAttributes(attribute.Int64("account.id", account.ID)))
	defer func() {
		endSpan(span, err)
		refreshOperations.WithLabelValues("create", recordResult(err)).Inc()
	}()

	err = m.tx.InTransaction(ctx, func(ctx context.Context) error {
		txErr := m.lockAccount(ctx, account.ID)
		if txErr != nil {
			return txErr
		}
		issued, txErr = m.insert(ctx, account.ID)
		if txErr != nil {
			return txErr
		}
		return m.enforceCap(ctx, account.ID)
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

// Validate resolves the account owning a raw refresh token. Any failure is
// reported as ErrUnauthorized.
func (m *RefreshSessionManager) Validate(ctx context.Context, raw string) (account *AccountRef, err error) {
	ctx, span := tracer.Start(ctx, "refresh.validate")
	defer func() {
		endSpan(span, err)
		refreshOperations.WithLabelValues("validate", recordResult(err)).Inc()
	}()

	if raw == "" {
		return nil, m.reject(ctx, "empty")
	}

	session, err := m.repo.GetByTokenHash(ctx, HashToken(raw))
	if err != nil {
		return nil, m.lookupFailure(ctx, "validate", err)
	}
	if reason := m.inactiveReason(session); reason != "" {
		return nil, m.reject(ctx, reason)
	}
	return session.Account, nil
}

// Rotate revokes the presented session and issues a replacement in one
// transaction. Of several concurrent rotations of the same token exactly one
// succeeds; the others fail with ErrUnauthorized.
func (m *RefreshSessionManager) Rotate(ctx context.Context, raw string) (rotation *Rotation, err error) {
	ctx, span := tracer.Start(ctx, "refresh.rotate")
	defer func() {
		endSpan(span, err)
		refreshOperations.WithLabelValues("rotate", recordResult(err)).Inc()
	}()

	if raw == "" {
		return nil, m.reject(ctx, "empty")
	}

	err = m.tx.InTransaction(ctx, func(ctx context.Context) error {
		hash := HashToken(raw)
		if m.capped() {
			// Account before session, the same order Create and RevokeAll use.
			owner, err := m.repo.GetByTokenHash(ctx, hash)
			if err != nil {
				return m.lookupFailure(ctx, "rotate", err)
			}
			if err := m.lockAccount(ctx, owner.AccountID); err != nil {
				return err
			}
		}

		session, err := m.repo.GetByTokenHashForUpdate(ctx, hash)
		if err != nil {
			return m.lookupFailure(ctx, "rotate", err)
		}
		if reason := m.inactiveReason(session); reason != "" {
			return m.reject(ctx, reason)
		}

		if err := m.repo.MarkRevoked(ctx, session.ID); err != nil {
			return oops.Code("REFRESH_ROTATE_FAILED").
				With("operation", "revoke current session").
				With("session_id", session.ID.String()).
				Wrap(err)
		}

		issued, err := m.insert(ctx, session.AccountID)
		if err != nil {
			return err
		}
		if err := m.enforceCap(ctx, session.AccountID); err != nil {
			return err
		}

		span.SetAttributes(attribute.Int64("account.id", session.AccountID))
		rotation = &Rotation{Account: session.Account, Refresh: issued}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rotation, nil
}

// Revoke marks the session for raw as revoked. Unknown tokens are ignored.
func (m *RefreshSessionManager) Revoke(ctx context.Context, raw string) (err error) {
	ctx, span := tracer.Start(ctx, "refresh.revoke")
	defer func() {
		endSpan(span, err)
		refreshOperations.WithLabelValues("revoke", recordResult(err)).Inc()
	}()

	if raw == "" {
		return nil
	}
	return m.tx.InTransaction(ctx, func(ctx context.Context) error {
		n, err := m.repo.RevokeByTokenHash(ctx, HashToken(raw))
		if err != nil {
			return oops.Code("REFRESH_REVOKE_FAILED").Wrap(err)
		}
		if n == 0 {
			m.logger.DebugContext(ctx, "revoke of unknown refresh token ignored")
		}
		return nil
	})
}

// RevokeAll revokes every session of an account.
func (m *RefreshSessionManager) RevokeAll(ctx context.Context, accountID int64) (err error) {
	ctx, span := tracer.Start(ctx, "refresh.revoke_all",
		trace.WithAttributes(attribute.Int64("account.id", accountID)))
	defer func() {
		endSpan(span, err)
		refreshOperations.WithLabelValues("revoke_all", recordResult(err)).Inc()
	}()

	return m.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := m.lockAccount(ctx, accountID); err != nil {
			return err
		}
		n, err := m.repo.RevokeAllByAccount(ctx, accountID)
		if err != nil {
			return oops.Code("REFRESH_REVOKE_ALL_FAILED").With("account_id", accountID).Wrap(err)
		}
		m.logger.InfoContext(ctx, "revoked refresh sessions", "account_id", accountID, "count", n)
		return nil
	})
}

func (m *RefreshSessionManager) insert(ctx context.Context, accountID int64) (*IssuedRefresh, error) {
	raw, hash, err := GenerateOpaqueToken(RefreshTokenBytes)
	if err != nil {
		return nil, oops.Code("REFRESH_CREATE_FAILED").With("operation", "generate token").Wrap(err)
	}

	now := m.now()
	expiresAt := now.Add(m.cfg.TTL)
	session, err := NewRefreshSession(accountID, hash, expiresAt, now)
	if err != nil {
		return nil, oops.Code("REFRESH_CREATE_FAILED").With("operation", "build session").Wrap(err)
	}
	if m.cfg.PersistPlaintext {
		session.Token = &raw
	}

	if err := m.repo.Create(ctx, session); err != nil {
		return nil, oops.Code("REFRESH_CREATE_FAILED").
			With("operation", "persist session").
			With("account_id", accountID).
			Wrap(err)
	}
	return &IssuedRefresh{Token: raw, ExpiresAt: expiresAt, ExpiresIn: m.cfg.TTL}, nil
}

func (m *RefreshSessionManager) capped() bool {
	return m.cfg.MaxSessionsPerAccount > 0
}

// lockAccount holds the account row for the rest of the transaction so that
// concurrent issuers cannot both pass the cap. Without a cap there is nothing
// to serialise.
func (m *RefreshSessionManager) lockAccount(ctx context.Context, accountID int64) error {
	if !m.capped() {
		return nil
	}
	if err := m.repo.LockAccount(ctx, accountID); err != nil {
		return oops.Code("REFRESH_LOCK_FAILED").With("account_id", accountID).Wrap(err)
	}
	return nil
}

// enforceCap deletes the oldest stored sessions of an account beyond the
// configured maximum, revoked or not.
func (m *RefreshSessionManager) enforceCap(ctx context.Context, accountID int64) error {
	if !m.capped() {
		return nil
	}
	ids, err := m.repo.ListIDsByAccountOldestFirst(ctx, accountID)
	if err != nil {
		return oops.Code("REFRESH_CAP_FAILED").With("account_id", accountID).Wrap(err)
	}
	excess := len(ids) - m.cfg.MaxSessionsPerAccount
	if excess <= 0 {
		return nil
	}
	if _, err := m.repo.DeleteByIDs(ctx, ids[:excess]); err != nil {
		return oops.Code("REFRESH_CAP_FAILED").
			With("account_id", accountID).
			With("excess", excess).
			Wrap(err)
	}
	m.logger.DebugContext(ctx, "evicted oldest refresh sessions", "account_id", accountID, "count", excess)
	return nil
}

func (m *RefreshSessionManager) inactiveReason(s *RefreshSession) string {
	switch {
	case s.Revoked:
		return "revoked"
	case !s.ExpiresAt.After(m.now()):
		return "expired"
	default:
		return ""
	}
}

func (m *RefreshSessionManager) lookupFailure(ctx context.Context, op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return m.reject(ctx, "not_found")
	}
	return oops.Code("REFRESH_LOOKUP_FAILED").With("operation", op).Wrap(err)
}

func (m *RefreshSessionManager) reject(ctx context.Context, reason string) error {
	credentialRejections.WithLabelValues("refresh", reason).Inc()
	m.logger.DebugContext(ctx, "refresh token rejected", "reason", reason)
	return errUnauthorized()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
