// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RefreshSession is a stored refresh token. Only TokenHash identifies the
// session; the raw token is handed to the client once.
type RefreshSession struct {
	ID        ulid.ULID
	AccountID int64
	TokenHash string
	// Token holds the raw value only when legacy plaintext persistence is
	// enabled. Nil by default.
	Token     *string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time

	// Account is populated by the lookup methods that join the owner.
	Account *AccountRef
}

// NewRefreshSession creates a RefreshSession with validated fields.
func NewRefreshSession(accountID int64, tokenHash string, expiresAt, now time.Time) (*RefreshSession, error) {
	if accountID <= 0 {
		return nil, oops.Code("REFRESH_INVALID_ACCOUNT").
			With("account_id", accountID).
			Errorf("account ID must be positive")
	}
	if tokenHash == "" {
		return nil, oops.Code("REFRESH_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if !expiresAt.After(now) {
		return nil, oops.Code("REFRESH_INVALID_EXPIRY").
			With("expires_at", expiresAt).
			Errorf("expiry must be in the future")
	}
	return &RefreshSession{
		ID:        ulid.Make(),
		AccountID: accountID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// IsActiveAt reports whether the session is usable at t.
func (s *RefreshSession) IsActiveAt(t time.Time) bool {
	return !s.Revoked && s.ExpiresAt.After(t)
}

// LegacySession is a stored session that still has no fingerprint.
type LegacySession struct {
	ID    ulid.ULID
	Token string
}

// RefreshSessionRepository manages refresh session persistence.
type RefreshSessionRepository interface {
	// Create stores a new session.
	// Returns ErrConflict if the fingerprint already exists.
	Create(ctx context.Context, session *RefreshSession) error

	// GetByTokenHash retrieves a session and its owning account.
	// Returns ErrNotFound if no session has this fingerprint.
	GetByTokenHash(ctx context.Context, tokenHash string) (*RefreshSession, error)

	// GetByTokenHashForUpdate is GetByTokenHash with a row lock held until
	// the surrounding transaction ends.
	GetByTokenHashForUpdate(ctx context.Context, tokenHash string) (*RefreshSession, error)

	// MarkRevoked sets revoked on one session.
	// Returns ErrNotFound if the session does not exist.
	MarkRevoked(ctx context.Context, id ulid.ULID) error

	// RevokeByTokenHash sets revoked on the session with this fingerprint and
	// returns the number of rows changed.
	RevokeByTokenHash(ctx context.Context, tokenHash string) (int64, error)

	// RevokeAllByAccount sets revoked on every session of an account.
	RevokeAllByAccount(ctx context.Context, accountID int64) (int64, error)

	// LockAccount serialises session changes of one account until the
	// enclosing transaction ends. An unknown account fails with ErrNotFound.
	LockAccount(ctx context.Context, accountID int64) error

	// ListIDsByAccountOldestFirst returns every stored session ID of an
	// account ordered by creation, oldest first.
	ListIDsByAccountOldestFirst(ctx context.Context, accountID int64) ([]ulid.ULID, error)

	// DeleteByIDs removes the given sessions.
	DeleteByIDs(ctx context.Context, ids []ulid.ULID) (int64, error)

	// DeleteRevokedExpiredBefore removes revoked sessions that expired before t.
	DeleteRevokedExpiredBefore(ctx context.Context, t time.Time) (int64, error)

	// DeleteExpiredBefore removes sessions that expired before t.
	DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error)

	// ListMissingHash returns up to limit sessions that carry a plaintext
	// token but no fingerprint.
	ListMissingHash(ctx context.Context, limit int) ([]LegacySession, error)

	// SetTokenHash stores the fingerprint of a legacy session, optionally
	// clearing its plaintext token.
	SetTokenHash(ctx context.Context, id ulid.ULID, tokenHash string, clearPlaintext bool) error
}
