// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Purpose distinguishes the kinds of single-use action token.
type Purpose string

// Supported purposes.
const (
	PurposePasswordReset     Purpose = "password_reset"
	PurposeEmailVerification Purpose = "email_verification"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposePasswordReset || p == PurposeEmailVerification
}

// ActionToken is a stored single-use token.
type ActionToken struct {
	ID        ulid.ULID
	Purpose   Purpose
	AccountID int64
	TokenHash string
	ExpiresAt time.Time
	// UsedAt is set once on consumption and never cleared.
	UsedAt    *time.Time
	CreatedAt time.Time
}

// NewActionToken creates an ActionToken with validated fields.
func NewActionToken(purpose Purpose, accountID int64, tokenHash string, expiresAt, now time.Time) (*ActionToken, error) {
	if !purpose.Valid() {
		return nil, oops.Code("ACTION_TOKEN_INVALID_PURPOSE").
			With("purpose", string(purpose)).
			Errorf("unknown token purpose")
	}
	if accountID <= 0 {
		return nil, oops.Code("ACTION_TOKEN_INVALID_ACCOUNT").
			With("account_id", accountID).
			Errorf("account ID must be positive")
	}
	if tokenHash == "" {
		return nil, oops.Code("ACTION_TOKEN_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if !expiresAt.After(now) {
		return nil, oops.Code("ACTION_TOKEN_INVALID_EXPIRY").
			With("expires_at", expiresAt).
			Errorf("expiry must be in the future")
	}
	return &ActionToken{
		ID:        ulid.Make(),
		Purpose:   purpose,
		AccountID: accountID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// IsUsed reports whether the token has been consumed.
func (t *ActionToken) IsUsed() bool {
	return t.UsedAt != nil
}

// IsExpiredAt reports whether the token has expired at the given time.
func (t *ActionToken) IsExpiredAt(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// ActionTokenRepository manages action token persistence.
type ActionTokenRepository interface {
	// Create stores a new token.
	// Returns ErrConflict if the fingerprint already exists.
	Create(ctx context.Context, token *ActionToken) error

	// GetByTokenHash retrieves a token by purpose and fingerprint.
	// Returns ErrNotFound if no such token exists.
	GetByTokenHash(ctx context.Context, purpose Purpose, tokenHash string) (*ActionToken, error)

	// GetByTokenHashForUpdate is GetByTokenHash with a row lock held until
	// the surrounding transaction ends.
	GetByTokenHashForUpdate(ctx context.Context, purpose Purpose, tokenHash string) (*ActionToken, error)

	// MarkUsed sets used_at on an unused token.
	// Returns ErrNotFound if no unused token with this ID exists.
	MarkUsed(ctx context.Context, id ulid.ULID, usedAt time.Time) error

	// Delete removes one token.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteUnusedByAccount removes the unused tokens of one purpose for an
	// account.
	DeleteUnusedByAccount(ctx context.Context, purpose Purpose, accountID int64) (int64, error)

	// DeleteExpiredBefore removes tokens of any purpose that expired before t.
	DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error)
}
