// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/authtokens/internal/auth"
)

const actionTokenSelect = `
	SELECT id, purpose, account_id, token_hash, expires_at, used_at, created_at
	FROM action_tokens
	WHERE purpose = $1 AND token_hash = $2`

// ActionTokenRepository implements auth.ActionTokenRepository using PostgreSQL.
// Password-reset and email-verification tokens share one table keyed by purpose.
type ActionTokenRepository struct {
	pool Pool
}

var _ auth.ActionTokenRepository = (*ActionTokenRepository)(nil)

// NewActionTokenRepository creates a new ActionTokenRepository.
func NewActionTokenRepository(pool Pool) *ActionTokenRepository {
	return &ActionTokenRepository{pool: pool}
}

// Create stores a new token.
func (r *ActionTokenRepository) Create(ctx context.Context, t *auth.ActionToken) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO action_tokens (id, purpose, account_id, token_hash, expires_at, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID.String(), string(t.Purpose), t.AccountID, t.TokenHash, t.ExpiresAt, t.UsedAt, t.CreatedAt)
	if isUniqueViolation(err) {
		return oops.Code("ACTION_TOKEN_DUPLICATE_HASH").With("purpose", string(t.Purpose)).Wrap(auth.ErrConflict)
	}
	if err != nil {
		return oops.Code("ACTION_TOKEN_CREATE_FAILED").
			With("purpose", string(t.Purpose)).
			With("account_id", t.AccountID).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash reads a token without locking.
func (r *ActionTokenRepository) GetByTokenHash(ctx context.Context, purpose auth.Purpose, tokenHash string) (*auth.ActionToken, error) {
	return r.get(ctx, actionTokenSelect, purpose, tokenHash)
}

// GetByTokenHashForUpdate reads a token and locks its row.
func (r *ActionTokenRepository) GetByTokenHashForUpdate(ctx context.Context, purpose auth.Purpose, tokenHash string) (*auth.ActionToken, error) {
	return r.get(ctx, actionTokenSelect+` FOR UPDATE`, purpose, tokenHash)
}

func (r *ActionTokenRepository) get(ctx context.Context, query string, purpose auth.Purpose, tokenHash string) (*auth.ActionToken, error) {
	var (
		t          auth.ActionToken
		id, stored string
	)
	err := conn(ctx, r.pool).QueryRow(ctx, query, string(purpose), tokenHash).Scan(
		&id, &stored, &t.AccountID, &t.TokenHash, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACTION_TOKEN_NOT_FOUND").With("purpose", string(purpose)).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACTION_TOKEN_GET_FAILED").With("purpose", string(purpose)).Wrap(err)
	}
	if t.ID, err = parseID(id, "token_id"); err != nil {
		return nil, oops.Code("ACTION_TOKEN_GET_FAILED").Wrap(err)
	}
	t.Purpose = auth.Purpose(stored)
	return &t, nil
}

// MarkUsed sets used_at on an unused token.
func (r *ActionTokenRepository) MarkUsed(ctx context.Context, id ulid.ULID, usedAt time.Time) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE action_tokens SET used_at = $2 WHERE id = $1 AND used_at IS NULL`, id.String(), usedAt)
	if err != nil {
		return oops.Code("ACTION_TOKEN_UPDATE_FAILED").With("token_id", id.String()).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACTION_TOKEN_NOT_FOUND").With("token_id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes one token.
func (r *ActionTokenRepository) Delete(ctx context.Context, id ulid.ULID) error {
	_, err := r.exec(ctx, "delete", `DELETE FROM action_tokens WHERE id = $1`, id.String())
	return err
}

// DeleteUnusedByAccount removes the account's unused tokens of purpose.
func (r *ActionTokenRepository) DeleteUnusedByAccount(ctx context.Context, purpose auth.Purpose, accountID int64) (int64, error) {
	return r.exec(ctx, "delete unused",
		`DELETE FROM action_tokens WHERE purpose = $1 AND account_id = $2 AND used_at IS NULL`,
		string(purpose), accountID)
}

// DeleteExpiredBefore removes every token, used or not, that expired before t.
func (r *ActionTokenRepository) DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	return r.exec(ctx, "delete expired", `DELETE FROM action_tokens WHERE expires_at < $1`, t)
}

func (r *ActionTokenRepository) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return 0, oops.Code("ACTION_TOKEN_DELETE_FAILED").With("operation", op).Wrap(err)
	}
	return tag.RowsAffected(), nil
}
