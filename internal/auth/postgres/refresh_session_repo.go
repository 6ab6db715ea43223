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

// One joined read yields the session and its owner.
const sessionSelect = `
	SELECT s.id, s.account_id, s.token_hash, s.expires_at, s.revoked, s.created_at,
	       a.username, a.email, a.password_hash, a.enabled, a.created_at,
	       COALESCE((SELECT array_agg(r.role ORDER BY r.role) FROM account_roles r WHERE r.account_id = a.id), '{}')
	FROM refresh_sessions s
	JOIN accounts a ON a.id = s.account_id
	WHERE s.token_hash = $1`

// RefreshSessionRepository implements auth.RefreshSessionRepository using PostgreSQL.
type RefreshSessionRepository struct {
	pool Pool
}

var _ auth.RefreshSessionRepository = (*RefreshSessionRepository)(nil)

// NewRefreshSessionRepository creates a new RefreshSessionRepository.
func NewRefreshSessionRepository(pool Pool) *RefreshSessionRepository {
	return &RefreshSessionRepository{pool: pool}
}

// Create stores a new session.
func (r *RefreshSessionRepository) Create(ctx context.Context, s *auth.RefreshSession) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO refresh_sessions (id, account_id, token, token_hash, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID.String(), s.AccountID, s.Token, nullIfEmpty(s.TokenHash), s.ExpiresAt, s.Revoked, s.CreatedAt)
	if isUniqueViolation(err) {
		return oops.Code("REFRESH_SESSION_DUPLICATE_HASH").Wrap(auth.ErrConflict)
	}
	if err != nil {
		return oops.Code("REFRESH_SESSION_CREATE_FAILED").
			With("operation", "insert refresh_session").
			With("account_id", s.AccountID).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash reads a session and its account without locking.
func (r *RefreshSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.RefreshSession, error) {
	return r.get(ctx, sessionSelect, tokenHash)
}

// GetByTokenHashForUpdate reads a session and locks its row until the
// surrounding transaction ends.
func (r *RefreshSessionRepository) GetByTokenHashForUpdate(ctx context.Context, tokenHash string) (*auth.RefreshSession, error) {
	return r.get(ctx, sessionSelect+` FOR UPDATE OF s`, tokenHash)
}

func (r *RefreshSessionRepository) get(ctx context.Context, query, tokenHash string) (*auth.RefreshSession, error) {
	var (
		s    auth.RefreshSession
		a    auth.AccountRef
		id   string
		hash *string
	)
	err := conn(ctx, r.pool).QueryRow(ctx, query, tokenHash).Scan(
		&id, &s.AccountID, &hash, &s.ExpiresAt, &s.Revoked, &s.CreatedAt,
		&a.Username, &a.Email, &a.PasswordHash, &a.Enabled, &a.CreatedAt, &a.Roles,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("REFRESH_SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("REFRESH_SESSION_GET_FAILED").With("operation", "select refresh_session").Wrap(err)
	}

	if s.ID, err = parseID(id, "session_id"); err != nil {
		return nil, oops.Code("REFRESH_SESSION_GET_FAILED").Wrap(err)
	}
	if hash != nil {
		s.TokenHash = *hash
	}
	a.ID = s.AccountID
	s.Account = &a
	return &s, nil
}

// MarkRevoked revokes one session by ID.
func (r *RefreshSessionRepository) MarkRevoked(ctx context.Context, id ulid.ULID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE refresh_sessions SET revoked = TRUE WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("REFRESH_SESSION_UPDATE_FAILED").With("session_id", id.String()).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("REFRESH_SESSION_NOT_FOUND").With("session_id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// RevokeByTokenHash revokes the session with tokenHash, if any.
func (r *RefreshSessionRepository) RevokeByTokenHash(ctx context.Context, tokenHash string) (int64, error) {
	return r.exec(ctx, "revoke by token hash",
		`UPDATE refresh_sessions SET revoked = TRUE WHERE token_hash = $1 AND NOT revoked`, tokenHash)
}

// RevokeAllByAccount revokes every unrevoked session of an account.
func (r *RefreshSessionRepository) RevokeAllByAccount(ctx context.Context, accountID int64) (int64, error) {
	return r.exec(ctx, "revoke all by account",
		`UPDATE refresh_sessions SET revoked = TRUE WHERE account_id = $1 AND NOT revoked`, accountID)
}

// LockAccount takes a row lock on the owning account. FOR NO KEY UPDATE still
// admits foreign key checks from inserts of other rows.
func (r *RefreshSessionRepository) LockAccount(ctx context.Context, accountID int64) error {
	var one int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT 1 FROM accounts WHERE id = $1 FOR NO KEY UPDATE`, accountID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return oops.Code("ACCOUNT_NOT_FOUND").With("account_id", accountID).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.Code("REFRESH_SESSION_LOCK_FAILED").
			With("operation", "lock account").
			With("account_id", accountID).
			Wrap(err)
	}
	return nil
}

// ListIDsByAccountOldestFirst lists every stored session of an account,
// revoked or not, oldest first.
func (r *RefreshSessionRepository) ListIDsByAccountOldestFirst(ctx context.Context, accountID int64) ([]ulid.ULID, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id FROM refresh_sessions WHERE account_id = $1 ORDER BY created_at, id`, accountID)
	if err != nil {
		return nil, oops.Code("REFRESH_SESSION_LIST_FAILED").With("account_id", accountID).Wrap(err)
	}
	raw, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, oops.Code("REFRESH_SESSION_LIST_FAILED").With("account_id", accountID).Wrap(err)
	}

	ids := make([]ulid.ULID, 0, len(raw))
	for _, s := range raw {
		id, err := parseID(s, "session_id")
		if err != nil {
			return nil, oops.Code("REFRESH_SESSION_LIST_FAILED").Wrap(err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DeleteByIDs deletes the given sessions.
func (r *RefreshSessionRepository) DeleteByIDs(ctx context.Context, ids []ulid.ULID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return r.exec(ctx, "delete by ids",
		`DELETE FROM refresh_sessions WHERE id = ANY($1)`, idStrings(ids))
}

// DeleteRevokedExpiredBefore deletes revoked sessions that expired before t.
func (r *RefreshSessionRepository) DeleteRevokedExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	return r.exec(ctx, "delete revoked expired",
		`DELETE FROM refresh_sessions WHERE revoked AND expires_at < $1`, t)
}

// DeleteExpiredBefore deletes every session that expired before t.
func (r *RefreshSessionRepository) DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	return r.exec(ctx, "delete expired",
		`DELETE FROM refresh_sessions WHERE expires_at < $1`, t)
}

// ListMissingHash returns up to limit legacy sessions that still lack a
// fingerprint. Rows locked by a concurrent backfill are skipped.
func (r *RefreshSessionRepository) ListMissingHash(ctx context.Context, limit int) ([]auth.LegacySession, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, token FROM refresh_sessions
		WHERE token_hash IS NULL AND token IS NOT NULL
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, oops.Code("REFRESH_SESSION_LIST_FAILED").With("operation", "list missing hash").Wrap(err)
	}
	defer rows.Close()

	var out []auth.LegacySession
	for rows.Next() {
		var id, token string
		if err := rows.Scan(&id, &token); err != nil {
			return nil, oops.Code("REFRESH_SESSION_LIST_FAILED").With("operation", "scan legacy row").Wrap(err)
		}
		parsed, err := parseID(id, "session_id")
		if err != nil {
			return nil, oops.Code("REFRESH_SESSION_LIST_FAILED").Wrap(err)
		}
		out = append(out, auth.LegacySession{ID: parsed, Token: token})
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("REFRESH_SESSION_LIST_FAILED").With("operation", "iterate legacy rows").Wrap(err)
	}
	return out, nil
}

// SetTokenHash stores the fingerprint of a legacy session and optionally
// clears its plaintext.
func (r *RefreshSessionRepository) SetTokenHash(ctx context.Context, id ulid.ULID, tokenHash string, clearPlaintext bool) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE refresh_sessions
		SET token_hash = $2, token = CASE WHEN $3::boolean THEN NULL ELSE token END
		WHERE id = $1
	`, id.String(), tokenHash, clearPlaintext)
	if err != nil {
		return oops.Code("REFRESH_SESSION_UPDATE_FAILED").With("session_id", id.String()).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("REFRESH_SESSION_NOT_FOUND").With("session_id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

func (r *RefreshSessionRepository) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return 0, oops.Code("REFRESH_SESSION_UPDATE_FAILED").With("operation", op).Wrap(err)
	}
	return tag.RowsAffected(), nil
}
