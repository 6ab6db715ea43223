// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authtokens/internal/auth"
	"github.com/holomush/authtokens/pkg/errutil"
)

var sessionCols = []string{
	"id", "account_id", "token_hash", "expires_at", "revoked", "created_at",
	"username", "email", "password_hash", "enabled", "account_created_at", "roles",
}

func TestRefreshSessionRepository_Create(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	session, err := auth.NewRefreshSession(42, auth.HashToken("raw"), now.Add(time.Hour), now)
	require.NoError(t, err)

	t.Run("inserts", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec("INSERT INTO refresh_sessions").
			WithArgs(session.ID.String(), int64(42), pgxmock.AnyArg(), pgxmock.AnyArg(), session.ExpiresAt, false, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewRefreshSessionRepository(mock).Create(context.Background(), session))
	})

	t.Run("duplicate hash", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec("INSERT INTO refresh_sessions").
			WithArgs(session.ID.String(), int64(42), pgxmock.AnyArg(), pgxmock.AnyArg(), session.ExpiresAt, false, now).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		err := NewRefreshSessionRepository(mock).Create(context.Background(), session)
		errutil.AssertCodedSentinel(t, err, "REFRESH_SESSION_DUPLICATE_HASH", auth.ErrConflict)
	})
}

func TestRefreshSessionRepository_GetByTokenHash(t *testing.T) {
	id := ulid.Make()
	hash := auth.HashToken("raw")
	expires := time.Date(2026, 5, 11, 10, 0, 0, 0, time.UTC)
	created := expires.Add(-7 * 24 * time.Hour)

	t.Run("joins the account", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`FROM refresh_sessions s\s+JOIN accounts a`).
			WithArgs(hash).
			WillReturnRows(pgxmock.NewRows(sessionCols).AddRow(
				id.String(), int64(42), &hash, expires, false, created,
				"alice", "alice@example.com", "pw", true, created, []string{"user"},
			))

		got, err := NewRefreshSessionRepository(mock).GetByTokenHash(context.Background(), hash)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, hash, got.TokenHash)
		assert.Equal(t, expires, got.ExpiresAt)
		require.NotNil(t, got.Account)
		assert.Equal(t, int64(42), got.Account.ID)
		assert.Equal(t, "alice", got.Account.Username)
		assert.Equal(t, []string{"user"}, got.Account.Roles)
	})

	t.Run("locks for update", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`FOR UPDATE OF s`).WithArgs(hash).WillReturnError(pgx.ErrNoRows)

		_, err := NewRefreshSessionRepository(mock).GetByTokenHashForUpdate(context.Background(), hash)
		errutil.AssertCodedSentinel(t, err, "REFRESH_SESSION_NOT_FOUND", auth.ErrNotFound)
	})

	t.Run("database error", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`FROM refresh_sessions`).WithArgs(hash).WillReturnError(errors.New("connection reset"))

		_, err := NewRefreshSessionRepository(mock).GetByTokenHash(context.Background(), hash)
		errutil.AssertErrorCode(t, err, "REFRESH_SESSION_GET_FAILED")
		assert.NotErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestRefreshSessionRepository_Revocation(t *testing.T) {
	id := ulid.Make()

	t.Run("mark revoked", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec("UPDATE refresh_sessions SET revoked = TRUE WHERE id").WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		require.NoError(t, NewRefreshSessionRepository(mock).MarkRevoked(context.Background(), id))
	})

	t.Run("mark revoked missing", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec("UPDATE refresh_sessions").WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		err := NewRefreshSessionRepository(mock).MarkRevoked(context.Background(), id)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("revoke all", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec("WHERE account_id = \\$1 AND NOT revoked").WithArgs(int64(42)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 3))
		n, err := NewRefreshSessionRepository(mock).RevokeAllByAccount(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})
}

func TestRefreshSessionRepository_Cap(t *testing.T) {
	first, second := ulid.Make(), ulid.Make()

	mock := newMockPool(t)
	mock.ExpectQuery("ORDER BY created_at, id").WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(first.String()).AddRow(second.String()))
	mock.ExpectExec("DELETE FROM refresh_sessions WHERE id = ANY").WithArgs([]string{first.String()}).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	repo := NewRefreshSessionRepository(mock)
	ids, err := repo.ListIDsByAccountOldestFirst(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, []ulid.ULID{first, second}, ids)

	n, err := repo.DeleteByIDs(context.Background(), ids[:1])
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeleteByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRefreshSessionRepository_LockAccount(t *testing.T) {
	t.Run("locks the account row", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery("FROM accounts WHERE id = \\$1 FOR NO KEY UPDATE").WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows([]string{"one"}).AddRow(1))

		require.NoError(t, NewRefreshSessionRepository(mock).LockAccount(context.Background(), 42))
	})

	t.Run("unknown account", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery("FOR NO KEY UPDATE").WithArgs(int64(7)).WillReturnError(pgx.ErrNoRows)

		err := NewRefreshSessionRepository(mock).LockAccount(context.Background(), 7)
		errutil.AssertCodedSentinel(t, err, "ACCOUNT_NOT_FOUND", auth.ErrNotFound)
	})

	t.Run("database error", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery("FOR NO KEY UPDATE").WithArgs(int64(7)).WillReturnError(errors.New("lock timeout"))

		err := NewRefreshSessionRepository(mock).LockAccount(context.Background(), 7)
		errutil.AssertErrorCode(t, err, "REFRESH_SESSION_LOCK_FAILED")
		errutil.AssertErrorContext(t, err, "account_id", int64(7))
	})
}

func TestRefreshSessionRepository_CleanupQueries(t *testing.T) {
	cutoff := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	mock := newMockPool(t)
	mock.ExpectExec("WHERE revoked AND expires_at < \\$1").WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("DELETE FROM refresh_sessions WHERE expires_at < \\$1").WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectExec("DELETE FROM refresh_sessions").WithArgs(cutoff).
		WillReturnError(errors.New("statement timeout"))

	repo := NewRefreshSessionRepository(mock)
	n, err := repo.DeleteRevokedExpiredBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.DeleteExpiredBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	_, err = repo.DeleteExpiredBefore(context.Background(), cutoff)
	errutil.AssertErrorCode(t, err, "REFRESH_SESSION_UPDATE_FAILED")
}

func TestRefreshSessionRepository_Backfill(t *testing.T) {
	id := ulid.Make()

	mock := newMockPool(t)
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").WithArgs(100).
		WillReturnRows(pgxmock.NewRows([]string{"id", "token"}).AddRow(id.String(), "legacy"))
	mock.ExpectExec("SET token_hash = \\$2").WithArgs(id.String(), auth.HashToken("legacy"), true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewRefreshSessionRepository(mock)
	rows, err := repo.ListMissingHash(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, []auth.LegacySession{{ID: id, Token: "legacy"}}, rows)

	require.NoError(t, repo.SetTokenHash(context.Background(), id, auth.HashToken("legacy"), true))
}
