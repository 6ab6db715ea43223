// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/holomush/authtokens/internal/auth"
)

const accountColumns = `
	a.id, a.username, a.email, a.password_hash, a.enabled, a.created_at,
	COALESCE((SELECT array_agg(r.role ORDER BY r.role) FROM account_roles r WHERE r.account_id = a.id), '{}')`

// AccountRepository implements auth.AccountDirectory using PostgreSQL.
type AccountRepository struct {
	pool Pool
	tx   *Transactor
}

var _ auth.AccountDirectory = (*AccountRepository)(nil)

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool Pool) *AccountRepository {
	return &AccountRepository{pool: pool, tx: NewTransactor(pool)}
}

// Create inserts account and its roles, setting ID and CreatedAt.
// A duplicate username or email fails with ACCOUNT_CONFLICT.
//
// Accounts are owned by the account service; nothing in this module
// registers users. Create exists to seed rows for the integration suite, so
// it is not part of auth.AccountRepository.
func (r *AccountRepository) Create(ctx context.Context, account *auth.AccountRef) error {
	return r.tx.InTransaction(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.pool)
		err := db.QueryRow(ctx, `
			INSERT INTO accounts (username, email, password_hash, enabled)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`, account.Username, auth.NormalizeEmail(account.Email), account.PasswordHash, account.Enabled,
		).Scan(&account.ID, &account.CreatedAt)
		if isUniqueViolation(err) {
			return oops.Code("ACCOUNT_CONFLICT").
				With("username", account.Username).
				Wrap(auth.ErrConflict)
		}
		if err != nil {
			return oops.Code("ACCOUNT_CREATE_FAILED").With("operation", "insert account").Wrap(err)
		}

		for _, role := range account.Roles {
			if _, err := db.Exec(ctx,
				`INSERT INTO account_roles (account_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				account.ID, role,
			); err != nil {
				return oops.Code("ACCOUNT_CREATE_FAILED").
					With("operation", "insert role").
					With("role", role).
					Wrap(err)
			}
		}
		return nil
	})
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*auth.AccountRef, error) {
	return r.getOne(ctx, "a.id = $1", id)
}

// GetByUsername retrieves an account by exact username.
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*auth.AccountRef, error) {
	return r.getOne(ctx, "a.username = $1", username)
}

// GetByEmail retrieves an account by email, ignoring case.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.AccountRef, error) {
	return r.getOne(ctx, "lower(a.email) = lower($1)", email)
}

// ExistsByUsername reports whether username is taken.
func (r *AccountRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`, username)
}

// ExistsByEmail reports whether email is registered, ignoring case.
func (r *AccountRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE lower(email) = lower($1))`, email)
}

// UpdatePassword replaces the stored password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.update(ctx, id, "update password",
		`UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1`, passwordHash)
}

// SetEnabled sets the enabled flag.
func (r *AccountRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	return r.update(ctx, id, "set enabled",
		`UPDATE accounts SET enabled = $2, updated_at = now() WHERE id = $1`, enabled)
}

func (r *AccountRepository) getOne(ctx context.Context, where string, arg any) (*auth.AccountRef, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE `+where, arg)

	var a auth.AccountRef
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Enabled, &a.CreatedAt, &a.Roles)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").With("operation", "select account").Wrap(err)
	}
	return &a, nil
}

func (r *AccountRepository) exists(ctx context.Context, query string, arg any) (bool, error) {
	var ok bool
	if err := conn(ctx, r.pool).QueryRow(ctx, query, arg).Scan(&ok); err != nil {
		return false, oops.Code("ACCOUNT_GET_FAILED").With("operation", "check existence").Wrap(err)
	}
	return ok, nil
}

func (r *AccountRepository) update(ctx context.Context, id int64, op, query string, arg any) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, query, id, arg)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").With("operation", op).With("account_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("account_id", id).Wrap(auth.ErrNotFound)
	}
	return nil
}
