// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package authtest provides an in-memory implementation of the auth
// repositories for tests. Transactions are serialised and roll back on
// error, so concurrency properties can be exercised without a database.
package authtest

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/authtokens/internal/auth"
)

type txKey struct{}

// Store holds accounts, refresh sessions, and action tokens in memory.
// Accounts, Sessions, and Actions return views implementing the auth
// repository interfaces over the same data.
type Store struct {
	txMu   sync.Mutex
	dataMu sync.RWMutex

	nextAccountID int64
	accounts      map[int64]auth.AccountRef
	sessions      map[ulid.ULID]auth.RefreshSession
	actions       map[ulid.ULID]auth.ActionToken
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		nextAccountID: 1,
		accounts:      make(map[int64]auth.AccountRef),
		sessions:      make(map[ulid.ULID]auth.RefreshSession),
		actions:       make(map[ulid.ULID]auth.ActionToken),
	}
}

// InTransaction implements auth.Transactor. Calls are serialised; nested
// calls join the outer transaction. State is restored when fn fails.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.dataMu.RLock()
	accounts := maps.Clone(s.accounts)
	sessions := maps.Clone(s.sessions)
	actions := maps.Clone(s.actions)
	s.dataMu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, struct{}{})); err != nil {
		s.dataMu.Lock()
		s.accounts, s.sessions, s.actions = accounts, sessions, actions
		s.dataMu.Unlock()
		return err
	}
	return nil
}

// write runs fn under the data lock. Outside a transaction it also takes
// the transaction lock so it cannot interleave with one.
func (s *Store) write(ctx context.Context, fn func()) {
	if ctx.Value(txKey{}) == nil {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	fn()
}

// AddAccount stores a copy of a and returns it with its assigned ID.
func (s *Store) AddAccount(a auth.AccountRef) *auth.AccountRef {
	s.write(context.Background(), func() {
		if a.ID == 0 {
			a.ID = s.nextAccountID
		}
		if a.ID >= s.nextAccountID {
			s.nextAccountID = a.ID + 1
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now()
		}
		a.Roles = slices.Clone(a.Roles)
		s.accounts[a.ID] = a
	})
	return &a
}

// Account returns a snapshot of an account.
func (s *Store) Account(id int64) (auth.AccountRef, bool) {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	a, ok := s.accounts[id]
	return a, ok
}

// SessionsOf returns snapshots of an account's sessions, oldest first.
func (s *Store) SessionsOf(accountID int64) []auth.RefreshSession {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	var out []auth.RefreshSession
	for _, rs := range s.sessions {
		if rs.AccountID == accountID {
			out = append(out, rs)
		}
	}
	sortSessions(out)
	return out
}

// ActionTokensOf returns snapshots of an account's tokens of one purpose.
func (s *Store) ActionTokensOf(purpose auth.Purpose, accountID int64) []auth.ActionToken {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	var out []auth.ActionToken
	for _, t := range s.actions {
		if t.Purpose == purpose && t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out
}

// PutSession stores a session as is. Used to seed legacy or expired rows.
func (s *Store) PutSession(rs auth.RefreshSession) {
	s.write(context.Background(), func() {
		rs.Account = nil
		s.sessions[rs.ID] = rs
	})
}

// PutActionToken stores a token as is. Used to seed expired rows.
func (s *Store) PutActionToken(t auth.ActionToken) {
	s.write(context.Background(), func() {
		s.actions[t.ID] = t
	})
}

// Accounts returns the store as an auth.AccountDirectory.
func (s *Store) Accounts() *Accounts { return &Accounts{s: s} }

// Sessions returns the store as an auth.RefreshSessionRepository.
func (s *Store) Sessions() *Sessions { return &Sessions{s: s} }

// Actions returns the store as an auth.ActionTokenRepository.
func (s *Store) Actions() *Actions { return &Actions{s: s} }

// Accounts implements auth.AccountDirectory over a Store.
type Accounts struct{ s *Store }

var _ auth.AccountDirectory = (*Accounts)(nil)

func (r *Accounts) find(match func(auth.AccountRef) bool) (*auth.AccountRef, error) {
	r.s.dataMu.RLock()
	defer r.s.dataMu.RUnlock()
	for _, a := range r.s.accounts {
		if match(a) {
			a.Roles = slices.Clone(a.Roles)
			return &a, nil
		}
	}
	return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// GetByID implements auth.AccountDirectory.
func (r *Accounts) GetByID(_ context.Context, id int64) (*auth.AccountRef, error) {
	return r.find(func(a auth.AccountRef) bool { return a.ID == id })
}

// GetByUsername implements auth.AccountDirectory.
func (r *Accounts) GetByUsername(_ context.Context, username string) (*auth.AccountRef, error) {
	return r.find(func(a auth.AccountRef) bool { return a.Username == username })
}

// GetByEmail implements auth.AccountDirectory.
func (r *Accounts) GetByEmail(_ context.Context, email string) (*auth.AccountRef, error) {
	return r.find(func(a auth.AccountRef) bool { return strings.EqualFold(a.Email, email) })
}

// ExistsByUsername implements auth.AccountDirectory.
func (r *Accounts) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByUsername(ctx, username)
	return err == nil, nil
}

// ExistsByEmail implements auth.AccountDirectory.
func (r *Accounts) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

// UpdatePassword implements auth.AccountDirectory.
func (r *Accounts) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.update(ctx, id, func(a *auth.AccountRef) { a.PasswordHash = passwordHash })
}

// SetEnabled implements auth.AccountDirectory.
func (r *Accounts) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	return r.update(ctx, id, func(a *auth.AccountRef) { a.Enabled = enabled })
}

func (r *Accounts) update(ctx context.Context, id int64, fn func(*auth.AccountRef)) error {
	var err error
	r.s.write(ctx, func() {
		a, ok := r.s.accounts[id]
		if !ok {
			err = oops.Code("ACCOUNT_NOT_FOUND").With("account_id", id).Wrap(auth.ErrNotFound)
			return
		}
		fn(&a)
		r.s.accounts[id] = a
	})
	return err
}

// Sessions implements auth.RefreshSessionRepository over a Store.
type Sessions struct{ s *Store }

var _ auth.RefreshSessionRepository = (*Sessions)(nil)

// Create implements auth.RefreshSessionRepository.
func (r *Sessions) Create(ctx context.Context, session *auth.RefreshSession) error {
	var err error
	r.s.write(ctx, func() {
		for _, existing := range r.s.sessions {
			if existing.TokenHash != "" && existing.TokenHash == session.TokenHash {
				err = oops.Code("REFRESH_SESSION_DUPLICATE_HASH").Wrap(auth.ErrConflict)
				return
			}
		}
		stored := *session
		stored.Account = nil
		r.s.sessions[session.ID] = stored
	})
	return err
}

// GetByTokenHash implements auth.RefreshSessionRepository.
func (r *Sessions) GetByTokenHash(_ context.Context, tokenHash string) (*auth.RefreshSession, error) {
	r.s.dataMu.RLock()
	defer r.s.dataMu.RUnlock()
	for _, rs := range r.s.sessions {
		if rs.TokenHash == tokenHash && tokenHash != "" {
			if a, ok := r.s.accounts[rs.AccountID]; ok {
				a.Roles = slices.Clone(a.Roles)
				rs.Account = &a
			}
			return &rs, nil
		}
	}
	return nil, oops.Code("REFRESH_SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// GetByTokenHashForUpdate implements auth.RefreshSessionRepository.
// Transactions are already serialised, so no extra locking is needed.
func (r *Sessions) GetByTokenHashForUpdate(ctx context.Context, tokenHash string) (*auth.RefreshSession, error) {
	return r.GetByTokenHash(ctx, tokenHash)
}

// MarkRevoked implements auth.RefreshSessionRepository.
func (r *Sessions) MarkRevoked(ctx context.Context, id ulid.ULID) error {
	var err error
	r.s.write(ctx, func() {
		rs, ok := r.s.sessions[id]
		if !ok {
			err = oops.Code("REFRESH_SESSION_NOT_FOUND").With("session_id", id.String()).Wrap(auth.ErrNotFound)
			return
		}
		rs.Revoked = true
		r.s.sessions[id] = rs
	})
	return err
}

// RevokeByTokenHash implements auth.RefreshSessionRepository.
func (r *Sessions) RevokeByTokenHash(ctx context.Context, tokenHash string) (int64, error) {
	return r.revokeWhere(ctx, func(rs auth.RefreshSession) bool {
		return tokenHash != "" && rs.TokenHash == tokenHash
	}), nil
}

// RevokeAllByAccount implements auth.RefreshSessionRepository.
func (r *Sessions) RevokeAllByAccount(ctx context.Context, accountID int64) (int64, error) {
	return r.revokeWhere(ctx, func(rs auth.RefreshSession) bool { return rs.AccountID == accountID }), nil
}

func (r *Sessions) revokeWhere(ctx context.Context, match func(auth.RefreshSession) bool) int64 {
	var n int64
	r.s.write(ctx, func() {
		for id, rs := range r.s.sessions {
			if match(rs) && !rs.Revoked {
				rs.Revoked = true
				r.s.sessions[id] = rs
				n++
			}
		}
	})
	return n
}

// LockAccount implements auth.RefreshSessionRepository. Store transactions
// already run one at a time.
func (r *Sessions) LockAccount(_ context.Context, _ int64) error {
	return nil
}

// ListIDsByAccountOldestFirst implements auth.RefreshSessionRepository.
func (r *Sessions) ListIDsByAccountOldestFirst(_ context.Context, accountID int64) ([]ulid.ULID, error) {
	ids := make([]ulid.ULID, 0)
	for _, rs := range r.s.SessionsOf(accountID) {
		ids = append(ids, rs.ID)
	}
	return ids, nil
}

// DeleteByIDs implements auth.RefreshSessionRepository.
func (r *Sessions) DeleteByIDs(ctx context.Context, ids []ulid.ULID) (int64, error) {
	var n int64
	r.s.write(ctx, func() {
		for _, id := range ids {
			if _, ok := r.s.sessions[id]; ok {
				delete(r.s.sessions, id)
				n++
			}
		}
	})
	return n, nil
}

// DeleteRevokedExpiredBefore implements auth.RefreshSessionRepository.
func (r *Sessions) DeleteRevokedExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	return r.deleteWhere(ctx, func(rs auth.RefreshSession) bool { return rs.Revoked && rs.ExpiresAt.Before(t) }), nil
}

// DeleteExpiredBefore implements auth.RefreshSessionRepository.
func (r *Sessions) DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	return r.deleteWhere(ctx, func(rs auth.RefreshSession) bool { return rs.ExpiresAt.Before(t) }), nil
}

func (r *Sessions) deleteWhere(ctx context.Context, match func(auth.RefreshSession) bool) int64 {
	var n int64
	r.s.write(ctx, func() {
		for id, rs := range r.s.sessions {
			if match(rs) {
				delete(r.s.sessions, id)
				n++
			}
		}
	})
	return n
}

// ListMissingHash implements auth.RefreshSessionRepository.
func (r *Sessions) ListMissingHash(_ context.Context, limit int) ([]auth.LegacySession, error) {
	r.s.dataMu.RLock()
	var all []auth.RefreshSession
	for _, rs := range r.s.sessions {
		if rs.TokenHash == "" && rs.Token != nil {
			all = append(all, rs)
		}
	}
	r.s.dataMu.RUnlock()

	sortSessions(all)
	out := make([]auth.LegacySession, 0, min(limit, len(all)))
	for _, rs := range all {
		if len(out) == limit {
			break
		}
		out = append(out, auth.LegacySession{ID: rs.ID, Token: *rs.Token})
	}
	return out, nil
}

// SetTokenHash implements auth.RefreshSessionRepository.
func (r *Sessions) SetTokenHash(ctx context.Context, id ulid.ULID, tokenHash string, clearPlaintext bool) error {
	var err error
	r.s.write(ctx, func() {
		rs, ok := r.s.sessions[id]
		if !ok {
			err = oops.Code("REFRESH_SESSION_NOT_FOUND").With("session_id", id.String()).Wrap(auth.ErrNotFound)
			return
		}
		rs.TokenHash = tokenHash
		if clearPlaintext {
			rs.Token = nil
		}
		r.s.sessions[id] = rs
	})
	return err
}

func sortSessions(list []auth.RefreshSession) {
	slices.SortFunc(list, func(a, b auth.RefreshSession) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
}

// Actions implements auth.ActionTokenRepository over a Store.
type Actions struct{ s *Store }

var _ auth.ActionTokenRepository = (*Actions)(nil)

// Create implements auth.ActionTokenRepository.
func (r *Actions) Create(ctx context.Context, token *auth.ActionToken) error {
	var err error
	r.s.write(ctx, func() {
		for _, existing := range r.s.actions {
			if existing.TokenHash == token.TokenHash {
				err = oops.Code("ACTION_TOKEN_DUPLICATE_HASH").Wrap(auth.ErrConflict)
				return
			}
		}
		r.s.actions[token.ID] = *token
	})
	return err
}

// GetByTokenHash implements auth.ActionTokenRepository.
func (r *Actions) GetByTokenHash(_ context.Context, purpose auth.Purpose, tokenHash string) (*auth.ActionToken, error) {
	r.s.dataMu.RLock()
	defer r.s.dataMu.RUnlock()
	for _, t := range r.s.actions {
		if t.Purpose == purpose && t.TokenHash == tokenHash {
			return &t, nil
		}
	}
	return nil, oops.Code("ACTION_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// GetByTokenHashForUpdate implements auth.ActionTokenRepository.
func (r *Actions) GetByTokenHashForUpdate(ctx context.Context, purpose auth.Purpose, tokenHash string) (*auth.ActionToken, error) {
	return r.GetByTokenHash(ctx, purpose, tokenHash)
}

// MarkUsed implements auth.ActionTokenRepository.
func (r *Actions) MarkUsed(ctx context.Context, id ulid.ULID, usedAt time.Time) error {
	var err error
	r.s.write(ctx, func() {
		t, ok := r.s.actions[id]
		if !ok || t.UsedAt != nil {
			err = oops.Code("ACTION_TOKEN_NOT_FOUND").With("token_id", id.String()).Wrap(auth.ErrNotFound)
			return
		}
		t.UsedAt = &usedAt
		r.s.actions[id] = t
	})
	return err
}

// Delete implements auth.ActionTokenRepository.
func (r *Actions) Delete(ctx context.Context, id ulid.ULID) error {
	r.s.write(ctx, func() { delete(r.s.actions, id) })
	return nil
}

// DeleteUnusedByAccount implements auth.ActionTokenRepository.
func (r *Actions) DeleteUnusedByAccount(ctx context.Context, purpose auth.Purpose, accountID int64) (int64, error) {
	return r.deleteWhere(ctx, func(t auth.ActionToken) bool {
		return t.Purpose == purpose && t.AccountID == accountID && t.UsedAt == nil
	}), nil
}

// DeleteExpiredBefore implements auth.ActionTokenRepository.
func (r *Actions) DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	return r.deleteWhere(ctx, func(tok auth.ActionToken) bool { return tok.ExpiresAt.Before(t) }), nil
}

func (r *Actions) deleteWhere(ctx context.Context, match func(auth.ActionToken) bool) int64 {
	var n int64
	r.s.write(ctx, func() {
		for id, t := range r.s.actions {
			if match(t) {
				delete(r.s.actions, id)
				n++
			}
		}
	})
	return n
}
