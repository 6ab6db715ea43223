// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/holomush/authtokens/internal/auth"
	"github.com/holomush/authtokens/internal/auth/authtest"
)

var epoch = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fixture struct {
	ctx           context.Context
	store         *authtest.Store
	clock         *authtest.Clock
	outbox        *authtest.Outbox
	hasher        *auth.Argon2idHasher
	refresh       *auth.RefreshSessionManager
	resets        *auth.ActionTokenManager
	verifications *auth.ActionTokenManager
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, cfg auth.RefreshConfig) *fixture {
	t.Helper()
	if cfg.TTL == 0 {
		cfg.TTL = auth.DefaultRefreshTTL
	}

	f := &fixture{
		ctx:    context.Background(),
		store:  authtest.NewStore(),
		clock:  authtest.NewClock(epoch),
		outbox: &authtest.Outbox{},
		hasher: auth.NewArgon2idHasherWithParams(cheapParams),
	}

	var err error
	f.refresh, err = auth.NewRefreshSessionManager(f.store.Sessions(), f.store, cfg, f.opts()...)
	require.NoError(t, err)
	f.resets, err = auth.NewActionTokenManager(auth.PurposePasswordReset, f.store.Actions(), f.store, f.opts()...)
	require.NoError(t, err)
	f.verifications, err = auth.NewActionTokenManager(auth.PurposeEmailVerification, f.store.Actions(), f.store, f.opts()...)
	require.NoError(t, err)
	return f
}

func (f *fixture) opts() []auth.Option {
	return []auth.Option{auth.WithClock(f.clock.Now), auth.WithLogger(discardLogger())}
}

func (f *fixture) addAccount(t *testing.T, id int64, username, email, password string, enabled bool) *auth.AccountRef {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	return f.store.AddAccount(auth.AccountRef{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Enabled:      enabled,
		Roles:        []string{"user"},
		CreatedAt:    epoch,
	})
}
