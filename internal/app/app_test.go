// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authtokens/internal/app"
	"github.com/holomush/authtokens/internal/auth"
	"github.com/holomush/authtokens/internal/auth/authtest"
	"github.com/holomush/authtokens/internal/config"
	"github.com/holomush/authtokens/pkg/errutil"
)

const secret = "0123456789abcdef0123456789abcdef-app-test"

type harness struct {
	app    *app.App
	store  *authtest.Store
	outbox *authtest.Outbox
	clock  *authtest.Clock
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Bearer.Secret = secret
	cfg.PasswordReset.MinRequestDuration = 0
	for _, m := range mutate {
		m(cfg)
	}
	require.NoError(t, cfg.Validate())

	store := authtest.NewStore()
	outbox := &authtest.Outbox{}
	clock := authtest.NewClock(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := app.Build(cfg, app.Storage{
		Accounts: store.Accounts(),
		Sessions: store.Sessions(),
		Actions:  store.Actions(),
		Tx:       store,
	}, outbox, nil, logger, auth.WithClock(clock.Now))
	require.NoError(t, err)
	return &harness{app: a, store: store, outbox: outbox, clock: clock}
}

func (h *harness) addAccount(t *testing.T, username, password string, enabled bool) *auth.AccountRef {
	t.Helper()
	hash, err := auth.NewArgon2idHasher().Hash(password)
	require.NoError(t, err)
	return h.store.AddAccount(auth.AccountRef{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Enabled:      enabled,
		Roles:        []string{"user"},
	})
}

func TestBuild_LoginRefreshLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.addAccount(t, "alice", "correct horse", true)

	pair, err := h.app.Service.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, auth.TokenTypeBearer, pair.TokenType)
	assert.Equal(t, 15*time.Minute, pair.ExpiresIn)
	assert.Equal(t, 7*24*time.Hour, pair.RefreshExpiresIn)

	claims, err := h.app.Service.Authenticate(ctx, "Bearer "+pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, claims.AccountID)
	assert.Equal(t, "authtokens", claims.Issuer)

	next, err := h.app.Service.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	_, err = h.app.Service.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, auth.ErrUnauthorized)

	require.NoError(t, h.app.Service.Logout(ctx, next.RefreshToken))
	_, err = h.app.Refresh.Validate(ctx, next.RefreshToken)
	require.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestBuild_PasswordResetRevokesSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addAccount(t, "bob", "old password", true)

	pair, err := h.app.Service.Login(ctx, "bob", "old password")
	require.NoError(t, err)

	require.NoError(t, h.app.PasswordReset.RequestReset(ctx, "BOB@example.com"))
	sent := h.outbox.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Body, auth.DefaultFrontendURL+"/reset-password?token=")

	require.NoError(t, h.app.PasswordReset.ResetPassword(ctx, authtest.TokenFrom(sent[0].Body), "new password"))

	_, err = h.app.Refresh.Validate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, auth.ErrUnauthorized)
	_, err = h.app.Service.Login(ctx, "bob", "old password")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = h.app.Service.Login(ctx, "bob", "new password")
	require.NoError(t, err)
}

func TestBuild_EmailVerificationEnablesLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.addAccount(t, "carol", "pw", false)

	_, err := h.app.Service.Login(ctx, "carol", "pw")
	require.ErrorIs(t, err, auth.ErrAccountDisabled)

	require.NoError(t, h.app.EmailVerification.Send(ctx, acct))
	sent := h.outbox.Sent()
	require.Len(t, sent, 1)

	target := h.app.EmailVerification.ConfirmAndRedirect(ctx, authtest.TokenFrom(sent[0].Body))
	assert.Equal(t, auth.DefaultVerifiedURL, target)

	_, err = h.app.Service.Login(ctx, "carol", "pw")
	require.NoError(t, err)
}

func TestBuild_SessionCapFromConfig(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Refresh.MaxSessionsPerAccount = 2 })
	ctx := context.Background()
	acct := h.addAccount(t, "dave", "pw", true)

	for range 4 {
		_, err := h.app.Refresh.Create(ctx, acct)
		require.NoError(t, err)
		h.clock.Advance(time.Second)
	}
	assert.Len(t, h.store.SessionsOf(acct.ID), 2)
}

func TestBuild_CleanupAndBackfill(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Refresh.TTL = time.Hour })
	ctx := context.Background()
	acct := h.addAccount(t, "erin", "pw", true)

	_, err := h.app.Refresh.Create(ctx, acct)
	require.NoError(t, err)
	h.clock.Advance(2 * time.Hour)

	report, err := h.app.Cleanup.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Expired)

	backfill, err := h.app.Backfill(auth.BackfillConfig{BatchSize: 10})
	require.NoError(t, err)
	n, err := backfill.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBuild_Validation(t *testing.T) {
	cfg := config.Default()
	cfg.Bearer.Secret = secret
	store := authtest.NewStore()

	_, err := app.Build(cfg, app.Storage{}, &authtest.Outbox{}, nil, nil)
	require.Error(t, err)

	cfg.Bearer.Secret = "too short"
	_, err = app.Build(cfg, app.Storage{
		Accounts: store.Accounts(), Sessions: store.Sessions(), Actions: store.Actions(), Tx: store,
	}, &authtest.Outbox{}, nil, nil)
	errutil.AssertErrorCode(t, err, "BEARER_KEY_INVALID")
}

func TestApp_CloseRunsClosersInReverse(t *testing.T) {
	h := newHarness(t)
	var order []string
	h.app.OnClose(func(context.Context) error { order = append(order, "first"); return nil })
	h.app.OnClose(func(context.Context) error { order = append(order, "second"); return errors.New("boom") })

	err := h.app.Close(context.Background())
	errutil.AssertErrorCode(t, err, "APP_CLOSE_FAILED")
	assert.Equal(t, []string{"second", "first"}, order)
	assert.NoError(t, h.app.Close(context.Background()))
}

func TestOpen_RequiresDatabase(t *testing.T) {
	cfg := config.Default()
	cfg.Bearer.Secret = secret

	_, err := app.Open(context.Background(), cfg, nil)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}
