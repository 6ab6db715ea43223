// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authtokens/internal/app"
	"github.com/holomush/authtokens/internal/auth"
	"github.com/holomush/authtokens/internal/auth/authtest"
	"github.com/holomush/authtokens/internal/auth/bearer"
	"github.com/holomush/authtokens/internal/config"
	"github.com/holomush/authtokens/internal/observability"
	"github.com/holomush/authtokens/internal/xdg"
	"github.com/holomush/authtokens/pkg/errutil"
)

const testSecret = "0123456789abcdef0123456789abcdef-cli-test"

// memoryDeps opens the app over an in-memory store.
func memoryDeps(store *authtest.Store) *Deps {
	return &Deps{
		AppOpener: func(_ context.Context, cfg *config.Config, logger *slog.Logger) (*app.App, error) {
			return app.Build(cfg, app.Storage{
				Accounts: store.Accounts(),
				Sessions: store.Sessions(),
				Actions:  store.Actions(),
				Tx:       store,
			}, &authtest.Outbox{}, nil, logger)
		},
	}
}

func seedAccount(store *authtest.Store) *auth.AccountRef {
	return store.AddAccount(auth.AccountRef{
		Username: "alice",
		Email:    "alice@example.com",
		Enabled:  true,
	})
}

func seedExpired(store *authtest.Store, accountID int64) {
	past := time.Now().Add(-time.Hour)
	store.PutSession(auth.RefreshSession{
		ID:        ulid.Make(),
		AccountID: accountID,
		TokenHash: auth.HashToken("expired"),
		ExpiresAt: past,
		CreatedAt: past.Add(-time.Hour),
	})
	store.PutSession(auth.RefreshSession{
		ID:        ulid.Make(),
		AccountID: accountID,
		TokenHash: auth.HashToken("revoked"),
		ExpiresAt: past,
		Revoked:   true,
		CreatedAt: past.Add(-time.Hour),
	})
}

func TestCleanupCommand_RunsOnce(t *testing.T) {
	t.Setenv(config.EnvJWTSecret, testSecret)
	store := authtest.NewStore()
	acct := seedAccount(store)
	seedExpired(store, acct.ID)

	stdout, _, err := execute(t, newRootCmd(memoryDeps(store)), "cleanup")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Deleted 2 rows (revoked expired: 1, expired: 1, action tokens: 0)")
	assert.Empty(t, store.SessionsOf(acct.ID))
}

func TestCleanupCommand_RequiresSigningKey(t *testing.T) {
	t.Setenv(config.EnvJWTSecret, "")
	store := authtest.NewStore()

	_, _, err := execute(t, newRootCmd(memoryDeps(store)), "cleanup")
	require.Error(t, err)

	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	errutil.AssertErrorContext(t, err, "key", "bearer.secret")
}

func TestCleanupCommand_OpenError(t *testing.T) {
	t.Setenv(config.EnvJWTSecret, testSecret)
	deps := &Deps{
		AppOpener: func(context.Context, *config.Config, *slog.Logger) (*app.App, error) {
			return nil, errors.New("connection refused")
		},
	}

	_, _, err := execute(t, newRootCmd(deps), "cleanup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

type fakeObservabilityServer struct {
	mu      sync.Mutex
	addr    string
	started bool
	stopped bool
	metrics *observability.Metrics
}

func (f *fakeObservabilityServer) Start() (<-chan error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return make(chan error), nil
}

func (f *fakeObservabilityServer) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeObservabilityServer) Metrics() *observability.Metrics {
	return f.metrics
}

func TestCleanupCommand_Scheduled(t *testing.T) {
	t.Setenv(config.EnvJWTSecret, testSecret)
	store := authtest.NewStore()
	acct := seedAccount(store)
	seedExpired(store, acct.ID)

	srv := &fakeObservabilityServer{metrics: observability.NewMetrics(prometheus.NewRegistry())}
	deps := memoryDeps(store)
	deps.ObservabilityServerFactory = func(addr string, _ observability.ReadinessChecker, _ ...prometheus.Collector) ObservabilityServer {
		srv.addr = addr
		return srv
	}

	isolateConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	cmd := newRootCmd(deps)
	cmd.SetOut(&discardWriter{})
	cmd.SetErr(&discardWriter{})
	cmd.SetArgs([]string{"cleanup", "--schedule",
		"--cleanup-schedule", "* * * * * *",
		"--metrics-addr", "127.0.0.1:0"})
	require.NoError(t, cmd.ExecuteContext(ctx))

	assert.Equal(t, "127.0.0.1:0", srv.addr)
	assert.True(t, srv.started)
	assert.True(t, srv.stopped)
	assert.Empty(t, store.SessionsOf(acct.ID))
	assert.GreaterOrEqual(t, testutil.ToFloat64(srv.metrics.JobRuns.WithLabelValues(cleanupJobName, "ok")), 1.0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(srv.metrics.BuildInfo.WithLabelValues(version)), 0)
}

func TestCleanupCommand_InvalidSchedule(t *testing.T) {
	t.Setenv(config.EnvJWTSecret, testSecret)
	store := authtest.NewStore()

	_, _, err := execute(t, newRootCmd(memoryDeps(store)),
		"cleanup", "--schedule", "--cleanup-schedule", "every tuesday")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestBackfillCommand(t *testing.T) {
	t.Setenv(config.EnvJWTSecret, testSecret)
	store := authtest.NewStore()
	acct := seedAccount(store)
	for _, raw := range []string{"legacy-one", "legacy-two", "legacy-three"} {
		token := raw
		store.PutSession(auth.RefreshSession{
			ID:        ulid.Make(),
			AccountID: acct.ID,
			Token:     &token,
			ExpiresAt: time.Now().Add(time.Hour),
			CreatedAt: time.Now(),
		})
	}

	stdout, _, err := execute(t, newRootCmd(memoryDeps(store)),
		"backfill", "--batch-size", "2", "--clear-plaintext")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Backfilled 3 sessions")

	for _, rs := range store.SessionsOf(acct.ID) {
		assert.NotEmpty(t, rs.TokenHash)
		assert.Nil(t, rs.Token)
	}

	stdout, _, err = execute(t, newRootCmd(memoryDeps(store)), "backfill")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Backfilled 0 sessions")
}

func TestKeygenCommand_WritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")

	stdout, _, err := execute(t, NewRootCmd(), "keygen", "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, privateKeyFile)

	priv, err := os.ReadFile(filepath.Join(dir, privateKeyFile))
	require.NoError(t, err)
	pub, err := os.ReadFile(filepath.Join(dir, publicKeyFile))
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, privateKeyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	keys, err := bearer.NewAsymmetricKeys(priv, pub)
	require.NoError(t, err)
	assert.True(t, keys.CanSign())
	assert.Equal(t, "EdDSA", keys.Algorithm())
}

func TestKeygenCommand_SavesToConfigDir(t *testing.T) {
	stdout, _, err := execute(t, NewRootCmd(), "keygen", "--save")
	require.NoError(t, err)

	dir, err := xdg.KeysDir()
	require.NoError(t, err)
	assert.Contains(t, stdout, dir)
	assert.FileExists(t, filepath.Join(dir, privateKeyFile))
	assert.FileExists(t, filepath.Join(dir, publicKeyFile))
}

func TestKeygenCommand_PrintsRSA(t *testing.T) {
	stdout, _, err := execute(t, NewRootCmd(), "keygen", "--alg", bearer.AlgRSA)
	require.NoError(t, err)

	assert.Contains(t, stdout, "PRIVATE KEY")
	assert.Contains(t, stdout, "PUBLIC KEY")
}

func TestKeygenCommand_UnknownAlgorithm(t *testing.T) {
	_, _, err := execute(t, NewRootCmd(), "keygen", "--alg", "dsa")
	require.Error(t, err)
}

func TestConfigShow_RedactsSecrets(t *testing.T) {
	t.Setenv(config.EnvJWTSecret, testSecret)

	stdout, _, err := execute(t, NewRootCmd(), "config", "show",
		"--database-url", "postgres://authtokens:hunter2@db:5432/authtokens")
	require.NoError(t, err)

	assert.NotContains(t, stdout, testSecret)
	assert.NotContains(t, stdout, "hunter2")
	assert.Contains(t, stdout, "[REDACTED]")
	assert.Contains(t, stdout, "0 0 * * * *")
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		t.Setenv(config.EnvJWTSecret, testSecret)

		stdout, _, err := execute(t, NewRootCmd(), "config", "validate")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Configuration is valid")
	})

	t.Run("secret too short", func(t *testing.T) {
		t.Setenv(config.EnvJWTSecret, "short")

		_, _, err := execute(t, NewRootCmd(), "config", "validate")
		require.Error(t, err)
	})

	t.Run("invalid file", func(t *testing.T) {
		t.Setenv(config.EnvJWTSecret, testSecret)
		path := filepath.Join(t.TempDir(), "authtokens.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log:\n  format: xml\n"), 0o600))

		_, _, err := execute(t, NewRootCmd(), "config", "validate", "--config", path)
		require.Error(t, err)
	})
}

func TestConfigSchema(t *testing.T) {
	stdout, _, err := execute(t, NewRootCmd(), "config", "schema")
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &schema))
	assert.Contains(t, schema, "properties")
}
