// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authtokens/pkg/errutil"
)

type fakeMigrate struct {
	upErr, downErr, versionErr, forceErr error
	version                              uint
	dirty                                bool
	forced                               int
	closeSourceErr, closeDBErr           error
}

func (f *fakeMigrate) Up() error                    { return f.upErr }
func (f *fakeMigrate) Down() error                  { return f.downErr }
func (f *fakeMigrate) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeMigrate) Close() (error, error)        { return f.closeSourceErr, f.closeDBErr }

func (f *fakeMigrate) Force(v int) error {
	f.forced = v
	return f.forceErr
}

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/authtokens")
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestNewMigrator_PostgresqlSchemeIsRecognised(t *testing.T) {
	_, err := NewMigrator("postgresql://127.0.0.1:1/authtokens?connect_timeout=1")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "unknown driver")
}

func TestDriverURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@db/app":   "pgx5://u:p@db/app",
		"postgresql://u:p@db/app": "pgx5://u:p@db/app",
		"pgx5://u:p@db/app":       "pgx5://u:p@db/app",
	}
	for in, want := range tests {
		assert.Equal(t, want, driverURL(in), in)
	}
}

func TestMigrator_UpDown(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeMigrate
		run     func(*Migrator) error
		wantErr string
	}{
		{"up", &fakeMigrate{}, (*Migrator).Up, ""},
		{"up no change", &fakeMigrate{upErr: migrate.ErrNoChange}, (*Migrator).Up, ""},
		{"up failure", &fakeMigrate{upErr: errors.New("database locked")}, (*Migrator).Up, "MIGRATION_UP_FAILED"},
		{"down", &fakeMigrate{}, (*Migrator).Down, ""},
		{"down no change", &fakeMigrate{downErr: migrate.ErrNoChange}, (*Migrator).Down, ""},
		{"down failure", &fakeMigrate{downErr: errors.New("lock timeout")}, (*Migrator).Down, "MIGRATION_DOWN_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(&Migrator{m: tt.fake})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, tt.wantErr)
		})
	}
}

func TestMigrator_Version(t *testing.T) {
	t.Run("empty database", func(t *testing.T) {
		v, dirty, err := (&Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}).Version()
		require.NoError(t, err)
		assert.Zero(t, v)
		assert.False(t, dirty)
	})

	t.Run("dirty", func(t *testing.T) {
		v, dirty, err := (&Migrator{m: &fakeMigrate{version: 2, dirty: true}}).Version()
		require.NoError(t, err)
		assert.Equal(t, uint(2), v)
		assert.True(t, dirty)
	})

	t.Run("failure", func(t *testing.T) {
		_, _, err := (&Migrator{m: &fakeMigrate{versionErr: errors.New("no connection")}}).Version()
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_Force(t *testing.T) {
	fake := &fakeMigrate{}
	m := &Migrator{m: fake}

	require.NoError(t, m.Force(2))
	assert.Equal(t, 2, fake.forced)

	errutil.AssertErrorCode(t, m.Force(-1), "INVALID_VERSION")

	fake.forceErr = errors.New("no connection")
	errutil.AssertErrorCode(t, m.Force(1), "MIGRATION_FORCE_FAILED")
}

func TestMigrator_Status(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{version: 2}}

	st, err := m.Status()
	require.NoError(t, err)
	assert.Equal(t, uint(2), st.Version)
	assert.Equal(t, []Migration{{1, "accounts"}, {2, "refresh_sessions"}}, st.Applied)
	assert.Equal(t, []Migration{{3, "action_tokens"}}, st.Pending)

	st, err = (&Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}).Status()
	require.NoError(t, err)
	assert.Empty(t, st.Applied)
	assert.Len(t, st.Pending, 3)
}

func TestMigrator_Close(t *testing.T) {
	tests := []struct {
		name      string
		fake      *fakeMigrate
		component string
	}{
		{"clean", &fakeMigrate{}, ""},
		{"source", &fakeMigrate{closeSourceErr: errors.New("src")}, "source"},
		{"database", &fakeMigrate{closeDBErr: errors.New("db")}, "database"},
		{"both", &fakeMigrate{closeSourceErr: errors.New("src"), closeDBErr: errors.New("db")}, "both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Migrator{m: tt.fake}).Close()
			if tt.component == "" {
				assert.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.component)
		})
	}
}
