// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/holomush/authtokens/internal/auth"
)

// MockRefreshSessionRepository is a mock implementation of auth.RefreshSessionRepository.
type MockRefreshSessionRepository struct {
	mock.Mock
}

var _ auth.RefreshSessionRepository = (*MockRefreshSessionRepository)(nil)

// NewMockRefreshSessionRepository creates a MockRefreshSessionRepository and registers expectation checks on cleanup.
func NewMockRefreshSessionRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRefreshSessionRepository {
	m := &MockRefreshSessionRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create provides a mock function for RefreshSessionRepository.Create.
func (_m *MockRefreshSessionRepository) Create(ctx context.Context, session *auth.RefreshSession) error {
	ret := _m.Called(ctx, session)

	if len(ret) == 0 {
		panic("no return value specified for Create")
	}

	if rf, ok := ret.Get(0).(func(context.Context, *auth.RefreshSession) error); ok {
		return rf(ctx, session)
	}
	return ret.Error(0)
}

// GetByTokenHash provides a mock function for RefreshSessionRepository.GetByTokenHash.
func (_m *MockRefreshSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.RefreshSession, error) {
	ret := _m.Called(ctx, tokenHash)

	if len(ret) == 0 {
		panic("no return value specified for GetByTokenHash")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string) (*auth.RefreshSession, error)); ok {
		return rf(ctx, tokenHash)
	}

	var r0 *auth.RefreshSession
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*auth.RefreshSession)
	}
	return r0, ret.Error(1)
}

// GetByTokenHashForUpdate provides a mock function for RefreshSessionRepository.GetByTokenHashForUpdate.
func (_m *MockRefreshSessionRepository) GetByTokenHashForUpdate(ctx context.Context, tokenHash string) (*auth.RefreshSession, error) {
	ret := _m.Called(ctx, tokenHash)

	if len(ret) == 0 {
		panic("no return value specified for GetByTokenHashForUpdate")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string) (*auth.RefreshSession, error)); ok {
		return rf(ctx, tokenHash)
	}

	var r0 *auth.RefreshSession
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*auth.RefreshSession)
	}
	return r0, ret.Error(1)
}

// MarkRevoked provides a mock function for RefreshSessionRepository.MarkRevoked.
func (_m *MockRefreshSessionRepository) MarkRevoked(ctx context.Context, id ulid.ULID) error {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for MarkRevoked")
	}

	if rf, ok := ret.Get(0).(func(context.Context, ulid.ULID) error); ok {
		return rf(ctx, id)
	}
	return ret.Error(0)
}

// RevokeByTokenHash provides a mock function for RefreshSessionRepository.RevokeByTokenHash.
func (_m *MockRefreshSessionRepository) RevokeByTokenHash(ctx context.Context, tokenHash string) (int64, error) {
	ret := _m.Called(ctx, tokenHash)

	if len(ret) == 0 {
		panic("no return value specified for RevokeByTokenHash")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string) (int64, error)); ok {
		return rf(ctx, tokenHash)
	}

	r0 := ret.Get(0).(int64)
	return r0, ret.Error(1)
}

// RevokeAllByAccount provides a mock function for RefreshSessionRepository.RevokeAllByAccount.
func (_m *MockRefreshSessionRepository) RevokeAllByAccount(ctx context.Context, accountID int64) (int64, error) {
	ret := _m.Called(ctx, accountID)

	if len(ret) == 0 {
		panic("no return value specified for RevokeAllByAccount")
	}

	if rf, ok := ret.Get(0).(func(context.Context, int64) (int64, error)); ok {
		return rf(ctx, accountID)
	}

	r0 := ret.Get(0).(int64)
	return r0, ret.Error(1)
}

// LockAccount provides a mock function for RefreshSessionRepository.LockAccount.
func (_m *MockRefreshSessionRepository) LockAccount(ctx context.Context, accountID int64) error {
	ret := _m.Called(ctx, accountID)

	if len(ret) == 0 {
		panic("no return value specified for LockAccount")
	}

	if rf, ok := ret.Get(0).(func(context.Context, int64) error); ok {
		return rf(ctx, accountID)
	}
	return ret.Error(0)
}

// ListIDsByAccountOldestFirst provides a mock function for RefreshSessionRepository.ListIDsByAccountOldestFirst.
func (_m *MockRefreshSessionRepository) ListIDsByAccountOldestFirst(ctx context.Context, accountID int64) ([]ulid.ULID, error) {
	ret := _m.Called(ctx, accountID)

	if len(ret) == 0 {
		panic("no return value specified for ListIDsByAccountOldestFirst")
	}

	if rf, ok := ret.Get(0).(func(context.Context, int64) ([]ulid.ULID, error)); ok {
		return rf(ctx, accountID)
	}

	var r0 []ulid.ULID
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]ulid.ULID)
	}
	return r0, ret.Error(1)
}

// DeleteByIDs provides a mock function for RefreshSessionRepository.DeleteByIDs.
func (_m *MockRefreshSessionRepository) DeleteByIDs(ctx context.Context, ids []ulid.ULID) (int64, error) {
	ret := _m.Called(ctx, ids)

	if len(ret) == 0 {
		panic("no return value specified for DeleteByIDs")
	}

	if rf, ok := ret.Get(0).(func(context.Context, []ulid.ULID) (int64, error)); ok {
		return rf(ctx, ids)
	}

	r0 := ret.Get(0).(int64)
	return r0, ret.Error(1)
}

// DeleteRevokedExpiredBefore provides a mock function for RefreshSessionRepository.DeleteRevokedExpiredBefore.
func (_m *MockRefreshSessionRepository) DeleteRevokedExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	ret := _m.Called(ctx, t)

	if len(ret) == 0 {
		panic("no return value specified for DeleteRevokedExpiredBefore")
	}

	if rf, ok := ret.Get(0).(func(context.Context, time.Time) (int64, error)); ok {
		return rf(ctx, t)
	}

	r0 := ret.Get(0).(int64)
	return r0, ret.Error(1)
}

// DeleteExpiredBefore provides a mock function for RefreshSessionRepository.DeleteExpiredBefore.
func (_m *MockRefreshSessionRepository) DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	ret := _m.Called(ctx, t)

	if len(ret) == 0 {
		panic("no return value specified for DeleteExpiredBefore")
	}

	if rf, ok := ret.Get(0).(func(context.Context, time.Time) (int64, error)); ok {
		return rf(ctx, t)
	}

	r0 := ret.Get(0).(int64)
	return r0, ret.Error(1)
}

// ListMissingHash provides a mock function for RefreshSessionRepository.ListMissingHash.
func (_m *MockRefreshSessionRepository) ListMissingHash(ctx context.Context, limit int) ([]auth.LegacySession, error) {
	ret := _m.Called(ctx, limit)

	if len(ret) == 0 {
		panic("no return value specified for ListMissingHash")
	}

	if rf, ok := ret.Get(0).(func(context.Context, int) ([]auth.LegacySession, error)); ok {
		return rf(ctx, limit)
	}

	var r0 []auth.LegacySession
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]auth.LegacySession)
	}
	return r0, ret.Error(1)
}

// SetTokenHash provides a mock function for RefreshSessionRepository.SetTokenHash.
func (_m *MockRefreshSessionRepository) SetTokenHash(ctx context.Context, id ulid.ULID, tokenHash string, clearPlaintext bool) error {
	ret := _m.Called(ctx, id, tokenHash, clearPlaintext)

	if len(ret) == 0 {
		panic("no return value specified for SetTokenHash")
	}

	if rf, ok := ret.Get(0).(func(context.Context, ulid.ULID, string, bool) error); ok {
		return rf(ctx, id, tokenHash, clearPlaintext)
	}
	return ret.Error(0)
}
