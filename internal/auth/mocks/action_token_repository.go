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

// MockActionTokenRepository is a mock implementation of auth.ActionTokenRepository.
type MockActionTokenRepository struct {
	mock.Mock
}

var _ auth.ActionTokenRepository = (*MockActionTokenRepository)(nil)

// NewMockActionTokenRepository creates a MockActionTokenRepository and registers expectation checks on cleanup.
func NewMockActionTokenRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockActionTokenRepository {
	m := &MockActionTokenRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create provides a mock function for ActionTokenRepository.Create.
func (_m *MockActionTokenRepository) Create(ctx context.Context, token *auth.ActionToken) error {
	ret := _m.Called(ctx, token)

	if len(ret) == 0 {
		panic("no return value specified for Create")
	}

	if rf, ok := ret.Get(0).(func(context.Context, *auth.ActionToken) error); ok {
		return rf(ctx, token)
	}
	return ret.Error(0)
}

// GetByTokenHash provides a mock function for ActionTokenRepository.GetByTokenHash.
func (_m *MockActionTokenRepository) GetByTokenHash(ctx context.Context, purpose auth.Purpose, tokenHash string) (*auth.ActionToken, error) {
	ret := _m.Called(ctx, purpose, tokenHash)

	if len(ret) == 0 {
		panic("no return value specified for GetByTokenHash")
	}

	if rf, ok := ret.Get(0).(func(context.Context, auth.Purpose, string) (*auth.ActionToken, error)); ok {
		return rf(ctx, purpose, tokenHash)
	}

	var r0 *auth.ActionToken
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*auth.ActionToken)
	}
	return r0, ret.Error(1)
}

// GetByTokenHashForUpdate provides a mock function for ActionTokenRepository.GetByTokenHashForUpdate.
func (_m *MockActionTokenRepository) GetByTokenHashForUpdate(ctx context.Context, purpose auth.Purpose, tokenHash string) (*auth.ActionToken, error) {
	ret := _m.Called(ctx, purpose, tokenHash)

	if len(ret) == 0 {
		panic("no return value specified for GetByTokenHashForUpdate")
	}

	if rf, ok := ret.Get(0).(func(context.Context, auth.Purpose, string) (*auth.ActionToken, error)); ok {
		return rf(ctx, purpose, tokenHash)
	}

	var r0 *auth.ActionToken
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*auth.ActionToken)
	}
	return r0, ret.Error(1)
}

// MarkUsed provides a mock function for ActionTokenRepository.MarkUsed.
func (_m *MockActionTokenRepository) MarkUsed(ctx context.Context, id ulid.ULID, usedAt time.Time) error {
	ret := _m.Called(ctx, id, usedAt)

	if len(ret) == 0 {
		panic("no return value specified for MarkUsed")
	}

	if rf, ok := ret.Get(0).(func(context.Context, ulid.ULID, time.Time) error); ok {
		return rf(ctx, id, usedAt)
	}
	return ret.Error(0)
}

// Delete provides a mock function for ActionTokenRepository.Delete.
func (_m *MockActionTokenRepository) Delete(ctx context.Context, id ulid.ULID) error {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for Delete")
	}

	if rf, ok := ret.Get(0).(func(context.Context, ulid.ULID) error); ok {
		return rf(ctx, id)
	}
	return ret.Error(0)
}

// DeleteUnusedByAccount provides a mock function for ActionTokenRepository.DeleteUnusedByAccount.
func (_m *MockActionTokenRepository) DeleteUnusedByAccount(ctx context.Context, purpose auth.Purpose, accountID int64) (int64, error) {
	ret := _m.Called(ctx, purpose, accountID)

	if len(ret) == 0 {
		panic("no return value specified for DeleteUnusedByAccount")
	}

	if rf, ok := ret.Get(0).(func(context.Context, auth.Purpose, int64) (int64, error)); ok {
		return rf(ctx, purpose, accountID)
	}

	r0 := ret.Get(0).(int64)
	return r0, ret.Error(1)
}

// DeleteExpiredBefore provides a mock function for ActionTokenRepository.DeleteExpiredBefore.
func (_m *MockActionTokenRepository) DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
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
