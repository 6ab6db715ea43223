// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/authtokens/internal/auth"
)

// MockAccountDirectory is a mock implementation of auth.AccountDirectory.
type MockAccountDirectory struct {
	mock.Mock
}

var _ auth.AccountDirectory = (*MockAccountDirectory)(nil)

// NewMockAccountDirectory creates a MockAccountDirectory and registers expectation checks on cleanup.
func NewMockAccountDirectory(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockAccountDirectory {
	m := &MockAccountDirectory{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// GetByID provides a mock function for AccountDirectory.GetByID.
func (_m *MockAccountDirectory) GetByID(ctx context.Context, id int64) (*auth.AccountRef, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for GetByID")
	}

	if rf, ok := ret.Get(0).(func(context.Context, int64) (*auth.AccountRef, error)); ok {
		return rf(ctx, id)
	}

	var r0 *auth.AccountRef
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*auth.AccountRef)
	}
	return r0, ret.Error(1)
}

// GetByUsername provides a mock function for AccountDirectory.GetByUsername.
func (_m *MockAccountDirectory) GetByUsername(ctx context.Context, username string) (*auth.AccountRef, error) {
	ret := _m.Called(ctx, username)

	if len(ret) == 0 {
		panic("no return value specified for GetByUsername")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string) (*auth.AccountRef, error)); ok {
		return rf(ctx, username)
	}

	var r0 *auth.AccountRef
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*auth.AccountRef)
	}
	return r0, ret.Error(1)
}

// GetByEmail provides a mock function for AccountDirectory.GetByEmail.
func (_m *MockAccountDirectory) GetByEmail(ctx context.Context, email string) (*auth.AccountRef, error) {
	ret := _m.Called(ctx, email)

	if len(ret) == 0 {
		panic("no return value specified for GetByEmail")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string) (*auth.AccountRef, error)); ok {
		return rf(ctx, email)
	}

	var r0 *auth.AccountRef
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*auth.AccountRef)
	}
	return r0, ret.Error(1)
}

// ExistsByUsername provides a mock function for AccountDirectory.ExistsByUsername.
func (_m *MockAccountDirectory) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	ret := _m.Called(ctx, username)

	if len(ret) == 0 {
		panic("no return value specified for ExistsByUsername")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string) (bool, error)); ok {
		return rf(ctx, username)
	}

	r0 := ret.Get(0).(bool)
	return r0, ret.Error(1)
}

// ExistsByEmail provides a mock function for AccountDirectory.ExistsByEmail.
func (_m *MockAccountDirectory) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	ret := _m.Called(ctx, email)

	if len(ret) == 0 {
		panic("no return value specified for ExistsByEmail")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string) (bool, error)); ok {
		return rf(ctx, email)
	}

	r0 := ret.Get(0).(bool)
	return r0, ret.Error(1)
}

// UpdatePassword provides a mock function for AccountDirectory.UpdatePassword.
func (_m *MockAccountDirectory) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	ret := _m.Called(ctx, id, passwordHash)

	if len(ret) == 0 {
		panic("no return value specified for UpdatePassword")
	}

	if rf, ok := ret.Get(0).(func(context.Context, int64, string) error); ok {
		return rf(ctx, id, passwordHash)
	}
	return ret.Error(0)
}

// SetEnabled provides a mock function for AccountDirectory.SetEnabled.
func (_m *MockAccountDirectory) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	ret := _m.Called(ctx, id, enabled)

	if len(ret) == 0 {
		panic("no return value specified for SetEnabled")
	}

	if rf, ok := ret.Get(0).(func(context.Context, int64, bool) error); ok {
		return rf(ctx, id, enabled)
	}
	return ret.Error(0)
}
