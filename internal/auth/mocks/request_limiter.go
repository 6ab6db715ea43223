// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/authtokens/internal/auth"
)

// MockRequestLimiter is a mock implementation of auth.RequestLimiter.
type MockRequestLimiter struct {
	mock.Mock
}

var _ auth.RequestLimiter = (*MockRequestLimiter)(nil)

// NewMockRequestLimiter creates a MockRequestLimiter and registers expectation checks on cleanup.
func NewMockRequestLimiter(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRequestLimiter {
	m := &MockRequestLimiter{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Allow provides a mock function for RequestLimiter.Allow.
func (_m *MockRequestLimiter) Allow(ctx context.Context, key string) (bool, error) {
	ret := _m.Called(ctx, key)

	if len(ret) == 0 {
		panic("no return value specified for Allow")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string) (bool, error)); ok {
		return rf(ctx, key)
	}

	r0 := ret.Get(0).(bool)
	return r0, ret.Error(1)
}
