// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/authtokens/internal/auth"
)

// MockNotifier is a mock implementation of auth.Notifier.
type MockNotifier struct {
	mock.Mock
}

var _ auth.Notifier = (*MockNotifier)(nil)

// NewMockNotifier creates a MockNotifier and registers expectation checks on cleanup.
func NewMockNotifier(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Send provides a mock function for Notifier.Send.
func (_m *MockNotifier) Send(ctx context.Context, address string, subject string, body string) error {
	ret := _m.Called(ctx, address, subject, body)

	if len(ret) == 0 {
		panic("no return value specified for Send")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string, string, string) error); ok {
		return rf(ctx, address, subject, body)
	}
	return ret.Error(0)
}
