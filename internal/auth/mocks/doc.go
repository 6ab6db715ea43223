// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify mocks of the auth interfaces.
package mocks

import "context"

// Transactor runs fn directly. Use it with mocked repositories, where
// there is no storage transaction to open.
type Transactor struct{}

// InTransaction implements auth.Transactor.
func (Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
