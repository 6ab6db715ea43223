// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "context"

// Transactor runs fn inside a single storage transaction. Repository calls
// made with the ctx passed to fn participate in that transaction. A call
// made while a transaction is already active in ctx joins it.
//
// If fn returns an error the transaction is rolled back and the error is
// returned unchanged.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
