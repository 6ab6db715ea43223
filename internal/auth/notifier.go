// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "context"

// Notifier delivers a message to an email address. Delivery is best-effort:
// services log a failed Send and carry on.
type Notifier interface {
	Send(ctx context.Context, address, subject, body string) error
}

// RequestLimiter throttles outbound mail requests per key.
type RequestLimiter interface {
	// Allow records a hit for key and reports whether it is within budget.
	Allow(ctx context.Context, key string) (bool, error)
}
