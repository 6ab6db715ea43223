// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"log/slog"
	"time"
)

// Option configures the managers and services in this package.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	now     func() time.Time
	limiter RequestLimiter
}

func buildOptions(opts []Option) options {
	o := options{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLimiter throttles mail-sending requests. Without it requests are
// never throttled.
func WithLimiter(l RequestLimiter) Option {
	return func(o *options) {
		o.limiter = l
	}
}
