// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package ratelimit throttles mail-sending requests with a Redis fixed
// window counter.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/authtokens/internal/auth"
)

// Defaults.
const (
	DefaultWindow      = 15 * time.Minute
	DefaultMaxRequests = 5
	DefaultPrefix      = "authtokens:rl:"
)

// Config configures a Limiter.
type Config struct {
	Window      time.Duration
	MaxRequests int64
	Prefix      string
}

// Limiter allows at most MaxRequests hits per key per window.
type Limiter struct {
	client redis.Cmdable
	cfg    Config
}

var _ auth.RequestLimiter = (*Limiter)(nil)

// New creates a Limiter backed by client.
func New(client redis.Cmdable, cfg Config) (*Limiter, error) {
	if client == nil {
		return nil, oops.Errorf("redis client is required")
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultMaxRequests
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &Limiter{client: client, cfg: cfg}, nil
}

// Allow counts a hit for key. The window starts at the first hit. The
// counter and its expiry are set in one MULTI so a key never outlives its
// window.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.cfg.Prefix + key
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.cfg.Window)
		return nil
	})
	if err != nil {
		return false, oops.Code("RATELIMIT_UNAVAILABLE").With("operation", "incr").Wrap(err)
	}
	return incr.Val() <= l.cfg.MaxRequests, nil
}

// Reset clears the counter for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.cfg.Prefix+key).Err(); err != nil {
		return oops.Code("RATELIMIT_UNAVAILABLE").With("operation", "del").Wrap(err)
	}
	return nil
}

// Dial opens a Redis client for addr and pings it.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.Code("RATELIMIT_CONNECT_FAILED").With("addr", addr).Wrap(err)
	}
	return client, nil
}
