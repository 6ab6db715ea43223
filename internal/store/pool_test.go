// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"testing"
	"time"

	"github.com/holomush/authtokens/pkg/errutil"
)

func TestOpen_RejectsBadConfig(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, PoolConfig{})
	errutil.AssertErrorCode(t, err, "DB_CONFIG_INVALID")

	_, err = Open(ctx, PoolConfig{URL: "postgres://%zz"})
	errutil.AssertErrorCode(t, err, "DB_CONFIG_INVALID")
}

func TestOpen_UnreachableServer(t *testing.T) {
	_, err := Open(context.Background(), PoolConfig{
		URL:            "postgres://authtokens@127.0.0.1:1/authtokens?connect_timeout=1",
		ConnectTimeout: 2 * time.Second,
	})
	errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
}
