// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/authtokens/internal/observability"
	"github.com/holomush/authtokens/pkg/errutil"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newScheduler(t *testing.T) (*Scheduler, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return NewScheduler(metrics, discard()), metrics
}

func TestValidateSpec(t *testing.T) {
	tests := []struct {
		spec  string
		valid bool
	}{
		{"0 0 * * * *", true},
		{"*/30 * * * * *", true},
		{"@hourly", true},
		{"@every 5m", true},
		{"", false},
		{"not a schedule", false},
		{"61 * * * * *", false},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			err := ValidateSpec(tt.spec)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, "SCHEDULE_INVALID")
		})
	}
}

func TestScheduler_FiresOnSchedule(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, metrics := newScheduler(t)
	var runs atomic.Int32
	require.NoError(t, s.Add("cleanup", "* * * * * *", func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.JobRuns.WithLabelValues("cleanup", "ok")), 1.0)
}

func TestScheduler_RunNow(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, metrics := newScheduler(t)
	boom := errors.New("boom")
	require.NoError(t, s.Add("ok", "@hourly", func(context.Context) error { return nil }))
	require.NoError(t, s.Add("fails", "@hourly", func(context.Context) error { return boom }))

	require.NoError(t, s.RunNow(context.Background(), "ok"))
	require.ErrorIs(t, s.RunNow(context.Background(), "fails"), boom)

	err := s.RunNow(context.Background(), "missing")
	errutil.AssertErrorCode(t, err, "SCHEDULE_UNKNOWN_JOB")

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.JobRuns.WithLabelValues("ok", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.JobRuns.WithLabelValues("fails", "error")), 0)
	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _ := newScheduler(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, s.Add("slow", "@hourly", func(context.Context) error {
		close(entered)
		<-release
		return nil
	}))

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "slow") }()
	<-entered

	err := s.RunNow(context.Background(), "slow")
	errutil.AssertErrorCode(t, err, "SCHEDULE_BUSY")

	close(release)
	require.NoError(t, <-done)
	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_RecoversPanics(t *testing.T) {
	s, _ := newScheduler(t)
	require.NoError(t, s.Add("panics", "@hourly", func(context.Context) error { panic("bad") }))

	err := s.RunNow(context.Background(), "panics")
	errutil.AssertErrorCode(t, err, "JOB_PANIC")
	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_StopCancelsRunningTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _ := newScheduler(t)
	entered := make(chan struct{})
	require.NoError(t, s.Add("blocking", "@hourly", func(ctx context.Context) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	}))

	done := make(chan error, 1)
	go func() { done <- s.RunNow(s.ctx, "blocking") }()
	<-entered

	require.NoError(t, s.Stop(context.Background()))
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestScheduler_NoRunsAfterStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, metrics := newScheduler(t)
	var calls atomic.Int32
	require.NoError(t, s.Add("cleanup", "@hourly", func(context.Context) error {
		calls.Add(1)
		return nil
	}))
	require.NoError(t, s.Stop(context.Background()))

	// A tick delivered by cron after Stop is dropped.
	s.run(s.entries["cleanup"])

	err := s.RunNow(context.Background(), "cleanup")
	errutil.AssertErrorCode(t, err, "SCHEDULE_STOPPED")
	assert.Zero(t, calls.Load())
	assert.Zero(t, testutil.ToFloat64(metrics.JobRuns.WithLabelValues("cleanup", "ok")))
}

func TestScheduler_AddValidation(t *testing.T) {
	s, _ := newScheduler(t)

	errutil.AssertErrorCode(t, s.Add("bad", "nope", func(context.Context) error { return nil }), "SCHEDULE_INVALID")
	errutil.AssertErrorCode(t, s.Add("nil", "@hourly", nil), "SCHEDULE_INVALID")

	require.NoError(t, s.Add("job", "@hourly", func(context.Context) error { return nil }))
	errutil.AssertErrorCode(t, s.Add("job", "@daily", func(context.Context) error { return nil }), "SCHEDULE_DUPLICATE")
}
