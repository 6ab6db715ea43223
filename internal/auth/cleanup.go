// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// CleanupReport counts the rows removed by one cleanup run, per category.
type CleanupReport struct {
	RevokedExpired      int64
	Expired             int64
	ActionTokensExpired int64
}

// Total returns the number of rows removed.
func (r CleanupReport) Total() int64 {
	return r.RevokedExpired + r.Expired + r.ActionTokensExpired
}

// CleanupJob deletes expired refresh sessions and action tokens. It takes
// no global lock: each delete is an independent statement, and rows created
// during a run are untouched because they are not yet expired.
type CleanupJob struct {
	sessions RefreshSessionRepository
	actions  ActionTokenRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewCleanupJob creates a CleanupJob.
func NewCleanupJob(sessions RefreshSessionRepository, actions ActionTokenRepository, opts ...Option) (*CleanupJob, error) {
	if sessions == nil {
		return nil, oops.Errorf("refresh session repository is required")
	}
	if actions == nil {
		return nil, oops.Errorf("action token repository is required")
	}
	o := buildOptions(opts)
	return &CleanupJob{
		sessions: sessions,
		actions:  actions,
		logger:   o.logger,
		now:      o.now,
	}, nil
}

// Run performs one sweep. Revoked expired sessions are counted first, then
// the remaining expired sessions, then expired action tokens. On failure
// the report holds what was deleted before the failing step.
func (j *CleanupJob) Run(ctx context.Context) (report CleanupReport, err error) {
	ctx, span := tracer.Start(ctx, "cleanup.run")
	defer func() { endSpan(span, err) }()

	now := j.now()

	report.RevokedExpired, err = j.sessions.DeleteRevokedExpiredBefore(ctx, now)
	if err != nil {
		return report, oops.Code("CLEANUP_FAILED").With("category", "revoked_expired").Wrap(err)
	}
	cleanupDeleted.WithLabelValues("revoked_expired").Add(float64(report.RevokedExpired))

	report.Expired, err = j.sessions.DeleteExpiredBefore(ctx, now)
	if err != nil {
		return report, oops.Code("CLEANUP_FAILED").With("category", "expired").Wrap(err)
	}
	cleanupDeleted.WithLabelValues("expired").Add(float64(report.Expired))

	report.ActionTokensExpired, err = j.actions.DeleteExpiredBefore(ctx, now)
	if err != nil {
		return report, oops.Code("CLEANUP_FAILED").With("category", "action_tokens_expired").Wrap(err)
	}
	cleanupDeleted.WithLabelValues("action_tokens_expired").Add(float64(report.ActionTokensExpired))

	j.logger.InfoContext(ctx, "token cleanup finished",
		"revoked_expired", report.RevokedExpired,
		"expired", report.Expired,
		"action_tokens_expired", report.ActionTokensExpired,
	)
	return report, nil
}
