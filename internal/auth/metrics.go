// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("authtokens/auth")

// Metrics for token lifecycle operations. They are registered by whoever
// owns the registry (see Collectors).
var (
	// refreshOperations counts refresh-session operations by outcome.
	refreshOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authtokens_refresh_operations_total",
		Help: "Total number of refresh session operations by operation and result",
	}, []string{"operation", "result"})

	// credentialRejections counts rejected refresh and bearer credentials by
	// internal reason. Reasons never leave the process any other way.
	credentialRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authtokens_credential_rejections_total",
		Help: "Total number of rejected credentials by kind and reason",
	}, []string{"kind", "reason"})

	// actionTokenOperations counts single-use token operations.
	actionTokenOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authtokens_action_token_operations_total",
		Help: "Total number of action token operations by purpose, operation and result",
	}, []string{"purpose", "operation", "result"})

	// cleanupDeleted counts rows removed by the cleanup job.
	cleanupDeleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authtokens_cleanup_deleted_total",
		Help: "Total number of rows deleted by the cleanup job by category",
	}, []string{"category"})

	// backfillHashed counts legacy rows fingerprinted by the backfill.
	backfillHashed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authtokens_backfill_hashed_total",
		Help: "Total number of legacy refresh sessions fingerprinted",
	})
)

// Collectors returns the package metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		refreshOperations,
		credentialRejections,
		actionTokenOperations,
		cleanupDeleted,
		backfillHashed,
	}
}

func recordResult(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
