// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/authtokens/internal/app"
	"github.com/holomush/authtokens/internal/config"
	"github.com/holomush/authtokens/internal/observability"
	"github.com/holomush/authtokens/internal/store"
)

// Migrator is the schema migration surface used by the migrate command.
type Migrator interface {
	Up() error
	Down() error
	Status() (*store.Status, error)
	Force(version int) error
	Close() error
}

// ObservabilityServer is the metrics and health server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Metrics() *observability.Metrics
}

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// MigratorFactory creates a migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// AppOpener connects to storage and assembles the components.
	// Default: app.Open
	AppOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app.App, error)

	// ObservabilityServerFactory creates the metrics server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, extra ...prometheus.Collector) ObservabilityServer
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (Migrator, error) {
			return store.NewMigrator(url)
		}
	}
	if out.AppOpener == nil {
		out.AppOpener = app.Open
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, extra ...prometheus.Collector) ObservabilityServer {
			return observability.NewServer(addr, ready, extra...)
		}
	}
	return &out
}
