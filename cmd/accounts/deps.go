// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"net/http"

	"github.com/holomush/accounts/internal/config"
	"github.com/holomush/accounts/internal/observability"
	"github.com/holomush/accounts/internal/store"
	"github.com/holomush/accounts/internal/web"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// BackendFactory opens the configured storage backend.
	// Default: openBackend
	BackendFactory func(ctx context.Context, cfg *config.Config) (*Backend, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// HTTPServerFactory creates the public HTTP server.
	// Default: web.NewServer
	HTTPServerFactory func(addr string, handler http.Handler) HTTPServer
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	if d == nil {
		d = &ServeDeps{}
	}
	if d.BackendFactory == nil {
		d.BackendFactory = openBackend
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if d.HTTPServerFactory == nil {
		d.HTTPServerFactory = func(addr string, handler http.Handler) HTTPServer {
			return web.NewServer(addr, handler)
		}
	}
	return d
}

// AdminDeps contains injectable dependencies for the one-shot admin
// commands (stats, upgrade, sessions purge).
type AdminDeps struct {
	// BackendFactory opens the configured storage backend.
	// Default: openBackend
	BackendFactory func(ctx context.Context, cfg *config.Config) (*Backend, error)
}

func (d *AdminDeps) withDefaults() *AdminDeps {
	if d == nil {
		d = &AdminDeps{}
	}
	if d.BackendFactory == nil {
		d.BackendFactory = openBackend
	}
	return d
}

// MigrateDeps contains injectable dependencies for the migrate command.
type MigrateDeps struct {
	// MigratorFactory creates a migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)
}

func (d *MigrateDeps) withDefaults() *MigrateDeps {
	if d == nil {
		d = &MigrateDeps{}
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	return d
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// HTTPServer interface wraps the methods used from web.Server.
type HTTPServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// Migrator interface wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	PendingMigrations() ([]uint, error)
	Close() error
}
