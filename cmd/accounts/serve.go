// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accounts/internal/config"
	"github.com/holomush/accounts/internal/logging"
	"github.com/holomush/accounts/internal/observability"
	"github.com/holomush/accounts/internal/web"
	"github.com/holomush/accounts/pkg/errutil"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account HTTP service",
		Long: `Start the HTTP service for registration, login, sessions and plan
upgrades, plus the metrics and health endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cmd, nil)
		},
	}
	config.BindFlags(cmd.Flags())
	return cmd
}

func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return oops.With("operation", "load config").Wrap(err)
	}

	logger := logging.SetDefault("accounts", version, cfg.LogOptions(), cmd.ErrOrStderr())

	logger.Info("starting accounts service",
		"http_addr", cfg.HTTP.Addr,
		"store_backend", cfg.Store.Backend,
	)

	backend, err := deps.BackendFactory(ctx, cfg)
	if err != nil {
		return oops.With("operation", "open store").Wrap(err)
	}
	defer backend.close()

	svcs, err := newServices(cfg, backend, logger)
	if err != nil {
		return oops.With("operation", "build services").Wrap(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, func(ctx context.Context) error {
			return backend.Ping(ctx)
		})
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		metrics = obsServer.Metrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	handler, err := web.NewHandler(svcs.Auth, svcs.Subscriptions, web.Config{
		Origins:      cfg.HTTP.Origins,
		SecureCookie: cfg.Session.Secure,
	}, web.WithLogger(logger), web.WithMetrics(metrics))
	if err != nil {
		stopServer(logger, "observability", obsServer)
		return oops.With("operation", "build HTTP handler").Wrap(err)
	}

	httpServer := deps.HTTPServerFactory(cfg.HTTP.Addr, handler.Router())
	httpErrCh, err := httpServer.Start()
	if err != nil {
		stopServer(logger, "observability", obsServer)
		return oops.With("operation", "start HTTP server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, httpErrCh, "http")

	cmd.Println("Accounts service started")
	logger.Info("accounts service ready", "http_addr", httpServer.Addr())

	<-ctx.Done()
	logger.Info("shutting down...")

	stopServer(logger, "http", httpServer)
	stopServer(logger, "observability", obsServer)

	logger.Info("shutdown complete")
	return nil
}

type stopper interface {
	Stop(ctx context.Context) error
}

// stopServer stops s within shutdownTimeout. A nil s is ignored.
func stopServer(logger *slog.Logger, name string, s stopper) {
	if s == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil {
		errutil.LogWarn(logger, "error stopping "+name+" server", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
