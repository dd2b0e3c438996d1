// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/internal/config"
	"github.com/holomush/accounts/internal/logging"
)

// withServices loads the config, opens the backend and builds the services
// for a one-shot command. Logs go to stderr.
func withServices(cmd *cobra.Command, deps *AdminDeps, fn func(ctx context.Context, b *Backend, s *Services) error) error {
	deps = deps.withDefaults()

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return oops.With("operation", "load config").Wrap(err)
	}
	logger := logging.Setup("accounts", version, cfg.LogOptions(), cmd.ErrOrStderr())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	backend, err := deps.BackendFactory(ctx, cfg)
	if err != nil {
		return oops.With("operation", "open store").Wrap(err)
	}
	defer backend.close()

	svcs, err := newServices(cfg, backend, logger)
	if err != nil {
		return oops.With("operation", "build services").Wrap(err)
	}
	return fn(ctx, backend, svcs)
}

// NewStatsCmd creates the stats subcommand.
func NewStatsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show user totals and counts per plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatsWithDeps(cmd, asJSON, nil)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func runStatsWithDeps(cmd *cobra.Command, asJSON bool, deps *AdminDeps) error {
	return withServices(cmd, deps, func(ctx context.Context, b *Backend, _ *Services) error {
		stats, err := b.Users.Stats(ctx)
		if err != nil {
			return oops.With("operation", "collect stats").Wrap(err)
		}
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		cmd.Printf("Total users:  %d\n", stats.TotalUsers)
		cmd.Printf("Active users: %d\n", stats.ActiveUsers)
		cmd.Println("Users per plan:")
		for _, plan := range planOrder(stats.PlansCount) {
			cmd.Printf("  %-12s %d\n", plan, stats.PlansCount[plan])
		}
		return nil
	})
}

// planOrder lists catalog plans first, then any unknown plans found in
// storage, alphabetically.
func planOrder(counts map[string]int) []string {
	catalog := account.DefaultCatalog()
	var order []string
	for _, p := range catalog.Plans() {
		order = append(order, p.ID)
	}
	var extra []string
	for id := range counts {
		if !catalog.Has(id) {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

// NewUpgradeCmd creates the upgrade subcommand.
func NewUpgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade <user-id> <plan>",
		Short: "Move a user to another plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpgradeWithDeps(cmd, args[0], args[1], nil)
		},
	}
}

func runUpgradeWithDeps(cmd *cobra.Command, userID, plan string, deps *AdminDeps) error {
	return withServices(cmd, deps, func(ctx context.Context, _ *Backend, s *Services) error {
		sub, err := s.Subscriptions.Upgrade(ctx, userID, plan)
		if err != nil {
			return oops.With("operation", "upgrade").Wrapf(err, "%s", account.Reason(err))
		}
		cmd.Printf("User %s is now on %s until %s\n", sub.UserID, sub.Plan, sub.ExpiresAt.UTC().Format(time.RFC3339))
		return nil
	})
}

// NewSessionsCmd creates the sessions subcommand.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage web sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired web sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPurgeWithDeps(cmd, nil)
		},
	})
	return cmd
}

func runPurgeWithDeps(cmd *cobra.Command, deps *AdminDeps) error {
	return withServices(cmd, deps, func(ctx context.Context, _ *Backend, s *Services) error {
		n, err := s.Auth.PurgeExpiredSessions(ctx)
		if err != nil {
			return oops.With("operation", "purge sessions").Wrap(err)
		}
		cmd.Printf("Purged %d expired sessions\n", n)
		return nil
	})
}
