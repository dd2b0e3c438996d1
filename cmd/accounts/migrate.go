// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accounts/internal/config"
	"github.com/holomush/accounts/internal/store"
)

// NewMigrateCmd creates the migrate subcommand and its up/down/status children.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage PostgreSQL schema migrations",
		Long:  `Apply, roll back or inspect the PostgreSQL schema migrations embedded in the binary.`,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateWithDeps(cmd, "up", nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateWithDeps(cmd, "down", nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current schema version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateWithDeps(cmd, "status", nil)
		},
	})
	return cmd
}

// databaseURL reads database.url without requiring the rest of the config.
func databaseURL(cmd *cobra.Command) (string, error) {
	cfg, err := config.Decode(configFile, cmd.Flags())
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(cfg.Database.URL) == "" {
		return "", oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database.url is required (set it in the config file or ACCOUNTS_DATABASE_URL)")
	}
	return cfg.Database.URL, nil
}

func runMigrateWithDeps(cmd *cobra.Command, action string, deps *MigrateDeps) error {
	deps = deps.withDefaults()

	url, err := databaseURL(cmd)
	if err != nil {
		return err
	}

	migrator, err := deps.MigratorFactory(url)
	if err != nil {
		return oops.With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			cmd.PrintErrf("warning: closing migrator: %v\n", closeErr)
		}
	}()

	switch action {
	case "up":
		cmd.Println("Applying migrations...")
		if err := migrator.Up(); err != nil {
			return oops.With("operation", "migrate up").Wrap(err)
		}
		cmd.Println("Migrations completed successfully")
	case "down":
		cmd.Println("Rolling back migrations...")
		if err := migrator.Down(); err != nil {
			return oops.With("operation", "migrate down").Wrap(err)
		}
		cmd.Println("Rollback completed successfully")
	case "status":
		return printMigrationStatus(cmd, migrator)
	default:
		return oops.Code("INVALID_ACTION").With("action", action).Errorf("unknown migrate action %q", action)
	}
	return nil
}

func printMigrationStatus(cmd *cobra.Command, migrator Migrator) error {
	version, dirty, err := migrator.Version()
	if err != nil {
		return oops.With("operation", "read schema version").Wrap(err)
	}
	pending, err := migrator.PendingMigrations()
	if err != nil {
		return oops.With("operation", "list pending migrations").Wrap(err)
	}

	state := "clean"
	if dirty {
		state = "dirty"
	}
	cmd.Printf("Current version: %d (%s)\n", version, state)
	if len(pending) == 0 {
		cmd.Println("No pending migrations")
		return nil
	}
	cmd.Printf("Pending migrations: %d\n", len(pending))
	for _, v := range pending {
		name, err := store.MigrationName(v)
		if err != nil || name == "" {
			name = fmt.Sprintf("%06d_unknown", v)
		}
		cmd.Printf("  %s\n", name)
	}
	return nil
}
