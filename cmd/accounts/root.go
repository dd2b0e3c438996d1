// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the accounts CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Accounts - multi-tenant account service",
		Long: `Accounts runs user registration, password login, web sessions and
subscription plans on top of a remote JSON document store or PostgreSQL.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/accounts/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewUpgradeCmd())
	cmd.AddCommand(NewSessionsCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewCryptoCmd())

	return cmd
}
