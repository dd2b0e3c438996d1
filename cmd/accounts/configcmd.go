// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accounts/internal/config"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a config file against the schema and semantic rules",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigValidate,
	})
	return cmd
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}
	if err := config.ValidateYAML(data); err != nil {
		return oops.With("path", path).Wrap(err)
	}
	if _, err := config.Load(path, nil); err != nil {
		return oops.With("path", path).Wrap(err)
	}
	cmd.Printf("%s is valid\n", path)
	return nil
}
